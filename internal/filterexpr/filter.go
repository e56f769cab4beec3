// Package filterexpr evaluates models.QueryFilter trees against record
// metadata: boolean predicate composition over map[string]any.
package filterexpr

import (
	"fmt"
	"strings"

	"github.com/thebtf/vectordb/pkg/models"
	"github.com/thebtf/vectordb/vdberrors"
)

// Compile validates a filter tree and returns an evaluator closure. It
// rejects malformed filters up front rather than failing mid-scan.
func Compile(f *models.QueryFilter) (func(models.Metadata) bool, error) {
	if f == nil {
		return func(models.Metadata) bool { return true }, nil
	}
	if err := validate(f); err != nil {
		return nil, err
	}
	return func(m models.Metadata) bool { return eval(f, m) }, nil
}

func validate(f *models.QueryFilter) error {
	if f.IsCompound() {
		if f.CompoundOp != models.CompoundAnd && f.CompoundOp != models.CompoundOr {
			return fmt.Errorf("%w: unknown compound op %q", vdberrors.ErrInvalidQuery, f.CompoundOp)
		}
		if len(f.Children) == 0 {
			return fmt.Errorf("%w: compound filter has no children", vdberrors.ErrInvalidQuery)
		}
		for _, child := range f.Children {
			if err := validate(child); err != nil {
				return err
			}
		}
		return nil
	}

	if f.Field == "" {
		return fmt.Errorf("%w: leaf filter missing field", vdberrors.ErrInvalidQuery)
	}
	switch f.Op {
	case models.FilterEq, models.FilterNe, models.FilterGt, models.FilterGte,
		models.FilterLt, models.FilterLte, models.FilterContains, models.FilterIn:
	default:
		return fmt.Errorf("%w: unknown filter op %q", vdberrors.ErrInvalidQuery, f.Op)
	}
	return nil
}

// eval assumes f has already passed validate. Compound nodes short-circuit:
// "and" stops at the first false child, "or" stops at the first true one.
func eval(f *models.QueryFilter, m models.Metadata) bool {
	if f.IsCompound() {
		switch f.CompoundOp {
		case models.CompoundAnd:
			for _, child := range f.Children {
				if !eval(child, m) {
					return false
				}
			}
			return true
		case models.CompoundOr:
			for _, child := range f.Children {
				if eval(child, m) {
					return true
				}
			}
			return false
		}
		return false
	}
	return evalLeaf(f, m)
}

func evalLeaf(f *models.QueryFilter, m models.Metadata) bool {
	actual, present := m[f.Field]

	switch f.Op {
	case models.FilterEq:
		return present && valuesEqual(actual, f.Value)
	case models.FilterNe:
		return !present || !valuesEqual(actual, f.Value)
	case models.FilterIn:
		if !present {
			return false
		}
		items, ok := f.Value.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if valuesEqual(actual, item) {
				return true
			}
		}
		return false
	case models.FilterContains:
		if !present {
			return false
		}
		return containsValue(actual, f.Value)
	case models.FilterGt, models.FilterGte, models.FilterLt, models.FilterLte:
		if !present {
			return false
		}
		an, aok := toFloat64(actual)
		bn, bok := toFloat64(f.Value)
		if !aok || !bok {
			return false
		}
		switch f.Op {
		case models.FilterGt:
			return an > bn
		case models.FilterGte:
			return an >= bn
		case models.FilterLt:
			return an < bn
		case models.FilterLte:
			return an <= bn
		}
	}
	return false
}

// valuesEqual compares JSON scalars: numbers across numeric types, strings,
// bools, and null. Containers never compare equal to anything, including
// each other — interface equality on a slice or map value would panic.
func valuesEqual(a, b any) bool {
	if an, aok := toFloat64(a); aok {
		bn, bok := toFloat64(b)
		return bok && an == bn
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return false
	}
}

func containsValue(actual, needle any) bool {
	switch av := actual.(type) {
	case string:
		s, ok := needle.(string)
		return ok && strings.Contains(av, s)
	case []any:
		for _, item := range av {
			if valuesEqual(item, needle) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
