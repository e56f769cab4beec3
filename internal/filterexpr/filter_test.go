package filterexpr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thebtf/vectordb/pkg/models"
)

func TestNilFilterMatchesEverything(t *testing.T) {
	fn, err := Compile(nil)
	require.NoError(t, err)
	require.True(t, fn(models.Metadata{"a": 1}))
}

func TestLeafEq(t *testing.T) {
	fn, err := Compile(models.Leaf("cat", models.FilterEq, "A"))
	require.NoError(t, err)
	require.True(t, fn(models.Metadata{"cat": "A"}))
	require.False(t, fn(models.Metadata{"cat": "B"}))
	require.False(t, fn(models.Metadata{}))
}

func TestLeafNumericComparisons(t *testing.T) {
	fn, err := Compile(models.Leaf("score", models.FilterGte, 5.0))
	require.NoError(t, err)
	require.True(t, fn(models.Metadata{"score": 5.0}))
	require.True(t, fn(models.Metadata{"score": 10.0}))
	require.False(t, fn(models.Metadata{"score": 4.0}))
}

func TestLeafContainsString(t *testing.T) {
	fn, err := Compile(models.Leaf("text", models.FilterContains, "ell"))
	require.NoError(t, err)
	require.True(t, fn(models.Metadata{"text": "hello"}))
	require.False(t, fn(models.Metadata{"text": "world"}))
}

func TestLeafContainsArray(t *testing.T) {
	fn, err := Compile(models.Leaf("tags", models.FilterContains, "x"))
	require.NoError(t, err)
	require.True(t, fn(models.Metadata{"tags": []any{"x", "y"}}))
	require.False(t, fn(models.Metadata{"tags": []any{"y"}}))
}

func TestLeafIn(t *testing.T) {
	fn, err := Compile(models.Leaf("cat", models.FilterIn, []any{"A", "B"}))
	require.NoError(t, err)
	require.True(t, fn(models.Metadata{"cat": "A"}))
	require.False(t, fn(models.Metadata{"cat": "C"}))
}

func TestCompoundAnd(t *testing.T) {
	f := models.And(
		models.Leaf("a", models.FilterEq, 1.0),
		models.Leaf("b", models.FilterEq, 2.0),
	)
	fn, err := Compile(f)
	require.NoError(t, err)
	require.True(t, fn(models.Metadata{"a": 1.0, "b": 2.0}))
	require.False(t, fn(models.Metadata{"a": 1.0, "b": 99.0}))
}

func TestCompoundOr(t *testing.T) {
	f := models.Or(
		models.Leaf("a", models.FilterEq, 1.0),
		models.Leaf("b", models.FilterEq, 2.0),
	)
	fn, err := Compile(f)
	require.NoError(t, err)
	require.True(t, fn(models.Metadata{"a": 1.0, "b": 99.0}))
	require.True(t, fn(models.Metadata{"a": 99.0, "b": 2.0}))
	require.False(t, fn(models.Metadata{"a": 99.0, "b": 99.0}))
}

func TestNestedCompound(t *testing.T) {
	f := models.And(
		models.Leaf("cat", models.FilterEq, "A"),
		models.Or(
			models.Leaf("score", models.FilterGt, 5.0),
			models.Leaf("priority", models.FilterEq, "high"),
		),
	)
	fn, err := Compile(f)
	require.NoError(t, err)
	require.True(t, fn(models.Metadata{"cat": "A", "score": 10.0}))
	require.True(t, fn(models.Metadata{"cat": "A", "priority": "high"}))
	require.False(t, fn(models.Metadata{"cat": "A", "score": 1.0, "priority": "low"}))
	require.False(t, fn(models.Metadata{"cat": "B", "score": 10.0}))
}

func TestInvalidFilterRejected(t *testing.T) {
	_, err := Compile(&models.QueryFilter{Field: "a", Op: "bogus"})
	require.Error(t, err)

	_, err = Compile(&models.QueryFilter{CompoundOp: "xor", Children: []*models.QueryFilter{{Field: "a", Op: models.FilterEq, Value: 1}}})
	require.Error(t, err)

	_, err = Compile(&models.QueryFilter{CompoundOp: models.CompoundAnd})
	require.Error(t, err)
}
