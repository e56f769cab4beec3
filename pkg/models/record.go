// Package models contains the domain types shared by every vectordb subsystem.
package models

// Metadata is the mapping from string field names to JSON-scalar-or-container
// values attached to a VectorRecord. The reserved fields "content" and
// "timestamp" carry the record's original text (if any) and insertion time.
type Metadata map[string]any

// Clone returns a copy of m suitable for handing to a caller without
// aliasing the stored top-level map. The copy is shallow: nested
// slices/maps are still shared with m.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// VectorRecord is the canonical persistent entity: an id, a dense vector of
// length D, structured metadata, and the last-mutation timestamp (ms).
type VectorRecord struct {
	ID        string   `json:"id"`
	Vector    []float32 `json:"vector"`
	Metadata  Metadata  `json:"metadata"`
	Timestamp int64     `json:"timestamp"`
}

// Clone returns a copy of the record with its own vector and its own
// top-level metadata map (see Metadata.Clone: nested metadata values are
// shared), so callers handed a record from a cache can't change its vector
// or metadata keys in place.
func (r *VectorRecord) Clone() *VectorRecord {
	if r == nil {
		return nil
	}
	vec := make([]float32, len(r.Vector))
	copy(vec, r.Vector)
	return &VectorRecord{
		ID:        r.ID,
		Vector:    vec,
		Metadata:  r.Metadata.Clone(),
		Timestamp: r.Timestamp,
	}
}
