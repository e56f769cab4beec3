package vectordb

import "github.com/thebtf/vectordb/pkg/models"

// sanitizeMetadata returns a defensive copy of m with nil replaced by an
// empty map, so downstream code never has to special-case a nil metadata
// value from a caller.
func sanitizeMetadata(m models.Metadata) models.Metadata {
	if m == nil {
		return models.Metadata{}
	}
	return m.Clone()
}

// mergeMetadata overlays patch onto base, returning a new map. A patch
// value of nil deletes the key (used by update() to clear a field).
func mergeMetadata(base, patch models.Metadata) models.Metadata {
	merged := base.Clone()
	if merged == nil {
		merged = models.Metadata{}
	}
	for k, v := range patch {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return merged
}
