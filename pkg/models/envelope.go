package models

// EnvelopeVersion is the current ExportEnvelope schema version. The major
// component must match on import; a greater minor is accepted with a warning.
const EnvelopeVersion = "1.0.0"

// EnvelopeConfig is the subset of configuration recorded in an export so a
// later import can validate compatibility before touching live state.
type EnvelopeConfig struct {
	Storage   EnvelopeStorageConfig   `json:"storage"`
	Index     EnvelopeIndexConfig     `json:"index"`
	Embedding EnvelopeEmbeddingConfig `json:"embedding"`
}

type EnvelopeStorageConfig struct {
	DBName  string `json:"dbName"`
	Version int    `json:"version,omitempty"`
}

type EnvelopeIndexConfig struct {
	Dimensions int    `json:"dimensions"`
	Metric     string `json:"metric"`
	IndexType  string `json:"indexType,omitempty"`
}

type EnvelopeEmbeddingConfig struct {
	Model string `json:"model,omitempty"`
}

// EnvelopeMetadata describes the export itself.
type EnvelopeMetadata struct {
	ExportedAt  int64 `json:"exportedAt"`
	VectorCount int   `json:"vectorCount"`
	Dimensions  int   `json:"dimensions"`
}

// ExportEnvelope is the versioned document produced by export and consumed
// by import. Index is the opaque AnnIndex.serialize() output, base64-encoded
// by the JSON marshaler's []byte handling; empty when the index is omitted.
type ExportEnvelope struct {
	Version  string           `json:"version"`
	Config   EnvelopeConfig   `json:"config"`
	Vectors  []*VectorRecord  `json:"vectors"`
	Index    []byte           `json:"index"`
	Metadata EnvelopeMetadata `json:"metadata"`
}
