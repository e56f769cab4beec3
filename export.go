package vectordb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/vectordb/pkg/models"
	"github.com/thebtf/vectordb/vdberrors"
)

func buildEnvelopeConfig(cfg *Config) models.EnvelopeConfig {
	return models.EnvelopeConfig{
		Storage: models.EnvelopeStorageConfig{DBName: cfg.Storage.DBName, Version: cfg.Storage.Version},
		Index: models.EnvelopeIndexConfig{
			Dimensions: cfg.Index.Dimensions,
			Metric:     cfg.Index.Metric,
			IndexType:  cfg.Index.IndexType,
		},
		Embedding: models.EnvelopeEmbeddingConfig{Model: cfg.Embedding.Model},
	}
}

func parseMajorMinor(version string) (major, minor int, err error) {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("%w: malformed version %q", vdberrors.ErrInvalidExportData, version)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: malformed major version in %q", vdberrors.ErrInvalidExportData, version)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: malformed minor version in %q", vdberrors.ErrInvalidExportData, version)
	}
	return major, minor, nil
}

// checkEnvelopeVersion enforces the compatibility rule: major must match
// current exactly; a greater minor is accepted with a logged warning.
func checkEnvelopeVersion(version string) error {
	currentMajor, currentMinor, err := parseMajorMinor(models.EnvelopeVersion)
	if err != nil {
		return err // unreachable given the constant, but keeps the function total
	}
	major, minor, err := parseMajorMinor(version)
	if err != nil {
		return err
	}
	if major != currentMajor {
		return fmt.Errorf("%w: envelope major version %d, expected %d", vdberrors.ErrVersionIncompatible, major, currentMajor)
	}
	if minor > currentMinor {
		log.Warn().Str("envelope_version", version).Str("current_version", models.EnvelopeVersion).
			Msg("vectordb: importing envelope from a newer minor version")
	}
	return nil
}

func validateEnvelope(env *models.ExportEnvelope) error {
	if env == nil {
		return fmt.Errorf("%w: envelope is nil", vdberrors.ErrInvalidExportData)
	}
	if env.Version == "" {
		return fmt.Errorf("%w: missing version", vdberrors.ErrInvalidExportData)
	}
	if env.Config.Index.Dimensions <= 0 {
		return fmt.Errorf("%w: missing or non-positive dimensions", vdberrors.ErrInvalidExportData)
	}
	if len(env.Vectors) != env.Metadata.VectorCount {
		return fmt.Errorf("%w: vectors length %d does not match metadata.vectorCount %d", vdberrors.ErrInvalidExportData, len(env.Vectors), env.Metadata.VectorCount)
	}
	return nil
}
