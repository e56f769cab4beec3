package embedding

import (
	"context"
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

const (
	StaticVersion          = "static"
	StaticDefaultDimension = 256
)

// StaticGenerator produces a deterministic, content-derived embedding from
// a blake2b hash of the input text, expanded to fill the requested
// dimensionality. It requires no network access or model weights, making
// it the default generator for tests and offline use.
type StaticGenerator struct {
	dimensions int
}

// NewStaticGenerator constructs a StaticGenerator producing vectors of the
// given dimensionality (StaticDefaultDimension if dims <= 0).
func NewStaticGenerator(dims int) *StaticGenerator {
	if dims <= 0 {
		dims = StaticDefaultDimension
	}
	return &StaticGenerator{dimensions: dims}
}

func (g *StaticGenerator) Name() string    { return "Static Hash Embedding" }
func (g *StaticGenerator) Version() string { return StaticVersion }
func (g *StaticGenerator) Dimensions() int { return g.dimensions }
func (g *StaticGenerator) Close() error    { return nil }

func (g *StaticGenerator) Embed(ctx context.Context, text string) ([]float32, error) {
	return hashEmbed(text, g.dimensions), nil
}

func (g *StaticGenerator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashEmbed(t, g.dimensions)
	}
	return out, nil
}

// hashEmbed derives a dimensions-length vector from repeated blake2b
// hashing of text, normalized into [-1, 1].
func hashEmbed(text string, dimensions int) []float32 {
	out := make([]float32, dimensions)
	seed := []byte(text)
	block := 0
	var digest [32]byte

	for i := 0; i < dimensions; i++ {
		if i%8 == 0 {
			digest = blake2b.Sum256(append(seed, byte(block)))
			block++
		}
		offset := (i % 8) * 4
		bits := binary.LittleEndian.Uint32(digest[offset : offset+4])
		out[i] = (float32(bits)/float32(^uint32(0)))*2 - 1
	}
	return out
}

var _ Generator = (*StaticGenerator)(nil)
