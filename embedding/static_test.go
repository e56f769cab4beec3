package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticGeneratorDeterministic(t *testing.T) {
	g := NewStaticGenerator(16)
	a, err := g.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	b, err := g.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 16)
}

func TestStaticGeneratorDistinctTextsDiffer(t *testing.T) {
	g := NewStaticGenerator(16)
	a, err := g.Embed(context.Background(), "hello")
	require.NoError(t, err)
	b, err := g.Embed(context.Background(), "world")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestStaticGeneratorEmbedBatch(t *testing.T) {
	g := NewStaticGenerator(8)
	out, err := g.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	single, err := g.Embed(context.Background(), "b")
	require.NoError(t, err)
	require.Equal(t, single, out[1])
}

func TestDefaultRegistryResolvesStatic(t *testing.T) {
	r := NewDefaultRegistry()
	require.Equal(t, StaticVersion, r.Default())

	gen, err := r.Get(StaticVersion)
	require.NoError(t, err)
	require.Equal(t, StaticDefaultDimension, gen.Dimensions())
}

func TestRegistryUnknownVersion(t *testing.T) {
	r := NewDefaultRegistry()
	_, err := r.Get("bogus")
	require.Error(t, err)
}
