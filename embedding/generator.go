// Package embedding provides swappable text-to-vector generation: a
// Generator capability interface, a version-keyed registry/factory
// pattern, and an OpenAI-compatible REST backend.
package embedding

import (
	"context"
	"fmt"
	"sync"
)

// Generator turns text into an embedding vector. It is this module's
// EmbeddingGenerator capability.
type Generator interface {
	// Name returns a human-readable model name.
	Name() string

	// Version returns a short, stable identifier stored alongside vectors
	// so the Coordinator can detect model-version drift.
	Version() string

	// Dimensions returns the embedding vector size this generator produces.
	Dimensions() int

	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Close releases generator resources.
	Close() error
}

// Metadata describes a registered generator for introspection.
type Metadata struct {
	Name        string
	Version     string
	Dimensions  int
	Description string
	Default     bool
}

// Factory constructs a Generator instance.
type Factory func() (Generator, error)

// Registry provides generator lookup by version.
type Registry struct {
	mu           sync.RWMutex
	factories    map[string]Factory
	metadata     map[string]Metadata
	defaultModel string
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		metadata:  make(map[string]Metadata),
	}
}

// Register adds a generator factory under meta.Version.
func (r *Registry) Register(meta Metadata, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[meta.Version] = factory
	r.metadata[meta.Version] = meta
	if meta.Default {
		r.defaultModel = meta.Version
	}
}

// Get constructs a new Generator instance for version.
func (r *Registry) Get(version string) (Generator, error) {
	r.mu.RLock()
	factory, ok := r.factories[version]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("embedding: unknown generator version %q", version)
	}
	return factory()
}

// Default returns the version marked as default, or "" if none is.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultModel
}

// List returns metadata for every registered generator.
func (r *Registry) List() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metadata, 0, len(r.metadata))
	for _, m := range r.metadata {
		out = append(out, m)
	}
	return out
}
