package embedding

// NewDefaultRegistry returns a Registry pre-populated with the generators
// this module ships: a static hash-based generator (default, no external
// dependency) and an OpenAI-compatible REST generator.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(Metadata{
		Name:        "Static Hash Embedding",
		Version:     StaticVersion,
		Dimensions:  StaticDefaultDimension,
		Description: "Deterministic hash-derived embedding, no network required",
		Default:     true,
	}, func() (Generator, error) {
		return NewStaticGenerator(StaticDefaultDimension), nil
	})

	r.Register(Metadata{
		Name:        "OpenAI Compatible",
		Version:     OpenAIVersion,
		Dimensions:  OpenAIDefaultDimension,
		Description: "OpenAI-compatible embedding via REST API (supports LiteLLM proxy)",
	}, func() (Generator, error) {
		return NewOpenAIGenerator(OpenAIConfig{})
	})

	return r
}
