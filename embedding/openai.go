package embedding

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	OpenAIVersion          = "openai"
	OpenAIDefaultBaseURL   = "https://api.openai.com/v1"
	OpenAIDefaultModel     = "text-embedding-3-small"
	OpenAIDefaultDimension = 1536
	openAIHTTPTimeout      = 30 * time.Second
)

// OpenAIConfig configures an OpenAIGenerator.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	ModelName  string
	Dimensions int
}

// OpenAIGenerator calls an OpenAI-compatible /embeddings REST endpoint,
// including LiteLLM-style proxies.
type OpenAIGenerator struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	modelName  string
	dimensions int
}

// NewOpenAIGenerator constructs a generator from cfg, applying defaults for
// any unset field.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding: OpenAIConfig.APIKey is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = OpenAIDefaultBaseURL
	}
	modelName := cfg.ModelName
	if modelName == "" {
		modelName = OpenAIDefaultModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = OpenAIDefaultDimension
	}
	return &OpenAIGenerator{
		client:     &http.Client{Timeout: openAIHTTPTimeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		modelName:  modelName,
		dimensions: dims,
	}, nil
}

func (g *OpenAIGenerator) Name() string    { return "OpenAI Compatible" }
func (g *OpenAIGenerator) Version() string { return OpenAIVersion + ":" + g.modelName }
func (g *OpenAIGenerator) Dimensions() int { return g.dimensions }
func (g *OpenAIGenerator) Close() error    { return nil }

func (g *OpenAIGenerator) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return make([]float32, g.dimensions), nil
	}
	results, err := g.embedRequest(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("embedding: API returned no results for model %s", g.modelName)
	}
	return results[0], nil
}

func (g *OpenAIGenerator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results, err := g.embedRequest(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(results) != len(texts) {
		return nil, fmt.Errorf("embedding: API returned %d results for %d inputs (model=%s)", len(results), len(texts), g.modelName)
	}
	return results, nil
}

type openAIEmbedRequest struct {
	Input          any    `json:"input"`
	Model          string `json:"model"`
	EncodingFormat string `json:"encoding_format"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

func (g *OpenAIGenerator) embedRequest(ctx context.Context, input any) ([][]float32, error) {
	reqBody := openAIEmbedRequest{Input: input, Model: g.modelName, EncodingFormat: "float"}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: request to %s: %w", g.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding: API error (model=%s, status=%d): %s", g.modelName, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var embedResp openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("embedding: decode response from %s: %w", g.baseURL, err)
	}

	sort.Slice(embedResp.Data, func(i, j int) bool { return embedResp.Data[i].Index < embedResp.Data[j].Index })

	out := make([][]float32, len(embedResp.Data))
	for i, d := range embedResp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

var _ Generator = (*OpenAIGenerator)(nil)
