package extract

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/chaz8081/ambudictate/internal/config"
)

// GeminiBackend generates text with one Gemini model.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// Compile-time interface satisfaction check.
var _ Backend = (*GeminiBackend)(nil)

// NewGeminiBackend wraps an existing client for the given model id.
func NewGeminiBackend(client *genai.Client, model string) *GeminiBackend {
	return &GeminiBackend{client: client, model: model}
}

// Name returns the model id.
func (g *GeminiBackend) Name() string {
	return g.model
}

// Generate sends prompt to the model and returns its text.
func (g *GeminiBackend) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty response")
	}
	return text, nil
}

// New builds an Engine from the config backend list. All Gemini backends
// share one client.
func New(ctx context.Context, cfg *config.ExtractConfig) (*Engine, error) {
	return newWithOptions(ctx, cfg, genai.HTTPOptions{})
}

func newWithOptions(ctx context.Context, cfg *config.ExtractConfig, httpOpts genai.HTTPOptions) (*Engine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("extract: no API key (set extract.api_key or %s)", config.EnvGeminiAPIKey)
	}

	var client *genai.Client
	backends := make([]Backend, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		switch b.Provider {
		case "gemini":
			if client == nil {
				c, err := genai.NewClient(ctx, &genai.ClientConfig{
					APIKey:      cfg.APIKey,
					Backend:     genai.BackendGeminiAPI,
					HTTPOptions: httpOpts,
				})
				if err != nil {
					return nil, fmt.Errorf("extract: creating gemini client: %w", err)
				}
				client = c
			}
			backends = append(backends, NewGeminiBackend(client, b.Model))
		default:
			return nil, fmt.Errorf("extract: unknown provider %q", b.Provider)
		}
	}
	return NewEngine(cfg.Temperature, backends...), nil
}
