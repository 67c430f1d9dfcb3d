// Package provider exposes the uniform capability surface over the LLM and
// transcription vendors the pipeline can dispatch to. Every provider
// implements the same three operations; the capability table says which ones
// actually work, and unsupported operations fail fast with a typed error
// instead of reaching the network.
package provider

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/Abhi1997-1/Lumen-sub000/internal/models"
)

// AudioInput is one audio artifact ready for transcription.
type AudioInput struct {
	Data     []byte
	MIMEType string
	FileName string
}

// TokenUsage is the provider-reported token accounting for one call.
// All zero when the vendor does not report usage.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Transcription is the result of a transcribe call.
type Transcription struct {
	Text  string
	Usage TokenUsage
}

// Analysis is the result of an analyze call over a transcript.
type Analysis struct {
	Summary     string
	ActionItems []string
	Usage       TokenUsage
}

// Answer is the result of a question asked against a transcript.
type Answer struct {
	Text  string
	Usage TokenUsage
}

// Provider is the uniform capability surface.
type Provider interface {
	Name() string
	Capabilities() models.ProviderCapabilities
	Transcribe(ctx context.Context, audio AudioInput) (*Transcription, error)
	Analyze(ctx context.Context, transcript, model string) (*Analysis, error)
	Ask(ctx context.Context, transcript, question, model string) (*Answer, error)
}

// Registry constructs providers by id, caching SDK clients per (provider,
// key) so concurrent jobs for the same user share one client.
type Registry struct {
	configs map[string]models.ProviderConfig
	cache   *clientCache
}

func NewRegistry(configs map[string]models.ProviderConfig) *Registry {
	return &Registry{
		configs: configs,
		cache:   newClientCache(),
	}
}

// Get returns the provider for id, authenticated with apiKey. Unknown ids are
// a validation error, never a panic.
func (r *Registry) Get(ctx context.Context, id, apiKey string) (Provider, error) {
	if !models.IsValidProvider(id) {
		return nil, models.NewValidationError(fmt.Sprintf("unknown provider %q", id), nil)
	}
	if apiKey == "" {
		return nil, models.NewValidationError(fmt.Sprintf("no API key available for provider %q", id), nil)
	}

	cfg := r.configs[id]

	keyHash := sha256.Sum256([]byte(apiKey))
	cacheKey := fmt.Sprintf("%s:%x", id, keyHash[:8])

	return r.cache.getOrCreate(cacheKey, func() (Provider, error) {
		switch id {
		case models.ProviderGemini:
			return NewGeminiProvider(ctx, cfg, apiKey)
		case models.ProviderOpenAI:
			return NewOpenAIProvider(cfg, apiKey), nil
		case models.ProviderGroq:
			return NewGroqProvider(cfg, apiKey), nil
		case models.ProviderGrok:
			return NewGrokProvider(cfg, apiKey), nil
		default:
			return nil, models.NewValidationError(fmt.Sprintf("unknown provider %q", id), nil)
		}
	})
}
