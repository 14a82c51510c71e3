package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/config"
)

// Backend abstracts a generative text model: submit a prompt, receive the
// completion text or a failure.
// To add a new backend:
//  1. Create a file in internal/ai/ (e.g. mymodel.go)
//  2. Implement Backend
//  3. Register in newSingle()
type Backend interface {
	// Name returns the backend identifier (e.g. "gemini", "ollama").
	Name() string

	// IsAvailable verifies the backend is reachable and configured.
	IsAvailable(ctx context.Context) bool

	// Complete sends prompt in a single request and returns the raw
	// completion. It returns ErrNoResult when the backend answered without
	// any candidate text.
	Complete(ctx context.Context, prompt string) (string, error)
}

var (
	// ErrNoResult marks a well-formed response that carried no completion.
	ErrNoResult = errors.New("backend returned no result")

	// ErrMissingAPIKey is returned by New when the hosted backend is selected
	// without credentials. It is a fatal configuration error for the run.
	ErrMissingAPIKey = errors.New("GEMINI_API_KEY is required when ai.provider is gemini")

	// ErrBreakerOpen is returned for calls rejected after repeated backend
	// failures in the same run.
	ErrBreakerOpen = errors.New("backend circuit open after repeated failures")
)

// New returns the configured Backend. The variant is fixed for the lifetime
// of the returned value; there is no fallback between variants.
func New(cfg config.AIConfig) (Backend, error) {
	b, err := newSingle(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.BreakerFailures > 0 {
		b = WithBreaker(b, cfg.BreakerFailures)
	}
	return WithTracing(b), nil
}

func newSingle(cfg config.AIConfig) (Backend, error) {
	switch cfg.Provider {
	case "", "gemini":
		if cfg.GeminiKey == "" {
			return nil, ErrMissingAPIKey
		}
		return NewGemini(cfg), nil
	case "ollama", "local":
		return NewOllama(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider %q (supported: gemini, ollama)", cfg.Provider)
	}
}
