// Package inference talks to the text-completion service that produces raw
// threat assessments. One attempt is made per call; retry policy belongs to
// the caller.
package inference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Fixed decoding parameters.
const (
	Temperature = 0.7
	TopP        = 0.9
)

// DefaultTimeout bounds a single completion.
const DefaultTimeout = 120 * time.Second

// Providers accepted by New.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Completion is the raw model output plus token accounting.
type Completion struct {
	Text       string
	TokenUsage int
}

// Client is a text-completion backend.
type Client interface {
	// Complete sends prompt and returns the completion text.
	Complete(ctx context.Context, prompt string) (Completion, error)

	// ListModels returns the models the service can serve. It is used as a
	// liveness probe only.
	ListModels(ctx context.Context) ([]string, error)

	// Model returns the configured model name.
	Model() string
}

// Config selects and configures a Client.
type Config struct {
	Provider string
	URL      string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// New builds the Client named by cfg.Provider.
func New(cfg Config, logger *zap.Logger) (Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOllama:
		return NewOllamaClient(cfg.URL, cfg.Model, cfg.Timeout, logger), nil
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.URL, cfg.APIKey, cfg.Model, cfg.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown inference provider %q", cfg.Provider)
	}
}
