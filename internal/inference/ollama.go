package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

const providerOllama = "ollama"

// OllamaClient calls the Ollama generate API through the official client.
type OllamaClient struct {
	api     *api.Client
	baseErr error
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewOllamaClient creates a client for the Ollama server at baseURL. A URL
// pointing at the generate endpoint itself is accepted and trimmed.
func NewOllamaClient(baseURL, model string, timeout time.Duration, logger *zap.Logger) *OllamaClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/api/generate")

	c := &OllamaClient{model: model, timeout: timeout, logger: logger}
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		c.baseErr = fmt.Errorf("invalid ollama url %q", baseURL)
		base = &url.URL{}
	}
	c.api = api.NewClient(base, &http.Client{})
	return c
}

// Model implements Client.
func (c *OllamaClient) Model() string { return c.model }

// Complete implements Client. The request is sent unstreamed, so the
// callback normally fires once with the final response.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (Completion, error) {
	if c.baseErr != nil {
		return Completion{}, &UpstreamError{Provider: providerOllama, Msg: "configuration", Err: c.baseErr}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream := false
	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"temperature": Temperature,
			"top_p":       TopP,
		},
	}

	var (
		text   strings.Builder
		tokens int
	)
	start := time.Now()
	err := c.api.Generate(ctx, req, func(resp api.GenerateResponse) error {
		text.WriteString(resp.Response)
		tokens = resp.Metrics.PromptEvalCount + resp.Metrics.EvalCount
		return nil
	})
	if err != nil {
		return Completion{}, c.classify("generate", err)
	}

	c.logger.Debug("ollama completion",
		zap.String("model", c.model),
		zap.Int("tokens", tokens),
		zap.Duration("latency", time.Since(start)),
	)
	return Completion{Text: text.String(), TokenUsage: tokens}, nil
}

// ListModels implements Client via GET /api/tags.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	if c.baseErr != nil {
		return nil, &UpstreamError{Provider: providerOllama, Msg: "configuration", Err: c.baseErr}
	}

	tags, err := c.api.List(ctx)
	if err != nil {
		return nil, c.classify("list models", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// classify maps an api client error onto the inference taxonomy. Dial
// failures are unreachable; a StatusError keeps its HTTP status.
func (c *OllamaClient) classify(op string, err error) error {
	if isConnectionFailure(err) {
		return classifyTransport(providerOllama, err)
	}
	var status api.StatusError
	if errors.As(err, &status) {
		msg := status.ErrorMessage
		if msg == "" {
			msg = status.Error()
		}
		return &UpstreamError{Provider: providerOllama, StatusCode: status.StatusCode, Msg: msg}
	}
	return &UpstreamError{Provider: providerOllama, Msg: op, Err: err}
}
