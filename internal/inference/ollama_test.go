package inference

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func closedServerURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

// generateBody is the request shape the Ollama server receives.
type generateBody struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Stream  bool   `json:"stream"`
	Options struct {
		Temperature float64 `json:"temperature"`
		TopP        float64 `json:"top_p"`
	} `json:"options"`
}

func TestOllamaComplete_success(t *testing.T) {
	var got generateBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"response":"{\"threat_type\":\"Phishing\"}","prompt_eval_count":120,"eval_count":80,"done":true}`)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3.2", time.Second, zap.NewNop())
	out, err := c.Complete(context.Background(), "prompt text")
	require.NoError(t, err)

	assert.Equal(t, `{"threat_type":"Phishing"}`, out.Text)
	assert.Equal(t, 200, out.TokenUsage)

	assert.Equal(t, "llama3.2", got.Model)
	assert.Equal(t, "prompt text", got.Prompt)
	assert.False(t, got.Stream)
	assert.InDelta(t, 0.7, got.Options.Temperature, 1e-9)
	assert.InDelta(t, 0.9, got.Options.TopP, 1e-9)
}

func TestOllamaComplete_missingTokenCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"response":"ok"}`)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "m", time.Second, zap.NewNop())
	out, err := c.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Zero(t, out.TokenUsage)
}

func TestOllamaComplete_trimsGenerateSuffix(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/api/generate", r.URL.Path)
		_, _ = io.WriteString(w, `{"response":"ok"}`)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL+"/api/generate", "m", time.Second, zap.NewNop())
	_, err := c.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
}

func TestOllamaComplete_non200IsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'nope' not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "nope", time.Second, zap.NewNop())
	_, err := c.Complete(context.Background(), "p")
	require.Error(t, err)

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Contains(t, upstream.Error(), "not found")
	assert.False(t, errors.Is(err, ErrServiceUnreachable))
}

func TestOllamaComplete_stalledServerTimesOutAsUpstream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewOllamaClient(srv.URL, "m", 50*time.Millisecond, zap.NewNop())
	start := time.Now()
	_, err := c.Complete(context.Background(), "p")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.False(t, errors.Is(err, ErrServiceUnreachable))
}

func TestOllamaComplete_malformedBodyIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `not json`)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "m", time.Second, zap.NewNop())
	_, err := c.Complete(context.Background(), "p")

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.False(t, errors.Is(err, ErrServiceUnreachable))
}

func TestOllamaComplete_connectionRefusedIsUnreachable(t *testing.T) {
	c := NewOllamaClient(closedServerURL(t), "m", time.Second, zap.NewNop())
	_, err := c.Complete(context.Background(), "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceUnreachable)

	var upstream *UpstreamError
	assert.False(t, errors.As(err, &upstream))
}

func TestOllamaListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = io.WriteString(w, `{"models":[{"name":"llama3.2:latest"},{"name":"mistral:7b"}]}`)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3.2", time.Second, zap.NewNop())
	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.2:latest", "mistral:7b"}, models)
}

func TestOllamaListModels_serverErrorKeepsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"runner crashed"}`)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "m", time.Second, zap.NewNop())
	_, err := c.ListModels(context.Background())

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusInternalServerError, upstream.StatusCode)
	assert.Equal(t, "runner crashed", upstream.Msg)
}

func TestOllamaComplete_invalidURL(t *testing.T) {
	c := NewOllamaClient("localhost-without-scheme", "m", time.Second, zap.NewNop())
	_, err := c.Complete(context.Background(), "p")

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
}

func TestOllamaListModels_unreachable(t *testing.T) {
	c := NewOllamaClient(closedServerURL(t), "m", time.Second, zap.NewNop())
	_, err := c.ListModels(context.Background())
	assert.ErrorIs(t, err, ErrServiceUnreachable)
}

func TestNew_providers(t *testing.T) {
	c, err := New(Config{URL: "http://localhost:11434", Model: "llama3.2"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, c)
	assert.Equal(t, "llama3.2", c.Model())

	c, err = New(Config{Provider: "OpenAI", URL: "http://localhost:11434/v1", Model: "gpt-4o-mini"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	_, err = New(Config{Provider: "bedrock"}, zap.NewNop())
	assert.Error(t, err)
}
