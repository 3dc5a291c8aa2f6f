package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultClass is the Weaviate class holding knowledge-base documents.
const DefaultClass = "CybersecDoc"

// WeaviateConfig holds connection settings for a WeaviateStore.
type WeaviateConfig struct {
	Endpoint   string
	APIKey     string
	Class      string
	Vectorizer string
	Timeout    time.Duration
}

// Document is a knowledge-base entry to ingest.
type Document struct {
	ID      string
	Content string
	Source  string
}

// WeaviateStore is a DocumentStore backed by the Weaviate REST and GraphQL API.
// Documents are stored with "content" and "source" text properties.
type WeaviateStore struct {
	endpoint   string
	apiKey     string
	class      string
	vectorizer string
	httpClient *http.Client
}

// NewWeaviateStore constructs a Weaviate client. No request is made.
func NewWeaviateStore(cfg WeaviateConfig) *WeaviateStore {
	if cfg.Class == "" {
		cfg.Class = DefaultClass
	}
	if cfg.Vectorizer == "" {
		cfg.Vectorizer = "text2vec-transformers"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &WeaviateStore{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		class:      cfg.Class,
		vectorizer: cfg.Vectorizer,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// OpenWeaviate returns an OpenFunc that succeeds once the instance reports ready.
func OpenWeaviate(cfg WeaviateConfig) OpenFunc {
	return func(ctx context.Context) (DocumentStore, error) {
		s := NewWeaviateStore(cfg)
		if err := s.Ready(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Class returns the Weaviate class name.
func (s *WeaviateStore) Class() string { return s.class }

// Available implements DocumentStore. A constructed store is always
// considered available; per-call failures surface from Query and Count.
func (s *WeaviateStore) Available(context.Context) bool {
	return s.endpoint != ""
}

// Ready probes the readiness endpoint.
func (s *WeaviateStore) Ready(ctx context.Context) error {
	if s.endpoint == "" {
		return fmt.Errorf("weaviate: %w: no endpoint configured", ErrStoreUnavailable)
	}
	resp, err := s.do(ctx, http.MethodGet, "/v1/.well-known/ready", nil)
	if err != nil {
		return fmt.Errorf("weaviate ready: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("weaviate ready: status %d", resp.StatusCode)
	}
	return nil
}

// Query implements DocumentStore with a nearText search.
func (s *WeaviateStore) Query(ctx context.Context, text string, limit int) ([]Passage, error) {
	if limit <= 0 {
		limit = 3
	}
	concept, err := json.Marshal(text)
	if err != nil {
		return nil, fmt.Errorf("encode concept: %w", err)
	}

	gql := fmt.Sprintf(`{
  Get {
    %s(nearText: {concepts: [%s]}, limit: %d) {
      content
      source
    }
  }
}`, s.class, concept, limit)

	var response struct {
		Data struct {
			Get map[string][]struct {
				Content string `json:"content"`
				Source  string `json:"source"`
			} `json:"Get"`
		} `json:"data"`
	}
	if err := s.graphql(ctx, gql, &response); err != nil {
		return nil, err
	}

	hits := response.Data.Get[s.class]
	passages := make([]Passage, 0, len(hits))
	for _, h := range hits {
		p := Passage{Text: h.Content}
		if h.Source != "" {
			p.Metadata = map[string]string{"source": h.Source}
		}
		passages = append(passages, p)
	}
	return passages, nil
}

// Count implements DocumentStore using an Aggregate meta count.
func (s *WeaviateStore) Count(ctx context.Context) (int, error) {
	gql := fmt.Sprintf(`{
  Aggregate {
    %s {
      meta {
        count
      }
    }
  }
}`, s.class)

	var response struct {
		Data struct {
			Aggregate map[string][]struct {
				Meta struct {
					Count int `json:"count"`
				} `json:"meta"`
			} `json:"Aggregate"`
		} `json:"data"`
	}
	if err := s.graphql(ctx, gql, &response); err != nil {
		return 0, err
	}

	groups := response.Data.Aggregate[s.class]
	if len(groups) == 0 {
		return 0, nil
	}
	return groups[0].Meta.Count, nil
}

// EnsureClass creates the document class if the schema does not have it.
func (s *WeaviateStore) EnsureClass(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodGet, "/v1/schema/"+s.class, nil)
	if err != nil {
		return fmt.Errorf("weaviate get class: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("weaviate get class: status %d", resp.StatusCode)
	}

	class := map[string]any{
		"class":      s.class,
		"vectorizer": s.vectorizer,
		"properties": []map[string]any{
			{"name": "content", "dataType": []string{"text"}},
			{"name": "source", "dataType": []string{"text"}},
		},
	}
	return s.send(ctx, http.MethodPost, "/v1/schema", class, "create class")
}

// Add stores a single document.
func (s *WeaviateStore) Add(ctx context.Context, doc Document) error {
	obj := map[string]any{
		"class": s.class,
		"properties": map[string]any{
			"content": doc.Content,
			"source":  doc.Source,
		},
	}
	if doc.ID != "" {
		obj["id"] = doc.ID
	}
	return s.send(ctx, http.MethodPost, "/v1/objects", obj, "add object")
}

// Upsert stores doc under its ID, replacing any existing object, so
// re-ingesting the same corpus does not duplicate it. Documents without an
// ID are added.
func (s *WeaviateStore) Upsert(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return s.Add(ctx, doc)
	}
	obj := map[string]any{
		"class": s.class,
		"id":    doc.ID,
		"properties": map[string]any{
			"content": doc.Content,
			"source":  doc.Source,
		},
	}
	return s.send(ctx, http.MethodPut, "/v1/objects/"+s.class+"/"+doc.ID, obj, "upsert object")
}

func (s *WeaviateStore) graphql(ctx context.Context, query string, out any) error {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return fmt.Errorf("marshal graphql: %w", err)
	}

	resp, err := s.do(ctx, http.MethodPost, "/v1/graphql", body)
	if err != nil {
		return fmt.Errorf("weaviate graphql: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("weaviate graphql: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weaviate graphql: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var envelope struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("weaviate graphql: decode: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("weaviate graphql: %s", envelope.Errors[0].Message)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("weaviate graphql: decode: %w", err)
	}
	return nil
}

func (s *WeaviateStore) send(ctx context.Context, method, path string, payload any, op string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("weaviate %s: marshal: %w", op, err)
	}
	resp, err := s.do(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("weaviate %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return fmt.Errorf("weaviate %s failed: %s", op, strings.TrimSpace(string(data)))
	}
	return nil
}

func (s *WeaviateStore) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.endpoint+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	return s.httpClient.Do(req)
}
