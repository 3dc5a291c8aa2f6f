package retrieval

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWeaviateServer(t *testing.T, handler http.HandlerFunc) *WeaviateStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWeaviateStore(WeaviateConfig{Endpoint: srv.URL + "/", APIKey: "secret"})
}

func TestWeaviateStore_Query(t *testing.T) {
	var gotQuery string
	store := newWeaviateServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotQuery = body["query"]
		_, _ = io.WriteString(w, `{"data":{"Get":{"CybersecDoc":[
			{"content":"Ransomware encrypts files.","source":"cisa.md"},
			{"content":"Keep offline backups.","source":""}
		]}}}`)
	})

	passages, err := store.Query(context.Background(), `ransom "note"`, 2)
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "Ransomware encrypts files.", passages[0].Text)
	assert.Equal(t, "cisa.md", passages[0].Source())
	assert.Equal(t, UnknownSource, passages[1].Source())

	assert.Contains(t, gotQuery, "CybersecDoc(nearText")
	assert.Contains(t, gotQuery, `"ransom \"note\""`)
	assert.Contains(t, gotQuery, "limit: 2")
}

func TestWeaviateStore_QueryGraphQLError(t *testing.T) {
	store := newWeaviateServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"errors":[{"message":"Cannot query field \"CybersecDoc\""}]}`)
	})

	_, err := store.Query(context.Background(), "q", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cannot query field")
}

func TestWeaviateStore_QueryNon200(t *testing.T) {
	store := newWeaviateServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := store.Query(context.Background(), "q", 3)
	assert.Error(t, err)
}

func TestWeaviateStore_Count(t *testing.T) {
	store := newWeaviateServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"Aggregate":{"CybersecDoc":[{"meta":{"count":12}}]}}}`)
	})

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}

func TestWeaviateStore_Ready(t *testing.T) {
	ready := true
	store := newWeaviateServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/.well-known/ready", r.URL.Path)
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})

	assert.NoError(t, store.Ready(context.Background()))
	ready = false
	assert.Error(t, store.Ready(context.Background()))
}

func TestOpenWeaviate_unreachable(t *testing.T) {
	open := OpenWeaviate(WeaviateConfig{Endpoint: "http://127.0.0.1:1"})
	_, err := open(context.Background())
	assert.Error(t, err)
}

func TestWeaviateStore_EnsureClassCreatesMissing(t *testing.T) {
	var created map[string]any
	store := newWeaviateServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/schema/"):
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost && r.URL.Path == "/v1/schema":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})

	require.NoError(t, store.EnsureClass(context.Background()))
	assert.Equal(t, "CybersecDoc", created["class"])
	assert.Equal(t, "text2vec-transformers", created["vectorizer"])
}

func TestWeaviateStore_Add(t *testing.T) {
	var obj map[string]any
	store := newWeaviateServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/objects", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&obj))
	})

	err := store.Add(context.Background(), Document{Content: "text", Source: "kb/intro.md"})
	require.NoError(t, err)
	props, _ := obj["properties"].(map[string]any)
	assert.Equal(t, "kb/intro.md", props["source"])
	assert.Equal(t, "text", props["content"])
}

func TestWeaviateStore_UpsertWithID(t *testing.T) {
	var method, path string
	var body map[string]any
	store := newWeaviateServer(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	})

	err := store.Upsert(context.Background(), Document{ID: "0b2c6f5e-7d2a-5b8e-9c1d-3f4a5b6c7d8e", Content: "c", Source: "s.md"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/v1/objects/CybersecDoc/0b2c6f5e-7d2a-5b8e-9c1d-3f4a5b6c7d8e", path)
	assert.Equal(t, "0b2c6f5e-7d2a-5b8e-9c1d-3f4a5b6c7d8e", body["id"])
}

func TestWeaviateStore_UpsertWithoutIDAdds(t *testing.T) {
	var method, path string
	store := newWeaviateServer(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
	})

	require.NoError(t, store.Upsert(context.Background(), Document{Content: "c"}))
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/v1/objects", path)
}
