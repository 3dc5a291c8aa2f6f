package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmerrifield20/CyberSentinel/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Stub server ─────────────────────────────────────────────────────────

func stubServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var caseHits atomic.Int32
	mux := http.NewServeMux()

	mux.HandleFunc("/api/analyze", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Scenario string `json:"scenario"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Scenario == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "scenario must not be empty"})
			return
		}
		if req.Scenario == "offline" {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{
				"error":  "cannot connect to the inference service; make sure it is running",
				"detail": "inference service unreachable: ollama: connection refused",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"case_id":         "ab12cd34",
			"scenario":        req.Scenario,
			"threat_type":     "Phishing",
			"severity":        "High",
			"analysis":        "Credential harvesting.",
			"recommendations": []string{"Enable MFA"},
			"context_sources": []string{},
			"timestamp":       "2025-01-02 03:04:05",
			"token_usage":     42,
		})
	})

	mux.HandleFunc("/api/generate-report", func(w http.ResponseWriter, r *http.Request) {
		var rec client.Record
		json.NewDecoder(r.Body).Decode(&rec)
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="cybersentinel_report_`+rec.CaseID+`.pdf"`)
		w.Write([]byte("%PDF-1.3 " + rec.CaseID))
	})

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":            "degraded",
			"inference":         "offline",
			"ollama":            "offline",
			"model":             "llama3.2",
			"vector_db":         "online",
			"documents_indexed": 12,
		})
	})

	mux.HandleFunc("/api/cases", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"cases":  []map[string]any{{"case_id": "ab12cd34"}, {"case_id": "ef56ab78"}},
			"count":  2,
			"limit":  20,
			"offset": 0,
		})
	})

	mux.HandleFunc("/api/cases/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/cases/")
		if strings.HasSuffix(id, "/report") {
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-1.3 stored"))
			return
		}
		if strings.HasSuffix(id, "/verify") {
			json.NewEncoder(w).Encode(map[string]any{
				"case_id":          strings.TrimSuffix(id, "/verify"),
				"intact":           false,
				"stored_digest":    "aa",
				"analyzed_digest":  "bb",
				"reports":          2,
				"matching_reports": 1,
				"reason":           "stored record differs from the record that was analysed",
			})
			return
		}
		caseHits.Add(1)
		if id != "ab12cd34" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "not found", "detail": "case not found"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"case_id": id, "severity": "Low"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &caseHits
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestNew_invalidBase(t *testing.T) {
	_, err := client.New("not a url")
	assert.Error(t, err)
}

func TestWithTimeout_rejectsNonPositive(t *testing.T) {
	_, err := client.New("http://localhost:8000", client.WithTimeout(0))
	assert.Error(t, err)
}

func TestAnalyze(t *testing.T) {
	srv, _ := stubServer(t)
	c := client.MustNew(srv.URL)

	rec, err := c.Analyze(context.Background(), "An email asked for my password")
	require.NoError(t, err)
	assert.Equal(t, "ab12cd34", rec.CaseID)
	assert.Equal(t, "High", rec.Severity)
	assert.Equal(t, 42, rec.TokenUsage)
	assert.Equal(t, "An email asked for my password", rec.Scenario)
}

func TestAnalyze_serviceUnavailable(t *testing.T) {
	srv, _ := stubServer(t)
	c := client.MustNew(srv.URL)

	_, err := c.Analyze(context.Background(), "offline")
	require.True(t, client.IsServiceUnavailable(err), "got %v", err)
	assert.Contains(t, err.Error(), "connection refused", "error should carry the detail")
}

func TestAnalyze_badRequest(t *testing.T) {
	srv, _ := stubServer(t)
	c := client.MustNew(srv.URL)

	_, err := c.Analyze(context.Background(), "")
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.False(t, client.IsServiceUnavailable(err), "400 must not be reported as service unavailable")
}

func TestGenerateReport(t *testing.T) {
	srv, _ := stubServer(t)
	c := client.MustNew(srv.URL)

	var buf bytes.Buffer
	name, err := c.GenerateReport(context.Background(), &client.Record{CaseID: "ab12cd34"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "cybersentinel_report_ab12cd34.pdf", name)
	assert.Equal(t, "%PDF-1.3 ab12cd34", buf.String())
}

func TestCaseReport_defaultFileName(t *testing.T) {
	srv, _ := stubServer(t)
	c := client.MustNew(srv.URL)

	var buf bytes.Buffer
	name, err := c.CaseReport(context.Background(), "ab12cd34", &buf)
	require.NoError(t, err)
	assert.Equal(t, "cybersentinel_report_ab12cd34.pdf", name, "derived default")
}

func TestHealth(t *testing.T) {
	srv, _ := stubServer(t)
	c := client.MustNew(srv.URL)

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, "offline", h.Inference)
	assert.Equal(t, "offline", h.Ollama)
	assert.Equal(t, 12, h.DocumentsIndexed)
}

func TestHealth_ollamaOnlyServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": "healthy",
			"ollama": "online",
			"model":  "llama3.2",
		})
	}))
	t.Cleanup(srv.Close)

	h, err := client.MustNew(srv.URL).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "online", h.Inference, "inference falls back to the ollama key")
}

func TestGetCase_notFound(t *testing.T) {
	srv, _ := stubServer(t)
	c := client.MustNew(srv.URL)

	_, err := c.GetCase(context.Background(), "deadbeef")
	assert.True(t, client.IsNotFound(err), "got %v", err)
}

func TestGetCase_cached(t *testing.T) {
	srv, hits := stubServer(t)
	c := client.MustNew(srv.URL, client.WithCacheTTL(time.Minute))

	for i := 0; i < 3; i++ {
		rec, err := c.GetCase(context.Background(), "ab12cd34")
		require.NoError(t, err)
		assert.Equal(t, "Low", rec.Severity)
	}
	assert.EqualValues(t, 1, hits.Load(), "one server hit with cache")
}

func TestListCases(t *testing.T) {
	srv, _ := stubServer(t)
	c := client.MustNew(srv.URL)

	page, err := c.ListCases(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Count)
	assert.Len(t, page.Cases, 2)
}

func TestVerifyCase(t *testing.T) {
	srv, hits := stubServer(t)
	c := client.MustNew(srv.URL, client.WithCacheTTL(time.Minute))

	v, err := c.VerifyCase(context.Background(), "ab12cd34")
	require.NoError(t, err)
	assert.Equal(t, "ab12cd34", v.CaseID)
	assert.False(t, v.Intact)
	assert.Equal(t, 2, v.Reports)
	assert.Equal(t, 1, v.MatchingReports)
	assert.Contains(t, v.Reason, "differs")
	assert.Zero(t, hits.Load(), "verification bypasses the case cache")
}
