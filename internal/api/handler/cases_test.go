package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/CyberSentinel/internal/api/handler"
	"github.com/jmerrifield20/CyberSentinel/internal/cases"
	"github.com/jmerrifield20/CyberSentinel/internal/threat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupCaseRouter(t *testing.T, n int) (*gin.Engine, *stubAnalyzer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := cases.NewMemoryRepository()
	for i := 0; i < n; i++ {
		rec := &threat.Record{
			CaseID:         fmt.Sprintf("case%04d", i),
			Scenario:       "scenario",
			Severity:       threat.SeverityLow,
			ContextSources: []string{},
		}
		require.NoError(t, repo.Save(context.Background(), rec))
	}

	svc := &stubAnalyzer{dir: t.TempDir()}
	r := gin.New()
	handler.Mount(r, false, handler.NewCaseHandler(repo, svc, zap.NewNop()))
	return r, svc
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListCases_200(t *testing.T) {
	router, _ := setupCaseRouter(t, 3)

	w := get(router, "/api/cases?limit=2")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Cases []threat.Record `json:"cases"`
		Count int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Cases, 2)
}

func TestListCases_emptyIsArray(t *testing.T) {
	router, _ := setupCaseRouter(t, 0)

	resp := decode(t, get(router, "/api/cases").Body.Bytes())
	assert.IsType(t, []any{}, resp["cases"], "cases should be a JSON array")
}

func TestListCases_400(t *testing.T) {
	router, _ := setupCaseRouter(t, 0)

	for _, q := range []string{"limit=abc", "offset=x"} {
		assert.Equal(t, http.StatusBadRequest, get(router, "/api/cases?"+q).Code, q)
	}
}

func TestGetCase_200(t *testing.T) {
	router, _ := setupCaseRouter(t, 1)

	w := get(router, "/api/cases/case0000")
	require.Equal(t, http.StatusOK, w.Code)

	var rec threat.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "case0000", rec.CaseID)
}

func TestGetCase_404(t *testing.T) {
	router, _ := setupCaseRouter(t, 0)
	assert.Equal(t, http.StatusNotFound, get(router, "/api/cases/deadbeef").Code)
}

func TestCaseReport_200(t *testing.T) {
	router, svc := setupCaseRouter(t, 1)

	w := get(router, "/api/cases/case0000/report")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, svc.rendered, 1, "stored record should be rendered")
	assert.Equal(t, "case0000", svc.rendered[0].CaseID)
}

func TestCaseReport_404(t *testing.T) {
	router, svc := setupCaseRouter(t, 0)

	assert.Equal(t, http.StatusNotFound, get(router, "/api/cases/nope/report").Code)
	assert.Empty(t, svc.rendered, "renderer must not be called for an unknown case")
}
