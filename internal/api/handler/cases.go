package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/CyberSentinel/internal/cases"
	"github.com/jmerrifield20/CyberSentinel/internal/report"
	"github.com/jmerrifield20/CyberSentinel/internal/threat"
	"go.uber.org/zap"
)

// Reporter renders a stored record.
type Reporter interface {
	RenderReport(ctx context.Context, rec *threat.Record) (string, error)
}

// CaseHandler exposes read-only case history endpoints.
type CaseHandler struct {
	repo    cases.Repository
	reports Reporter // nil = no /cases/:id/report route
	logger  *zap.Logger
}

// NewCaseHandler creates a new CaseHandler.
func NewCaseHandler(repo cases.Repository, reports Reporter, logger *zap.Logger) *CaseHandler {
	return &CaseHandler{repo: repo, reports: reports, logger: logger}
}

// Register mounts the case routes on the given router group.
func (h *CaseHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/cases")
	{
		g.GET("", h.List)
		g.GET("/:id", h.Get)
		if h.reports != nil {
			g.GET("/:id/report", h.Report)
		}
	}
}

// List handles GET /cases?limit=&offset= (newest first).
func (h *CaseHandler) List(c *gin.Context) {
	limit, err := queryInt(c, "limit", cases.DefaultListLimit)
	if err != nil {
		badRequest(c, "limit must be an integer")
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		badRequest(c, "offset must be an integer")
		return
	}

	recs, err := h.repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, h.logger, "list cases", err)
		return
	}
	if recs == nil {
		recs = []*threat.Record{}
	}
	c.JSON(http.StatusOK, gin.H{
		"cases":  recs,
		"count":  len(recs),
		"limit":  limit,
		"offset": offset,
	})
}

// Get handles GET /cases/:id.
func (h *CaseHandler) Get(c *gin.Context) {
	rec, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Report handles GET /cases/:id/report, rendering the stored record.
func (h *CaseHandler) Report(c *gin.Context) {
	rec, ok := h.lookup(c)
	if !ok {
		return
	}
	path, err := h.reports.RenderReport(c.Request.Context(), rec)
	if err != nil {
		writeError(c, h.logger, "case report", err)
		return
	}
	c.Header("Content-Type", "application/pdf")
	c.FileAttachment(path, report.FileName(rec.CaseID))
}

func (h *CaseHandler) lookup(c *gin.Context) (*threat.Record, bool) {
	id := c.Param("id")
	if err := threat.ValidateCaseID(id); err != nil {
		writeError(c, h.logger, "get case", err)
		return nil, false
	}
	rec, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, "get case", err)
		return nil, false
	}
	return rec, true
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
