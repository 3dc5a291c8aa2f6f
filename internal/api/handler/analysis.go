package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/CyberSentinel/internal/health"
	"github.com/jmerrifield20/CyberSentinel/internal/report"
	"github.com/jmerrifield20/CyberSentinel/internal/threat"
	"go.uber.org/zap"
)

// Banner identifies the service on GET /.
var Banner = gin.H{
	"service": "CyberSentinel API",
	"version": "1.0.0",
	"status":  "operational",
}

// Analyzer runs analyses and renders reports.
type Analyzer interface {
	Analyze(ctx context.Context, scenario string) (*threat.Record, error)
	RenderReport(ctx context.Context, rec *threat.Record) (string, error)
}

// HealthReporter produces the live health snapshot.
type HealthReporter interface {
	Check(ctx context.Context) health.Report
}

// AnalysisHandler serves the analysis, report and health endpoints.
type AnalysisHandler struct {
	svc    Analyzer
	health HealthReporter // nil = /health reports only the banner status
	logger *zap.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(svc Analyzer, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{svc: svc, logger: logger}
}

// SetHealthReporter configures the source for GET /health.
func (h *AnalysisHandler) SetHealthReporter(hr HealthReporter) {
	h.health = hr
}

// Register mounts the routes on the given router group.
func (h *AnalysisHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/", h.Banner)
	rg.POST("/analyze", h.Analyze)
	rg.POST("/generate-report", h.GenerateReport)
	rg.GET("/health", h.Health)
}

// Banner handles GET /.
func (h *AnalysisHandler) Banner(c *gin.Context) {
	c.JSON(http.StatusOK, Banner)
}

// Analyze handles POST /analyze.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req threat.Scenario
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(c, "scenario must not be empty")
		return
	}

	rec, err := h.svc.Analyze(c.Request.Context(), req.Text)
	if err != nil {
		writeError(c, h.logger, "analyze", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GenerateReport handles POST /generate-report. The body is a full record,
// typically one previously returned by /analyze.
func (h *AnalysisHandler) GenerateReport(c *gin.Context) {
	var rec threat.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := threat.ValidateCaseID(rec.CaseID); err != nil {
		writeError(c, h.logger, "generate report", err)
		return
	}
	if rec.ContextSources == nil {
		rec.ContextSources = []string{}
	}
	h.serveReport(c, &rec)
}

func (h *AnalysisHandler) serveReport(c *gin.Context, rec *threat.Record) {
	path, err := h.svc.RenderReport(c.Request.Context(), rec)
	if err != nil {
		writeError(c, h.logger, "generate report", err)
		return
	}
	c.Header("Content-Type", "application/pdf")
	c.FileAttachment(path, report.FileName(rec.CaseID))
}

// Health handles GET /health. It always answers 200; a down dependency is
// reported in the body.
func (h *AnalysisHandler) Health(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": health.StatusHealthy})
		return
	}
	c.JSON(http.StatusOK, h.health.Check(c.Request.Context()))
}
