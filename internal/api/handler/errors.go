package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/CyberSentinel/internal/analysis"
	"github.com/jmerrifield20/CyberSentinel/internal/cases"
	"github.com/jmerrifield20/CyberSentinel/internal/inference"
	"github.com/jmerrifield20/CyberSentinel/internal/ledger"
	"github.com/jmerrifield20/CyberSentinel/internal/report"
	"github.com/jmerrifield20/CyberSentinel/internal/threat"
	"go.uber.org/zap"
)

// errorStatus maps a service error to its HTTP status and public message.
func errorStatus(err error) (int, string) {
	var (
		upstream *inference.UpstreamError
		render   *report.RenderError
		orch     *analysis.OrchestrationError
	)
	switch {
	case errors.Is(err, inference.ErrServiceUnreachable):
		return http.StatusServiceUnavailable, "cannot connect to the inference service; make sure it is running"
	case errors.Is(err, threat.ErrInvalidCaseID):
		return http.StatusBadRequest, "invalid case_id"
	case errors.Is(err, cases.ErrNotFound), errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.As(err, &upstream):
		return http.StatusBadGateway, "inference service error"
	case errors.As(err, &render):
		return http.StatusInternalServerError, "report generation failed"
	case errors.As(err, &orch):
		return http.StatusInternalServerError, "analysis failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeError logs err and writes the mapped JSON error body.
func writeError(c *gin.Context, logger *zap.Logger, op string, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op+" failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Debug(op+" rejected", zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg, "detail": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
