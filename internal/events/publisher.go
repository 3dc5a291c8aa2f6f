// Package events announces completed analyses and reports to other systems.
package events

import (
	"context"
	"time"

	"github.com/jmerrifield20/CyberSentinel/internal/health"
	"github.com/jmerrifield20/CyberSentinel/internal/threat"
	"go.uber.org/zap"
)

// Subjects published by the service.
const (
	SubjectAnalysisCompleted = "cybersentinel.analysis.completed"
	SubjectReportGenerated   = "cybersentinel.report.generated"
	SubjectHealthDegraded    = "cybersentinel.health.degraded"
)

// Publisher delivers a JSON-encodable payload on a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close()
}

// AnalysisCompleted is published after every successful analysis.
type AnalysisCompleted struct {
	CaseID     string `json:"case_id"`
	ThreatType string `json:"threat_type"`
	Severity   string `json:"severity"`
	TokenUsage int    `json:"token_usage"`
	Sources    int    `json:"context_sources"`
	Timestamp  int64  `json:"timestamp"`
}

// NewAnalysisCompleted summarises rec. The scenario text is not included.
func NewAnalysisCompleted(rec *threat.Record) AnalysisCompleted {
	return AnalysisCompleted{
		CaseID:     rec.CaseID,
		ThreatType: rec.ThreatType,
		Severity:   rec.Severity,
		TokenUsage: rec.TokenUsage,
		Sources:    len(rec.ContextSources),
		Timestamp:  time.Now().Unix(),
	}
}

// ReportGenerated is published after a report artifact is written.
type ReportGenerated struct {
	CaseID    string `json:"case_id"`
	Path      string `json:"path"`
	Timestamp int64  `json:"timestamp"`
}

// HealthDegraded is published when the health loop crosses its failure
// threshold.
type HealthDegraded struct {
	Inference        string `json:"inference"`
	Model            string `json:"model"`
	VectorDB         string `json:"vector_db"`
	DocumentsIndexed int    `json:"documents_indexed"`
	Timestamp        int64  `json:"timestamp"`
}

// DegradedHook returns a health callback that publishes HealthDegraded on
// p. Publish failures are logged; the health loop never sees them.
func DegradedHook(p Publisher, logger *zap.Logger) health.DegradedFunc {
	return func(ctx context.Context, r health.Report) {
		ev := HealthDegraded{
			Inference:        r.Inference,
			Model:            r.Model,
			VectorDB:         r.VectorDB,
			DocumentsIndexed: r.DocumentsIndexed,
			Timestamp:        time.Now().Unix(),
		}
		if err := p.Publish(ctx, SubjectHealthDegraded, ev); err != nil {
			logger.Warn("publish health degraded event", zap.Error(err))
		}
	}
}
