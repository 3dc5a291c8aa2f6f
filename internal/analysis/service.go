package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/jmerrifield20/CyberSentinel/internal/events"
	"github.com/jmerrifield20/CyberSentinel/internal/ledger"
	"github.com/jmerrifield20/CyberSentinel/internal/threat"
	"go.uber.org/zap"
)

// DefaultActor is recorded on ledger entries unless SetActor overrides it.
const DefaultActor = "cybersentinel"

// sideEffectTimeout bounds each best-effort write after the pipeline.
const sideEffectTimeout = 5 * time.Second

// CaseSaver persists completed records.
type CaseSaver interface {
	Save(ctx context.Context, rec *threat.Record) error
}

// AuditAppender records case actions in the audit ledger.
type AuditAppender interface {
	Append(ctx context.Context, ev ledger.Event) (*ledger.Entry, error)
}

// EventPublisher announces completed work.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// ReportRenderer writes the document artifact for a record.
type ReportRenderer interface {
	Render(rec *threat.Record) (string, error)
}

// AnalysisRecordFunc is an optional callback for analysis outcomes.
type AnalysisRecordFunc func(err error, duration time.Duration, tokens int)

// ReportRecordFunc is an optional callback for render outcomes.
type ReportRecordFunc func(err error)

// Service wraps the pipeline with case history, auditing and events.
// None of those side effects can fail an analysis or a render.
type Service struct {
	orch     *Orchestrator
	renderer ReportRenderer
	cases    CaseSaver
	audit    AuditAppender
	events   EventPublisher
	actor    string

	onAnalysis AnalysisRecordFunc
	onReport   ReportRecordFunc
	logger     *zap.Logger
}

// NewService creates a Service. renderer may be nil when reports are not served.
func NewService(orch *Orchestrator, renderer ReportRenderer, logger *zap.Logger) *Service {
	return &Service{
		orch:     orch,
		renderer: renderer,
		actor:    DefaultActor,
		logger:   logger,
	}
}

// SetCaseStore enables case history.
func (s *Service) SetCaseStore(c CaseSaver) { s.cases = c }

// SetAuditLog enables the audit ledger.
func (s *Service) SetAuditLog(a AuditAppender) { s.audit = a }

// SetEventPublisher enables event publishing.
func (s *Service) SetEventPublisher(p EventPublisher) { s.events = p }

// SetActor sets the actor recorded on ledger entries. Empty is ignored.
func (s *Service) SetActor(actor string) {
	if actor != "" {
		s.actor = actor
	}
}

// SetMetricsRecord configures the metrics callbacks.
func (s *Service) SetMetricsRecord(onAnalysis AnalysisRecordFunc, onReport ReportRecordFunc) {
	s.onAnalysis = onAnalysis
	s.onReport = onReport
}

// Analyze runs the pipeline and then records the result.
func (s *Service) Analyze(ctx context.Context, scenario string) (*threat.Record, error) {
	start := time.Now()
	rec, err := s.orch.Analyze(ctx, scenario)
	if s.onAnalysis != nil {
		tokens := 0
		if rec != nil {
			tokens = rec.TokenUsage
		}
		s.onAnalysis(err, time.Since(start), tokens)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("analysis complete",
		zap.String("case_id", rec.CaseID),
		zap.String("threat_type", rec.ThreatType),
		zap.String("severity", rec.Severity),
		zap.Int("token_usage", rec.TokenUsage),
		zap.Int("context_sources", len(rec.ContextSources)),
	)

	bg := context.WithoutCancel(ctx)
	if s.cases != nil {
		s.withTimeout(bg, func(ctx context.Context) {
			if err := s.cases.Save(ctx, rec); err != nil {
				s.logger.Warn("case history: save failed", zap.String("case_id", rec.CaseID), zap.Error(err))
			}
		})
	}
	s.appendAudit(bg, ledger.ActionAnalyze, rec)
	s.publish(bg, events.SubjectAnalysisCompleted, events.NewAnalysisCompleted(rec))

	return rec, nil
}

// RenderReport writes the document for rec and returns its path.
func (s *Service) RenderReport(ctx context.Context, rec *threat.Record) (string, error) {
	if s.renderer == nil {
		return "", &OrchestrationError{Err: errors.New("report rendering not configured")}
	}
	path, err := s.renderer.Render(rec)
	if s.onReport != nil {
		s.onReport(err)
	}
	if err != nil {
		return "", err
	}

	s.logger.Info("report generated", zap.String("case_id", rec.CaseID), zap.String("path", path))

	bg := context.WithoutCancel(ctx)
	s.appendAudit(bg, ledger.ActionReport, rec)
	s.publish(bg, events.SubjectReportGenerated, events.ReportGenerated{
		CaseID:    rec.CaseID,
		Path:      path,
		Timestamp: time.Now().Unix(),
	})
	return path, nil
}

func (s *Service) appendAudit(ctx context.Context, action ledger.Action, rec *threat.Record) {
	if s.audit == nil {
		return
	}
	s.withTimeout(ctx, func(ctx context.Context) {
		if _, err := s.audit.Append(ctx, ledger.Event{Action: action, Actor: s.actor, Record: rec}); err != nil {
			s.logger.Warn("audit ledger: append failed",
				zap.String("case_id", rec.CaseID),
				zap.String("action", string(action)),
				zap.Error(err),
			)
		}
	})
}

func (s *Service) publish(ctx context.Context, subject string, payload any) {
	if s.events == nil {
		return
	}
	s.withTimeout(ctx, func(ctx context.Context) {
		if err := s.events.Publish(ctx, subject, payload); err != nil {
			s.logger.Warn("events: publish failed", zap.String("subject", subject), zap.Error(err))
		}
	})
}

func (s *Service) withTimeout(ctx context.Context, fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
	defer cancel()
	fn(ctx)
}
