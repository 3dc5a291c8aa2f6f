package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/jmerrifield20/CyberSentinel/internal/inference"
	"github.com/jmerrifield20/CyberSentinel/internal/threat"
	"go.uber.org/zap"
)

// ContextRetriever supplies knowledge-base grounding. It must not fail.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, limit int) (string, []string)
}

// Completer is the part of inference.Client the pipeline needs.
type Completer interface {
	Complete(ctx context.Context, prompt string) (inference.Completion, error)
}

// Orchestrator runs the analysis pipeline. Stages run strictly in sequence
// and share no mutable state, so one Orchestrator serves concurrent calls.
type Orchestrator struct {
	retriever ContextRetriever
	model     Completer
	now       func() time.Time
	newCaseID func() (string, error)
	logger    *zap.Logger
}

// NewOrchestrator creates an Orchestrator. retriever may be nil.
func NewOrchestrator(retriever ContextRetriever, model Completer, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		retriever: retriever,
		model:     model,
		now:       time.Now,
		newCaseID: threat.NewCaseID,
		logger:    logger,
	}
}

// Analyze produces a fully populated record for scenario.
//
// Errors from the completion service are returned unchanged; anything else
// is wrapped in *OrchestrationError. The caller's cancellation is not
// propagated: once started, the pipeline runs to completion or failure.
func (o *Orchestrator) Analyze(ctx context.Context, scenario string) (rec *threat.Record, err error) {
	defer func() {
		if p := recover(); p != nil {
			o.logger.Error("analysis panicked", zap.Any("panic", p))
			rec, err = nil, &OrchestrationError{Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	ctx = context.WithoutCancel(ctx)

	var (
		kbContext string
		sources   = []string{}
	)
	if o.retriever != nil {
		kbContext, sources = o.retriever.Retrieve(ctx, scenario, 0)
		if sources == nil {
			sources = []string{}
		}
	}

	prompt := BuildPrompt(scenario, kbContext)

	completion, err := o.model.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	assessment := ParseResponse(completion.Text)

	caseID, err := o.newCaseID()
	if err != nil {
		return nil, &OrchestrationError{Err: err}
	}

	tokens := completion.TokenUsage
	if tokens < 0 {
		tokens = 0
	}

	return &threat.Record{
		CaseID:          caseID,
		Scenario:        scenario,
		ThreatType:      assessment.ThreatType,
		Severity:        assessment.Severity,
		Analysis:        assessment.Analysis,
		Recommendations: assessment.Recommendations,
		ContextSources:  sources,
		Timestamp:       threat.FormatTimestamp(o.now()),
		TokenUsage:      tokens,
	}, nil
}
