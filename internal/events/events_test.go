package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jmerrifield20/CyberSentinel/internal/health"
	"github.com/jmerrifield20/CyberSentinel/internal/threat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	subject string
	payload any
}

type recordingPublisher struct {
	err  error
	sent []published
}

func (r *recordingPublisher) Publish(_ context.Context, subject string, payload any) error {
	r.sent = append(r.sent, published{subject, payload})
	return r.err
}

func (r *recordingPublisher) Close() {}

func TestNewAnalysisCompleted_omitsScenario(t *testing.T) {
	rec := &threat.Record{
		CaseID:         "ab12cd34",
		Scenario:       "an employee forwarded payroll data to a personal account",
		ThreatType:     "Insider Threat",
		Severity:       "High",
		TokenUsage:     321,
		ContextSources: []string{"a.md", "b.md"},
	}

	ev := NewAnalysisCompleted(rec)
	assert.Equal(t, "ab12cd34", ev.CaseID)
	assert.Equal(t, "High", ev.Severity)
	assert.Equal(t, 2, ev.Sources)
	assert.Equal(t, 321, ev.TokenUsage)
	assert.NotZero(t, ev.Timestamp)

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.NotContains(t, fields, "scenario")
}

func TestNoopPublisher(t *testing.T) {
	p := NewNoopPublisher(zap.NewNop())
	assert.NoError(t, p.Publish(context.Background(), SubjectReportGenerated, ReportGenerated{CaseID: "x"}))
	p.Close()
}

func TestNATSPublisher_marshalError(t *testing.T) {
	// A nil connection is never reached: marshalling fails first.
	p := &NATSPublisher{logger: zap.NewNop()}
	assert.Error(t, p.Publish(context.Background(), "s", make(chan int)))
	p.Close()
}

func TestDegradedHook_publishesReport(t *testing.T) {
	pub := &recordingPublisher{}
	hook := DegradedHook(pub, zap.NewNop())

	hook(context.Background(), health.Report{
		Status:           health.StatusDegraded,
		Inference:        health.InferenceOffline,
		Model:            "llama3.2",
		VectorDB:         "online",
		DocumentsIndexed: 7,
	})

	require.Len(t, pub.sent, 1)
	assert.Equal(t, SubjectHealthDegraded, pub.sent[0].subject)
	ev, ok := pub.sent[0].payload.(HealthDegraded)
	require.True(t, ok, "payload type %T", pub.sent[0].payload)
	assert.Equal(t, health.InferenceOffline, ev.Inference)
	assert.Equal(t, "llama3.2", ev.Model)
	assert.Equal(t, 7, ev.DocumentsIndexed)
	assert.NotZero(t, ev.Timestamp)
}

func TestDegradedHook_publishFailureIsSwallowed(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats: connection closed")}
	hook := DegradedHook(pub, zap.NewNop())

	assert.NotPanics(t, func() {
		hook(context.Background(), health.Report{Status: health.StatusDegraded})
	})
	assert.Len(t, pub.sent, 1)
}
