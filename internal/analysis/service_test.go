package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmerrifield20/CyberSentinel/internal/cases"
	"github.com/jmerrifield20/CyberSentinel/internal/events"
	"github.com/jmerrifield20/CyberSentinel/internal/ledger"
	"github.com/jmerrifield20/CyberSentinel/internal/threat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	subjects []string
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ any) error {
	p.subjects = append(p.subjects, subject)
	return p.err
}

type failingSaver struct{}

func (failingSaver) Save(context.Context, *threat.Record) error { return errors.New("db down") }

type stubRenderer struct {
	path string
	err  error
}

func (s stubRenderer) Render(*threat.Record) (string, error) { return s.path, s.err }

func TestService_AnalyzeRecordsSideEffects(t *testing.T) {
	repo := cases.NewMemoryRepository()
	audit := ledger.NewMemoryLedger()
	pub := &recordingPublisher{}

	svc := NewService(NewOrchestrator(nil, &fakeCompleter{text: wellFormed, tokens: 9}, zap.NewNop()), nil, zap.NewNop())
	svc.SetCaseStore(repo)
	svc.SetAuditLog(audit)
	svc.SetEventPublisher(pub)

	var gotErr error
	var gotTokens int
	svc.SetMetricsRecord(func(err error, _ time.Duration, tokens int) {
		gotErr, gotTokens = err, tokens
	}, nil)

	rec, err := svc.Analyze(context.Background(), "scenario")
	require.NoError(t, err)

	stored, err := repo.Get(context.Background(), rec.CaseID)
	require.NoError(t, err)
	assert.Equal(t, rec.ThreatType, stored.ThreatType)

	head, _ := audit.Head(context.Background())
	assert.Equal(t, 1, head.Length)
	entry, err := audit.Entry(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, ledger.ActionAnalyze, entry.Action)
	assert.Equal(t, rec.CaseID, entry.CaseID)
	assert.Equal(t, DefaultActor, entry.Actor)
	assert.Equal(t, ledger.Digest(rec), entry.RecordDigest)

	verdict, err := ledger.VerifyCase(context.Background(), audit, repo, rec.CaseID)
	require.NoError(t, err)
	assert.True(t, verdict.Intact, verdict.Reason)

	assert.Equal(t, []string{events.SubjectAnalysisCompleted}, pub.subjects)
	assert.NoError(t, gotErr)
	assert.Equal(t, 9, gotTokens)
}

func TestService_sideEffectFailuresDoNotFailAnalysis(t *testing.T) {
	svc := NewService(NewOrchestrator(nil, &fakeCompleter{text: wellFormed}, zap.NewNop()), nil, zap.NewNop())
	svc.SetCaseStore(failingSaver{})
	svc.SetEventPublisher(&recordingPublisher{err: errors.New("nats: no servers")})

	rec, err := svc.Analyze(context.Background(), "scenario")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.CaseID)
}

func TestService_AnalyzeErrorSkipsSideEffects(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(NewOrchestrator(nil, &fakeCompleter{err: errors.New("boom")}, zap.NewNop()), nil, zap.NewNop())
	svc.SetEventPublisher(pub)

	_, err := svc.Analyze(context.Background(), "scenario")
	assert.Error(t, err)
	assert.Empty(t, pub.subjects)
}

func TestService_RenderReport(t *testing.T) {
	audit := ledger.NewMemoryLedger()
	pub := &recordingPublisher{}
	svc := NewService(nil, stubRenderer{path: "reports/cybersentinel_report_ab12cd34.pdf"}, zap.NewNop())
	svc.SetAuditLog(audit)
	svc.SetEventPublisher(pub)
	svc.SetActor("analyst@example.com")

	rec := &threat.Record{CaseID: "ab12cd34", Severity: threat.SeverityHigh}
	path, err := svc.RenderReport(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "reports/cybersentinel_report_ab12cd34.pdf", path)

	entry, err := audit.Entry(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, ledger.ActionReport, entry.Action)
	assert.Equal(t, "analyst@example.com", entry.Actor)
	assert.Equal(t, ledger.Digest(rec), entry.RecordDigest)
	assert.Equal(t, []string{events.SubjectReportGenerated}, pub.subjects)
}

func TestService_RenderReportError(t *testing.T) {
	renderErr := errors.New("disk full")
	var recorded error
	svc := NewService(nil, stubRenderer{err: renderErr}, zap.NewNop())
	svc.SetMetricsRecord(nil, func(err error) { recorded = err })

	_, err := svc.RenderReport(context.Background(), &threat.Record{CaseID: "x"})
	assert.ErrorIs(t, err, renderErr)
	assert.ErrorIs(t, recorded, renderErr)
}

func TestService_RenderReportWithoutRenderer(t *testing.T) {
	svc := NewService(nil, nil, zap.NewNop())
	_, err := svc.RenderReport(context.Background(), &threat.Record{CaseID: "x"})
	var orchErr *OrchestrationError
	assert.True(t, errors.As(err, &orchErr))
}
