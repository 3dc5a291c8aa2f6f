// Package report renders threat records as PDF documents.
package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/jmerrifield20/CyberSentinel/internal/threat"
	"go.uber.org/zap"
)

const title = "CyberSentinel Threat Analysis Report"

// Placeholders for empty sections.
const (
	NoRecommendations = "No recommendations provided."
	NoSources         = "No specific sources cited"
	noScenario        = "No scenario provided"
	noAnalysis        = "No analysis provided"
)

type rgb struct{ r, g, b int }

var (
	severityColors = map[string]rgb{
		threat.SeverityLow:    {40, 167, 69},
		threat.SeverityMedium: {255, 193, 7},
		threat.SeverityHigh:   {220, 53, 69},
	}
	neutralGray = rgb{108, 117, 125}
)

// RenderError reports a failure to produce or persist a report.
type RenderError struct {
	CaseID string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render report %s: %v", e.CaseID, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// FileName returns the artifact name for a case.
func FileName(caseID string) string {
	return "cybersentinel_report_" + caseID + ".pdf"
}

// Renderer writes reports under a fixed directory. Writes go to a temporary
// file that is renamed into place, so readers never observe a partial
// document. Concurrent renders of the same case are not coordinated; the
// last rename wins.
type Renderer struct {
	dir      string
	compress bool
	logger   *zap.Logger
}

// NewRenderer creates a Renderer for dir. The directory is created on demand.
func NewRenderer(dir string, logger *zap.Logger) *Renderer {
	if dir == "" {
		dir = "reports"
	}
	return &Renderer{dir: dir, compress: true, logger: logger}
}

// SetCompression toggles stream compression in written documents.
func (r *Renderer) SetCompression(on bool) {
	r.compress = on
}

// Dir returns the output directory.
func (r *Renderer) Dir() string { return r.dir }

// Path returns where the report for caseID is written.
func (r *Renderer) Path(caseID string) string {
	return filepath.Join(r.dir, FileName(caseID))
}

// Render writes the report for rec and returns its path once the file is
// complete.
func (r *Renderer) Render(rec *threat.Record) (string, error) {
	if err := threat.ValidateCaseID(rec.CaseID); err != nil {
		return "", &RenderError{CaseID: rec.CaseID, Err: err}
	}

	var buf bytes.Buffer
	if err := r.Write(&buf, rec); err != nil {
		return "", &RenderError{CaseID: rec.CaseID, Err: err}
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", &RenderError{CaseID: rec.CaseID, Err: fmt.Errorf("create reports dir: %w", err)}
	}

	path := r.Path(rec.CaseID)
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return "", &RenderError{CaseID: rec.CaseID, Err: err}
	}

	r.logger.Debug("report written", zap.String("path", path), zap.Int("bytes", buf.Len()))
	return path, nil
}

// Write lays out rec as a PDF and writes it to w.
func (r *Renderer) Write(w io.Writer, rec *threat.Record) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetTitle(title, true)
	pdf.SetCreator("CyberSentinel", true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, title, "", 1, "C", false, 0, "")
	pdf.Ln(5)

	severity := rec.Severity
	if severity == "" {
		severity = threat.SeverityUnknown
	}
	color, ok := severityColors[severity]
	if !ok {
		color = neutralGray
	}

	field := func(label, value string, valueColor *rgb) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, 6, label, "", 0, "", false, 0, "")
		if valueColor != nil {
			pdf.SetTextColor(valueColor.r, valueColor.g, valueColor.b)
		} else {
			pdf.SetFont("Helvetica", "", 10)
		}
		pdf.CellFormat(0, 6, tr(value), "", 1, "", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	field("Case ID:", rec.CaseID, nil)
	field("Timestamp:", rec.Timestamp, nil)
	field("Threat Type:", rec.ThreatType, nil)
	field("Severity:", severity, &color)
	field("Token Usage:", strconv.Itoa(rec.TokenUsage), nil)

	section := func(heading string, gap float64) {
		pdf.Ln(gap)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, heading, "", 1, "", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
	}

	section("Scenario", 5)
	pdf.MultiCell(0, 5, tr(orDefault(rec.Scenario, noScenario)), "", "", false)

	section("Analysis", 3)
	pdf.MultiCell(0, 5, tr(orDefault(rec.Analysis, noAnalysis)), "", "", false)

	section("Recommendations", 3)
	if len(rec.Recommendations) == 0 {
		pdf.MultiCell(0, 5, NoRecommendations, "", "", false)
	}
	for i, item := range rec.Recommendations {
		pdf.MultiCell(0, 5, tr(fmt.Sprintf("%d. %s", i+1, item)), "", "", false)
		pdf.Ln(1)
	}

	section("Context Sources", 2)
	sources := NoSources
	if len(rec.ContextSources) > 0 {
		sources = strings.Join(rec.ContextSources, ", ")
	}
	pdf.MultiCell(0, 5, tr(sources), "", "", false)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("encode pdf: %w", err)
	}
	return nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
