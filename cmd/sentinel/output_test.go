package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmerrifield20/CyberSentinel/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintRecord_placeholders(t *testing.T) {
	var buf bytes.Buffer
	printRecord(&buf, &client.Record{CaseID: "ab12cd34", Severity: "Low"})

	out := buf.String()
	for _, want := range []string{"ab12cd34", "No recommendations provided.", "No specific sources cited"} {
		assert.Contains(t, out, want)
	}
}

func TestPrintRecord_numberedRecommendations(t *testing.T) {
	var buf bytes.Buffer
	printRecord(&buf, &client.Record{
		Recommendations: []string{"Isolate host", "Reset credentials"},
		ContextSources:  []string{"kb/ransomware.md", "kb/ir.md"},
	})

	out := buf.String()
	assert.Contains(t, out, "1. Isolate host")
	assert.Contains(t, out, "2. Reset credentials")
	assert.Contains(t, out, "kb/ransomware.md, kb/ir.md", "sources are comma-joined")
}

func TestPrintCaseTable_empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printCaseTable(&buf, nil))
	assert.Contains(t, buf.String(), "No cases recorded.")
}

func TestReadScenario(t *testing.T) {
	got, err := readScenario([]string{"phishing mail"}, strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "phishing mail", got)

	got, err = readScenario([]string{"-"}, strings.NewReader("from stdin\n"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin\n", got)

	_, err = readScenario(nil, strings.NewReader("  \n"))
	assert.Error(t, err, "blank stdin")
}

func TestDownloadReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	path, err := downloadReport(dir, func(w io.Writer) (string, error) {
		_, err := w.Write([]byte("%PDF-1.3"))
		return "cybersentinel_report_ab12cd34.pdf", err
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cybersentinel_report_ab12cd34.pdf"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(b))
}

func TestDownloadReport_failureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()

	_, err := downloadReport(dir, func(io.Writer) (string, error) {
		return "", errors.New("server error")
	})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPrintVerdict(t *testing.T) {
	var buf bytes.Buffer
	printVerdict(&buf, &client.CaseVerdict{CaseID: "ab12cd34", Intact: true, Reports: 1, MatchingReports: 1})
	assert.Contains(t, buf.String(), "Case ab12cd34: INTACT")
	assert.Contains(t, buf.String(), "1 of 1")

	buf.Reset()
	printVerdict(&buf, &client.CaseVerdict{
		CaseID: "ab12cd34",
		Reason: "stored record differs from the record that was analysed",
	})
	assert.Contains(t, buf.String(), "FAILED")
	assert.Contains(t, buf.String(), "differs")
}
