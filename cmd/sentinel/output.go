package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jmerrifield20/CyberSentinel/pkg/client"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRecord(w io.Writer, rec *client.Record) {
	fmt.Fprintf(w, "Case ID:     %s\n", rec.CaseID)
	fmt.Fprintf(w, "Timestamp:   %s\n", rec.Timestamp)
	fmt.Fprintf(w, "Threat Type: %s\n", rec.ThreatType)
	fmt.Fprintf(w, "Severity:    %s\n", rec.Severity)
	fmt.Fprintf(w, "Tokens:      %d\n", rec.TokenUsage)
	fmt.Fprintf(w, "\nAnalysis:\n  %s\n", strings.ReplaceAll(strings.TrimSpace(rec.Analysis), "\n", "\n  "))

	fmt.Fprintln(w, "\nRecommendations:")
	if len(rec.Recommendations) == 0 {
		fmt.Fprintln(w, "  No recommendations provided.")
	}
	for i, r := range rec.Recommendations {
		fmt.Fprintf(w, "  %d. %s\n", i+1, r)
	}

	sources := "No specific sources cited"
	if len(rec.ContextSources) > 0 {
		sources = strings.Join(rec.ContextSources, ", ")
	}
	fmt.Fprintf(w, "\nSources:     %s\n", sources)
}

func printCaseTable(w io.Writer, recs []client.Record) error {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No cases recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CASE ID\tTIMESTAMP\tSEVERITY\tTHREAT TYPE")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.CaseID, r.Timestamp, r.Severity, r.ThreatType)
	}
	return tw.Flush()
}

func printVerdict(w io.Writer, v *client.CaseVerdict) {
	state := "INTACT"
	if !v.Intact {
		state = "FAILED"
	}
	fmt.Fprintf(w, "Case %s: %s\n", v.CaseID, state)
	if v.Reason != "" {
		fmt.Fprintf(w, "  %s\n", v.Reason)
	}
	fmt.Fprintf(w, "Reports:   %d of %d rendered from the stored record\n", v.MatchingReports, v.Reports)
}

func printHealth(w io.Writer, h *client.HealthReport) {
	fmt.Fprintf(w, "Status:    %s\n", h.Status)
	fmt.Fprintf(w, "Inference: %s (%s)\n", h.Inference, h.Model)
	fmt.Fprintf(w, "Vector DB: %s, %d documents indexed\n", h.VectorDB, h.DocumentsIndexed)
}
