package ledger

import (
	"context"
	"fmt"

	"github.com/jmerrifield20/CyberSentinel/internal/threat"
)

// RecordSource loads stored case records.
type RecordSource interface {
	Get(ctx context.Context, caseID string) (*threat.Record, error)
}

// Verdict is the attestation result for one case.
type Verdict struct {
	CaseID string `json:"case_id"`
	// Intact is true when the stored record hashes to the digest recorded
	// at analysis time.
	Intact         bool   `json:"intact"`
	StoredDigest   string `json:"stored_digest"`
	AnalyzedDigest string `json:"analyzed_digest,omitempty"`
	// Reports counts report entries; MatchingReports those rendered from
	// the stored record rather than a client-edited copy.
	Reports         int      `json:"reports"`
	MatchingReports int      `json:"matching_reports"`
	Reason          string   `json:"reason,omitempty"`
	Trail           []*Entry `json:"trail"`
}

// VerifyCase checks the stored record for caseID against its trail. Errors
// from src, such as a missing case, are returned unchanged.
func VerifyCase(ctx context.Context, l Ledger, src RecordSource, caseID string) (*Verdict, error) {
	rec, err := src.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	trail, err := l.Trail(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("load trail for %s: %w", caseID, err)
	}

	v := &Verdict{CaseID: caseID, StoredDigest: Digest(rec), Trail: trail}
	for _, e := range trail {
		switch e.Action {
		case ActionAnalyze:
			if v.AnalyzedDigest == "" {
				v.AnalyzedDigest = e.RecordDigest
			}
		case ActionReport:
			v.Reports++
			if e.RecordDigest == v.StoredDigest {
				v.MatchingReports++
			}
		}
	}

	switch {
	case v.AnalyzedDigest == "":
		v.Reason = "no analysis entry recorded for this case"
	case v.AnalyzedDigest != v.StoredDigest:
		v.Reason = "stored record differs from the record that was analysed"
	default:
		v.Intact = true
	}
	return v, nil
}
