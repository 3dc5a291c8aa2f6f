// Package ledger keeps an append-only audit trail of case actions and uses
// it to attest that stored threat records were not modified after analysis.
//
// Every analysis and every report appends an Entry carrying the SHA-256
// digest of the record it acted on. Entries are hash-linked: each one seals
// its predecessor's hash, starting from ZeroHash. Verify walks the links;
// VerifyCase compares a stored record against the digest recorded when it
// was analysed.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmerrifield20/CyberSentinel/internal/threat"
)

// ZeroHash anchors the first entry of every trail.
const ZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ErrNotFound is returned by Entry for a sequence number outside the trail.
var ErrNotFound = errors.New("ledger entry not found")

// Action is the case operation an entry attests.
type Action string

const (
	ActionAnalyze Action = "analyze"
	ActionReport  Action = "report"
)

// Event is what a caller asks the ledger to record.
type Event struct {
	Action Action
	Actor  string
	Record *threat.Record
}

// Entry is one sealed link of the trail. Seq starts at 1.
type Entry struct {
	Seq          int       `json:"seq"`
	RecordedAt   time.Time `json:"recorded_at"`
	CaseID       string    `json:"case_id"`
	Action       Action    `json:"action"`
	Actor        string    `json:"actor"`
	RecordDigest string    `json:"record_digest"`
	PrevHash     string    `json:"prev_hash"`
	Hash         string    `json:"hash"`
}

// Head summarises the trail.
type Head struct {
	Length int    `json:"length"`
	Root   string `json:"root"`
}

// ChainError reports the first link that fails verification.
type ChainError struct {
	Seq    int
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("ledger entry %d: %s", e.Seq, e.Reason)
}

// Ledger is an append-only audit trail.
type Ledger interface {
	// Append seals ev onto the tip of the trail.
	Append(ctx context.Context, ev Event) (*Entry, error)

	// Entry returns the entry with sequence number seq.
	Entry(ctx context.Context, seq int) (*Entry, error)

	// Trail returns every entry for caseID in sequence order. A case with no
	// entries yields an empty slice.
	Trail(ctx context.Context, caseID string) ([]*Entry, error)

	// Head returns the trail length and the hash of its last entry.
	Head(ctx context.Context) (Head, error)

	// Verify walks the whole trail. It returns a *ChainError for the first
	// broken link.
	Verify(ctx context.Context) error
}
