package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jmerrifield20/CyberSentinel/internal/threat"
)

// Digest is the canonical SHA-256 of rec. Nil and empty slices hash the
// same, so a record survives a round trip through any repository.
func Digest(rec *threat.Record) string {
	c := *rec
	if c.Recommendations == nil {
		c.Recommendations = []string{}
	}
	if c.ContextSources == nil {
		c.ContextSources = []string{}
	}
	// Record holds only strings and ints.
	data, _ := json.Marshal(c)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// newEntry builds the entry that follows prev (nil for the first one) and
// seals it. RecordedAt is truncated to the precision PostgreSQL keeps.
func newEntry(prev *Entry, ev Event, now time.Time) (*Entry, error) {
	if ev.Record == nil {
		return nil, errors.New("ledger: event has no record")
	}
	e := &Entry{
		Seq:          1,
		RecordedAt:   now.UTC().Truncate(time.Microsecond),
		CaseID:       ev.Record.CaseID,
		Action:       ev.Action,
		Actor:        ev.Actor,
		RecordDigest: Digest(ev.Record),
		PrevHash:     ZeroHash,
	}
	if prev != nil {
		e.Seq = prev.Seq + 1
		e.PrevHash = prev.Hash
	}
	e.Hash = seal(e)
	return e, nil
}

// seal hashes every field of e except Hash.
func seal(e *Entry) string {
	fields := []string{
		strconv.Itoa(e.Seq),
		e.RecordedAt.UTC().Format(time.RFC3339Nano),
		e.CaseID,
		string(e.Action),
		e.Actor,
		e.RecordDigest,
		e.PrevHash,
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// chainWalker checks entries fed to it in sequence order.
type chainWalker struct {
	prevSeq  int
	prevHash string
}

func newChainWalker() *chainWalker {
	return &chainWalker{prevHash: ZeroHash}
}

func (w *chainWalker) next(e *Entry) error {
	switch {
	case e.Seq != w.prevSeq+1:
		return &ChainError{Seq: e.Seq, Reason: "sequence gap after " + strconv.Itoa(w.prevSeq)}
	case e.PrevHash != w.prevHash:
		return &ChainError{Seq: e.Seq, Reason: "previous hash does not match"}
	case e.Hash != seal(e):
		return &ChainError{Seq: e.Seq, Reason: "entry hash does not match its contents"}
	}
	w.prevSeq, w.prevHash = e.Seq, e.Hash
	return nil
}
