// Package cases stores completed threat records so reports can be produced
// later without re-running an analysis.
package cases

import (
	"context"
	"errors"

	"github.com/jmerrifield20/CyberSentinel/internal/threat"
)

// ErrNotFound is returned when no record exists for a case id.
var ErrNotFound = errors.New("case not found")

// ErrDuplicateCase is returned by Save when the case id is already stored.
// Stored records are never overwritten.
var ErrDuplicateCase = errors.New("case id already stored")

// DefaultListLimit applies when List is called with limit <= 0.
const DefaultListLimit = 20

// MaxListLimit caps a single List page.
const MaxListLimit = 100

// Repository is the case history store.
type Repository interface {
	Save(ctx context.Context, rec *threat.Record) error
	Get(ctx context.Context, caseID string) (*threat.Record, error)
	// List returns records newest first.
	List(ctx context.Context, limit, offset int) ([]*threat.Record, error)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func cloneRecord(rec *threat.Record) *threat.Record {
	out := *rec
	out.Recommendations = append([]string{}, rec.Recommendations...)
	out.ContextSources = append([]string{}, rec.ContextSources...)
	return &out
}
