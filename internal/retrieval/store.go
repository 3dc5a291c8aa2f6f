// Package retrieval grounds analyses with passages from an optional
// knowledge base. Every failure on this path degrades to "no context".
package retrieval

import (
	"context"
	"errors"
)

// UnknownSource labels passages whose metadata carries no source.
const UnknownSource = "Unknown"

// ErrStoreUnavailable is returned by stores that could not be opened.
var ErrStoreUnavailable = errors.New("document store unavailable")

// Passage is one retrieved chunk of knowledge-base text.
type Passage struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Source returns the passage's provenance label.
func (p Passage) Source() string {
	if s := p.Metadata["source"]; s != "" {
		return s
	}
	return UnknownSource
}

// DocumentStore is a nearest-neighbour text index. Implementations must be
// safe for concurrent use.
type DocumentStore interface {
	// Available reports whether the store can serve queries at all.
	Available(ctx context.Context) bool

	// Query returns up to limit passages most related to text.
	Query(ctx context.Context, text string, limit int) ([]Passage, error)

	// Count returns the number of indexed documents.
	Count(ctx context.Context) (int, error)
}
