package retrieval

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Status is the tri-state health of the knowledge base.
type Status string

const (
	StatusOnline   Status = "online"
	StatusOffline  Status = "offline"
	StatusDegraded Status = "degraded"
)

// Result labels passed to the ResultRecordFunc.
const (
	ResultHit         = "hit"
	ResultEmpty       = "empty"
	ResultUnavailable = "unavailable"
	ResultError       = "error"
)

// Config holds retriever tuning.
type Config struct {
	// Limit is the number of passages requested when the caller passes <= 0.
	Limit int
	// Timeout bounds a single query against the store.
	Timeout time.Duration
}

// ResultRecordFunc is an optional callback invoked once per Retrieve.
type ResultRecordFunc func(result string)

// Retriever turns a store query into a prompt-ready context block.
type Retriever struct {
	store    DocumentStore
	cfg      Config
	onResult ResultRecordFunc
	logger   *zap.Logger
}

// NewRetriever creates a Retriever. store may be nil, in which case every
// call yields no context.
func NewRetriever(store DocumentStore, cfg Config, logger *zap.Logger) *Retriever {
	if cfg.Limit <= 0 {
		cfg.Limit = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Retriever{store: store, cfg: cfg, logger: logger}
}

// SetResultRecord configures the metrics callback.
func (r *Retriever) SetResultRecord(fn ResultRecordFunc) {
	r.onResult = fn
}

// Retrieve returns the passages joined by a blank line and one source label
// per passage. Absence of a store and any query failure both yield ("", []).
func (r *Retriever) Retrieve(ctx context.Context, query string, limit int) (string, []string) {
	if limit <= 0 {
		limit = r.cfg.Limit
	}

	if r.store == nil || !r.store.Available(ctx) {
		r.record(ResultUnavailable)
		return "", []string{}
	}

	qctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	passages, err := r.store.Query(qctx, query, limit)
	if err != nil {
		r.logger.Warn("retrieval: query failed, continuing without context", zap.Error(err))
		r.record(ResultError)
		return "", []string{}
	}
	if len(passages) == 0 {
		r.record(ResultEmpty)
		return "", []string{}
	}

	texts := make([]string, 0, len(passages))
	sources := make([]string, 0, len(passages))
	for _, p := range passages {
		texts = append(texts, p.Text)
		sources = append(sources, p.Source())
	}
	r.record(ResultHit)
	return strings.Join(texts, "\n\n"), sources
}

// Status reports the store state and its document count. A store that is
// present but cannot be counted is degraded.
func (r *Retriever) Status(ctx context.Context) (Status, int) {
	if r.store == nil || !r.store.Available(ctx) {
		return StatusOffline, 0
	}

	cctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	n, err := r.store.Count(cctx)
	if err != nil {
		r.logger.Warn("retrieval: count failed", zap.Error(err))
		return StatusDegraded, 0
	}
	return StatusOnline, n
}

func (r *Retriever) record(result string) {
	if r.onResult != nil {
		r.onResult(result)
	}
}
