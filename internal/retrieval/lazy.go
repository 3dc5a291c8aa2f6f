package retrieval

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OpenFunc connects to a document store.
type OpenFunc func(ctx context.Context) (DocumentStore, error)

// DefaultOpenTimeout bounds the first connection attempt.
const DefaultOpenTimeout = 10 * time.Second

// LazyStore opens its underlying store on first use and caches the outcome.
// A failed open is remembered; the store then stays unavailable for the
// lifetime of the process. The open runs detached from the triggering
// caller, so a cancelled request does not count as a failed open.
type LazyStore struct {
	open        OpenFunc
	openTimeout time.Duration
	once        sync.Once
	store       DocumentStore
	logger      *zap.Logger
}

// NewLazyStore wraps open. Nothing is dialled until the first call.
func NewLazyStore(open OpenFunc, logger *zap.Logger) *LazyStore {
	return &LazyStore{open: open, openTimeout: DefaultOpenTimeout, logger: logger}
}

// SetOpenTimeout bounds the first connection attempt. d <= 0 is ignored.
func (l *LazyStore) SetOpenTimeout(d time.Duration) {
	if d > 0 {
		l.openTimeout = d
	}
}

func (l *LazyStore) get(ctx context.Context) DocumentStore {
	l.once.Do(func() {
		octx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.openTimeout)
		defer cancel()

		s, err := l.open(octx)
		if err != nil {
			l.logger.Warn("retrieval: document store unavailable", zap.Error(err))
			return
		}
		l.store = s
		l.logger.Info("retrieval: document store ready")
	})
	return l.store
}

// Available implements DocumentStore.
func (l *LazyStore) Available(ctx context.Context) bool {
	s := l.get(ctx)
	return s != nil && s.Available(ctx)
}

// Query implements DocumentStore.
func (l *LazyStore) Query(ctx context.Context, text string, limit int) ([]Passage, error) {
	s := l.get(ctx)
	if s == nil {
		return nil, ErrStoreUnavailable
	}
	return s.Query(ctx, text, limit)
}

// Count implements DocumentStore.
func (l *LazyStore) Count(ctx context.Context) (int, error) {
	s := l.get(ctx)
	if s == nil {
		return 0, ErrStoreUnavailable
	}
	return s.Count(ctx)
}
