package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryLedger keeps the trail in process. It is safe for concurrent use.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries []*Entry
	byCase  map[string][]int
	now     func() time.Time
}

// NewMemoryLedger returns an empty trail.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{byCase: make(map[string][]int), now: time.Now}
}

// Append implements Ledger.
func (l *MemoryLedger) Append(_ context.Context, ev Event) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var tip *Entry
	if n := len(l.entries); n > 0 {
		tip = l.entries[n-1]
	}
	e, err := newEntry(tip, ev, l.now())
	if err != nil {
		return nil, err
	}
	l.entries = append(l.entries, e)
	l.byCase[e.CaseID] = append(l.byCase[e.CaseID], len(l.entries)-1)

	out := *e
	return &out, nil
}

// Entry implements Ledger.
func (l *MemoryLedger) Entry(_ context.Context, seq int) (*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if seq < 1 || seq > len(l.entries) {
		return nil, fmt.Errorf("%w: seq %d", ErrNotFound, seq)
	}
	out := *l.entries[seq-1]
	return &out, nil
}

// Trail implements Ledger.
func (l *MemoryLedger) Trail(_ context.Context, caseID string) ([]*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.byCase[caseID]
	out := make([]*Entry, 0, len(idx))
	for _, i := range idx {
		e := *l.entries[i]
		out = append(out, &e)
	}
	return out, nil
}

// Head implements Ledger.
func (l *MemoryLedger) Head(_ context.Context) (Head, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return Head{Root: ZeroHash}, nil
	}
	return Head{Length: len(l.entries), Root: l.entries[len(l.entries)-1].Hash}, nil
}

// Verify implements Ledger.
func (l *MemoryLedger) Verify(_ context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	w := newChainWalker()
	for _, e := range l.entries {
		if err := w.next(e); err != nil {
			return err
		}
	}
	return nil
}
