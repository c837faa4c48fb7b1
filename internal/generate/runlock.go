package generate

import (
	"context"
	"sync"

	"github.com/hyperjump/kensho/internal/fault"
)

// Locks serializes generation and regeneration per document. Each document
// has one run slot; a second run arriving while the slot is held is either
// queued FIFO up to queueDepth or rejected with a run lock conflict when the
// queue is full (or queueDepth is zero).
type Locks struct {
	mu         sync.Mutex
	queueDepth int
	slots      map[string]*runSlot
}

type runSlot struct {
	held    bool
	waiters []chan struct{}
}

func NewLocks(queueDepth int) *Locks {
	if queueDepth < 0 {
		queueDepth = 0
	}
	return &Locks{queueDepth: queueDepth, slots: make(map[string]*runSlot)}
}

// Acquire claims the document's run slot, blocking in queue order if queueing
// is enabled. The returned release function must be called exactly once.
func (l *Locks) Acquire(ctx context.Context, docID string) (func(), error) {
	l.mu.Lock()
	s := l.slots[docID]
	if s == nil {
		s = &runSlot{}
		l.slots[docID] = s
	}
	if !s.held {
		s.held = true
		l.mu.Unlock()
		return func() { l.release(docID) }, nil
	}
	if len(s.waiters) >= l.queueDepth {
		l.mu.Unlock()
		return nil, fault.Newf(fault.KindRunLockConflict, "a generation run is already active for document %s", docID)
	}
	ch := make(chan struct{})
	s.waiters = append(s.waiters, ch)
	l.mu.Unlock()

	select {
	case <-ch:
		return func() { l.release(docID) }, nil
	case <-ctx.Done():
		l.mu.Lock()
		for i, w := range s.waiters {
			if w == ch {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				l.mu.Unlock()
				return nil, fault.Wrap(fault.KindRunLockConflict, "canceled while queued for run slot", ctx.Err())
			}
		}
		// The slot was granted between ctx firing and us taking the lock;
		// pass it straight on.
		l.mu.Unlock()
		l.release(docID)
		return nil, fault.Wrap(fault.KindRunLockConflict, "canceled while queued for run slot", ctx.Err())
	}
}

func (l *Locks) release(docID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[docID]
	if s == nil {
		return
	}
	if len(s.waiters) > 0 {
		next := s.waiters[0]
		s.waiters = s.waiters[1:]
		close(next)
		return
	}
	s.held = false
	delete(l.slots, docID)
}
