package store

import (
	"context"
	"sync"
)

// rowLocks is a table of exclusive, context-aware row locks keyed by row id.
// Entries exist only while someone holds or waits for them.
type rowLocks struct {
	mu   sync.Mutex
	rows map[string]*rowLock
}

type rowLock struct {
	ch   chan struct{}
	refs int
}

func newRowLocks() *rowLocks {
	return &rowLocks{rows: make(map[string]*rowLock)}
}

// acquire blocks until the row is free or ctx is done.
func (l *rowLocks) acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	rl, ok := l.rows[key]
	if !ok {
		rl = &rowLock{ch: make(chan struct{}, 1)}
		l.rows[key] = rl
	}
	rl.refs++
	l.mu.Unlock()

	select {
	case rl.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.rows, key)
		}
		l.mu.Unlock()
		return ctx.Err()
	}
}

func (l *rowLocks) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rl, ok := l.rows[key]
	if !ok {
		return
	}
	<-rl.ch
	rl.refs--
	if rl.refs == 0 {
		delete(l.rows, key)
	}
}

func accountKey(id string) string {
	return "account:" + id
}

func transactionKey(id string) string {
	return "transaction:" + id
}
