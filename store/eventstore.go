package store

import (
	"sync"

	"github.com/pkg/errors"

	"currency-ledger/events"
)

var (
	ErrJournalClosed = errors.New("journal is closed")
	// ErrJournalGap means entries after the restored state are missing, so the
	// ledger can not be rebuilt from what is on disk.
	ErrJournalGap = errors.New("journal entries missing")
)

// Journal is the durable, append-only record of committed changes. Entries
// are numbered from 1.
type Journal interface {
	Append(event events.Event) (uint64, error)
	// Replay calls fn for every entry with an index greater than after, in order.
	Replay(after uint64, fn func(index uint64, event events.Event) error) error
	Close() error
}

// InMemoryJournal keeps journal entries in process memory.
type InMemoryJournal struct {
	sync.RWMutex
	entries []events.Event
	closed  bool
}

func NewInMemoryJournal() *InMemoryJournal {
	return &InMemoryJournal{entries: make([]events.Event, 0)}
}

func (j *InMemoryJournal) Append(event events.Event) (uint64, error) {
	j.Lock()
	defer j.Unlock()

	if j.closed {
		return 0, ErrJournalClosed
	}
	j.entries = append(j.entries, event)
	return uint64(len(j.entries)), nil
}

func (j *InMemoryJournal) Replay(after uint64, fn func(index uint64, event events.Event) error) error {
	j.RLock()
	entries := make([]events.Event, len(j.entries))
	copy(entries, j.entries)
	j.RUnlock()

	for i := after; i < uint64(len(entries)); i++ {
		if err := fn(i+1, entries[i]); err != nil {
			return errors.Wrapf(err, "replay journal entry %d", i+1)
		}
	}
	return nil
}

// Len returns the number of entries written so far.
func (j *InMemoryJournal) Len() int {
	j.RLock()
	defer j.RUnlock()
	return len(j.entries)
}

// Reopen clears the closed flag so a test can restart a store on the same journal.
func (j *InMemoryJournal) Reopen() {
	j.Lock()
	defer j.Unlock()
	j.closed = false
}

func (j *InMemoryJournal) Close() error {
	j.Lock()
	defer j.Unlock()
	j.closed = true
	return nil
}
