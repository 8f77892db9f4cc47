package store

import (
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"go.uber.org/zap"

	"currency-ledger/events"
)

const (
	DefaultWALDir   = "./wal/ledger"
	walSegmentLimit = 1000
	walMaxSegments  = 100
)

// WALJournal persists journal entries in a write-ahead log on disk. Each entry
// is keyed "<event type>:<index>".
type WALJournal struct {
	wal    *gowal.Wal
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewWALJournal opens or creates a WAL-backed journal under dir.
func NewWALJournal(dir string, logger *zap.Logger) (*WALJournal, error) {
	if dir == "" {
		dir = DefaultWALDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "ledger_",
		SegmentThreshold: walSegmentLimit,
		MaxSegments:      walMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init ledger WAL")
	}

	return &WALJournal{wal: wal, logger: logger}, nil
}

func (j *WALJournal) Append(event events.Event) (uint64, error) {
	if j == nil || j.wal == nil {
		return 0, errors.New("ledger journal is not initialized")
	}

	payload, err := events.Encode(event)
	if err != nil {
		return 0, errors.Wrap(err, "encode journal event")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	index := j.wal.CurrentIndex() + 1
	if err := j.wal.Write(index, entryKey(event.GetBase().Type, index), payload); err != nil {
		return 0, errors.Wrapf(err, "write journal entry %d", index)
	}
	return index, nil
}

func (j *WALJournal) Replay(after uint64, fn func(index uint64, event events.Event) error) error {
	if j == nil || j.wal == nil {
		return errors.New("ledger journal is not initialized")
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	replayed := 0
	for msg := range j.wal.Iterator() {
		eventType, idx, err := parseEntryKey(msg.Key)
		if err != nil {
			return errors.Wrapf(err, "journal entry %q", msg.Key)
		}
		if idx <= after {
			continue
		}
		event, err := events.Decode(eventType, msg.Value)
		if err != nil {
			return errors.Wrapf(err, "decode journal entry %d", idx)
		}
		if err := fn(idx, event); err != nil {
			return errors.Wrapf(err, "replay journal entry %d", idx)
		}
		replayed++
	}
	j.logger.Debug("ledger WAL replayed", zap.Uint64("after", after), zap.Int("entries", replayed))
	return nil
}

func entryKey(eventType events.EventType, index uint64) string {
	return string(eventType) + ":" + strconv.FormatUint(index, 10)
}

func parseEntryKey(key string) (events.EventType, uint64, error) {
	sep := strings.LastIndexByte(key, ':')
	if sep < 0 {
		return "", 0, errors.New("malformed journal key")
	}
	index, err := strconv.ParseUint(key[sep+1:], 10, 64)
	if err != nil {
		return "", 0, errors.Wrap(err, "malformed journal index")
	}
	return events.EventType(key[:sep]), index, nil
}

func (j *WALJournal) Close() error {
	if j == nil || j.wal == nil {
		return errors.New("ledger journal is not initialized")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Close()
}
