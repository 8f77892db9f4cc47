package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"currency-ledger/domain"
)

type SnapshotStore interface {
	SaveSnapshot(snapshot *domain.Snapshot) error

	GetLatestSnapshot() (snapshot *domain.Snapshot, found bool, err error)
}

type InMemorySnapshotStore struct {
	sync.RWMutex
	latest *domain.Snapshot
}

func NewInMemorySnapshotStore() *InMemorySnapshotStore {
	return &InMemorySnapshotStore{}
}

func (s *InMemorySnapshotStore) SaveSnapshot(snapshot *domain.Snapshot) error {
	if snapshot == nil {
		return errors.New("cannot save nil snapshot")
	}
	s.Lock()
	defer s.Unlock()

	snapshot.Timestamp = time.Now().UTC()
	s.latest = copySnapshot(snapshot)
	return nil
}

func (s *InMemorySnapshotStore) GetLatestSnapshot() (*domain.Snapshot, bool, error) {
	s.RLock()
	defer s.RUnlock()

	if s.latest == nil {
		return nil, false, nil
	}
	return copySnapshot(s.latest), true, nil
}

// FileSnapshotStore keeps the latest snapshot in a single JSON file, replaced
// atomically through a temp file.
type FileSnapshotStore struct {
	mu   sync.Mutex
	path string
}

func NewFileSnapshotStore(path string) (*FileSnapshotStore, error) {
	if path == "" {
		return nil, errors.New("snapshot path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create snapshot dir")
	}
	return &FileSnapshotStore{path: path}, nil
}

func (s *FileSnapshotStore) SaveSnapshot(snapshot *domain.Snapshot) error {
	if snapshot == nil {
		return errors.New("cannot save nil snapshot")
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "encode ledger snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write ledger snapshot temp file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist ledger snapshot")
	}
	return nil
}

func (s *FileSnapshotStore) GetLatestSnapshot() (*domain.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "read ledger snapshot")
	}
	if len(payload) == 0 {
		return nil, false, nil
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, false, errors.Wrap(err, "decode ledger snapshot")
	}
	return &snapshot, true, nil
}

func copySnapshot(snapshot *domain.Snapshot) *domain.Snapshot {
	stateCopy := make([]byte, len(snapshot.State))
	copy(stateCopy, snapshot.State)
	return &domain.Snapshot{
		Index:     snapshot.Index,
		State:     stateCopy,
		Timestamp: snapshot.Timestamp,
	}
}
