package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// SnapshotStore persists waiting queues as a single JSON file using atomic
// write-replace: the snapshot is written to a temp file in the same directory
// and renamed over the target, so a crash mid-write never leaves a partial
// file behind.
type SnapshotStore struct {
	mu   sync.Mutex
	path string
}

func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// LoadQueues reads the last snapshot. A missing file is an empty store, not
// an error.
func (s *SnapshotStore) LoadQueues(_ context.Context) (map[string][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot read: %w", err)
	}

	queues := map[string][]string{}
	if err := json.Unmarshal(raw, &queues); err != nil {
		return nil, fmt.Errorf("snapshot parse %s: %w", s.path, err)
	}
	return queues, nil
}

func (s *SnapshotStore) SaveQueues(_ context.Context, queues map[string][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.MarshalIndent(queues, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".queues-*.json")
	if err != nil {
		return fmt.Errorf("snapshot tmp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("snapshot replace: %w", err)
	}
	return nil
}
