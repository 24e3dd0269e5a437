// Package store persists statistics snapshots to disk and publishes them to Redis.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cam3ron2/classroom-stats/internal/stats"
)

const (
	// LatestFileName is the stable name the newest snapshot is always written to.
	LatestFileName = "repo_stats.json"

	snapshotPrefix     = "repo_stats_"
	snapshotTimeLayout = "2006_01_02_15_04_05"
)

// ErrNoSnapshot is returned when no snapshot has been written yet.
var ErrNoSnapshot = errors.New("no snapshot available")

// Snapshot is the record list of one scrape run, in roster order.
type Snapshot struct {
	TakenAt time.Time
	Records []stats.RepoStats
}

// Name returns the timestamped file name of the snapshot. The timestamp is
// rendered in UTC so names sort the same on every host.
func (s Snapshot) Name() string {
	return snapshotPrefix + s.TakenAt.UTC().Format(snapshotTimeLayout) + ".json"
}

// MarshalRecords encodes the record list. A nil list encodes as [].
func (s Snapshot) MarshalRecords() ([]byte, error) {
	records := s.Records
	if records == nil {
		records = []stats.RepoStats{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return payload, nil
}

// FileStore writes snapshots as JSON files into one directory.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

// NewFileStore creates a file store rooted at dir. An empty dir means the working directory.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = "."
	}
	return &FileStore{dir: dir}
}

// Dir returns the output directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Write stores snapshot under its timestamped name and replaces the latest
// file with the same content. It returns the timestamped path.
func (s *FileStore) Write(snapshot Snapshot) (string, error) {
	if snapshot.TakenAt.IsZero() {
		return "", fmt.Errorf("snapshot time is required")
	}
	payload, err := snapshot.MarshalRecords()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	stamped := filepath.Join(s.dir, snapshot.Name())
	if err := writeFileAtomic(stamped, payload); err != nil {
		return "", err
	}
	if err := writeFileAtomic(filepath.Join(s.dir, LatestFileName), payload); err != nil {
		return "", err
	}
	return stamped, nil
}

// LoadLatest reads the latest snapshot records.
func (s *FileStore) LoadLatest() ([]stats.RepoStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, err := os.ReadFile(filepath.Join(s.dir, LatestFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read latest snapshot: %w", err)
	}

	var records []stats.RepoStats
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("decode latest snapshot: %w", err)
	}
	return records, nil
}

// Latest adapts LoadLatest to context-aware readers.
func (s *FileStore) Latest(context.Context) ([]stats.RepoStats, error) {
	return s.LoadLatest()
}

func writeFileAtomic(path string, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".repo_stats-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
