package exporter

import (
	"context"
	"sync"
	"time"

	"github.com/cam3ron2/classroom-stats/internal/stats"
)

const defaultRefreshInterval = 30 * time.Second

// CacheConfig configures the snapshot cache used by /metrics and /api/stats.
type CacheConfig struct {
	RefreshInterval time.Duration
	Now             func() time.Time
}

type cachedSnapshotReader struct {
	source          SnapshotReader
	refreshInterval time.Duration
	now             func() time.Time

	mu          sync.RWMutex
	initialized bool
	lastRefresh time.Time
	records     []stats.RepoStats
	err         error
}

// NewCachedSnapshotReader wraps source so it is re-read at most once per
// refresh interval. A failed refresh keeps serving the last good records.
func NewCachedSnapshotReader(source SnapshotReader, cfg CacheConfig) SnapshotReader {
	if source == nil {
		return &cachedSnapshotReader{}
	}
	if _, alreadyCached := source.(*cachedSnapshotReader); alreadyCached {
		return source
	}

	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	refreshInterval := cfg.RefreshInterval
	if refreshInterval <= 0 {
		refreshInterval = defaultRefreshInterval
	}

	return &cachedSnapshotReader{
		source:          source,
		refreshInterval: refreshInterval,
		now:             nowFn,
	}
}

func (c *cachedSnapshotReader) Latest(ctx context.Context) ([]stats.RepoStats, error) {
	if c == nil || c.source == nil {
		return nil, nil
	}
	c.refreshIfNeeded(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.records == nil && c.err != nil {
		return nil, c.err
	}
	return cloneRecords(c.records), nil
}

func (c *cachedSnapshotReader) refreshIfNeeded(ctx context.Context) {
	now := c.now()

	c.mu.RLock()
	if c.initialized && now.Sub(c.lastRefresh) < c.refreshInterval {
		c.mu.RUnlock()
		return
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized && now.Sub(c.lastRefresh) < c.refreshInterval {
		return
	}

	records, err := c.source.Latest(ctx)
	c.lastRefresh = now
	c.initialized = true
	c.err = err
	if err != nil {
		return
	}
	if records == nil {
		records = []stats.RepoStats{}
	}
	c.records = records
}

// cloneRecords copies the slice headers; records are never mutated after load.
func cloneRecords(records []stats.RepoStats) []stats.RepoStats {
	if records == nil {
		return nil
	}
	return append(make([]stats.RepoStats, 0, len(records)), records...)
}
