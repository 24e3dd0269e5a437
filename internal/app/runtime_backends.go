package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cam3ron2/classroom-stats/internal/config"
	"github.com/cam3ron2/classroom-stats/internal/stats"
	"github.com/cam3ron2/classroom-stats/internal/store"
)

const redisPingTimeout = 2 * time.Second

// HubBackend is the Redis-backed dataset hub: a publisher plus a reachability probe.
type HubBackend struct {
	Publisher *store.RedisPublisher
	client    redis.UniversalClient
}

// NewHubBackendFromConfig connects the dataset hub. It returns nil when no
// hub address is configured.
func NewHubBackendFromConfig(cfg *config.Config) (*HubBackend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	addr := strings.TrimSpace(cfg.Hub.RedisAddr)
	if addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Hub.RedisPassword,
		DB:       cfg.Hub.RedisDB,
	})
	return &HubBackend{
		Publisher: store.NewRedisPublisher(client, store.RedisPublisherConfig{Namespace: cfg.Hub.Namespace}),
		client:    client,
	}, nil
}

// Ping checks that the hub answers within a short deadline.
func (h *HubBackend) Ping(ctx context.Context) error {
	if h == nil || h.client == nil {
		return fmt.Errorf("hub is not configured")
	}
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	return h.client.Ping(pingCtx).Err()
}

// Close releases the hub connection.
func (h *HubBackend) Close() error {
	if h == nil || h.Publisher == nil {
		return nil
	}
	return h.Publisher.Close()
}

// DatasetReader adapts the hub's latest dataset to a snapshot reader.
func (h *HubBackend) DatasetReader(datasetID string) SnapshotReaderFunc {
	return func(ctx context.Context) ([]stats.RepoStats, error) {
		return h.Publisher.Latest(ctx, datasetID)
	}
}
