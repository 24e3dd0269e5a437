package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cam3ron2/classroom-stats/internal/stats"
)

const defaultNamespace = "classroom-stats"

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

// RedisPublisherConfig configures the Redis dataset publisher.
type RedisPublisherConfig struct {
	Namespace string
}

// RedisPublisher publishes snapshots as named datasets in Redis.
//
// For dataset d under namespace ns it maintains:
//
//	ns:d:latest     the full JSON record list
//	ns:d:groups     hash of group number to record JSON
//	ns:d:snapshots  set of published snapshot names
type RedisPublisher struct {
	client    redisCommander
	closeFn   func() error
	namespace string
}

// NewRedisPublisher creates a publisher over client.
func NewRedisPublisher(client redis.UniversalClient, cfg RedisPublisherConfig) *RedisPublisher {
	closeFn := func() error { return nil }
	if client != nil {
		closeFn = client.Close
	}
	return newRedisPublisherFromCommander(client, closeFn, cfg)
}

func newRedisPublisherFromCommander(client redisCommander, closeFn func() error, cfg RedisPublisherConfig) *RedisPublisher {
	namespace := strings.TrimSpace(cfg.Namespace)
	if namespace == "" {
		namespace = defaultNamespace
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return &RedisPublisher{
		client:    client,
		closeFn:   closeFn,
		namespace: namespace,
	}
}

// Close closes the underlying Redis client.
func (p *RedisPublisher) Close() error {
	if p == nil || p.closeFn == nil {
		return nil
	}
	return p.closeFn()
}

// Publish replaces the dataset contents with snapshot and records its name.
func (p *RedisPublisher) Publish(ctx context.Context, datasetID string, snapshot Snapshot) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("redis publisher is not initialized")
	}
	if err := validateDatasetID(datasetID); err != nil {
		return err
	}
	if snapshot.TakenAt.IsZero() {
		return fmt.Errorf("snapshot time is required")
	}

	payload, err := snapshot.MarshalRecords()
	if err != nil {
		return err
	}

	groupFields := make(map[string]any, len(snapshot.Records))
	for _, record := range snapshot.Records {
		encoded, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal group %d: %w", record.GroupNumber, err)
		}
		groupFields[strconv.Itoa(record.GroupNumber)] = string(encoded)
	}

	if err := p.client.Set(ctx, p.key(datasetID, "latest"), payload, 0).Err(); err != nil {
		return fmt.Errorf("write latest snapshot: %w", err)
	}
	groupsKey := p.key(datasetID, "groups")
	if err := p.client.Del(ctx, groupsKey).Err(); err != nil {
		return fmt.Errorf("clear group records: %w", err)
	}
	if len(groupFields) > 0 {
		if err := p.client.HSet(ctx, groupsKey, groupFields).Err(); err != nil {
			return fmt.Errorf("write group records: %w", err)
		}
	}
	if err := p.client.SAdd(ctx, p.key(datasetID, "snapshots"), snapshot.Name()).Err(); err != nil {
		return fmt.Errorf("index snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recently published record list of datasetID.
func (p *RedisPublisher) Latest(ctx context.Context, datasetID string) ([]stats.RepoStats, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("redis publisher is not initialized")
	}
	if err := validateDatasetID(datasetID); err != nil {
		return nil, err
	}

	raw, err := p.client.Get(ctx, p.key(datasetID, "latest")).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read latest snapshot: %w", err)
	}

	var records []stats.RepoStats
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode latest snapshot: %w", err)
	}
	return records, nil
}

// Snapshots lists the published snapshot names of datasetID in ascending order.
func (p *RedisPublisher) Snapshots(ctx context.Context, datasetID string) ([]string, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("redis publisher is not initialized")
	}
	if err := validateDatasetID(datasetID); err != nil {
		return nil, err
	}

	names, err := p.client.SMembers(ctx, p.key(datasetID, "snapshots")).Result()
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (p *RedisPublisher) key(datasetID, suffix string) string {
	return p.namespace + ":" + datasetID + ":" + suffix
}

func validateDatasetID(datasetID string) error {
	if strings.TrimSpace(datasetID) == "" {
		return fmt.Errorf("dataset id is required")
	}
	if strings.ContainsAny(datasetID, " \t\n:") {
		return fmt.Errorf("dataset id %q must not contain whitespace or ':'", datasetID)
	}
	return nil
}
