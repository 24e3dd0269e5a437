package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/cam3ron2/classroom-stats/internal/config"
	"github.com/cam3ron2/classroom-stats/internal/stats"
	"github.com/cam3ron2/classroom-stats/internal/store"
)

func TestNewHubBackendFromConfig(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		cfg     *config.Config
		wantNil bool
		wantErr bool
	}{
		{name: "nil_config", cfg: nil, wantNil: true, wantErr: true},
		{name: "hub_not_configured", cfg: config.Default(), wantNil: true},
		{
			name: "blank_address",
			cfg: func() *config.Config {
				cfg := config.Default()
				cfg.Hub.RedisAddr = "   "
				return cfg
			}(),
			wantNil: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			backend, err := NewHubBackendFromConfig(tc.cfg)
			if (err != nil) != tc.wantErr {
				t.Fatalf("NewHubBackendFromConfig() error = %v, wantErr %t", err, tc.wantErr)
			}
			if (backend == nil) != tc.wantNil {
				t.Fatalf("NewHubBackendFromConfig() = %v, wantNil %t", backend, tc.wantNil)
			}
		})
	}
}

func TestHubBackendPublishAndRead(t *testing.T) {
	t.Parallel()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Hub.RedisAddr = server.Addr()
	backend, err := NewHubBackendFromConfig(cfg)
	if err != nil || backend == nil {
		t.Fatalf("NewHubBackendFromConfig() = %v, %v", backend, err)
	}
	t.Cleanup(func() { _ = backend.Close() })

	if err := backend.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() unexpected error: %v", err)
	}

	reader := backend.DatasetReader("course/repo-stats")
	if _, err := reader.Latest(context.Background()); !errors.Is(err, store.ErrNoSnapshot) {
		t.Fatalf("Latest() before publish error = %v, want ErrNoSnapshot", err)
	}

	snapshot := store.Snapshot{
		TakenAt: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		Records: []stats.RepoStats{stats.Inaccessible(4, 2)},
	}
	if err := backend.Publisher.Publish(context.Background(), "course/repo-stats", snapshot); err != nil {
		t.Fatalf("Publish() unexpected error: %v", err)
	}

	records, err := reader.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest() unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].GroupNumber != 4 {
		t.Fatalf("Latest() = %+v", records)
	}
	if !server.Exists("classroom-stats:course/repo-stats:latest") {
		t.Fatalf("hub namespace not applied; keys = %v", server.Keys())
	}

	server.Close()
	if err := backend.Ping(context.Background()); err == nil {
		t.Fatalf("Ping() after hub shutdown expected error")
	}
}

func TestHubBackendNilSafety(t *testing.T) {
	t.Parallel()

	var backend *HubBackend
	if err := backend.Ping(context.Background()); err == nil {
		t.Fatalf("Ping() on nil backend expected error")
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("Close() on nil backend = %v", err)
	}
}
