package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cam3ron2/classroom-stats/internal/config"
	"github.com/cam3ron2/classroom-stats/internal/exporter"
	"github.com/cam3ron2/classroom-stats/internal/health"
	"github.com/cam3ron2/classroom-stats/internal/roster"
	"github.com/cam3ron2/classroom-stats/internal/stats"
	"github.com/cam3ron2/classroom-stats/internal/store"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// GroupScraper builds one record per roster group. *scrape.Aggregator implements it.
type GroupScraper interface {
	ScrapeAll(ctx context.Context, groups []roster.Group) []stats.RepoStats
}

// SnapshotWriter persists a snapshot locally. *store.FileStore implements it.
type SnapshotWriter interface {
	Write(snapshot store.Snapshot) (string, error)
}

// SnapshotPublisher publishes a snapshot as a named dataset. *store.RedisPublisher implements it.
type SnapshotPublisher interface {
	Publish(ctx context.Context, datasetID string, snapshot store.Snapshot) error
}

// RuntimeDeps are the collaborators of a Runtime. Scraper and Files are
// needed to scrape; Reader is needed to serve. The rest are optional.
type RuntimeDeps struct {
	Scraper   GroupScraper
	Files     SnapshotWriter
	Publisher SnapshotPublisher
	Reader    exporter.SnapshotReader
	// HubPing reports dataset hub reachability for health checks.
	HubPing func(ctx context.Context) error
	Logger  *zap.Logger
}

// ScrapeOptions controls one scrape run.
type ScrapeOptions struct {
	PushToHub bool
	DatasetID string
}

// ScrapeResult summarizes one scrape run.
type ScrapeResult struct {
	Path       string
	Groups     int
	Records    int
	Accessible int
	Published  bool
}

// Skipped is the number of groups left out after an aggregation failure.
func (r ScrapeResult) Skipped() int {
	return r.Groups - r.Records
}

// Runtime is the application runtime orchestrator.
type Runtime struct {
	cfg       *config.Config
	scraper   GroupScraper
	files     SnapshotWriter
	publisher SnapshotPublisher
	reader    exporter.SnapshotReader
	hubPing   func(ctx context.Context) error
	evaluator *health.StatusEvaluator
	logger    *zap.Logger

	// Now is injected for deterministic tests.
	Now func() time.Time
}

// NewRuntime creates a runtime instance.
func NewRuntime(cfg *config.Config, deps RuntimeDeps) *Runtime {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{
		cfg:       cfg,
		scraper:   deps.Scraper,
		files:     deps.Files,
		publisher: deps.Publisher,
		reader:    deps.Reader,
		hubPing:   deps.HubPing,
		evaluator: health.NewStatusEvaluator(),
		logger:    logger,
		Now:       time.Now,
	}
}

// RunScrape loads the roster, scrapes every group in order, writes the
// snapshot files and optionally publishes the snapshot to the dataset hub.
func (r *Runtime) RunScrape(ctx context.Context, opts ScrapeOptions) (ScrapeResult, error) {
	if r.scraper == nil || r.files == nil {
		return ScrapeResult{}, fmt.Errorf("scrape runtime is not configured")
	}
	if opts.PushToHub && r.publisher == nil {
		return ScrapeResult{}, fmt.Errorf("push to hub requested but hub.redis_addr is not configured")
	}

	start := time.Now()
	groups, err := roster.LoadFile(r.cfg.Scrape.RosterPath)
	if err != nil {
		return ScrapeResult{}, fmt.Errorf("load roster: %w", err)
	}
	r.logger.Info("scrape run started",
		zap.String("roster", r.cfg.Scrape.RosterPath),
		zap.Int("groups", len(groups)),
	)

	records := r.scraper.ScrapeAll(ctx, groups)
	if err := ctx.Err(); err != nil {
		return ScrapeResult{}, fmt.Errorf("scrape interrupted: %w", err)
	}

	result := ScrapeResult{Groups: len(groups), Records: len(records)}
	for _, record := range records {
		if record.Accessible() {
			result.Accessible++
		}
	}

	snapshot := store.Snapshot{TakenAt: r.Now().UTC(), Records: records}
	result.Path, err = r.files.Write(snapshot)
	if err != nil {
		return result, fmt.Errorf("write snapshot: %w", err)
	}

	if opts.PushToHub {
		if err := r.publisher.Publish(ctx, opts.DatasetID, snapshot); err != nil {
			return result, fmt.Errorf("publish snapshot: %w", err)
		}
		result.Published = true
		r.logger.Info("snapshot published", zap.String("dataset", opts.DatasetID), zap.String("snapshot", snapshot.Name()))
	}

	r.logger.Info("scrape run completed",
		zap.Int("groups", result.Groups),
		zap.Int("records", result.Records),
		zap.Int("accessible", result.Accessible),
		zap.Int("skipped", result.Skipped()),
		zap.String("path", result.Path),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// CurrentStatus returns current health status.
func (r *Runtime) CurrentStatus(ctx context.Context) health.Status {
	input := health.Input{}
	if r.reader != nil {
		records, err := r.reader.Latest(ctx)
		input.SnapshotAvailable = err == nil
		input.SnapshotRecords = len(records)
	}
	if r.hubPing != nil {
		input.HubConfigured = true
		input.HubHealthy = r.hubPing(ctx) == nil
	}
	return r.evaluator.Evaluate(input)
}

// Handler returns the combined HTTP handler of the leaderboard server.
func (r *Runtime) Handler() http.Handler {
	return NewHTTPHandler(
		exporter.NewOpenMetricsHandler(r.reader),
		NewStatsHandler(r.reader),
		health.NewHandler(r),
	)
}

// Serve runs the leaderboard server on addr until ctx is cancelled.
func (r *Runtime) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		r.logger.Info("http server starting", zap.String("addr", addr))
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			serverErrCh <- serveErr
		}
		close(serverErrCh)
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case serveErr := <-serverErrCh:
		if serveErr != nil {
			return fmt.Errorf("http server failed: %w", serveErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	r.logger.Info("shutdown complete")
	return nil
}
