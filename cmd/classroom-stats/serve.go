package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cam3ron2/classroom-stats/internal/app"
	"github.com/cam3ron2/classroom-stats/internal/exporter"
	"github.com/cam3ron2/classroom-stats/internal/store"
)

type serveOptions struct {
	addr      string
	fromHub   bool
	datasetID string
}

func newServeCommand(c *cli) *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the latest snapshot as OpenMetrics and JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.setup()
			if err != nil {
				return err
			}
			defer env.close()

			deps, closeHub, err := buildServeDeps(env, opts)
			if err != nil {
				return err
			}
			defer closeHub()

			addr := env.cfg.Server.ListenAddr
			if strings.TrimSpace(opts.addr) != "" {
				addr = opts.addr
			}
			return app.NewRuntime(env.cfg, deps).Serve(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "override server.listen_addr")
	cmd.Flags().BoolVar(&opts.fromHub, "from-hub", false, "serve the dataset hub copy instead of the local snapshot")
	cmd.Flags().StringVar(&opts.datasetID, "hub-repo-id", defaultHubRepoID, "dataset identifier used with --from-hub")
	return cmd
}

// buildServeDeps picks the snapshot source and wires the hub health probe
// whenever a hub is configured.
func buildServeDeps(env *environment, opts serveOptions) (app.RuntimeDeps, func(), error) {
	deps := app.RuntimeDeps{Logger: env.logger}
	closeHub := func() {}

	hub, err := app.NewHubBackendFromConfig(env.cfg)
	if err != nil {
		return deps, closeHub, fmt.Errorf("connect dataset hub: %w", err)
	}
	if hub != nil {
		deps.HubPing = hub.Ping
		closeHub = func() { _ = hub.Close() }
	}

	var reader exporter.SnapshotReader = store.NewFileStore(env.cfg.Scrape.OutputDir)
	if opts.fromHub {
		if hub == nil {
			return deps, closeHub, fmt.Errorf("--from-hub requires hub.redis_addr in the config file")
		}
		reader = hub.DatasetReader(opts.datasetID)
		env.logger.Info("serving dataset hub snapshot", zap.String("dataset", opts.datasetID))
	} else {
		env.logger.Info("serving local snapshot", zap.String("dir", env.cfg.Scrape.OutputDir))
	}
	deps.Reader = exporter.NewCachedSnapshotReader(reader, exporter.CacheConfig{})
	return deps, closeHub, nil
}
