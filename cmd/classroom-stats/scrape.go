package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cam3ron2/classroom-stats/internal/app"
	"github.com/cam3ron2/classroom-stats/internal/config"
	"github.com/cam3ron2/classroom-stats/internal/githubapi"
	"github.com/cam3ron2/classroom-stats/internal/report"
	"github.com/cam3ron2/classroom-stats/internal/scrape"
	"github.com/cam3ron2/classroom-stats/internal/store"
)

const defaultHubRepoID = "your-username/repo-stats"

func newScrapeCommand(c *cli) *cobra.Command {
	opts := app.ScrapeOptions{}
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Collect metrics for every roster group and write a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.setup()
			if err != nil {
				return err
			}
			defer env.close()

			runtime, closeHub, err := c.buildScrapeRuntime(env, opts.PushToHub)
			if err != nil {
				return err
			}
			defer closeHub()

			result, err := runtime.RunScrape(cmd.Context(), opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.stdout, "wrote %s (%d groups, %d accessible, %d skipped)\n",
				result.Path, result.Records, result.Accessible, result.Skipped())
			if result.Published {
				_, _ = fmt.Fprintf(c.stdout, "published dataset %s\n", opts.DatasetID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.PushToHub, "push-to-hub", false, "also publish the snapshot to the dataset hub")
	cmd.Flags().StringVar(&opts.DatasetID, "hub-repo-id", defaultHubRepoID, "dataset identifier used with --push-to-hub")
	return cmd
}

// buildScrapeRuntime wires credential, GitHub clients, report checker and
// optional hub publisher into a runtime. The returned func closes the hub.
func (c *cli) buildScrapeRuntime(env *environment, pushToHub bool) (*app.Runtime, func(), error) {
	cfg := env.cfg
	noop := func() {}

	deps := app.RuntimeDeps{
		Files:  store.NewFileStore(cfg.Scrape.OutputDir),
		Logger: env.logger,
	}

	closeHub := noop
	if pushToHub {
		hub, err := app.NewHubBackendFromConfig(cfg)
		if err != nil {
			return nil, noop, fmt.Errorf("connect dataset hub: %w", err)
		}
		if hub == nil {
			return nil, noop, fmt.Errorf("--push-to-hub requires hub.redis_addr in the config file")
		}
		deps.Publisher = hub.Publisher
		closeHub = func() { _ = hub.Close() }
	}

	cred, err := config.ResolveCredential(cfg, c.lookupEnv)
	if err != nil {
		closeHub()
		return nil, noop, err
	}
	env.logger.Info("github credential resolved", zap.String("kind", string(cred.Kind)), zap.String("source", cred.Source))

	httpClient, err := scrape.NewHTTPClientFromCredential(cfg, cred)
	if err != nil {
		closeHub()
		return nil, noop, fmt.Errorf("build github http client: %w", err)
	}
	source, err := scrape.NewDataSourceFromConfig(cfg, httpClient)
	if err != nil {
		closeHub()
		return nil, noop, fmt.Errorf("build github data source: %w", err)
	}

	var checker scrape.ReportChecker
	if cfg.Report.Enabled {
		restClient, err := githubapi.NewGitHubRESTClient(httpClient, cfg.GitHub.APIBaseURL)
		if err != nil {
			closeHub()
			return nil, noop, fmt.Errorf("build github rest client: %w", err)
		}
		reportChecker, err := report.NewChecker(restClient.Client.Repositories, report.ExecRunner{}, report.Config{
			CheckerRepo: cfg.Report.CheckerRepo,
			CheckerPath: cfg.Report.CheckerPath,
			ReportPath:  cfg.Report.ReportPath,
			Python:      cfg.Report.Python,
		}, env.logger)
		if err != nil {
			closeHub()
			return nil, noop, fmt.Errorf("build report checker: %w", err)
		}
		checker = reportChecker
	}

	aggregator, err := scrape.NewAggregatorFromConfig(cfg, source, checker, env.logger)
	if err != nil {
		closeHub()
		return nil, noop, fmt.Errorf("build aggregator: %w", err)
	}
	deps.Scraper = aggregator

	return app.NewRuntime(cfg, deps), closeHub, nil
}
