package scrape

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/cam3ron2/classroom-stats/internal/config"
	"github.com/cam3ron2/classroom-stats/internal/githubapi"
)

// NewHTTPClientFromCredential builds the authenticated GitHub HTTP client for cred.
func NewHTTPClientFromCredential(cfg *config.Config, cred config.Credential) (*http.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	switch cred.Kind {
	case config.CredentialToken:
		return githubapi.NewTokenHTTPClient(cred.Token, cfg.GitHub.RequestTimeout)
	case config.CredentialApp:
		return githubapi.NewInstallationHTTPClient(githubapi.InstallationAuthConfig{
			AppID:          cred.App.AppID,
			InstallationID: cred.App.InstallationID,
			PrivateKeyPath: cred.App.PrivateKeyPath,
			Timeout:        cfg.GitHub.RequestTimeout,
			BaseTransport:  http.DefaultTransport,
		})
	default:
		return nil, fmt.Errorf("unsupported credential kind %q", cred.Kind)
	}
}

// NewDataSourceFromConfig builds the GitHub-backed data source. Probes share
// the authenticated transport; the first probe uses a non-redirecting copy.
func NewDataSourceFromConfig(cfg *config.Config, httpClient *http.Client) (*githubapi.DataClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if httpClient == nil {
		return nil, fmt.Errorf("http client is required")
	}

	dataClient, err := githubapi.NewDataClient(
		cfg.GitHub.APIBaseURL,
		githubapi.NewClient(httpClient),
		githubapi.NewClient(githubapi.NoRedirectClient(httpClient)),
	)
	if err != nil {
		return nil, fmt.Errorf("create data client: %w", err)
	}
	dataClient.SetPageSize(cfg.Scrape.PageSize)
	return dataClient, nil
}

// NewAggregatorFromConfig wires an Aggregator with the configured activity window.
func NewAggregatorFromConfig(cfg *config.Config, source RepositoryDataSource, checker ReportChecker, logger *zap.Logger) (*Aggregator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	return NewAggregator(source, AggregatorConfig{
		Window: ActivityWindow{
			MinDelta: cfg.Scrape.MinDelta,
			MaxDelta: cfg.Scrape.MaxDelta,
		},
		DedupePRCommits: cfg.Scrape.DedupePRCommits,
		Checker:         checker,
		Logger:          logger,
	})
}
