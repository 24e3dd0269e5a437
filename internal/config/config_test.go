package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadAndValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		yaml       string
		wantErr    bool
		errSubstrs []string
		check      func(t *testing.T, cfg *Config)
	}{
		{
			name: "full_configuration",
			yaml: `
log_level: "debug"
github:
  api_base_url: "https://github.example.com/api/v3"
  web_base_url: "https://github.example.com/"
  request_timeout: "20s"
  app:
    app_id: 11
    installation_id: 22
    private_key_path: "/etc/classroom-stats/key.pem"
scrape:
  roster_path: "rosters/2025.csv"
  output_dir: "out"
  min_delta: "1w"
  max_delta: "3w"
  dedupe_pr_commits: true
  page_size: 50
report:
  enabled: true
  checker_repo: "course/mlops"
  checker_path: "reports/report.py"
  report_path: "reports/README.md"
  python: "python3"
hub:
  redis_addr: "redis:6379"
  redis_db: 2
  namespace: "course"
server:
  listen_addr: ":9090"
clone:
  base_dir: "/tmp/repos"
telemetry:
  otel_enabled: true
  otel_trace_mode: "Detailed"
  otel_trace_sample_ratio: 0.5
`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.LogLevel != "debug" {
					t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
				}
				if cfg.GitHub.WebBaseURL != "https://github.example.com" {
					t.Fatalf("WebBaseURL = %q, want trailing slash trimmed", cfg.GitHub.WebBaseURL)
				}
				if cfg.GitHub.RequestTimeout != 20*time.Second {
					t.Fatalf("RequestTimeout = %s, want 20s", cfg.GitHub.RequestTimeout)
				}
				if cfg.GitHub.App == nil || cfg.GitHub.App.InstallationID != 22 {
					t.Fatalf("App = %#v, want installation 22", cfg.GitHub.App)
				}
				if cfg.Scrape.MinDelta != 7*24*time.Hour || cfg.Scrape.MaxDelta != 21*24*time.Hour {
					t.Fatalf("window = %s..%s, want 1w..3w", cfg.Scrape.MinDelta, cfg.Scrape.MaxDelta)
				}
				if !cfg.Scrape.DedupePRCommits || cfg.Scrape.PageSize != 50 {
					t.Fatalf("Scrape = %#v", cfg.Scrape)
				}
				if cfg.Report.Python != "python3" || cfg.Report.CheckerRepo != "course/mlops" {
					t.Fatalf("Report = %#v", cfg.Report)
				}
				if cfg.Hub.RedisDB != 2 || cfg.Hub.Namespace != "course" {
					t.Fatalf("Hub = %#v", cfg.Hub)
				}
				if cfg.Telemetry.OTELTraceMode != "detailed" {
					t.Fatalf("OTELTraceMode = %q, want detailed", cfg.Telemetry.OTELTraceMode)
				}
			},
		},
		{
			name: "empty_document_uses_defaults",
			yaml: ``,
			check: func(t *testing.T, cfg *Config) {
				want := Default()
				if cfg.LogLevel != want.LogLevel || cfg.Scrape != want.Scrape || cfg.Report != want.Report {
					t.Fatalf("cfg = %#v, want defaults %#v", cfg, want)
				}
			},
		},
		{
			name: "report_can_be_disabled",
			yaml: `
report:
  enabled: false
  checker_repo: "not-a-repo"
`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Report.Enabled {
					t.Fatalf("Report.Enabled = true, want false")
				}
			},
		},
		{
			name:       "invalid_log_level",
			yaml:       `log_level: "verbose"`,
			wantErr:    true,
			errSubstrs: []string{"log_level must be one of"},
		},
		{
			name: "window_inverted",
			yaml: `
scrape:
  min_delta: "3w"
  max_delta: "1w"
`,
			wantErr:    true,
			errSubstrs: []string{"scrape.max_delta must be >= scrape.min_delta"},
		},
		{
			name: "collects_every_violation",
			yaml: `
github:
  app:
    app_id: 0
scrape:
  page_size: 500
report:
  checker_repo: "no-slash"
telemetry:
  otel_trace_mode: "loud"
  otel_trace_sample_ratio: 2
`,
			wantErr: true,
			errSubstrs: []string{
				"github.app.app_id must be > 0",
				"github.app.installation_id must be > 0",
				"github.app.private_key_path is required",
				"scrape.page_size must be between 1 and 100",
				"report.checker_repo must be owner/repo",
				"telemetry.otel_trace_mode must be one of",
				"telemetry.otel_trace_sample_ratio must be between 0 and 1",
			},
		},
		{
			name:       "unknown_field_rejected",
			yaml:       `orgs: []`,
			wantErr:    true,
			errSubstrs: []string{"unmarshal yaml"},
		},
		{
			name: "bad_duration_unit",
			yaml: `
scrape:
  min_delta: "3 fortnights"
`,
			wantErr:    true,
			errSubstrs: []string{"invalid unit"},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := Load(strings.NewReader(tc.yaml))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Load() expected error, got nil")
				}
				for _, substr := range tc.errSubstrs {
					if !strings.Contains(err.Error(), substr) {
						t.Fatalf("Load() error %q missing %q", err.Error(), substr)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if tc.check != nil {
				tc.check(t, cfg)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() unexpected error: %v", err)
	}
	if cfg.Scrape.MinDelta != 7*24*time.Hour || cfg.Scrape.MaxDelta != 21*24*time.Hour {
		t.Fatalf("scrape window = %s..%s, want 1w..3w", cfg.Scrape.MinDelta, cfg.Scrape.MaxDelta)
	}
	if !cfg.Report.Enabled || cfg.Report.ReportPath != "reports/README.md" {
		t.Fatalf("Report = %#v", cfg.Report)
	}
	if cfg.Scrape.DedupePRCommits {
		t.Fatalf("DedupePRCommits default = true, want false")
	}
	if cfg.Clone.BaseDir != "cloned_repos" || cfg.Scrape.RosterPath != "group_info.csv" {
		t.Fatalf("paths = %q/%q", cfg.Clone.BaseDir, cfg.Scrape.RosterPath)
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: warn\n"), 0o600); err != nil {
		t.Fatalf("os.WriteFile() unexpected error: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() unexpected error: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want warn", cfg.LogLevel)
	}

	if cfg, err := LoadFile(""); err != nil || cfg.LogLevel != "info" {
		t.Fatalf("LoadFile(\"\") = %v, %v; want defaults", cfg, err)
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("LoadFile(missing) expected error")
	}
}

func TestLoadNilReader(t *testing.T) {
	t.Parallel()

	if _, err := Load(nil); err == nil {
		t.Fatalf("Load(nil) expected error")
	}
}

func TestParseFlexibleDuration(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{input: "90s", want: 90 * time.Second},
		{input: "3d", want: 72 * time.Hour},
		{input: "1w", want: 7 * 24 * time.Hour},
		{input: "0.5w", want: 84 * time.Hour},
		{input: "", want: 0},
		{input: "xw", wantErr: true},
		{input: "5y", wantErr: true},
	}

	for _, tc := range testCases {
		got, err := parseFlexibleDuration(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseFlexibleDuration(%q) expected error", tc.input)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseFlexibleDuration(%q) unexpected error: %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("parseFlexibleDuration(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestResolveCredential(t *testing.T) {
	t.Parallel()

	env := func(values map[string]string) func(string) (string, bool) {
		return func(key string) (string, bool) {
			value, ok := values[key]
			return value, ok
		}
	}

	testCases := []struct {
		name       string
		cfg        *Config
		env        map[string]string
		wantKind   CredentialKind
		wantToken  string
		wantSource string
		wantErr    bool
	}{
		{
			name:       "gh_token_wins",
			cfg:        Default(),
			env:        map[string]string{"GH_TOKEN": "first", "GITHUB_TOKEN": "second"},
			wantKind:   CredentialToken,
			wantToken:  "first",
			wantSource: "GH_TOKEN",
		},
		{
			name:       "falls_back_to_github_token",
			cfg:        Default(),
			env:        map[string]string{"GH_TOKEN": "  ", "GITHUB_TOKEN": "second"},
			wantKind:   CredentialToken,
			wantToken:  "second",
			wantSource: "GITHUB_TOKEN",
		},
		{
			name: "app_configuration",
			cfg: func() *Config {
				cfg := Default()
				cfg.GitHub.App = &GitHubAppConfig{AppID: 1, InstallationID: 2, PrivateKeyPath: "k.pem"}
				return cfg
			}(),
			wantKind: CredentialApp,
		},
		{
			name:    "missing",
			cfg:     Default(),
			env:     map[string]string{},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ResolveCredential(tc.cfg, env(tc.env))
			if tc.wantErr {
				var missing *MissingCredentialError
				if !errors.As(err, &missing) {
					t.Fatalf("ResolveCredential() error = %v, want *MissingCredentialError", err)
				}
				if !strings.Contains(err.Error(), "GH_TOKEN, GITHUB_TOKEN") {
					t.Fatalf("error = %q, want checked variables listed", err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveCredential() unexpected error: %v", err)
			}
			if got.Kind != tc.wantKind || got.Token != tc.wantToken || got.Source != tc.wantSource {
				t.Fatalf("ResolveCredential() = %#v", got)
			}
		})
	}
}
