package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

var validTraceModes = []string{"off", "errors", "sampled", "detailed"}

// Config is the root application configuration.
type Config struct {
	LogLevel  string
	GitHub    GitHubConfig
	Scrape    ScrapeConfig
	Report    ReportConfig
	Hub       HubConfig
	Server    ServerConfig
	Clone     CloneConfig
	Telemetry TelemetryConfig
}

// GitHubConfig configures GitHub API and web access.
type GitHubConfig struct {
	APIBaseURL     string
	WebBaseURL     string
	RequestTimeout time.Duration
	// App switches authentication to a GitHub App installation when set.
	App *GitHubAppConfig
}

// GitHubAppConfig holds GitHub App installation credentials.
type GitHubAppConfig struct {
	AppID          int64  `yaml:"app_id"`
	InstallationID int64  `yaml:"installation_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

// ScrapeConfig configures the metrics scrape.
type ScrapeConfig struct {
	RosterPath string
	OutputDir  string
	// MinDelta and MaxDelta bound the activity matrix window.
	MinDelta        time.Duration
	MaxDelta        time.Duration
	DedupePRCommits bool
	PageSize        int
}

// ReportConfig configures the external report checker.
type ReportConfig struct {
	Enabled     bool   `yaml:"enabled"`
	CheckerRepo string `yaml:"checker_repo"`
	CheckerPath string `yaml:"checker_path"`
	ReportPath  string `yaml:"report_path"`
	Python      string `yaml:"python"`
}

// HubConfig configures the Redis dataset hub.
type HubConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Namespace     string `yaml:"namespace"`
}

// ServerConfig contains leaderboard HTTP server settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// CloneConfig configures bulk cloning.
type CloneConfig struct {
	BaseDir string `yaml:"base_dir"`
}

// TelemetryConfig configures OpenTelemetry behavior.
type TelemetryConfig struct {
	OTELEnabled          bool    `yaml:"otel_enabled"`
	OTELTraceMode        string  `yaml:"otel_trace_mode"`
	OTELTraceSampleRatio float64 `yaml:"otel_trace_sample_ratio"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{Report: ReportConfig{Enabled: true}}
	applyDefaults(cfg)
	return cfg
}

// LoadFile reads configuration from a YAML file. An empty path yields Default().
func LoadFile(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	return Load(file)
}

// Load reads configuration from YAML and validates the result.
func Load(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("config reader is nil")
	}

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	raw := rawConfig{Report: rawReport{Enabled: boolPtr(true)}}
	if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg := raw.toConfig()
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates configuration values.
func (c *Config) Validate() error {
	var errs []string

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errs = append(errs, "log_level must be one of debug|info|warn|error")
	}
	if c.GitHub.RequestTimeout <= 0 {
		errs = append(errs, "github.request_timeout must be > 0")
	}
	if app := c.GitHub.App; app != nil {
		if app.AppID <= 0 {
			errs = append(errs, "github.app.app_id must be > 0")
		}
		if app.InstallationID <= 0 {
			errs = append(errs, "github.app.installation_id must be > 0")
		}
		if strings.TrimSpace(app.PrivateKeyPath) == "" {
			errs = append(errs, "github.app.private_key_path is required")
		}
	}

	if c.Scrape.MinDelta <= 0 {
		errs = append(errs, "scrape.min_delta must be > 0")
	}
	if c.Scrape.MaxDelta < c.Scrape.MinDelta {
		errs = append(errs, "scrape.max_delta must be >= scrape.min_delta")
	}
	if c.Scrape.PageSize < 1 || c.Scrape.PageSize > 100 {
		errs = append(errs, "scrape.page_size must be between 1 and 100")
	}

	if c.Report.Enabled {
		if owner, repo, ok := strings.Cut(c.Report.CheckerRepo, "/"); !ok || owner == "" || repo == "" {
			errs = append(errs, "report.checker_repo must be owner/repo")
		}
	}

	if c.Hub.RedisDB < 0 {
		errs = append(errs, "hub.redis_db must be >= 0")
	}

	if !slices.Contains(validTraceModes, c.Telemetry.OTELTraceMode) {
		errs = append(errs, "telemetry.otel_trace_mode must be one of off|errors|sampled|detailed")
	}
	if c.Telemetry.OTELTraceSampleRatio < 0 || c.Telemetry.OTELTraceSampleRatio > 1 {
		errs = append(errs, "telemetry.otel_trace_sample_ratio must be between 0 and 1")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.GitHub.APIBaseURL == "" {
		cfg.GitHub.APIBaseURL = "https://api.github.com"
	}
	if cfg.GitHub.WebBaseURL == "" {
		cfg.GitHub.WebBaseURL = "https://github.com"
	}
	if cfg.GitHub.RequestTimeout == 0 {
		cfg.GitHub.RequestTimeout = 100 * time.Second
	}
	if cfg.Scrape.RosterPath == "" {
		cfg.Scrape.RosterPath = "group_info.csv"
	}
	if cfg.Scrape.OutputDir == "" {
		cfg.Scrape.OutputDir = "."
	}
	if cfg.Scrape.MinDelta == 0 {
		cfg.Scrape.MinDelta = 7 * 24 * time.Hour
	}
	if cfg.Scrape.MaxDelta == 0 {
		cfg.Scrape.MaxDelta = 21 * 24 * time.Hour
	}
	if cfg.Scrape.PageSize == 0 {
		cfg.Scrape.PageSize = 100
	}
	if cfg.Report.CheckerRepo == "" {
		cfg.Report.CheckerRepo = "SkafteNicki/dtu_mlops"
	}
	if cfg.Report.CheckerPath == "" {
		cfg.Report.CheckerPath = "reports/report.py"
	}
	if cfg.Report.ReportPath == "" {
		cfg.Report.ReportPath = "reports/README.md"
	}
	if cfg.Report.Python == "" {
		cfg.Report.Python = "python"
	}
	if cfg.Hub.Namespace == "" {
		cfg.Hub.Namespace = "classroom-stats"
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Clone.BaseDir == "" {
		cfg.Clone.BaseDir = "cloned_repos"
	}
	if cfg.Telemetry.OTELTraceMode == "" {
		cfg.Telemetry.OTELTraceMode = "off"
	}
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind == 0 || strings.TrimSpace(value.Value) == "" {
		d.Duration = 0
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}

	parsed, err := parseFlexibleDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func parseFlexibleDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}

	if standard, err := time.ParseDuration(trimmed); err == nil {
		return standard, nil
	}

	if strings.HasSuffix(trimmed, "d") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "d"), 24)
	}
	if strings.HasSuffix(trimmed, "w") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "w"), 24*7)
	}

	return 0, fmt.Errorf("parse duration %q: invalid unit", raw)
}

func parseDurationWithMultiplier(numeric string, multiplierHours float64) (time.Duration, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(numeric), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration value %q: %w", numeric, err)
	}

	nanos := value * multiplierHours * float64(time.Hour)
	if nanos > math.MaxInt64 || nanos < math.MinInt64 {
		return 0, fmt.Errorf("parse duration value %q: out of range", numeric)
	}
	return time.Duration(nanos), nil
}

func boolPtr(v bool) *bool {
	return &v
}

type rawConfig struct {
	LogLevel  string          `yaml:"log_level"`
	GitHub    rawGitHub       `yaml:"github"`
	Scrape    rawScrape       `yaml:"scrape"`
	Report    rawReport       `yaml:"report"`
	Hub       HubConfig       `yaml:"hub"`
	Server    ServerConfig    `yaml:"server"`
	Clone     CloneConfig     `yaml:"clone"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type rawGitHub struct {
	APIBaseURL     string           `yaml:"api_base_url"`
	WebBaseURL     string           `yaml:"web_base_url"`
	RequestTimeout duration         `yaml:"request_timeout"`
	App            *GitHubAppConfig `yaml:"app"`
}

type rawScrape struct {
	RosterPath      string   `yaml:"roster_path"`
	OutputDir       string   `yaml:"output_dir"`
	MinDelta        duration `yaml:"min_delta"`
	MaxDelta        duration `yaml:"max_delta"`
	DedupePRCommits bool     `yaml:"dedupe_pr_commits"`
	PageSize        int      `yaml:"page_size"`
}

// rawReport keeps Enabled as a pointer so an omitted key stays enabled.
type rawReport struct {
	Enabled     *bool  `yaml:"enabled"`
	CheckerRepo string `yaml:"checker_repo"`
	CheckerPath string `yaml:"checker_path"`
	ReportPath  string `yaml:"report_path"`
	Python      string `yaml:"python"`
}

func (r rawConfig) toConfig() *Config {
	cfg := &Config{
		LogLevel: strings.ToLower(strings.TrimSpace(r.LogLevel)),
		GitHub: GitHubConfig{
			APIBaseURL:     strings.TrimSpace(r.GitHub.APIBaseURL),
			WebBaseURL:     strings.TrimRight(strings.TrimSpace(r.GitHub.WebBaseURL), "/"),
			RequestTimeout: r.GitHub.RequestTimeout.Duration,
			App:            r.GitHub.App,
		},
		Scrape: ScrapeConfig{
			RosterPath:      r.Scrape.RosterPath,
			OutputDir:       r.Scrape.OutputDir,
			MinDelta:        r.Scrape.MinDelta.Duration,
			MaxDelta:        r.Scrape.MaxDelta.Duration,
			DedupePRCommits: r.Scrape.DedupePRCommits,
			PageSize:        r.Scrape.PageSize,
		},
		Report: ReportConfig{
			Enabled:     r.Report.Enabled == nil || *r.Report.Enabled,
			CheckerRepo: strings.TrimSpace(r.Report.CheckerRepo),
			CheckerPath: r.Report.CheckerPath,
			ReportPath:  r.Report.ReportPath,
			Python:      r.Report.Python,
		},
		Hub:       r.Hub,
		Server:    r.Server,
		Clone:     r.Clone,
		Telemetry: r.Telemetry,
	}
	cfg.Telemetry.OTELTraceMode = strings.ToLower(strings.TrimSpace(cfg.Telemetry.OTELTraceMode))
	return cfg
}
