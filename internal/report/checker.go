// Package report counts warnings produced by the course report checker.
package report

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/go-github/v75/github"
	"go.uber.org/zap"
)

const (
	scriptFileName = "report.py"
	reportFileName = "README.md"
	warningMarker  = "WARNING"
)

// ContentsGetter downloads one file from a repository. *github.RepositoriesService implements it.
type ContentsGetter interface {
	GetContents(
		ctx context.Context,
		owner, repo, path string,
		opts *github.RepositoryContentGetOptions,
	) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error)
}

// Ref names the repository whose report is checked.
type Ref struct {
	Owner string
	Repo  string
}

// Result is the checker outcome. Warnings is nil when the report could not be checked.
type Result struct {
	Warnings *int
	Reason   string
}

// Config configures a Checker.
type Config struct {
	// CheckerRepo is the owner/repo hosting the checker script.
	CheckerRepo string
	CheckerPath string
	ReportPath  string
	Python      string
	// TempDir is the parent of per-check working directories; empty uses os.TempDir.
	TempDir string
}

// Checker downloads the checker script and a group's report and counts the
// WARNING lines the script prints to stderr.
type Checker struct {
	contents ContentsGetter
	runner   ProcessRunner
	cfg      Config
	owner    string
	repo     string
	logger   *zap.Logger

	mu     sync.Mutex
	script []byte
}

// NewChecker creates a report checker.
func NewChecker(contents ContentsGetter, runner ProcessRunner, cfg Config, logger *zap.Logger) (*Checker, error) {
	if contents == nil {
		return nil, fmt.Errorf("contents getter is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("process runner is required")
	}
	owner, repo, ok := strings.Cut(strings.TrimSpace(cfg.CheckerRepo), "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("checker repo %q must be owner/repo", cfg.CheckerRepo)
	}
	if cfg.CheckerPath == "" {
		cfg.CheckerPath = "reports/report.py"
	}
	if cfg.ReportPath == "" {
		cfg.ReportPath = "reports/README.md"
	}
	if cfg.Python == "" {
		cfg.Python = "python"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Checker{
		contents: contents,
		runner:   runner,
		cfg:      cfg,
		owner:    owner,
		repo:     repo,
		logger:   logger,
	}, nil
}

// Check runs the checker against ref's report. It never returns an error;
// every failure is folded into a nil Warnings with a Reason.
func (c *Checker) Check(ctx context.Context, ref Ref) Result {
	script, err := c.checkerScript(ctx)
	if err != nil {
		return failed("download checker script", err)
	}

	report, err := c.download(ctx, ref.Owner, ref.Repo, c.cfg.ReportPath)
	if err != nil {
		return failed("download report", err)
	}

	dir, err := os.MkdirTemp(c.cfg.TempDir, "report-check-*")
	if err != nil {
		return failed("create work dir", err)
	}
	defer func() {
		if removeErr := os.RemoveAll(dir); removeErr != nil {
			c.logger.Warn("remove report work dir failed", zap.String("dir", dir), zap.Error(removeErr))
		}
	}()

	if err := os.WriteFile(filepath.Join(dir, scriptFileName), script, 0o600); err != nil {
		return failed("write checker script", err)
	}
	if err := os.WriteFile(filepath.Join(dir, reportFileName), report, 0o600); err != nil {
		return failed("write report", err)
	}

	result, err := c.runner.Run(ctx, dir, c.cfg.Python, scriptFileName, "check")
	if err != nil {
		return failed("run checker", err)
	}
	if result.ExitCode != 0 {
		return Result{Reason: fmt.Sprintf("checker exited with status %d", result.ExitCode)}
	}

	warnings := CountWarnings(string(result.Stderr))
	return Result{Warnings: &warnings}
}

// CountWarnings counts lines containing WARNING.
func CountWarnings(output string) int {
	count := 0
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, warningMarker) {
			count++
		}
	}
	return count
}

// checkerScript downloads the checker once; failures are retried on the next call.
func (c *Checker) checkerScript(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.script != nil {
		return c.script, nil
	}
	script, err := c.download(ctx, c.owner, c.repo, c.cfg.CheckerPath)
	if err != nil {
		return nil, err
	}
	c.script = script
	return script, nil
}

func (c *Checker) download(ctx context.Context, owner, repo, path string) ([]byte, error) {
	file, _, resp, err := c.contents.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s/%s:%s not found", owner, repo, path)
		}
		return nil, err
	}
	if file == nil {
		return nil, fmt.Errorf("%s/%s:%s is not a file", owner, repo, path)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return []byte(content), nil
}

func failed(step string, err error) Result {
	return Result{Reason: step + ": " + err.Error()}
}
