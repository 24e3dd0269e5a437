// Package clone materializes every group repository into a local directory tree.
package clone

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cam3ron2/classroom-stats/internal/report"
	"github.com/cam3ron2/classroom-stats/internal/roster"
)

// Outcome classifies what happened to one group repository.
type Outcome string

const (
	// OutcomeCloned means git clone succeeded.
	OutcomeCloned Outcome = "cloned"
	// OutcomeExisting means the target directory was already present.
	OutcomeExisting Outcome = "existing"
	// OutcomeFailed means the clone could not be completed.
	OutcomeFailed Outcome = "failed"
)

// Result is the per-group record of a CloneAll run.
type Result struct {
	Group   int
	Dir     string
	Outcome Outcome
	Err     error
}

// Summary counts outcomes of a CloneAll run.
type Summary struct {
	Results []Result
}

// Count returns the number of results with outcome.
func (s Summary) Count(outcome Outcome) int {
	n := 0
	for _, result := range s.Results {
		if result.Outcome == outcome {
			n++
		}
	}
	return n
}

// Config configures a Cloner.
type Config struct {
	BaseDir string
	// Git is the git executable; defaults to "git".
	Git string
}

// Cloner runs git clone for each roster group.
type Cloner struct {
	runner  report.ProcessRunner
	baseDir string
	git     string
	logger  *zap.Logger
}

// NewCloner creates a cloner.
func NewCloner(runner report.ProcessRunner, cfg Config, logger *zap.Logger) (*Cloner, error) {
	if runner == nil {
		return nil, fmt.Errorf("process runner is required")
	}
	baseDir := strings.TrimSpace(cfg.BaseDir)
	if baseDir == "" {
		return nil, fmt.Errorf("clone base directory is required")
	}
	git := strings.TrimSpace(cfg.Git)
	if git == "" {
		git = "git"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cloner{runner: runner, baseDir: baseDir, git: git, logger: logger}, nil
}

// CloneAll clones each group repository into base/group_{n}/{repo_name}.
// Existing directories are skipped and failures are logged, so the run always
// covers every group. Only a cancelled context stops it early.
func (c *Cloner) CloneAll(ctx context.Context, groups []roster.Group) Summary {
	summary := Summary{Results: make([]Result, 0, len(groups))}
	for _, group := range groups {
		if ctx.Err() != nil {
			c.logger.Warn("clone run interrupted", zap.Error(ctx.Err()))
			break
		}
		result := c.cloneOne(ctx, group)
		summary.Results = append(summary.Results, result)

		switch result.Outcome {
		case OutcomeFailed:
			c.logger.Warn("clone failed",
				zap.Int("group", group.Number),
				zap.String("repo", group.RepoURL),
				zap.Error(result.Err),
			)
		case OutcomeExisting:
			c.logger.Info("repository already cloned", zap.Int("group", group.Number), zap.String("dir", result.Dir))
		default:
			c.logger.Info("repository cloned", zap.Int("group", group.Number), zap.String("dir", result.Dir))
		}
	}

	c.logger.Info("clone run completed",
		zap.Int("groups", len(groups)),
		zap.Int("cloned", summary.Count(OutcomeCloned)),
		zap.Int("existing", summary.Count(OutcomeExisting)),
		zap.Int("failed", summary.Count(OutcomeFailed)),
	)
	return summary
}

func (c *Cloner) cloneOne(ctx context.Context, group roster.Group) Result {
	result := Result{Group: group.Number, Outcome: OutcomeFailed}

	name, err := RepoName(group.RepoURL)
	if err != nil {
		result.Err = err
		return result
	}
	groupDir := filepath.Join(c.baseDir, "group_"+strconv.Itoa(group.Number))
	result.Dir = filepath.Join(groupDir, name)

	if _, err := os.Stat(result.Dir); err == nil {
		result.Outcome = OutcomeExisting
		return result
	} else if !errors.Is(err, fs.ErrNotExist) {
		result.Err = fmt.Errorf("stat target: %w", err)
		return result
	}

	if err := os.MkdirAll(groupDir, 0o755); err != nil {
		result.Err = fmt.Errorf("create group directory: %w", err)
		return result
	}

	outcome, err := c.runner.Run(ctx, groupDir, c.git, "clone", group.RepoURL, name)
	if err != nil {
		result.Err = err
		return result
	}
	if outcome.ExitCode != 0 {
		result.Err = fmt.Errorf("git clone exited with code %d: %s", outcome.ExitCode, strings.TrimSpace(string(outcome.Stderr)))
		return result
	}
	result.Outcome = OutcomeCloned
	return result
}

// RepoName returns the last path segment of a repository URL without a
// trailing ".git".
func RepoName(repoURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(repoURL))
	if err != nil {
		return "", fmt.Errorf("parse repository url: %w", err)
	}
	name := strings.TrimSuffix(path.Base(strings.TrimRight(parsed.Path, "/")), ".git")
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("repository url %q has no repository name", repoURL)
	}
	return name, nil
}
