package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cam3ron2/classroom-stats/internal/githubapi"
	"github.com/cam3ron2/classroom-stats/internal/report"
	"github.com/cam3ron2/classroom-stats/internal/roster"
	"github.com/cam3ron2/classroom-stats/internal/stats"
	"github.com/cam3ron2/classroom-stats/internal/telemetry"
)

// ReportChecker counts warnings in a group's written report. *report.Checker implements it.
type ReportChecker interface {
	Check(ctx context.Context, ref report.Ref) report.Result
}

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	Window ActivityWindow
	// DedupePRCommits drops PR commits whose SHA already appears before
	// building the activity matrix and message statistics.
	DedupePRCommits bool
	// Checker is optional; without it num_warnings stays null.
	Checker ReportChecker
	Logger  *zap.Logger
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Aggregator builds one stats.RepoStats per roster group.
type Aggregator struct {
	source  RepositoryDataSource
	checker ReportChecker
	window  ActivityWindow
	dedupe  bool
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewAggregator creates an aggregator over source.
func NewAggregator(source RepositoryDataSource, cfg AggregatorConfig) (*Aggregator, error) {
	if source == nil {
		return nil, fmt.Errorf("repository data source is required")
	}
	window := cfg.Window
	if window.MinDelta <= 0 && window.MaxDelta <= 0 {
		window = DefaultActivityWindow()
	}
	if window.MaxDelta < window.MinDelta {
		return nil, fmt.Errorf("activity window max %s is below min %s", window.MaxDelta, window.MinDelta)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	provider := cfg.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	return &Aggregator{
		source:  source,
		checker: cfg.Checker,
		window:  window,
		dedupe:  cfg.DedupePRCommits,
		logger:  logger,
		tracer:  provider.Tracer("classroom-stats/internal/scrape"),
	}, nil
}

// ScrapeAll processes groups one at a time in roster order. A group whose
// accessible-path aggregation fails is logged and left out of the result.
func (a *Aggregator) ScrapeAll(ctx context.Context, groups []roster.Group) []stats.RepoStats {
	records := make([]stats.RepoStats, 0, len(groups))
	for i, group := range groups {
		repoCtx, span := a.tracer.Start(ctx, "scrape.repository", trace.WithAttributes(
			attribute.Int("group.number", group.Number),
			attribute.String("repo.url", group.RepoURL),
		))

		source := newMeteredSource(a.source)
		ref := NewRepositoryRef(group.RepoURL, source)
		accessible := ref.Accessible(repoCtx)
		span.SetAttributes(attribute.Bool("repo.accessible", accessible))
		a.logger.Info("processing group",
			zap.Int("group", group.Number),
			zap.Int("index", i+1),
			zap.Int("total", len(groups)),
			zap.Bool("accessible", accessible),
		)

		record, err := a.scrapeRef(repoCtx, source, group, ref)
		telemetry.EndSpan(span, err)
		if err != nil {
			fields := append([]zap.Field{
				zap.Int("group", group.Number),
				zap.String("repo_url", ref.URL()),
				zap.Error(err),
			}, source.usage.fields()...)
			a.logger.Warn("skipping group", fields...)
			continue
		}
		a.logger.Debug("group scraped", append([]zap.Field{zap.Int("group", group.Number)}, source.usage.fields()...)...)
		records = append(records, record)
	}
	return records
}

// ScrapeGroup builds the record for one group. Inaccessible repositories yield
// the all-null record; any failure on the accessible path returns an error and
// no record.
func (a *Aggregator) ScrapeGroup(ctx context.Context, group roster.Group) (stats.RepoStats, error) {
	return a.scrapeRef(ctx, a.source, group, NewRepositoryRef(group.RepoURL, a.source))
}

func (a *Aggregator) scrapeRef(ctx context.Context, source RepositoryDataSource, group roster.Group, ref *RepositoryRef) (stats.RepoStats, error) {
	if !ref.Accessible(ctx) {
		return stats.Inaccessible(group.Number, group.Size()), nil
	}

	owner, repo, err := ref.OwnerRepo()
	if err != nil {
		return stats.RepoStats{}, err
	}

	history, err := a.collectHistory(ctx, source, owner, repo)
	if err != nil {
		return stats.RepoStats{}, fmt.Errorf("collect history for %s/%s: %w", owner, repo, err)
	}

	content, err := InspectContent(ctx, source, ref)
	if err != nil {
		return stats.RepoStats{}, fmt.Errorf("inspect content of %s/%s: %w", owner, repo, err)
	}

	record := stats.RepoStats{
		GroupNumber:                 group.Number,
		GroupSize:                   group.Size(),
		NumContributors:             stats.Ptr(len(history.contributors)),
		NumPRs:                      stats.Ptr(history.numPRs),
		NumCommitsToMain:            stats.Ptr(len(history.mainCommits)),
		AverageCommitLengthToMain:   stats.Ptr(averageMessageLength(history.mainCommits)),
		LatestCommit:                stats.Ptr(latestAuthorDate(history.mainCommits)),
		AverageCommitLength:         stats.Ptr(averageMessageLength(history.allCommits)),
		ContributionsPerContributor: history.contributionsPerContributor(),
		TotalCommits:                stats.Ptr(history.totalCommits()),
		ActivityMatrix:              history.activity,

		NumDockerFiles:      stats.Ptr(content.NumDockerFiles),
		NumPythonFiles:      stats.Ptr(content.NumPythonFiles),
		NumWorkflowFiles:    stats.Ptr(content.NumWorkflowFiles),
		HasRequirementsFile: stats.Ptr(content.HasRequirementsFile),
		HasCloudbuild:       stats.Ptr(content.HasCloudbuild),
		UsingDVC:            stats.Ptr(content.UsingDVC),
		RepoSize:            stats.Ptr(content.RepoSizeMB),
		ReadmeLength:        stats.Ptr(content.ReadmeLength),
		ActionsPassing:      stats.Ptr(content.ActionsPassing),
	}

	if a.checker != nil {
		result := a.checker.Check(ctx, report.Ref{Owner: owner, Repo: repo})
		record.NumWarnings = result.Warnings
		if result.Warnings == nil {
			a.logger.Info("report not checked", zap.Int("group", group.Number), zap.String("reason", result.Reason))
		}
	}
	return record, nil
}

type repoHistory struct {
	contributors []Contributor
	numPRs       int
	mainCommits  []githubapi.RepoCommit
	// allCommits is mainCommits followed by merged PR commits.
	allCommits []githubapi.RepoCommit
	activity   [][]int
}

func (h repoHistory) contributionsPerContributor() []int {
	totals := make([]int, 0, len(h.contributors))
	for _, c := range h.contributors {
		totals = append(totals, c.TotalCommits())
	}
	return totals
}

func (h repoHistory) totalCommits() int {
	total := 0
	for _, c := range h.contributors {
		total += c.TotalCommits()
	}
	return total
}

func (a *Aggregator) collectHistory(ctx context.Context, source RepositoryDataSource, owner, repo string) (repoHistory, error) {
	var history repoHistory

	contributors, err := source.ListContributors(ctx, owner, repo)
	if err != nil {
		return history, err
	}
	if err := githubapi.RequireOK("list contributors", contributors.Status); err != nil {
		return history, err
	}
	history.contributors = NewContributors(contributors.Contributors)

	pulls, err := source.ListPullRequests(ctx, owner, repo)
	if err != nil {
		return history, err
	}
	if err := githubapi.RequireOK("list pull requests", pulls.Status); err != nil {
		return history, err
	}
	history.numPRs = len(pulls.PullRequests)

	commits, err := source.ListCommits(ctx, owner, repo)
	if err != nil {
		return history, err
	}
	switch commits.Status {
	case githubapi.EndpointStatusConflict:
		// Empty repository.
	default:
		if err := githubapi.RequireOK("list commits", commits.Status); err != nil {
			return history, err
		}
		history.mainCommits = commits.Commits
	}

	history.allCommits = append([]githubapi.RepoCommit(nil), history.mainCommits...)
	var counted CommitSet
	if a.dedupe {
		history.allCommits = DedupeCommitsBySHA(history.allCommits)
		counted = make(CommitSet, len(history.allCommits))
		counted.Unseen(history.allCommits)
	}
	for _, pr := range pulls.PullRequests {
		if !pr.Merged() {
			continue
		}
		prCommits, err := source.ListPullRequestCommits(ctx, owner, repo, pr.Number)
		if err != nil {
			return history, err
		}
		if err := githubapi.RequireOK(fmt.Sprintf("list pull request %d commits", pr.Number), prCommits.Status); err != nil {
			return history, err
		}
		attributed := prCommits.Commits
		if counted != nil {
			// A commit already on the default branch or in an earlier PR is
			// counted once, in the totals as well as the activity matrix.
			attributed = counted.Unseen(attributed)
		}
		AttributeCommits(history.contributors, attributed)
		history.allCommits = append(history.allCommits, attributed...)
	}

	timestamps := make([]time.Time, 0, len(history.allCommits))
	for _, commit := range history.allCommits {
		timestamps = append(timestamps, commit.CommittedAt)
	}
	history.activity, err = BuildActivityMatrix(timestamps, a.window)
	if errors.Is(err, ErrNoCommits) {
		history.activity, err = [][]int{}, nil
	}
	return history, err
}

// averageMessageLength is the mean message length in characters, 0 for no commits.
func averageMessageLength(commits []githubapi.RepoCommit) float64 {
	if len(commits) == 0 {
		return 0
	}
	total := 0
	for _, commit := range commits {
		total += utf8.RuneCountInString(commit.Message)
	}
	return float64(total) / float64(len(commits))
}

// latestAuthorDate returns the author date of the newest default-branch commit,
// which the commit listing returns first.
func latestAuthorDate(commits []githubapi.RepoCommit) string {
	if len(commits) == 0 {
		return ""
	}
	return commits[0].AuthorDate
}
