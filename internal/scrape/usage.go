package scrape

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cam3ron2/classroom-stats/internal/githubapi"
)

// apiUsage accumulates the call metadata of every GitHub read made for one repository.
type apiUsage struct {
	mu       sync.Mutex
	metadata githubapi.CallMetadata
}

func (u *apiUsage) add(metadata githubapi.CallMetadata) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.metadata = u.metadata.Merge(metadata)
}

func (u *apiUsage) fields() []zap.Field {
	u.mu.Lock()
	defer u.mu.Unlock()

	headers := u.metadata.LastRateHeaders
	fields := []zap.Field{
		zap.Int("api_requests", u.metadata.Requests),
		zap.Int("last_status", u.metadata.LastStatusCode),
		zap.Int("rate_limit_remaining", headers.Remaining),
		zap.Bool("rate_limit_exhausted", headers.Exhausted()),
		zap.Bool("secondary_rate_limited", headers.SecondaryLimited),
	}
	if headers.ResetUnix > 0 {
		fields = append(fields, zap.Time("rate_limit_reset", time.Unix(headers.ResetUnix, 0).UTC()))
	}
	if headers.RetryAfter > 0 {
		fields = append(fields, zap.Duration("retry_after", headers.RetryAfter))
	}
	return fields
}

// meteredSource records the metadata of every result it passes through.
type meteredSource struct {
	RepositoryDataSource
	usage *apiUsage
}

func newMeteredSource(source RepositoryDataSource) meteredSource {
	return meteredSource{RepositoryDataSource: source, usage: &apiUsage{}}
}

func (m meteredSource) ListContributors(ctx context.Context, owner, repo string) (githubapi.ContributorListResult, error) {
	result, err := m.RepositoryDataSource.ListContributors(ctx, owner, repo)
	m.usage.add(result.Metadata)
	return result, err
}

func (m meteredSource) ListPullRequests(ctx context.Context, owner, repo string) (githubapi.PullRequestListResult, error) {
	result, err := m.RepositoryDataSource.ListPullRequests(ctx, owner, repo)
	m.usage.add(result.Metadata)
	return result, err
}

func (m meteredSource) ListCommits(ctx context.Context, owner, repo string) (githubapi.CommitListResult, error) {
	result, err := m.RepositoryDataSource.ListCommits(ctx, owner, repo)
	m.usage.add(result.Metadata)
	return result, err
}

func (m meteredSource) ListPullRequestCommits(ctx context.Context, owner, repo string, number int) (githubapi.CommitListResult, error) {
	result, err := m.RepositoryDataSource.ListPullRequestCommits(ctx, owner, repo, number)
	m.usage.add(result.Metadata)
	return result, err
}

func (m meteredSource) GetRepository(ctx context.Context, owner, repo string) (githubapi.RepositoryResult, error) {
	result, err := m.RepositoryDataSource.GetRepository(ctx, owner, repo)
	m.usage.add(result.Metadata)
	return result, err
}

func (m meteredSource) GetBranchRef(ctx context.Context, owner, repo, branch string) (githubapi.RefResult, error) {
	result, err := m.RepositoryDataSource.GetBranchRef(ctx, owner, repo, branch)
	m.usage.add(result.Metadata)
	return result, err
}

func (m meteredSource) GetTree(ctx context.Context, owner, repo, sha string) (githubapi.TreeResult, error) {
	result, err := m.RepositoryDataSource.GetTree(ctx, owner, repo, sha)
	m.usage.add(result.Metadata)
	return result, err
}

func (m meteredSource) GetReadme(ctx context.Context, owner, repo string) (githubapi.ReadmeResult, error) {
	result, err := m.RepositoryDataSource.GetReadme(ctx, owner, repo)
	m.usage.add(result.Metadata)
	return result, err
}

func (m meteredSource) GetBranchCommit(ctx context.Context, owner, repo, branch string) (githubapi.BranchCommitResult, error) {
	result, err := m.RepositoryDataSource.GetBranchCommit(ctx, owner, repo, branch)
	m.usage.add(result.Metadata)
	return result, err
}

func (m meteredSource) ListWorkflowRuns(ctx context.Context, owner, repo, branch, event string) (githubapi.WorkflowRunsResult, error) {
	result, err := m.RepositoryDataSource.ListWorkflowRuns(ctx, owner, repo, branch, event)
	m.usage.add(result.Metadata)
	return result, err
}
