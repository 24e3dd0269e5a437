package scrape

import (
	"context"

	"github.com/cam3ron2/classroom-stats/internal/githubapi"
)

// RepositoryDataSource is the read-only GitHub surface the aggregation pipeline consumes.
// *githubapi.DataClient implements it.
type RepositoryDataSource interface {
	Probe(ctx context.Context, rawURL string, followRedirects bool) (githubapi.ProbeResult, error)
	ListContributors(ctx context.Context, owner, repo string) (githubapi.ContributorListResult, error)
	ListPullRequests(ctx context.Context, owner, repo string) (githubapi.PullRequestListResult, error)
	ListCommits(ctx context.Context, owner, repo string) (githubapi.CommitListResult, error)
	ListPullRequestCommits(ctx context.Context, owner, repo string, number int) (githubapi.CommitListResult, error)
	GetRepository(ctx context.Context, owner, repo string) (githubapi.RepositoryResult, error)
	GetBranchRef(ctx context.Context, owner, repo, branch string) (githubapi.RefResult, error)
	GetTree(ctx context.Context, owner, repo, sha string) (githubapi.TreeResult, error)
	GetReadme(ctx context.Context, owner, repo string) (githubapi.ReadmeResult, error)
	GetBranchCommit(ctx context.Context, owner, repo, branch string) (githubapi.BranchCommitResult, error)
	ListWorkflowRuns(ctx context.Context, owner, repo, branch, event string) (githubapi.WorkflowRunsResult, error)
}

var _ RepositoryDataSource = (*githubapi.DataClient)(nil)
