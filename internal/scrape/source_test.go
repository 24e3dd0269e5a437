package scrape

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cam3ron2/classroom-stats/internal/githubapi"
)

// fakeSource is an in-memory RepositoryDataSource for one repository.
type fakeSource struct {
	mu sync.Mutex

	probes   map[string]githubapi.ProbeResult
	probeErr error

	defaultBranch string
	repoStatus    githubapi.EndpointStatus

	contributors []githubapi.Contributor
	pulls        []githubapi.PullRequest
	commits      []githubapi.RepoCommit
	commitStatus githubapi.EndpointStatus
	commitsErr   error
	prCommits    map[int][]githubapi.RepoCommit

	treeSHA    string
	refStatus  githubapi.EndpointStatus
	tree       []githubapi.TreeEntry
	treeErr    error
	readme     string
	readmeMiss bool

	headSHA            string
	branchCommitStatus githubapi.EndpointStatus
	runs               []githubapi.WorkflowRun

	// metadata is attached to the contributor, pull request and commit listings.
	metadata githubapi.CallMetadata

	calls map[string]int
}

func newAccessibleSource(url string) *fakeSource {
	return &fakeSource{
		probes:        map[string]githubapi.ProbeResult{url: {StatusCode: http.StatusOK}},
		defaultBranch: "main",
		treeSHA:       "tree-sha",
		headSHA:       "head-sha",
		prCommits:     map[int][]githubapi.RepoCommit{},
	}
}

func (s *fakeSource) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[name]++
}

func (s *fakeSource) callCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func okOr(status githubapi.EndpointStatus) githubapi.EndpointStatus {
	if status == "" {
		return githubapi.EndpointStatusOK
	}
	return status
}

func (s *fakeSource) Probe(_ context.Context, rawURL string, followRedirects bool) (githubapi.ProbeResult, error) {
	if followRedirects {
		s.record("probe_follow")
	} else {
		s.record("probe")
	}
	if s.probeErr != nil {
		return githubapi.ProbeResult{}, s.probeErr
	}
	result, ok := s.probes[rawURL]
	if !ok {
		return githubapi.ProbeResult{StatusCode: http.StatusNotFound}, nil
	}
	if followRedirects && result.Redirected() {
		return s.probes[result.Location], nil
	}
	return result, nil
}

func (s *fakeSource) GetRepository(_ context.Context, owner, repo string) (githubapi.RepositoryResult, error) {
	s.record("repository")
	return githubapi.RepositoryResult{
		Status:     okOr(s.repoStatus),
		Repository: githubapi.RepositoryInfo{FullName: owner + "/" + repo, DefaultBranch: s.defaultBranch},
	}, nil
}

func (s *fakeSource) ListContributors(context.Context, string, string) (githubapi.ContributorListResult, error) {
	s.record("contributors")
	return githubapi.ContributorListResult{Status: githubapi.EndpointStatusOK, Contributors: s.contributors, Metadata: s.metadata}, nil
}

func (s *fakeSource) ListPullRequests(context.Context, string, string) (githubapi.PullRequestListResult, error) {
	s.record("pulls")
	return githubapi.PullRequestListResult{Status: githubapi.EndpointStatusOK, PullRequests: s.pulls, Metadata: s.metadata}, nil
}

func (s *fakeSource) ListCommits(context.Context, string, string) (githubapi.CommitListResult, error) {
	s.record("commits")
	if s.commitsErr != nil {
		return githubapi.CommitListResult{}, s.commitsErr
	}
	return githubapi.CommitListResult{Status: okOr(s.commitStatus), Commits: s.commits, Metadata: s.metadata}, nil
}

func (s *fakeSource) ListPullRequestCommits(_ context.Context, _, _ string, number int) (githubapi.CommitListResult, error) {
	s.record("pr_commits")
	return githubapi.CommitListResult{Status: githubapi.EndpointStatusOK, Commits: s.prCommits[number]}, nil
}

func (s *fakeSource) GetBranchRef(context.Context, string, string, string) (githubapi.RefResult, error) {
	s.record("ref")
	return githubapi.RefResult{Status: okOr(s.refStatus), SHA: s.treeSHA}, nil
}

func (s *fakeSource) GetTree(context.Context, string, string, string) (githubapi.TreeResult, error) {
	s.record("tree")
	if s.treeErr != nil {
		return githubapi.TreeResult{}, s.treeErr
	}
	return githubapi.TreeResult{Status: githubapi.EndpointStatusOK, Entries: s.tree}, nil
}

func (s *fakeSource) GetReadme(context.Context, string, string) (githubapi.ReadmeResult, error) {
	s.record("readme")
	if s.readmeMiss {
		return githubapi.ReadmeResult{Status: githubapi.EndpointStatusNotFound}, nil
	}
	return githubapi.ReadmeResult{Status: githubapi.EndpointStatusOK, Content: s.readme}, nil
}

func (s *fakeSource) GetBranchCommit(context.Context, string, string, string) (githubapi.BranchCommitResult, error) {
	s.record("branch_commit")
	return githubapi.BranchCommitResult{Status: okOr(s.branchCommitStatus), SHA: s.headSHA}, nil
}

func (s *fakeSource) ListWorkflowRuns(context.Context, string, string, string, string) (githubapi.WorkflowRunsResult, error) {
	s.record("runs")
	return githubapi.WorkflowRunsResult{Status: githubapi.EndpointStatusOK, Runs: s.runs}, nil
}

func mustTime(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		panic(err)
	}
	return parsed
}

func commitAt(sha, message, committedAt string) githubapi.RepoCommit {
	return githubapi.RepoCommit{
		SHA:         sha,
		Message:     message,
		AuthorDate:  committedAt,
		CommittedAt: mustTime(committedAt),
	}
}

func sizePtr(v int64) *int64 {
	return &v
}
