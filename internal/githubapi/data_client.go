package githubapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultGitHubAPIBaseURL = "https://api.github.com/"
	// DefaultPageSize is the per_page value used by paged list reads.
	DefaultPageSize = 100
)

// EndpointStatus represents a normalized GitHub API endpoint outcome.
type EndpointStatus string

const (
	// EndpointStatusOK indicates a successful response.
	EndpointStatusOK EndpointStatus = "ok"
	// EndpointStatusAccepted indicates GitHub accepted the request and is still computing results.
	EndpointStatusAccepted EndpointStatus = "accepted"
	// EndpointStatusForbidden indicates authorization failure or restricted access.
	EndpointStatusForbidden EndpointStatus = "forbidden"
	// EndpointStatusNotFound indicates the resource does not exist or is hidden.
	EndpointStatusNotFound EndpointStatus = "not_found"
	// EndpointStatusConflict indicates a state conflict, like listing commits of an empty repository.
	EndpointStatusConflict EndpointStatus = "conflict"
	// EndpointStatusUnprocessable indicates request validation/processing failure.
	EndpointStatusUnprocessable EndpointStatus = "unprocessable"
	// EndpointStatusUnavailable indicates a temporary service-side failure.
	EndpointStatusUnavailable EndpointStatus = "unavailable"
	// EndpointStatusUnknown indicates an unclassified non-success status.
	EndpointStatusUnknown EndpointStatus = "unknown"
)

// StatusError reports a non-success status on a read that the caller required.
type StatusError struct {
	Operation string
	Status    EndpointStatus
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %q", e.Operation, e.Status)
}

// RequireOK converts a non-ok status into a *StatusError.
func RequireOK(operation string, status EndpointStatus) error {
	if status == EndpointStatusOK {
		return nil
	}
	return &StatusError{Operation: operation, Status: status}
}

// ProbeResult is the outcome of a metadata-only request.
type ProbeResult struct {
	StatusCode int
	Location   string
}

// Redirected reports a 3xx response carrying a Location header.
func (r ProbeResult) Redirected() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400 && r.Location != ""
}

// RepositoryInfo is repository metadata.
type RepositoryInfo struct {
	FullName      string
	DefaultBranch string
	HTMLURL       string
}

// RepositoryResult is the typed result for reading one repository.
type RepositoryResult struct {
	Status     EndpointStatus
	Repository RepositoryInfo
	Metadata   CallMetadata
}

// Contributor is one entry of the contributor listing.
type Contributor struct {
	Login         string
	Contributions int
}

// ContributorListResult is the typed result for listing contributors.
type ContributorListResult struct {
	Status       EndpointStatus
	Contributors []Contributor
	Metadata     CallMetadata
}

// PullRequest is one pull request summary.
type PullRequest struct {
	Number   int
	User     string
	State    string
	MergedAt time.Time
}

// Merged reports whether the pull request carries a merge timestamp.
func (p PullRequest) Merged() bool {
	return !p.MergedAt.IsZero()
}

// PullRequestListResult is the typed result for listing pull requests.
type PullRequestListResult struct {
	Status       EndpointStatus
	PullRequests []PullRequest
	Metadata     CallMetadata
}

// RepoCommit is one commit from a commit list endpoint.
type RepoCommit struct {
	SHA           string
	Author        string
	Committer     string
	AuthorName    string
	CommitterName string
	Message       string
	// AuthorDate is the raw author timestamp as returned upstream.
	AuthorDate  string
	CommittedAt time.Time
}

// CommitListResult is the typed result for commit list endpoints.
type CommitListResult struct {
	Status   EndpointStatus
	Commits  []RepoCommit
	Metadata CallMetadata
}

// RefResult is the typed result for resolving a branch ref.
type RefResult struct {
	Status   EndpointStatus
	SHA      string
	Metadata CallMetadata
}

// TreeEntry is one entry of a recursive git tree.
type TreeEntry struct {
	Path string
	Type string
	// Size is nil for entries the API reports without a size (trees, submodules).
	Size *int64
}

// TreeResult is the typed result for a recursive tree read.
type TreeResult struct {
	Status    EndpointStatus
	Entries   []TreeEntry
	Truncated bool
	Metadata  CallMetadata
}

// ReadmeResult is the typed result for reading the rendered README.
type ReadmeResult struct {
	Status   EndpointStatus
	Content  string
	Metadata CallMetadata
}

// BranchCommitResult is the typed result for reading a branch head commit.
type BranchCommitResult struct {
	Status   EndpointStatus
	SHA      string
	Metadata CallMetadata
}

// WorkflowRun is one GitHub Actions workflow run.
type WorkflowRun struct {
	ID         int64
	HeadSHA    string
	Status     string
	Conclusion string
}

// Succeeded reports a completed run with a success conclusion.
func (w WorkflowRun) Succeeded() bool {
	return w.Status == "completed" && w.Conclusion == "success"
}

// WorkflowRunsResult is the typed result for listing workflow runs.
type WorkflowRunsResult struct {
	Status   EndpointStatus
	Runs     []WorkflowRun
	Metadata CallMetadata
}

// DataClient is a typed GitHub REST data client for the reads the metrics pipeline needs.
type DataClient struct {
	baseURL       *url.URL
	requestClient *Client
	probeClient   *Client
	pageSize      int
}

// NewDataClient creates a typed data client. probeClient must not follow
// redirects; when nil, requestClient is used for both probe modes.
func NewDataClient(baseURL string, requestClient *Client, probeClient *Client) (*DataClient, error) {
	if requestClient == nil {
		return nil, fmt.Errorf("request client is required")
	}
	if probeClient == nil {
		probeClient = requestClient
	}

	parsed, err := parseAPIBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	return &DataClient{
		baseURL:       parsed,
		requestClient: requestClient,
		probeClient:   probeClient,
		pageSize:      DefaultPageSize,
	}, nil
}

// SetPageSize overrides the per_page value for paged reads.
func (c *DataClient) SetPageSize(pageSize int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	c.pageSize = pageSize
}

// Probe issues a HEAD request against rawURL.
func (c *DataClient) Probe(ctx context.Context, rawURL string, followRedirects bool) (ProbeResult, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return ProbeResult{}, fmt.Errorf("url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, trimmed, nil)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("build probe request: %w", err)
	}

	client := c.probeClient
	if followRedirects {
		client = c.requestClient
	}
	resp, _, err := client.Do(req)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("probe request failed: %w", err)
	}
	if resp == nil {
		return ProbeResult{}, fmt.Errorf("probe request failed: nil response")
	}
	if resp.Body != nil {
		_ = resp.Body.Close()
	}

	return ProbeResult{
		StatusCode: resp.StatusCode,
		Location:   resp.Header.Get("Location"),
	}, nil
}

// GetRepository reads repository metadata, including the default branch.
func (c *DataClient) GetRepository(ctx context.Context, owner, repo string) (RepositoryResult, error) {
	if err := validateOwnerRepo(owner, repo); err != nil {
		return RepositoryResult{}, err
	}

	var payload repositoryPayload
	status, metadata, err := c.getJSON(ctx, "get repository", repoPath(owner, repo), nil, &payload)
	if err != nil {
		return RepositoryResult{}, err
	}
	result := RepositoryResult{Status: status, Metadata: metadata}
	if status == EndpointStatusOK {
		result.Repository = RepositoryInfo(payload)
	}
	return result, nil
}

// ListContributors lists repository contributors in listing order.
func (c *DataClient) ListContributors(ctx context.Context, owner, repo string) (ContributorListResult, error) {
	if err := validateOwnerRepo(owner, repo); err != nil {
		return ContributorListResult{}, err
	}

	payload, status, metadata, err := listPaged[contributorPayload](ctx, c, pageRequest{
		operation: "list contributors",
		segments:  append(repoPath(owner, repo), "contributors"),
	})
	if err != nil {
		return ContributorListResult{}, err
	}

	result := ContributorListResult{Status: status, Metadata: metadata}
	for _, contributor := range payload {
		result.Contributors = append(result.Contributors, Contributor(contributor))
	}
	return result, nil
}

// ListPullRequests lists every pull request regardless of state.
func (c *DataClient) ListPullRequests(ctx context.Context, owner, repo string) (PullRequestListResult, error) {
	if err := validateOwnerRepo(owner, repo); err != nil {
		return PullRequestListResult{}, err
	}

	query := url.Values{}
	query.Set("state", "all")
	payload, status, metadata, err := listPaged[pullRequestPayload](ctx, c, pageRequest{
		operation: "list pull requests",
		segments:  append(repoPath(owner, repo), "pulls"),
		query:     query,
	})
	if err != nil {
		return PullRequestListResult{}, err
	}

	result := PullRequestListResult{Status: status, Metadata: metadata}
	for _, pr := range payload {
		typed := PullRequest{
			Number:   pr.Number,
			State:    pr.State,
			MergedAt: parseNullableRFC3339(pr.MergedAt),
		}
		if pr.User != nil {
			typed.User = pr.User.Login
		}
		result.PullRequests = append(result.PullRequests, typed)
	}
	return result, nil
}

// ListCommits lists the commits reachable from the default branch, newest first.
func (c *DataClient) ListCommits(ctx context.Context, owner, repo string) (CommitListResult, error) {
	if err := validateOwnerRepo(owner, repo); err != nil {
		return CommitListResult{}, err
	}

	payload, status, metadata, err := listPaged[commitListPayload](ctx, c, pageRequest{
		operation: "list commits",
		segments:  append(repoPath(owner, repo), "commits"),
	})
	if err != nil {
		return CommitListResult{}, err
	}
	return CommitListResult{Status: status, Commits: toRepoCommits(payload), Metadata: metadata}, nil
}

// ListPullRequestCommits lists the commits of one pull request.
func (c *DataClient) ListPullRequestCommits(ctx context.Context, owner, repo string, number int) (CommitListResult, error) {
	if err := validateOwnerRepo(owner, repo); err != nil {
		return CommitListResult{}, err
	}
	if number <= 0 {
		return CommitListResult{}, fmt.Errorf("pull number must be > 0")
	}

	payload, status, metadata, err := listPaged[commitListPayload](ctx, c, pageRequest{
		operation: "list pull request commits",
		segments:  append(repoPath(owner, repo), "pulls", strconv.Itoa(number), "commits"),
	})
	if err != nil {
		return CommitListResult{}, err
	}
	return CommitListResult{Status: status, Commits: toRepoCommits(payload), Metadata: metadata}, nil
}

// GetBranchRef resolves refs/heads/<branch> to the SHA it points at.
func (c *DataClient) GetBranchRef(ctx context.Context, owner, repo, branch string) (RefResult, error) {
	if err := validateOwnerRepo(owner, repo); err != nil {
		return RefResult{}, err
	}
	if strings.TrimSpace(branch) == "" {
		return RefResult{}, fmt.Errorf("branch is required")
	}

	segments := append(repoPath(owner, repo), "git", "ref", "heads")
	segments = append(segments, branchSegments(branch)...)

	var payload refPayload
	status, metadata, err := c.getJSON(ctx, "get branch ref", segments, nil, &payload)
	if err != nil {
		return RefResult{}, err
	}
	return RefResult{Status: status, SHA: payload.Object.SHA, Metadata: metadata}, nil
}

// GetTree reads the recursive git tree for a tree-ish SHA.
func (c *DataClient) GetTree(ctx context.Context, owner, repo, sha string) (TreeResult, error) {
	if err := validateOwnerRepo(owner, repo); err != nil {
		return TreeResult{}, err
	}
	trimmedSHA := strings.TrimSpace(sha)
	if trimmedSHA == "" {
		return TreeResult{}, fmt.Errorf("sha is required")
	}

	query := url.Values{}
	query.Set("recursive", "1")

	var payload treePayload
	status, metadata, err := c.getJSON(ctx, "get tree", append(repoPath(owner, repo), "git", "trees", url.PathEscape(trimmedSHA)), query, &payload)
	if err != nil {
		return TreeResult{}, err
	}

	result := TreeResult{Status: status, Truncated: payload.Truncated, Metadata: metadata}
	for _, entry := range payload.Tree {
		result.Entries = append(result.Entries, TreeEntry(entry))
	}
	return result, nil
}

// GetReadme reads and decodes the repository README.
func (c *DataClient) GetReadme(ctx context.Context, owner, repo string) (ReadmeResult, error) {
	if err := validateOwnerRepo(owner, repo); err != nil {
		return ReadmeResult{}, err
	}

	var payload contentPayload
	status, metadata, err := c.getJSON(ctx, "get readme", append(repoPath(owner, repo), "readme"), nil, &payload)
	if err != nil {
		return ReadmeResult{}, err
	}

	result := ReadmeResult{Status: status, Metadata: metadata}
	if status != EndpointStatusOK {
		return result, nil
	}
	decoded, err := decodeContent(payload)
	if err != nil {
		return ReadmeResult{}, fmt.Errorf("decode readme content: %w", err)
	}
	result.Content = decoded
	return result, nil
}

// GetBranchCommit reads the head commit of a branch.
func (c *DataClient) GetBranchCommit(ctx context.Context, owner, repo, branch string) (BranchCommitResult, error) {
	if err := validateOwnerRepo(owner, repo); err != nil {
		return BranchCommitResult{}, err
	}
	if strings.TrimSpace(branch) == "" {
		return BranchCommitResult{}, fmt.Errorf("branch is required")
	}

	segments := append(repoPath(owner, repo), "commits")
	segments = append(segments, branchSegments(branch)...)

	var payload commitShaPayload
	status, metadata, err := c.getJSON(ctx, "get branch commit", segments, nil, &payload)
	if err != nil {
		return BranchCommitResult{}, err
	}
	return BranchCommitResult{Status: status, SHA: payload.SHA, Metadata: metadata}, nil
}

// ListWorkflowRuns lists the most recent workflow runs for a branch and event.
func (c *DataClient) ListWorkflowRuns(ctx context.Context, owner, repo, branch, event string) (WorkflowRunsResult, error) {
	if err := validateOwnerRepo(owner, repo); err != nil {
		return WorkflowRunsResult{}, err
	}

	query := url.Values{}
	if strings.TrimSpace(branch) != "" {
		query.Set("branch", branch)
	}
	if strings.TrimSpace(event) != "" {
		query.Set("event", event)
	}
	query.Set("per_page", strconv.Itoa(c.pageSize))

	var payload workflowRunsPayload
	status, metadata, err := c.getJSON(ctx, "list workflow runs", append(repoPath(owner, repo), "actions", "runs"), query, &payload)
	if err != nil {
		return WorkflowRunsResult{}, err
	}

	result := WorkflowRunsResult{Status: status, Metadata: metadata}
	for _, run := range payload.WorkflowRuns {
		result.Runs = append(result.Runs, WorkflowRun(run))
	}
	return result, nil
}

func (c *DataClient) getJSON(ctx context.Context, operation string, segments []string, query url.Values, target any) (EndpointStatus, CallMetadata, error) {
	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(reqURL.Path, segments...)
	if query != nil {
		reqURL.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return "", CallMetadata{}, fmt.Errorf("build %s request: %w", operation, err)
	}

	resp, metadata, err := c.requestClient.Do(req)
	if err != nil {
		return "", metadata, fmt.Errorf("%s request failed: %w", operation, err)
	}
	if resp == nil {
		return "", metadata, fmt.Errorf("%s request failed: nil response", operation)
	}

	status := endpointStatusFromHTTP(resp.StatusCode)
	if status != EndpointStatusOK {
		_ = resp.Body.Close()
		return status, metadata, nil
	}
	if err := decodeJSONAndClose(resp, target); err != nil {
		return "", metadata, fmt.Errorf("decode %s response: %w", operation, err)
	}
	return status, metadata, nil
}

func toRepoCommits(payload []commitListPayload) []RepoCommit {
	commits := make([]RepoCommit, 0, len(payload))
	for _, commit := range payload {
		typed := RepoCommit{
			SHA:           commit.SHA,
			AuthorName:    commit.Commit.Author.Name,
			CommitterName: commit.Commit.Committer.Name,
			Message:       commit.Commit.Message,
			AuthorDate:    commit.Commit.Author.Date,
			CommittedAt:   parseRFC3339(commit.Commit.Committer.Date),
		}
		if commit.Author != nil {
			typed.Author = commit.Author.Login
		}
		if commit.Committer != nil {
			typed.Committer = commit.Committer.Login
		}
		commits = append(commits, typed)
	}
	return commits
}

func decodeContent(payload contentPayload) (string, error) {
	if payload.Encoding != "" && payload.Encoding != "base64" {
		return payload.Content, nil
	}
	cleaned := strings.NewReplacer("\n", "", "\r", "").Replace(payload.Content)
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func validateOwnerRepo(owner, repo string) error {
	if strings.TrimSpace(owner) == "" {
		return fmt.Errorf("owner is required")
	}
	if strings.TrimSpace(repo) == "" {
		return fmt.Errorf("repo is required")
	}
	return nil
}

func repoPath(owner, repo string) []string {
	return []string{"repos", url.PathEscape(strings.TrimSpace(owner)), url.PathEscape(strings.TrimSpace(repo))}
}

func branchSegments(branch string) []string {
	parts := strings.Split(strings.TrimSpace(branch), "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		segments = append(segments, url.PathEscape(part))
	}
	return segments
}

func parseAPIBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultGitHubAPIBaseURL
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse github api base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse github api base url: missing scheme or host")
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	return parsed, nil
}

func (c *DataClient) cloneBaseURL() *url.URL {
	cloned := *c.baseURL
	return &cloned
}

func joinURLPath(base string, segments ...string) string {
	trimmedBase := strings.TrimSuffix(base, "/")
	builder := strings.Builder{}
	builder.WriteString(trimmedBase)
	for _, segment := range segments {
		builder.WriteString("/")
		builder.WriteString(strings.TrimPrefix(segment, "/"))
	}
	return builder.String()
}

func endpointStatusFromHTTP(statusCode int) EndpointStatus {
	switch statusCode {
	case http.StatusAccepted:
		return EndpointStatusAccepted
	case http.StatusForbidden:
		return EndpointStatusForbidden
	case http.StatusNotFound:
		return EndpointStatusNotFound
	case http.StatusConflict:
		return EndpointStatusConflict
	case http.StatusUnprocessableEntity:
		return EndpointStatusUnprocessable
	}
	if statusCode >= 200 && statusCode <= 299 {
		return EndpointStatusOK
	}
	if statusCode >= 500 {
		return EndpointStatusUnavailable
	}
	return EndpointStatusUnknown
}

// decodeJSONAndClose leaves target untouched for an empty body (204 No Content).
func decodeJSONAndClose(resp *http.Response, target any) error {
	defer resp.Body.Close()
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func parseRFC3339(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

func parseNullableRFC3339(raw *string) time.Time {
	if raw == nil {
		return time.Time{}
	}
	return parseRFC3339(*raw)
}

type repositoryPayload struct {
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
}

type contributorPayload struct {
	Login         string `json:"login"`
	Contributions int    `json:"contributions"`
}

type commitListPayload struct {
	SHA       string          `json:"sha"`
	Author    *userPayload    `json:"author"`
	Committer *userPayload    `json:"committer"`
	Commit    commitCoreBlock `json:"commit"`
}

type commitCoreBlock struct {
	Message   string            `json:"message"`
	Author    commitAuthorBlock `json:"author"`
	Committer commitAuthorBlock `json:"committer"`
}

type commitAuthorBlock struct {
	Date  string `json:"date"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type commitShaPayload struct {
	SHA string `json:"sha"`
}

type pullRequestPayload struct {
	Number   int          `json:"number"`
	User     *userPayload `json:"user"`
	State    string       `json:"state"`
	MergedAt *string      `json:"merged_at"`
}

type refPayload struct {
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

type treePayload struct {
	Tree      []treeEntryPayload `json:"tree"`
	Truncated bool               `json:"truncated"`
}

type treeEntryPayload struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size *int64 `json:"size"`
}

type contentPayload struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type workflowRunsPayload struct {
	WorkflowRuns []workflowRunPayload `json:"workflow_runs"`
}

type workflowRunPayload struct {
	ID         int64  `json:"id"`
	HeadSHA    string `json:"head_sha"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
}

type userPayload struct {
	Login string `json:"login"`
}
