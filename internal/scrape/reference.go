package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/cam3ron2/classroom-stats/internal/githubapi"
)

// RepositoryRef identifies one group repository. Accessibility, the default
// branch and the recursive file tree are fetched at most once and reused until
// Invalidate is called.
type RepositoryRef struct {
	source RepositoryDataSource

	mu  sync.Mutex
	url string

	accessible     bool
	probed         bool
	defaultBranch  string
	branchResolved bool
	tree           []githubapi.TreeEntry
	treeLoaded     bool
}

// NewRepositoryRef creates a reference for rawURL backed by source.
func NewRepositoryRef(rawURL string, source RepositoryDataSource) *RepositoryRef {
	return &RepositoryRef{
		source: source,
		url:    strings.TrimSpace(rawURL),
	}
}

// URL returns the canonical repository URL. A redirect seen while probing replaces it.
func (r *RepositoryRef) URL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.url
}

// OwnerRepo derives owner and repository name from the last two URL path segments.
func (r *RepositoryRef) OwnerRepo() (string, string, error) {
	return splitOwnerRepo(r.URL())
}

// Accessible probes the repository once. A HEAD without redirects runs first;
// a 3xx with Location moves the canonical URL. A second HEAD that follows
// redirects decides the result: only 200 is accessible. Transport failures
// count as inaccessible.
func (r *RepositoryRef) Accessible(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.probed {
		return r.accessible
	}
	r.probed = true
	r.accessible = false

	first, err := r.source.Probe(ctx, r.url, false)
	if err != nil {
		return false
	}
	if first.Redirected() {
		r.url = resolveLocation(r.url, first.Location)
	}

	final, err := r.source.Probe(ctx, r.url, true)
	if err != nil {
		return false
	}
	r.accessible = final.StatusCode == http.StatusOK
	return r.accessible
}

// DefaultBranch resolves the repository default branch once.
func (r *RepositoryRef) DefaultBranch(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.defaultBranchLocked(ctx)
}

// Tree returns the recursive file tree at the default branch head, fetched once.
func (r *RepositoryRef) Tree(ctx context.Context) ([]githubapi.TreeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.treeLoaded {
		return r.tree, nil
	}

	branch, err := r.defaultBranchLocked(ctx)
	if err != nil {
		return nil, err
	}
	owner, repo, err := splitOwnerRepo(r.url)
	if err != nil {
		return nil, err
	}

	ref, err := r.source.GetBranchRef(ctx, owner, repo, branch)
	if err != nil {
		return nil, err
	}
	if ref.Status == githubapi.EndpointStatusConflict {
		// Empty repository: the branch has no commit to resolve.
		r.tree = []githubapi.TreeEntry{}
		r.treeLoaded = true
		return r.tree, nil
	}
	if err := githubapi.RequireOK("get branch ref", ref.Status); err != nil {
		return nil, err
	}

	tree, err := r.source.GetTree(ctx, owner, repo, ref.SHA)
	if err != nil {
		return nil, err
	}
	if err := githubapi.RequireOK("get tree", tree.Status); err != nil {
		return nil, err
	}

	r.tree = tree.Entries
	r.treeLoaded = true
	return r.tree, nil
}

// Invalidate drops every memoized value, including the probe result.
func (r *RepositoryRef) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.probed = false
	r.accessible = false
	r.defaultBranch = ""
	r.branchResolved = false
	r.tree = nil
	r.treeLoaded = false
}

func (r *RepositoryRef) defaultBranchLocked(ctx context.Context) (string, error) {
	if r.branchResolved {
		return r.defaultBranch, nil
	}

	owner, repo, err := splitOwnerRepo(r.url)
	if err != nil {
		return "", err
	}
	result, err := r.source.GetRepository(ctx, owner, repo)
	if err != nil {
		return "", err
	}
	if err := githubapi.RequireOK("get repository", result.Status); err != nil {
		return "", err
	}
	if result.Repository.DefaultBranch == "" {
		return "", fmt.Errorf("repository %s/%s has no default branch", owner, repo)
	}

	r.defaultBranch = result.Repository.DefaultBranch
	r.branchResolved = true
	return r.defaultBranch, nil
}

func splitOwnerRepo(rawURL string) (string, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", "", fmt.Errorf("parse repository url %q: %w", rawURL, err)
	}

	segments := strings.FieldsFunc(parsed.Path, func(r rune) bool { return r == '/' })
	if len(segments) < 2 {
		return "", "", fmt.Errorf("repository url %q has no owner/repo path", rawURL)
	}
	owner := segments[len(segments)-2]
	repo := strings.TrimSuffix(segments[len(segments)-1], ".git")
	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("repository url %q has no owner/repo path", rawURL)
	}
	return owner, repo, nil
}

func resolveLocation(current, location string) string {
	base, err := url.Parse(current)
	if err != nil {
		return location
	}
	target, err := url.Parse(location)
	if err != nil {
		return location
	}
	return base.ResolveReference(target).String()
}
