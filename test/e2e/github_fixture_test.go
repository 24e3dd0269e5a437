//go:build e2e

package e2e

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeGitHub serves both the web host (HEAD probes on /{owner}/{repo}) and the
// REST API (/repos/...) from one httptest server.
type fakeGitHub struct {
	mu sync.Mutex

	server *httptest.Server
	token  string

	repos        map[string]repositoryFixture
	redirects    map[string]string
	callCount    map[string]int
	unauthorized int
}

type repositoryFixture struct {
	DefaultBranch string
	HeadSHA       string
	Contributors  []fixtureContributor
	Commits       []fixtureCommit
	Pulls         []fixturePull
	Tree          []fixtureTreeEntry
	// Readme is served base64 encoded; empty means 404.
	Readme string
	Runs   []fixtureRun
}

type fixtureContributor struct {
	Login         string
	Contributions int
}

type fixtureCommit struct {
	SHA         string
	Author      string
	AuthorName  string
	Message     string
	CommittedAt time.Time
}

type fixturePull struct {
	Number  int
	User    string
	Merged  bool
	Commits []fixtureCommit
}

type fixtureTreeEntry struct {
	Path string
	Size int64
}

type fixtureRun struct {
	HeadSHA    string
	Status     string
	Conclusion string
}

func newFakeGitHub(t *testing.T, token string) *fakeGitHub {
	t.Helper()

	fixture := &fakeGitHub{
		token:     token,
		repos:     make(map[string]repositoryFixture),
		redirects: make(map[string]string),
		callCount: make(map[string]int),
	}
	fixture.server = httptest.NewServer(http.HandlerFunc(fixture.serveHTTP))
	t.Cleanup(fixture.server.Close)
	return fixture
}

func (f *fakeGitHub) URL() string {
	return f.server.URL
}

func (f *fakeGitHub) RepoURL(owner, repo string) string {
	return f.server.URL + "/" + owner + "/" + repo
}

func (f *fakeGitHub) SetRepository(owner, repo string, data repositoryFixture) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos[repoKey(owner, repo)] = data
}

// Rename makes HEAD on the old web path answer 301 to the new one.
func (f *fakeGitHub) Rename(fromOwner, fromRepo, toOwner, toRepo string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redirects[repoKey(fromOwner, fromRepo)] = "/" + toOwner + "/" + toRepo
}

func (f *fakeGitHub) PathCallCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount[path]
}

func (f *fakeGitHub) UnauthorizedCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unauthorized
}

func (f *fakeGitHub) serveHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.callCount[r.URL.Path]++
	if r.Header.Get("Authorization") != "Bearer "+f.token {
		f.unauthorized++
	}
	f.mu.Unlock()

	segments := splitPath(r.URL.Path)
	if r.Method == http.MethodHead && len(segments) == 2 {
		f.handleProbe(w, segments[0], segments[1])
		return
	}
	if r.Method == http.MethodGet && len(segments) >= 3 && segments[0] == "repos" {
		f.handleRepositoryRoutes(w, r, segments)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

func (f *fakeGitHub) handleProbe(w http.ResponseWriter, owner, repo string) {
	f.mu.Lock()
	target, redirected := f.redirects[repoKey(owner, repo)]
	_, exists := f.repos[repoKey(owner, repo)]
	f.mu.Unlock()

	switch {
	case redirected:
		w.Header().Set("Location", target)
		w.WriteHeader(http.StatusMovedPermanently)
	case exists:
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeGitHub) handleRepositoryRoutes(w http.ResponseWriter, r *http.Request, segments []string) {
	owner, repo := segments[1], segments[2]
	f.mu.Lock()
	data, ok := f.repos[repoKey(owner, repo)]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	rest := segments[3:]
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	switch {
	case len(rest) == 0:
		writeJSON(w, http.StatusOK, map[string]any{
			"full_name":      owner + "/" + repo,
			"default_branch": data.DefaultBranch,
			"html_url":       f.RepoURL(owner, repo),
		})
	case len(rest) == 1 && rest[0] == "contributors":
		items := make([]map[string]any, 0, len(data.Contributors))
		for _, c := range data.Contributors {
			items = append(items, map[string]any{"login": c.Login, "contributions": c.Contributions})
		}
		writePage(w, page, items)
	case len(rest) == 1 && rest[0] == "pulls":
		items := make([]map[string]any, 0, len(data.Pulls))
		for _, pull := range data.Pulls {
			item := map[string]any{"number": pull.Number, "user": map[string]string{"login": pull.User}, "state": "open", "merged_at": nil}
			if pull.Merged {
				item["state"] = "closed"
				item["merged_at"] = "2024-01-09T16:00:00Z"
			}
			items = append(items, item)
		}
		writePage(w, page, items)
	case len(rest) == 1 && rest[0] == "commits":
		if len(data.Commits) == 0 {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "Git Repository is empty."})
			return
		}
		writePage(w, page, commitPayloads(data.Commits))
	case len(rest) == 3 && rest[0] == "pulls" && rest[2] == "commits":
		number, _ := strconv.Atoi(rest[1])
		for _, pull := range data.Pulls {
			if pull.Number == number {
				writePage(w, page, commitPayloads(pull.Commits))
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	case len(rest) == 4 && rest[0] == "git" && rest[1] == "ref" && rest[2] == "heads" && rest[3] == data.DefaultBranch:
		writeJSON(w, http.StatusOK, map[string]any{"object": map[string]string{"sha": data.HeadSHA}})
	case len(rest) == 3 && rest[0] == "git" && rest[1] == "trees" && rest[2] == data.HeadSHA:
		entries := make([]map[string]any, 0, len(data.Tree))
		for _, entry := range data.Tree {
			entries = append(entries, map[string]any{"path": entry.Path, "type": "blob", "size": entry.Size})
		}
		writeJSON(w, http.StatusOK, map[string]any{"tree": entries, "truncated": false})
	case len(rest) == 1 && rest[0] == "readme":
		if data.Readme == "" {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"content":  base64.StdEncoding.EncodeToString([]byte(data.Readme)),
			"encoding": "base64",
		})
	case len(rest) == 2 && rest[0] == "commits" && rest[1] == data.DefaultBranch:
		writeJSON(w, http.StatusOK, map[string]string{"sha": data.HeadSHA})
	case len(rest) == 2 && rest[0] == "actions" && rest[1] == "runs":
		runs := make([]map[string]any, 0, len(data.Runs))
		for i, run := range data.Runs {
			runs = append(runs, map[string]any{
				"id":         i + 1,
				"head_sha":   run.HeadSHA,
				"status":     run.Status,
				"conclusion": run.Conclusion,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"total_count": len(runs), "workflow_runs": runs})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	}
}

func commitPayloads(commits []fixtureCommit) []map[string]any {
	payloads := make([]map[string]any, 0, len(commits))
	for _, commit := range commits {
		date := commit.CommittedAt.UTC().Format(time.RFC3339)
		payloads = append(payloads, map[string]any{
			"sha":       commit.SHA,
			"author":    map[string]string{"login": commit.Author},
			"committer": map[string]string{"login": "web-flow"},
			"commit": map[string]any{
				"message":   commit.Message,
				"author":    map[string]string{"name": commit.AuthorName, "email": commit.Author + "@example.com", "date": date},
				"committer": map[string]string{"name": "GitHub", "email": "noreply@github.com", "date": date},
			},
		})
	}
	return payloads
}

// writePage serves every item on page 1 and an empty list afterwards.
func writePage[T any](w http.ResponseWriter, page int, items []T) {
	if page > 1 {
		items = items[:0]
	}
	writeJSON(w, http.StatusOK, items)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

func repoKey(owner, repo string) string {
	return strings.ToLower(strings.TrimSpace(owner)) + "/" + strings.ToLower(strings.TrimSpace(repo))
}
