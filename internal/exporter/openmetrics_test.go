package exporter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cam3ron2/classroom-stats/internal/stats"
)

type staticReader struct {
	mu      sync.Mutex
	records []stats.RepoStats
	err     error
	calls   int
}

func (r *staticReader) Latest(context.Context) ([]stats.RepoStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.records, r.err
}

func (r *staticReader) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func scrapeMetrics(t testing.TB, handler http.Handler) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept", "application/openmetrics-text")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}
	return rec.Body.String()
}

func TestOpenMetricsHandler(t *testing.T) {
	t.Parallel()

	reader := &staticReader{records: []stats.RepoStats{
		{
			GroupNumber:      7,
			GroupSize:        4,
			NumContributors:  stats.Ptr(4),
			NumPRs:           stats.Ptr(12),
			NumCommitsToMain: stats.Ptr(80),
			TotalCommits:     stats.Ptr(95),
			NumDockerFiles:   stats.Ptr(2),
			RepoSize:         stats.Ptr(1.5),
			ReadmeLength:     stats.Ptr(420),
			ActionsPassing:   stats.Ptr(true),
		},
		stats.Inaccessible(8, 3),
	}}

	body := scrapeMetrics(t, NewOpenMetricsHandler(reader))

	wantSubstrs := []string{
		`# TYPE classroom_repo_commits gauge`,
		`classroom_repo_commits{group="7"} 95`,
		`classroom_repo_contributors{group="7"} 4`,
		`classroom_repo_pull_requests{group="7"} 12`,
		`classroom_repo_size_megabytes{group="7"} 1.5`,
		`classroom_repo_readme_words{group="7"} 420`,
		`classroom_repo_actions_passing{group="7"} 1`,
		`classroom_repo_accessible{group="7"} 1`,
		`classroom_repo_accessible{group="8"} 0`,
		`classroom_repo_group_size{group="8"} 3`,
		`classroom_stats_snapshot_up 1`,
		"# EOF",
	}
	for _, substr := range wantSubstrs {
		if !strings.Contains(body, substr) {
			t.Fatalf("metrics output missing %q:\n%s", substr, body)
		}
	}

	unwanted := []string{
		`classroom_repo_commits{group="8"}`,
		`classroom_repo_report_warnings{group="7"}`,
		`classroom_repo_python_files{group="7"}`,
	}
	for _, substr := range unwanted {
		if strings.Contains(body, substr) {
			t.Fatalf("metrics output has null-field series %q:\n%s", substr, body)
		}
	}
}

func TestOpenMetricsHandlerSnapshotUnavailable(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		reader SnapshotReader
	}{
		{name: "read_error", reader: &staticReader{err: errors.New("no snapshot")}},
		{name: "nil_reader", reader: nil},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			body := scrapeMetrics(t, NewOpenMetricsHandler(tc.reader))
			if !strings.Contains(body, "classroom_stats_snapshot_up 0") {
				t.Fatalf("metrics output missing snapshot_up 0:\n%s", body)
			}
			if strings.Contains(body, "classroom_repo_accessible{") {
				t.Fatalf("metrics output has per-group series without a snapshot:\n%s", body)
			}
		})
	}
}
