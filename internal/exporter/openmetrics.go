// Package exporter renders the latest statistics snapshot as OpenMetrics gauges.
package exporter

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cam3ron2/classroom-stats/internal/stats"
)

const (
	metricPrefix   = "classroom_repo_"
	collectTimeout = 10 * time.Second
)

// SnapshotReader returns the latest statistics records.
type SnapshotReader interface {
	Latest(ctx context.Context) ([]stats.RepoStats, error)
}

type recordGauge struct {
	desc  *prometheus.Desc
	value func(stats.RepoStats) (float64, bool)
}

func newRecordGauge(name, help string, value func(stats.RepoStats) (float64, bool)) recordGauge {
	return recordGauge{
		desc:  prometheus.NewDesc(metricPrefix+name, help, []string{"group"}, nil),
		value: value,
	}
}

func intValue(v *int) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return float64(*v), true
}

func floatValue(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}

func boolValue(v *bool) (float64, bool) {
	if v == nil {
		return 0, false
	}
	if *v {
		return 1, true
	}
	return 0, true
}

var recordGauges = []recordGauge{
	newRecordGauge("accessible", "Whether the group repository could be reached.", func(s stats.RepoStats) (float64, bool) {
		accessible := s.Accessible()
		return boolValue(&accessible)
	}),
	newRecordGauge("group_size", "Number of students in the group.", func(s stats.RepoStats) (float64, bool) {
		return float64(s.GroupSize), true
	}),
	newRecordGauge("contributors", "Number of listed contributors.", func(s stats.RepoStats) (float64, bool) {
		return intValue(s.NumContributors)
	}),
	newRecordGauge("pull_requests", "Number of pull requests in any state.", func(s stats.RepoStats) (float64, bool) {
		return intValue(s.NumPRs)
	}),
	newRecordGauge("commits_to_main", "Number of commits on the default branch.", func(s stats.RepoStats) (float64, bool) {
		return intValue(s.NumCommitsToMain)
	}),
	newRecordGauge("commits", "Contributor commits including attributed pull request commits.", func(s stats.RepoStats) (float64, bool) {
		return intValue(s.TotalCommits)
	}),
	newRecordGauge("average_commit_length", "Mean commit message length in characters.", func(s stats.RepoStats) (float64, bool) {
		return floatValue(s.AverageCommitLength)
	}),
	newRecordGauge("docker_files", "Number of Dockerfiles.", func(s stats.RepoStats) (float64, bool) {
		return intValue(s.NumDockerFiles)
	}),
	newRecordGauge("python_files", "Number of Python files.", func(s stats.RepoStats) (float64, bool) {
		return intValue(s.NumPythonFiles)
	}),
	newRecordGauge("workflow_files", "Number of GitHub Actions workflow files.", func(s stats.RepoStats) (float64, bool) {
		return intValue(s.NumWorkflowFiles)
	}),
	newRecordGauge("size_megabytes", "Summed size of repository files in MiB.", func(s stats.RepoStats) (float64, bool) {
		return floatValue(s.RepoSize)
	}),
	newRecordGauge("readme_words", "Word count of the rendered README.", func(s stats.RepoStats) (float64, bool) {
		return intValue(s.ReadmeLength)
	}),
	newRecordGauge("actions_passing", "Whether every push workflow run on the default branch head succeeded.", func(s stats.RepoStats) (float64, bool) {
		return boolValue(s.ActionsPassing)
	}),
	newRecordGauge("report_warnings", "Warnings reported by the report checker.", func(s stats.RepoStats) (float64, bool) {
		return intValue(s.NumWarnings)
	}),
}

var snapshotUpDesc = prometheus.NewDesc(
	"classroom_stats_snapshot_up",
	"Whether the latest snapshot could be read.",
	nil,
	nil,
)

// NewOpenMetricsHandler returns a handler that renders the latest snapshot
// through the Prometheus OpenMetrics encoder. Null fields are not emitted.
func NewOpenMetricsHandler(reader SnapshotReader) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(&snapshotCollector{reader: reader})

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

type snapshotCollector struct {
	reader SnapshotReader
}

func (c *snapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- snapshotUpDesc
	for _, gauge := range recordGauges {
		ch <- gauge.desc
	}
}

func (c *snapshotCollector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.reader == nil {
		ch <- prometheus.MustNewConstMetric(snapshotUpDesc, prometheus.GaugeValue, 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	records, err := c.reader.Latest(ctx)
	if err != nil {
		ch <- prometheus.MustNewConstMetric(snapshotUpDesc, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(snapshotUpDesc, prometheus.GaugeValue, 1)

	for _, record := range records {
		group := strconv.Itoa(record.GroupNumber)
		for _, gauge := range recordGauges {
			value, ok := gauge.value(record)
			if !ok {
				continue
			}
			metric, err := prometheus.NewConstMetric(gauge.desc, prometheus.GaugeValue, value, group)
			if err != nil {
				continue
			}
			ch <- metric
		}
	}
}
