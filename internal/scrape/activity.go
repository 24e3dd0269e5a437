package scrape

import (
	"errors"
	"slices"
	"time"
)

// Week is the unit activity windows are configured in.
const Week = 7 * 24 * time.Hour

const (
	day          = 24 * time.Hour
	hoursPerDay  = 24
	defaultMinWk = 1
	defaultMaxWk = 5
)

// ErrNoCommits is returned when an activity matrix is requested over no timestamps.
var ErrNoCommits = errors.New("activity matrix requires at least one commit")

// ActivityWindow bounds the activity matrix relative to the earliest commit.
type ActivityWindow struct {
	MinDelta time.Duration
	MaxDelta time.Duration
}

// DefaultActivityWindow is the builder default of one to five weeks.
func DefaultActivityWindow() ActivityWindow {
	return ActivityWindow{MinDelta: defaultMinWk * Week, MaxDelta: defaultMaxWk * Week}
}

// End returns the clamped window end for a history spanning start..latest:
// at least start+MinDelta, at most start+MaxDelta, otherwise latest.
func (w ActivityWindow) End(start, latest time.Time) time.Time {
	upper := start.Add(w.MaxDelta)
	if latest.Before(upper) {
		upper = latest
	}
	lower := start.Add(w.MinDelta)
	if upper.After(lower) {
		return upper
	}
	return lower
}

// BuildActivityMatrix buckets commit timestamps into a day by hour grid.
// Row i covers the 24h starting i days after the earliest commit; the column
// is the UTC hour. The grid has floor((end-start)/24h)+1 rows. Timestamps
// after the window end are dropped. Zero timestamps are ignored.
func BuildActivityMatrix(timestamps []time.Time, window ActivityWindow) ([][]int, error) {
	times := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		if !ts.IsZero() {
			times = append(times, ts.UTC())
		}
	}
	if len(times) == 0 {
		return nil, ErrNoCommits
	}
	slices.SortFunc(times, func(a, b time.Time) int { return a.Compare(b) })

	start := times[0]
	end := window.End(start, times[len(times)-1])
	numDays := int(end.Sub(start)/day) + 1

	matrix := make([][]int, numDays)
	for i := range matrix {
		matrix[i] = make([]int, hoursPerDay)
	}

	for _, ts := range times {
		if ts.Before(start) || ts.After(end) {
			continue
		}
		matrix[int(ts.Sub(start)/day)][ts.Hour()]++
	}
	return matrix, nil
}
