package heightlog

import (
	"sort"
	"time"
)

// Merge folds backfilled samples into l.
//
// Existing samples are all kept. An incoming sample is dropped when its
// timestamp falls in the same UTC second as an existing sample or an earlier
// incoming one. The result is sorted by timestamp. It returns how many
// incoming samples were added.
func Merge(l *HeightLog, incoming []Sample) int {
	if l == nil || len(incoming) == 0 {
		return 0
	}

	seen := make(map[int64]struct{}, len(l.DataPoints)+len(incoming))
	key := func(t time.Time) int64 { return t.UTC().Truncate(time.Second).Unix() }

	merged := make([]Sample, 0, len(l.DataPoints)+len(incoming))
	merged = append(merged, l.DataPoints...)
	for _, s := range l.DataPoints {
		seen[key(s.Timestamp)] = struct{}{}
	}
	before := len(merged)
	for _, s := range incoming {
		if s.Timestamp.IsZero() {
			continue
		}
		k := key(s.Timestamp)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, s.normalized())
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	l.DataPoints = merged
	return len(merged) - before
}
