package heightlog

import (
	"math"
	"time"
)

// Summary condenses a document for titles, reports and `dipwatch stats`.
type Summary struct {
	Player      string    `json:"player"`
	FloorTarget float64   `json:"floor_target"`
	Checks      int       `json:"checks"`
	Sessions    int       `json:"sessions"` // active samples
	Current     *float64  `json:"current"`  // most recent known height
	CurrentAt   time.Time `json:"current_at,omitempty"`
	Peak        *float64  `json:"peak"`
	Progress    *float64  `json:"progress_pct"`
	Reached     bool      `json:"reached"`
	ReachedAt   time.Time `json:"reached_at,omitempty"`
	First       time.Time `json:"first,omitempty"`
	Last        time.Time `json:"last,omitempty"`
}

// Summarize scans the whole document once.
func Summarize(l *HeightLog) Summary {
	if l == nil {
		return Summary{}
	}
	sum := Summary{
		Player:      l.Player,
		FloorTarget: l.FloorTarget,
		Checks:      len(l.DataPoints),
	}
	if n := len(l.DataPoints); n > 0 {
		sum.First = l.DataPoints[0].Timestamp
		sum.Last = l.DataPoints[n-1].Timestamp
	}

	for _, s := range l.DataPoints {
		if s.IsPlaying {
			sum.Sessions++
		}
		if s.LiveHeight == nil {
			continue
		}
		h := *s.LiveHeight
		sum.Current = Height(h)
		sum.CurrentAt = s.Timestamp
		if sum.Peak == nil || h > *sum.Peak {
			sum.Peak = Height(h)
		}
		if !sum.Reached && h >= l.FloorTarget {
			sum.Reached = true
			sum.ReachedAt = s.Timestamp
		}
	}
	if sum.Current != nil {
		sum.Progress = Height(Progress(*sum.Current, l.FloorTarget))
	}
	return sum
}

// Progress is height/target as a percentage, clamped to [0, 100].
func Progress(height, target float64) float64 {
	if target <= 0 {
		return 0
	}
	p := height / target * 100
	return math.Max(0, math.Min(100, p))
}
