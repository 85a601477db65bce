package heightlog

import (
	"math"
	"time"
)

// Sample is one recorded tick.
//
// LiveHeight is nil when the player had no active session or the fetch failed.
// IsPlaying is only meaningful together with a height; see NewSample.
type Sample struct {
	Timestamp  time.Time
	LiveHeight *float64
	IsPlaying  bool
}

// HeightLog is the single persisted document.
//
// DataPoints is append-only; insertion order is chronological order.
type HeightLog struct {
	Player      string
	FloorTarget float64
	LastUpdated time.Time
	DataPoints  []Sample
}

// NewSample builds a normalized sample.
//
// A non-finite height is dropped, and IsPlaying is forced to false when there
// is no height.
func NewSample(ts time.Time, height *float64, playing bool) Sample {
	s := Sample{Timestamp: ts, LiveHeight: height, IsPlaying: playing}
	return s.normalized()
}

// NullSample is the placeholder recorded when the fetch failed or the player
// was not found.
func NullSample(ts time.Time) Sample {
	return Sample{Timestamp: ts}
}

// SampleFromFetch maps one fetch outcome to the sample recorded for it. Any
// error, including a missing player, yields a null sample stamped now.
func SampleFromFetch(height *float64, playing bool, err error, now time.Time) Sample {
	if err != nil {
		return NullSample(now)
	}
	return NewSample(now, height, playing)
}

// Height returns a pointer to a copy of v, for building samples inline.
func Height(v float64) *float64 { return &v }

func (s Sample) normalized() Sample {
	if s.LiveHeight != nil {
		v := *s.LiveHeight
		if math.IsNaN(v) || math.IsInf(v, 0) {
			s.LiveHeight = nil
		} else {
			s.LiveHeight = &v
		}
	}
	if s.LiveHeight == nil {
		s.IsPlaying = false
	}
	return s
}

// Active reports whether the sample belongs to a live session: the player is
// playing and a height was recorded. Only active samples are charted.
func (s Sample) Active() bool {
	return s.IsPlaying && s.LiveHeight != nil
}

// New returns an empty document for player with the given target.
func New(player string, floorTarget float64, now time.Time) *HeightLog {
	return &HeightLog{
		Player:      player,
		FloorTarget: floorTarget,
		LastUpdated: now,
		DataPoints:  []Sample{},
	}
}

// Clone returns a deep copy, so callers can hand the document to collaborators
// without sharing the sample slice or height pointers.
func (l *HeightLog) Clone() *HeightLog {
	if l == nil {
		return nil
	}
	cp := *l
	cp.DataPoints = make([]Sample, len(l.DataPoints))
	for i, s := range l.DataPoints {
		if s.LiveHeight != nil {
			v := *s.LiveHeight
			s.LiveHeight = &v
		}
		cp.DataPoints[i] = s
	}
	return &cp
}

// Last returns the most recent sample.
func (l *HeightLog) Last() (Sample, bool) {
	if l == nil || len(l.DataPoints) == 0 {
		return Sample{}, false
	}
	return l.DataPoints[len(l.DataPoints)-1], true
}
