package chart

import (
	"fmt"
	"math"
	"time"

	"dipwatch/internal/heightlog"
)

// Placeholder is drawn when the document has samples but none of them are
// active.
const Placeholder = "No active sessions recorded yet"

// Options control layout and drawing.
type Options struct {
	Width       int
	Height      int
	FloorLabels bool
	Location    *time.Location // tick labels; UTC when nil
	Now         func() time.Time
}

// DefaultOptions matches the published chart.
func DefaultOptions() Options {
	return Options{Width: 1400, Height: 800, FloorLabels: true}
}

func (o Options) normalized() Options {
	if o.Width <= 0 {
		o.Width = 1400
	}
	if o.Height <= 0 {
		o.Height = 800
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Point is one plotted sample.
type Point struct {
	T time.Time
	H float64
}

// Segment is a maximal run of consecutive active samples. Segments with a
// single point are drawn as a lone marker.
type Segment []Point

// Line reports whether the segment is drawn as a polyline.
func (s Segment) Line() bool { return len(s) >= 2 }

type TimeTick struct {
	T     time.Time
	Label string
}

type ValueTick struct {
	V     float64
	Label string
}

// Plot is the resolved, drawing-independent chart.
type Plot struct {
	Title    string
	Subtitle string

	Segments []Segment
	Target   float64

	XMin, XMax time.Time
	YMin, YMax float64
	XTicks     []TimeTick
	YTicks     []ValueTick

	// Placeholder is non-empty when there is nothing to plot but samples exist.
	Placeholder string
}

// Lines counts segments drawn as polylines.
func (p Plot) Lines() int {
	n := 0
	for _, s := range p.Segments {
		if s.Line() {
			n++
		}
	}
	return n
}

// Markers counts plotted points.
func (p Plot) Markers() int {
	n := 0
	for _, s := range p.Segments {
		n += len(s)
	}
	return n
}

// Layout resolves segments, axis ranges, ticks and titles for l.
func Layout(l *heightlog.HeightLog, opts Options) Plot {
	opts = opts.normalized()
	if l == nil {
		l = heightlog.New("", 0, opts.Now())
	}

	p := Plot{
		Target:   l.FloorTarget,
		Segments: Segments(l.DataPoints),
	}
	sum := heightlog.Summarize(l)
	p.Title = fmt.Sprintf("%s's Deep Dip 2 Progress", l.Player)
	p.Subtitle = subtitle(sum)

	if len(l.DataPoints) > 0 && len(p.Segments) == 0 {
		p.Placeholder = Placeholder
	}

	p.XMin, p.XMax = timeRange(l.DataPoints, opts.Now())
	p.YMin, p.YMax = heightRange(l.DataPoints, l.FloorTarget)
	p.XTicks = timeTicks(p.XMin, p.XMax, opts.Location)
	p.YTicks = heightTicks(p.YMin, p.YMax, opts.FloorLabels)
	return p
}

// Segments splits samples into maximal runs of active samples. Any inactive
// sample ends the current run, so no line ever bridges a gap.
func Segments(samples []heightlog.Sample) []Segment {
	var out []Segment
	var cur Segment
	for _, s := range samples {
		if !s.Active() {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, Point{T: s.Timestamp, H: *s.LiveHeight})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func subtitle(sum heightlog.Summary) string {
	return fmt.Sprintf("Current: %s | Peak: %s | Progress: %s | Checks: %d | Sessions: %d",
		meters(sum.Current), meters(sum.Peak), percent(sum.Progress), sum.Checks, sum.Sessions)
}

func meters(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1fm", *v)
}

func percent(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *v)
}

func timeRange(samples []heightlog.Sample, now time.Time) (time.Time, time.Time) {
	if len(samples) == 0 {
		return now.Add(-time.Hour), now
	}
	lo, hi := samples[0].Timestamp, samples[0].Timestamp
	for _, s := range samples[1:] {
		if s.Timestamp.Before(lo) {
			lo = s.Timestamp
		}
		if s.Timestamp.After(hi) {
			hi = s.Timestamp
		}
	}
	if !hi.After(lo) {
		return lo.Add(-30 * time.Minute), hi.Add(30 * time.Minute)
	}
	return lo, hi
}

func heightRange(samples []heightlog.Sample, target float64) (float64, float64) {
	lo, hi := 0.0, target
	for _, s := range samples {
		if s.LiveHeight == nil {
			continue
		}
		h := *s.LiveHeight
		if h > hi {
			hi = h
		}
		if h < lo {
			lo = h
		}
	}
	hi *= 1.1
	if hi <= lo {
		hi = lo + 10
	}
	return lo, hi
}

// xStep picks the base tick step and label format for a span.
func xStep(span time.Duration) (time.Duration, string) {
	switch {
	case span < 12*time.Hour:
		return time.Hour, "15:04"
	case span < 3*24*time.Hour:
		return 6 * time.Hour, "01/02 15:04"
	case span < 21*24*time.Hour:
		return 24 * time.Hour, "01/02"
	default:
		return 7 * 24 * time.Hour, "01/02"
	}
}

const maxXTicks = 12

func timeTicks(lo, hi time.Time, loc *time.Location) []TimeTick {
	span := hi.Sub(lo)
	step, layout := xStep(span)
	for span/step+1 > maxXTicks {
		step *= 2
	}

	t := alignUp(lo.In(loc), step)
	var out []TimeTick
	for !t.After(hi) && len(out) < maxXTicks {
		out = append(out, TimeTick{T: t, Label: t.Format(layout)})
		if step >= 24*time.Hour {
			t = t.AddDate(0, 0, int(step/(24*time.Hour)))
		} else {
			t = t.Add(step)
		}
	}
	return out
}

// alignUp returns the first step boundary at or after t. Day-sized steps
// align to local midnight.
func alignUp(t time.Time, step time.Duration) time.Time {
	if step >= 24*time.Hour {
		mid := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		if mid.Before(t) {
			mid = mid.AddDate(0, 0, 1)
		}
		return mid
	}
	a := t.Truncate(step)
	if a.Before(t) {
		a = a.Add(step)
	}
	return a
}

func heightTicks(lo, hi float64, floors bool) []ValueTick {
	if floors {
		var out []ValueTick
		for _, f := range heightlog.Floors {
			if f.Height >= lo && f.Height <= hi {
				out = append(out, ValueTick{V: f.Height, Label: f.Name})
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	const n = 5
	out := make([]ValueTick, 0, n)
	for i := 0; i < n; i++ {
		v := lo + (hi-lo)*float64(i)/float64(n-1)
		out = append(out, ValueTick{V: v, Label: fmt.Sprintf("%.0fm", math.Round(v))})
	}
	return out
}
