package chart

import (
	"strings"
	"testing"
	"time"

	"dipwatch/internal/heightlog"
)

var t0 = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func testOpts() Options {
	o := DefaultOptions()
	o.Now = func() time.Time { return t0 }
	return o
}

func doc(samples ...heightlog.Sample) *heightlog.HeightLog {
	l := heightlog.New("fajoogaloo", 1938, t0)
	l.DataPoints = append(l.DataPoints, samples...)
	return l
}

func TestLayoutGapSplitsSegments(t *testing.T) {
	t.Parallel()
	l := doc(
		heightlog.NewSample(t0, heightlog.Height(500), true),
		heightlog.NullSample(t0.Add(10*time.Minute)),
		heightlog.NewSample(t0.Add(20*time.Minute), heightlog.Height(600), true),
	)
	p := Layout(l, testOpts())
	if len(p.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(p.Segments))
	}
	if p.Lines() != 0 {
		t.Fatalf("expected no polylines across the gap, got %d", p.Lines())
	}
	if p.Markers() != 2 {
		t.Fatalf("expected 2 markers, got %d", p.Markers())
	}
	if p.Placeholder != "" {
		t.Fatalf("unexpected placeholder %q", p.Placeholder)
	}
}

func TestLayoutRunsBecomeLines(t *testing.T) {
	t.Parallel()
	l := doc(
		heightlog.NewSample(t0, heightlog.Height(100), true),
		heightlog.NewSample(t0.Add(time.Minute), heightlog.Height(110), true),
		heightlog.NewSample(t0.Add(2*time.Minute), heightlog.Height(120), false), // ended
		heightlog.NewSample(t0.Add(3*time.Minute), heightlog.Height(10), true),
	)
	p := Layout(l, testOpts())
	if len(p.Segments) != 2 || p.Lines() != 1 || p.Markers() != 3 {
		t.Fatalf("segments=%d lines=%d markers=%d", len(p.Segments), p.Lines(), p.Markers())
	}
}

func TestLayoutAxisIncludesTarget(t *testing.T) {
	t.Parallel()
	l := doc(
		heightlog.NewSample(t0, heightlog.Height(100), true),
		heightlog.NewSample(t0.Add(time.Minute), heightlog.Height(200), true),
	)
	p := Layout(l, testOpts())
	if p.YMax < l.FloorTarget {
		t.Fatalf("YMax %v below target %v", p.YMax, l.FloorTarget)
	}
	if p.YMin != 0 {
		t.Fatalf("YMin = %v, want 0", p.YMin)
	}

	above := doc(heightlog.NewSample(t0, heightlog.Height(2050), true))
	if got := Layout(above, testOpts()).YMax; got < 2050*1.1-1e-9 {
		t.Fatalf("YMax = %v, want headroom above the peak", got)
	}
}

func TestLayoutSinglePoint(t *testing.T) {
	t.Parallel()
	p := Layout(doc(heightlog.NewSample(t0, heightlog.Height(800), true)), testOpts())
	if p.Markers() != 1 || p.Lines() != 0 {
		t.Fatalf("markers=%d lines=%d", p.Markers(), p.Lines())
	}
	if !p.XMin.Equal(t0.Add(-30*time.Minute)) || !p.XMax.Equal(t0.Add(30*time.Minute)) {
		t.Fatalf("unexpected padded range %v..%v", p.XMin, p.XMax)
	}
}

func TestLayoutEmptyAndInactive(t *testing.T) {
	t.Parallel()
	empty := Layout(doc(), testOpts())
	if empty.Placeholder != "" || len(empty.Segments) != 0 {
		t.Fatalf("empty document: %+v", empty)
	}
	if !empty.XMin.Equal(t0.Add(-time.Hour)) || !empty.XMax.Equal(t0) {
		t.Fatalf("empty range %v..%v", empty.XMin, empty.XMax)
	}
	if !strings.Contains(empty.Subtitle, "Current: n/a") || !strings.Contains(empty.Subtitle, "Progress: n/a") {
		t.Fatalf("subtitle %q", empty.Subtitle)
	}

	idle := Layout(doc(heightlog.NullSample(t0), heightlog.NullSample(t0.Add(time.Hour))), testOpts())
	if idle.Placeholder != Placeholder {
		t.Fatalf("expected placeholder, got %q", idle.Placeholder)
	}
}

func TestLayoutTitle(t *testing.T) {
	t.Parallel()
	p := Layout(doc(
		heightlog.NewSample(t0, heightlog.Height(969), true),
		heightlog.NullSample(t0.Add(time.Minute)),
	), testOpts())
	if p.Title != "fajoogaloo's Deep Dip 2 Progress" {
		t.Fatalf("title %q", p.Title)
	}
	want := "Current: 969.0m | Peak: 969.0m | Progress: 50.0% | Checks: 2 | Sessions: 1"
	if p.Subtitle != want {
		t.Fatalf("subtitle %q, want %q", p.Subtitle, want)
	}
}

func TestTimeTicks(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		span   time.Duration
		label  string
		maxLen int
	}{
		{name: "hours", span: 5 * time.Hour, label: "13:00"},
		{name: "two days", span: 48 * time.Hour, label: "01/10 18:00"},
		{name: "week", span: 7 * 24 * time.Hour, label: "01/11"},
		{name: "months", span: 90 * 24 * time.Hour, label: "01/11"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			ticks := timeTicks(t0.Add(30*time.Minute), t0.Add(30*time.Minute+tt.span), time.UTC)
			if len(ticks) == 0 || len(ticks) > maxXTicks {
				t.Fatalf("got %d ticks", len(ticks))
			}
			if ticks[0].Label != tt.label {
				t.Fatalf("first label %q, want %q", ticks[0].Label, tt.label)
			}
			for i := 1; i < len(ticks); i++ {
				if !ticks[i].T.After(ticks[i-1].T) {
					t.Fatal("ticks not increasing")
				}
			}
		})
	}
}

func TestHeightTicks(t *testing.T) {
	t.Parallel()
	floors := heightTicks(0, 1938*1.1, true)
	if floors[0].Label != "Floor 00" || floors[len(floors)-1].Label != "The End" {
		t.Fatalf("unexpected floor ticks %+v", floors)
	}
	meters := heightTicks(0, 400, false)
	if len(meters) != 5 || meters[4].Label != "400m" {
		t.Fatalf("unexpected meter ticks %+v", meters)
	}
}
