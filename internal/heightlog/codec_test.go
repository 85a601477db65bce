package heightlog

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDecodeLegacyDocument(t *testing.T) {
	t.Parallel()
	raw := `{
  "player": "fajoogaloo",
  "floor_target": 1500.0,
  "last_updated": "2026-01-10T12:34:56.123456",
  "data_points": [
    {"timestamp": "2025-12-11T10:00:00Z", "live_height": null, "is_playing": false},
    {"timestamp": "2025-12-11T10:10:00.5", "live_height": 812.25, "is_playing": true},
    {"timestamp": "2025-12-11T10:20:00+02:00", "live_height": null, "is_playing": true}
  ]
}`
	doc, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(doc.DataPoints) != 3 {
		t.Fatalf("expected 3 points, got %d", len(doc.DataPoints))
	}
	if got := doc.DataPoints[1]; got.LiveHeight == nil || *got.LiveHeight != 812.25 || !got.IsPlaying {
		t.Fatalf("unexpected point 1: %+v", got)
	}
	// is_playing=true with a null height is normalized away.
	if doc.DataPoints[2].IsPlaying {
		t.Fatal("expected is_playing normalized to false")
	}
	if doc.LastUpdated.Year() != 2026 {
		t.Fatalf("unexpected last_updated %v", doc.LastUpdated)
	}
}

func TestDecodeRejectsSchemaMismatch(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"empty":             ``,
		"truncated":         `{"player": "x", "floor_target": 1, "data_points": [`,
		"missing player":    `{"floor_target": 1, "data_points": []}`,
		"zero target":       `{"player": "x", "floor_target": 0, "data_points": []}`,
		"missing points":    `{"player": "x", "floor_target": 1}`,
		"wrong height type": `{"player": "x", "floor_target": 1, "data_points": [{"timestamp": "2026-01-01T00:00:00Z", "live_height": "high", "is_playing": true}]}`,
		"bad timestamp":     `{"player": "x", "floor_target": 1, "data_points": [{"timestamp": "yesterday", "live_height": null, "is_playing": false}]}`,
		"trailing":          `{"player": "x", "floor_target": 1, "data_points": []} {}`,
		"unknown field":     `{"player": "x", "floor_target": 1, "data_points": [], "bogus": 1}`,
	}
	for name, raw := range tests {
		name, raw := name, raw
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(raw)); !errors.Is(err, ErrDocumentCorrupt) {
				t.Fatalf("expected ErrDocumentCorrupt, got %v", err)
			}
		})
	}
}

func TestEncodeKeepsNullHeights(t *testing.T) {
	t.Parallel()
	ts := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	doc := New("fajoogaloo", 1938, ts)
	doc.DataPoints = append(doc.DataPoints, NullSample(ts), NewSample(ts, Height(12.5), true))

	b, err := Encode(doc)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s := string(b)
	for _, want := range []string{
		`"live_height": null`,
		`"live_height": 12.5`,
		`"last_updated": "2026-01-10T12:00:00Z"`,
		`"floor_target": 1938`,
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("encoded document missing %s:\n%s", want, s)
		}
	}

	back, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if back.DataPoints[0].LiveHeight != nil || *back.DataPoints[1].LiveHeight != 12.5 {
		t.Fatalf("unexpected decoded points: %+v", back.DataPoints)
	}
}

func TestDecodeSamplesArray(t *testing.T) {
	t.Parallel()
	raw := `[{"timestamp": "2026-01-01T00:00:00Z", "live_height": 5, "is_playing": true}]`
	got, err := DecodeSamples([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeSamples: %v", err)
	}
	if len(got) != 1 || *got[0].LiveHeight != 5 {
		t.Fatalf("unexpected samples: %+v", got)
	}
}

func TestMergeDedupesAtSecondPrecision(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	doc := New("fajoogaloo", 1938, base)
	doc.DataPoints = []Sample{
		NewSample(base.Add(20*time.Minute), Height(300), true),
	}
	added := Merge(doc, []Sample{
		NewSample(base, Height(100), true),
		NewSample(base.Add(20*time.Minute+300*time.Millisecond), Height(999), true), // dup
		NullSample(base.Add(10 * time.Minute)),
	})
	if added != 2 {
		t.Fatalf("expected 2 added, got %d", added)
	}
	if len(doc.DataPoints) != 3 {
		t.Fatalf("expected 3 points, got %d", len(doc.DataPoints))
	}
	for i := 1; i < len(doc.DataPoints); i++ {
		if doc.DataPoints[i].Timestamp.Before(doc.DataPoints[i-1].Timestamp) {
			t.Fatal("points not sorted")
		}
	}
	if *doc.DataPoints[2].LiveHeight != 300 {
		t.Fatalf("existing sample should win, got %v", *doc.DataPoints[2].LiveHeight)
	}
}

func TestMergeKeepsExistingSameSecondSamples(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	doc := New("fajoogaloo", 1938, base)
	doc.DataPoints = []Sample{
		NewSample(base, Height(100), true),
		NewSample(base.Add(400*time.Millisecond), Height(101), true),
	}
	added := Merge(doc, []Sample{
		NewSample(base.Add(time.Hour), Height(500), true),
		NewSample(base.Add(200*time.Millisecond), Height(999), true), // same second as existing
	})
	if added != 1 {
		t.Fatalf("expected 1 added, got %d", added)
	}
	if len(doc.DataPoints) != 3 {
		t.Fatalf("expected 3 points, got %d", len(doc.DataPoints))
	}
	if *doc.DataPoints[0].LiveHeight != 100 || *doc.DataPoints[1].LiveHeight != 101 {
		t.Fatalf("existing samples changed: %+v", doc.DataPoints[:2])
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	doc := New("fajoogaloo", 1938, base)
	doc.DataPoints = []Sample{
		NewSample(base, Height(1000), true),
		NewSample(base.Add(time.Minute), Height(1950), true),
		NewSample(base.Add(2*time.Minute), Height(900), true),
		NullSample(base.Add(3 * time.Minute)),
	}
	sum := Summarize(doc)
	if sum.Checks != 4 || sum.Sessions != 3 {
		t.Fatalf("checks=%d sessions=%d", sum.Checks, sum.Sessions)
	}
	if sum.Current == nil || *sum.Current != 900 {
		t.Fatalf("current = %v", sum.Current)
	}
	if sum.Peak == nil || *sum.Peak != 1950 {
		t.Fatalf("peak = %v", sum.Peak)
	}
	if !sum.Reached || !sum.ReachedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("reached=%v at %v", sum.Reached, sum.ReachedAt)
	}

	empty := Summarize(New("x", 10, base))
	if empty.Current != nil || empty.Progress != nil {
		t.Fatalf("expected nil current/progress, got %+v", empty)
	}
	if p := Progress(1950, 1938); p != 100 {
		t.Fatalf("Progress clamp = %v", p)
	}
}
