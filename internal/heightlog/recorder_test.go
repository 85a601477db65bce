package heightlog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func newTestRecorder(store Store) *Recorder {
	r := NewRecorder(store, RecorderConfig{Player: "fajoogaloo", FloorTarget: 1938}, nopLogger())
	return r.WithClock(fixedClock(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)))
}

func TestRecordInitializesMissingDocument(t *testing.T) {
	store := NewMemStore(nil)
	r := newTestRecorder(store)

	ts := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	doc, err := r.Record(context.Background(), NewSample(ts, Height(512.5), true))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if doc.Player != "fajoogaloo" || doc.FloorTarget != 1938 {
		t.Fatalf("unexpected identity: %q %v", doc.Player, doc.FloorTarget)
	}
	if len(doc.DataPoints) != 1 {
		t.Fatalf("expected 1 point, got %d", len(doc.DataPoints))
	}
	if doc.LastUpdated.IsZero() {
		t.Fatal("last_updated not stamped")
	}

	persisted, err := Decode(store.Raw())
	if err != nil {
		t.Fatalf("decode persisted: %v", err)
	}
	if len(persisted.DataPoints) != 1 || *persisted.DataPoints[0].LiveHeight != 512.5 {
		t.Fatalf("unexpected persisted points: %+v", persisted.DataPoints)
	}
}

func TestRecordOnePointPerTick(t *testing.T) {
	store := NewMemStore(nil)
	r := newTestRecorder(store)

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	ticks := []Sample{
		NewSample(base, Height(100), true),
		NullSample(base.Add(10 * time.Minute)), // fetch failed
		NullSample(base.Add(20 * time.Minute)), // player not found
		NewSample(base.Add(30*time.Minute), Height(250), true),
		NewSample(base.Add(40*time.Minute), Height(260), false),
	}
	var doc *HeightLog
	for i, s := range ticks {
		var err error
		doc, err = r.Record(context.Background(), s)
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if len(doc.DataPoints) != i+1 {
			t.Fatalf("tick %d: expected %d points, got %d", i, i+1, len(doc.DataPoints))
		}
	}
	if doc.DataPoints[1].LiveHeight != nil || doc.DataPoints[1].IsPlaying {
		t.Fatalf("expected null sample, got %+v", doc.DataPoints[1])
	}
}

func TestRecordRecoversCorruptDocument(t *testing.T) {
	store := NewMemStore([]byte(`{"player": "fajoogaloo", "data_points": [`))
	var recovered string
	r := NewRecorder(store, RecorderConfig{
		Player:      "fajoogaloo",
		FloorTarget: 1938,
		OnRecover:   func(backup string, cause error) { recovered = backup },
	}, nopLogger())

	ts := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	doc, err := r.Record(context.Background(), NewSample(ts, Height(42), true))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(doc.DataPoints) != 1 {
		t.Fatalf("expected fresh document with 1 point, got %d", len(doc.DataPoints))
	}
	if recovered == "" {
		t.Fatal("OnRecover not called")
	}
	backups := store.Backups()
	if len(backups) != 1 || !strings.Contains(string(backups[0]), `"data_points": [`) {
		t.Fatalf("corrupt bytes not preserved: %q", backups)
	}

	if _, err := r.Record(context.Background(), NullSample(ts.Add(time.Minute))); err != nil {
		t.Fatalf("next Record: %v", err)
	}
}

func TestRecordSurfacesPersistenceFailure(t *testing.T) {
	store := NewMemStore(nil)
	store.SaveErr = errors.New("disk full")
	r := newTestRecorder(store)

	_, err := r.Record(context.Background(), NullSample(time.Now()))
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestRecordClampsTimestampRegression(t *testing.T) {
	store := NewMemStore(nil)
	r := newTestRecorder(store)

	t1 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	if _, err := r.Record(context.Background(), NewSample(t1, Height(10), true)); err != nil {
		t.Fatal(err)
	}
	doc, err := r.Record(context.Background(), NewSample(t1.Add(-time.Hour), Height(20), true))
	if err != nil {
		t.Fatal(err)
	}
	if !doc.DataPoints[1].Timestamp.Equal(t1) {
		t.Fatalf("expected clamped timestamp %v, got %v", t1, doc.DataPoints[1].Timestamp)
	}
}

func TestFileStoreCorruptRecovery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data", "heights.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not json at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRecorder(NewFileStore(path), RecorderConfig{Player: "fajoogaloo", FloorTarget: 1938}, nopLogger())
	doc, err := r.Record(context.Background(), NullSample(time.Now()))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(doc.DataPoints) != 1 {
		t.Fatalf("expected 1 point, got %d", len(doc.DataPoints))
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	var backup string
	for _, e := range entries {
		if IsBackupPath(e.Name()) {
			backup = filepath.Join(filepath.Dir(path), e.Name())
		}
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
	if backup == "" {
		t.Fatal("corrupt file was not preserved")
	}
	b, err := os.ReadFile(backup)
	if err != nil || string(b) != "not json at all" {
		t.Fatalf("backup content = %q, err=%v", b, err)
	}

	doc, err = r.Record(context.Background(), NullSample(time.Now()))
	if err != nil {
		t.Fatalf("second Record: %v", err)
	}
	if len(doc.DataPoints) != 2 {
		t.Fatalf("expected 2 points, got %d", len(doc.DataPoints))
	}
}

func TestLoadDoesNotRecover(t *testing.T) {
	store := NewMemStore([]byte("{"))
	r := newTestRecorder(store)
	if _, err := r.Load(context.Background()); !errors.Is(err, ErrDocumentCorrupt) {
		t.Fatalf("expected ErrDocumentCorrupt, got %v", err)
	}
	if len(store.Backups()) != 0 {
		t.Fatal("Load must not quarantine")
	}
}
