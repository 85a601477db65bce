package chart

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dipwatch/internal/heightlog"
	logx "dipwatch/pkg/logx"
)

func TestRenderEdgeCases(t *testing.T) {
	t.Parallel()
	r := NewRenderer(testOpts(), logx.Nop())
	tests := map[string]*heightlog.HeightLog{
		"empty":    doc(),
		"inactive": doc(heightlog.NullSample(t0)),
		"single":   doc(heightlog.NewSample(t0, heightlog.Height(42), true)),
		"series": doc(
			heightlog.NewSample(t0, heightlog.Height(100), true),
			heightlog.NewSample(t0.Add(10*time.Minute), heightlog.Height(1950), true),
			heightlog.NullSample(t0.Add(20*time.Minute)),
			heightlog.NewSample(t0.Add(30*time.Minute), heightlog.Height(-3), true),
		),
	}
	for name, l := range tests {
		name, l := name, l
		t.Run(name, func(t *testing.T) {
			img, err := r.Render(l)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 1400 || b.Dy() != 800 {
				t.Fatalf("unexpected bounds %v", b)
			}
		})
	}
}

func TestWriteFileProducesPNG(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "charts", "height_progress.png")
	r := NewRenderer(testOpts(), logx.Nop())
	if err := r.WriteFile(path, doc(heightlog.NewSample(t0, heightlog.Height(42), true))); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := png.Decode(bytes.NewReader(b)); err != nil {
		t.Fatalf("not a png: %v", err)
	}
}

func TestWriteFileFailureKeepsPriorChart(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "height_progress.png")
	if err := NewRenderer(testOpts(), logx.Nop()).WriteFile(path, doc()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	tiny := testOpts()
	tiny.Width, tiny.Height = 20, 20
	err = NewRenderer(tiny, logx.Nop()).WriteFile(path, doc())
	if !errors.Is(err, ErrRender) {
		t.Fatalf("expected ErrRender, got %v", err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("prior chart was modified")
	}
}

func TestWriteFileUnwritableDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	blocker := filepath.Join(dir, "charts")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := NewRenderer(testOpts(), logx.Nop()).WriteFile(filepath.Join(blocker, "out.png"), doc())
	if !errors.Is(err, ErrRender) {
		t.Fatalf("expected ErrRender, got %v", err)
	}
}
