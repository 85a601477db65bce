package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"dipwatch/internal/heightlog"
	logx "dipwatch/pkg/logx"
)

// ErrRender wraps every rendering or chart write failure.
var ErrRender = errors.New("chart: render failed")

// Renderer draws height logs as PNG charts.
type Renderer struct {
	opts Options
	log  logx.Logger
}

func NewRenderer(opts Options, log logx.Logger) *Renderer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Renderer{opts: opts.normalized(), log: log}
}

// Options returns the effective options.
func (r *Renderer) Options() Options { return r.opts }

// Render lays out and draws l.
func (r *Renderer) Render(l *heightlog.HeightLog) (img image.Image, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			img = nil
			err = fmt.Errorf("%w: %v", ErrRender, rec)
		}
	}()
	if r.opts.Width < marginLeft+marginRight+10 || r.opts.Height < marginTop+marginBottom+10 {
		return nil, fmt.Errorf("%w: canvas %dx%d too small", ErrRender, r.opts.Width, r.opts.Height)
	}

	p := Layout(l, r.opts)
	c := newCanvas(r.opts.Width, r.opts.Height, p)
	c.drawFrame()
	c.drawTarget()
	c.drawSegments()
	c.drawPlaceholder()
	c.drawTitle()
	return c.img, nil
}

// EncodePNG renders l and returns the PNG bytes.
func (r *Renderer) EncodePNG(l *heightlog.HeightLog) ([]byte, error) {
	img, err := r.Render(l)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}

// WriteFile renders l to path atomically. On failure any previous chart at
// path is left as it was.
func (r *Renderer) WriteFile(path string, l *heightlog.HeightLog) error {
	b, err := r.EncodePNG(l)
	if err != nil {
		return err
	}
	if err := heightlog.WriteFileAtomic(path, b, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrRender, err)
	}
	r.log.Debug("chart written", logx.String("path", path), logx.Int("bytes", len(b)))
	return nil
}
