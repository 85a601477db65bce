package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	logx "dipwatch/pkg/logx"
)

// Artifacts are the files produced by a tick.
type Artifacts struct {
	HeightsPath string
	ChartPath   string // empty when the chart failed to render
	At          time.Time
	Message     string // commit message / object metadata
}

// Paths lists the non-empty artifact paths.
func (a Artifacts) Paths() []string {
	out := make([]string, 0, 2)
	for _, p := range []string{a.HeightsPath, a.ChartPath} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Publisher ships artifacts somewhere outside the host.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, a Artifacts) error
}

// Set publishes to every member; one failure does not stop the others.
type Set struct {
	log  logx.Logger
	pubs []Publisher
}

func NewSet(log logx.Logger, pubs ...Publisher) *Set {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Set{log: log.With(logx.String("comp", "publish")), pubs: pubs}
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.pubs)
}

func (s *Set) Publish(ctx context.Context, a Artifacts) error {
	var errs []error
	for _, p := range s.pubs {
		start := time.Now()
		if err := p.Publish(ctx, a); err != nil {
			s.log.Warn("publish failed", logx.String("target", p.Name()), logx.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		s.log.Debug("published", logx.String("target", p.Name()), logx.Duration("took", time.Since(start)))
	}
	return errors.Join(errs...)
}
