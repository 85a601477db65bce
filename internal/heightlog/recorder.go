package heightlog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	logx "dipwatch/pkg/logx"
)

// RecorderConfig fixes the identity of a freshly initialized document.
type RecorderConfig struct {
	Player      string
	FloorTarget float64

	// OnRecover, if set, is called after a corrupt document was moved aside.
	OnRecover func(backup string, cause error)
}

// Recorder appends exactly one sample per call to the heights document.
//
// It is safe for concurrent use; each Record is a serialized
// load-modify-persist cycle.
type Recorder struct {
	store Store
	cfg   RecorderConfig
	log   logx.Logger
	now   func() time.Time

	mu sync.Mutex
}

func NewRecorder(store Store, cfg RecorderConfig, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Recorder{store: store, cfg: cfg, log: log, now: time.Now}
}

// WithClock overrides the recorder clock (used for last_updated).
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	if now != nil {
		r.now = now
	}
	return r
}

// Record loads the document (initializing or recovering it as needed),
// appends s, stamps last_updated and persists the result.
//
// Only failures to read or write the document are returned; they wrap
// ErrPersistence.
func (r *Recorder) Record(ctx context.Context, s Sample) (*HeightLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.loadOrInit(ctx)
	if err != nil {
		return nil, err
	}

	s = s.normalized()
	if s.Timestamp.IsZero() {
		s.Timestamp = r.now()
	}
	if last, ok := doc.Last(); ok && s.Timestamp.Before(last.Timestamp) {
		r.log.Warn("sample timestamp went backwards; clamping",
			logx.Time("sample", s.Timestamp),
			logx.Time("previous", last.Timestamp),
		)
		s.Timestamp = last.Timestamp
	}

	doc.DataPoints = append(doc.DataPoints, s)
	doc.LastUpdated = r.now()

	if err := r.store.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	r.log.Debug("sample recorded",
		logx.Height("live_height", s.LiveHeight),
		logx.Bool("is_playing", s.IsPlaying),
		logx.Int("points", len(doc.DataPoints)),
	)
	return doc, nil
}

// Load returns the current document without modifying storage. A missing
// document yields an empty one; a corrupt document is returned as an error.
func (r *Recorder) Load(ctx context.Context) (*HeightLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.store.Load(ctx)
	switch {
	case err == nil:
		return doc, nil
	case errors.Is(err, ErrNotFound):
		return New(r.cfg.Player, r.cfg.FloorTarget, r.now()), nil
	case errors.Is(err, ErrDocumentCorrupt):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}

// Replace persists doc as the whole document. It is used by backfill merges.
func (r *Recorder) Replace(ctx context.Context, doc *HeightLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc.LastUpdated = r.now()
	if err := r.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (r *Recorder) loadOrInit(ctx context.Context) (*HeightLog, error) {
	doc, err := r.store.Load(ctx)
	switch {
	case err == nil:
		if !strings.EqualFold(doc.Player, r.cfg.Player) && r.cfg.Player != "" {
			r.log.Warn("document player differs from config; keeping document value",
				logx.String("document", doc.Player),
				logx.String("config", r.cfg.Player),
			)
		}
		return doc, nil

	case errors.Is(err, ErrNotFound):
		r.log.Info("initializing heights document",
			logx.String("player", r.cfg.Player),
			logx.Float64("floor_target", r.cfg.FloorTarget),
		)
		return New(r.cfg.Player, r.cfg.FloorTarget, r.now()), nil

	case errors.Is(err, ErrDocumentCorrupt):
		backup, qerr := r.store.Quarantine(ctx)
		if qerr != nil {
			// Never overwrite bytes we could not preserve.
			return nil, fmt.Errorf("%w: %v (while recovering from: %v)", ErrPersistence, qerr, err)
		}
		r.log.Warn("heights document corrupt; moved aside and reinitialized",
			logx.String("backup", backup),
			logx.Err(err),
		)
		if r.cfg.OnRecover != nil {
			r.cfg.OnRecover(backup, err)
		}
		return New(r.cfg.Player, r.cfg.FloorTarget, r.now()), nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}
