package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"dipwatch/internal/heightlog"
	"dipwatch/internal/notifier"
	"dipwatch/internal/runtime/supervisor"
	"dipwatch/internal/task/scheduler"
	logx "dipwatch/pkg/logx"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Status is the /status document.
type Status struct {
	Player        string                 `json:"player"`
	FloorTarget   float64                `json:"floor_target"`
	StartedAt     time.Time              `json:"started_at"`
	Summary       heightlog.Summary      `json:"summary"`
	LastTick      *TickStatus            `json:"last_tick,omitempty"`
	Scheduler     scheduler.Snapshot     `json:"scheduler"`
	Notifications []notifier.HistoryItem `json:"notifications"`
	Tasks         supervisor.Snapshot    `json:"tasks"`
}

// TickStatus condenses the most recent tick.
type TickStatus struct {
	At         time.Time `json:"at"`
	LiveHeight *float64  `json:"live_height"`
	IsPlaying  bool      `json:"is_playing"`
	Notified   bool      `json:"notified,omitempty"`
	FetchErr   string    `json:"fetch_error,omitempty"`
	NotifyErr  string    `json:"notify_error,omitempty"`
	RenderErr  string    `json:"render_error,omitempty"`
	PublishErr string    `json:"publish_error,omitempty"`
}

// Provider supplies the daemon state served over HTTP.
type Provider interface {
	Status(ctx context.Context) (Status, error)
	// Healthy returns the first fatal error of the daemon, if any.
	Healthy() error
}

type Config struct {
	Addr        string
	Pprof       bool
	HeightsPath string
	ChartPath   string
}

// Server is the local status endpoint: health, status, metrics and the
// current artifacts.
type Server struct {
	cfg     Config
	log     logx.Logger
	prov    Provider
	metrics http.Handler
}

func New(cfg Config, prov Provider, metrics http.Handler, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, prov: prov, metrics: metrics, log: log.With(logx.String("comp", "http"))}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/heights.json", s.serveFile(s.cfg.HeightsPath, "application/json"))
	r.Get("/chart.png", s.serveFile(s.cfg.ChartPath, "image/png"))
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	if s.cfg.Pprof {
		if isLoopbackAddr(s.cfg.Addr) {
			r.Mount("/debug", middleware.Profiler())
		} else {
			s.log.Warn("pprof not mounted: status server is not bound to loopback", logx.String("addr", s.cfg.Addr))
		}
	}
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	s.log.Info("status server listening", logx.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.prov.Healthy(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "failing", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.prov.Status(r.Context())
	if err != nil {
		s.log.Warn("status failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) serveFile(path, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if path == "" {
			writeError(w, http.StatusNotFound, "not configured")
			return
		}
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				writeError(w, http.StatusNotFound, "not generated yet")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer f.Close()
		fi, err := f.Stat()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
	}
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			logx.String("method", r.Method),
			logx.String("path", r.URL.Path),
			logx.Int("status", ww.Status()),
			logx.Int("bytes", ww.BytesWritten()),
			logx.Duration("took", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
