// Package api exposes the Clarity Room journaling flow over HTTP.
//
// Each session is a server-held snapshot driven through mood selection, prompt
// generation and entry submission. Finished reflections can be shared and
// check-in reminders scheduled over the configured messaging channel.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/BTreeMap/ClarityRoom/internal/catalog"
	"github.com/BTreeMap/ClarityRoom/internal/flow"
	"github.com/BTreeMap/ClarityRoom/internal/messaging"
	"github.com/BTreeMap/ClarityRoom/internal/recovery"
	"github.com/BTreeMap/ClarityRoom/internal/scheduler"
	"github.com/BTreeMap/ClarityRoom/internal/store"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = ":8080"
	// DefaultSessionIdleTimeout is how long an untouched session is kept.
	DefaultSessionIdleTimeout = 2 * time.Hour
	// DefaultSweepSchedule is how often idle sessions are swept.
	DefaultSweepSchedule = "@every 10m"
	// DefaultAnalyzeTimeout bounds one sentiment analysis call.
	DefaultAnalyzeTimeout = 30 * time.Second
	// DefaultSendTimeout bounds one outbound message.
	DefaultSendTimeout = 30 * time.Second
	// DefaultEntriesLimit is the page size of GET /entries without ?limit.
	DefaultEntriesLimit = 50

	shutdownTimeout     = 5 * time.Second
	maxRequestBodyBytes = 1 << 20
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr               string
	SessionIdleTimeout time.Duration
	SweepSchedule      string
	AnalyzeTimeout     time.Duration
	SendTimeout        time.Duration
	Selector           *catalog.Selector // draws reminder prompts
}

// Option defines a function that modifies API server options.
type Option func(*Opts)

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithSessionIdleTimeout sets how long an untouched session survives the sweep.
// Zero or negative disables sweeping.
func WithSessionIdleTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.SessionIdleTimeout = d
	}
}

// WithSweepSchedule sets the cron expression of the idle session sweep.
func WithSweepSchedule(expr string) Option {
	return func(o *Opts) {
		o.SweepSchedule = expr
	}
}

// WithAnalyzeTimeout bounds each entry submission's sentiment call.
func WithAnalyzeTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.AnalyzeTimeout = d
	}
}

// WithSendTimeout bounds each outbound message.
func WithSendTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.SendTimeout = d
	}
}

// WithSelector sets the selector used to pick reminder prompts.
func WithSelector(sel *catalog.Selector) Option {
	return func(o *Opts) {
		o.Selector = sel
	}
}

// Server holds all dependencies for the API server.
type Server struct {
	controller *flow.Controller
	sessions   *flow.SessionManager
	msgService messaging.Service // nil when no channel is configured
	sched      *scheduler.Scheduler
	st         store.Store // nil disables history, receipts and reminders
	opts       Opts
	now        func() time.Time
}

// NewServer creates a new API server instance with the provided dependencies.
func NewServer(controller *flow.Controller, sessions *flow.SessionManager, msgService messaging.Service, sched *scheduler.Scheduler, st store.Store, opts ...Option) *Server {
	cfg := Opts{
		Addr:               DefaultAddr,
		SessionIdleTimeout: DefaultSessionIdleTimeout,
		SweepSchedule:      DefaultSweepSchedule,
		AnalyzeTimeout:     DefaultAnalyzeTimeout,
		SendTimeout:        DefaultSendTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Selector == nil {
		cfg.Selector = catalog.NewSelector(nil)
	}
	if sessions == nil {
		sessions = flow.NewSessionManager()
	}
	return &Server{
		controller: controller,
		sessions:   sessions,
		msgService: msgService,
		sched:      sched,
		st:         st,
		opts:       cfg,
		now:        time.Now,
	}
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/moods", s.moodsHandler)
	mux.HandleFunc("/sessions", s.createSessionHandler)
	mux.HandleFunc("/sessions/{id}", s.sessionHandler)
	mux.HandleFunc("/sessions/{id}/mood", s.pickMoodHandler)
	mux.HandleFunc("/sessions/{id}/prompts", s.generatePromptsHandler)
	mux.HandleFunc("/sessions/{id}/entries", s.submitEntryHandler)
	mux.HandleFunc("/sessions/{id}/share", s.shareHandler)
	mux.HandleFunc("/entries", s.entriesHandler)
	mux.HandleFunc("/receipts", s.receiptsHandler)
	mux.HandleFunc("/reminders", s.remindersHandler)
	mux.HandleFunc("/reminders/{id}", s.reminderHandler)
	return mux
}

// Start brings up background work: the messaging channel, recovered
// reminders and the idle session sweep. Recovery failures are logged and do
// not prevent startup.
func (s *Server) Start(ctx context.Context) error {
	if s.msgService != nil {
		if err := s.msgService.Start(ctx); err != nil {
			slog.Error("Server.Start: failed to start messaging service", "error", err)
			return err
		}
	}

	if s.sched != nil && s.st != nil && s.msgService != nil {
		rm := recovery.NewRecoveryManager(s.st)
		rm.RegisterReminderRecovery(recovery.ReminderRecoveryHandler(s.sched, func(info recovery.ReminderRecoveryInfo) func() {
			return s.reminderTask(info.ReminderID, info.To)
		}))
		rm.RegisterRecoverable(recovery.ReminderRecoverable{})
		if err := rm.RecoverAll(ctx); err != nil {
			slog.Warn("Server.Start: reminder recovery incomplete", "error", err)
		}
	}

	if s.sched != nil && s.opts.SessionIdleTimeout > 0 {
		idle := s.opts.SessionIdleTimeout
		if err := s.sched.AddJob(s.opts.SweepSchedule, func() {
			if n := s.sessions.Sweep(idle); n > 0 {
				slog.Info("Server sweep: idle sessions removed", "count", n)
			}
		}); err != nil {
			slog.Error("Server.Start: failed to schedule session sweep", "error", err, "schedule", s.opts.SweepSchedule)
			return err
		}
	}
	return nil
}

// Run starts background work and serves HTTP until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if s.msgService != nil {
			if err := s.msgService.Stop(); err != nil {
				slog.Warn("Server.Run: failed to stop messaging service", "error", err)
			}
		}
	}()

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		slog.Error("Server.Run: failed to listen", "error", err, "addr", s.opts.Addr)
		return err
	}
	slog.Info("API server listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Server.Run: shutdown error", "error", err)
		}
	}()

	err = httpSrv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		slog.Info("API server stopped")
		return nil
	}
	return err
}
