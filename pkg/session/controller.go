package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	"throughput-tester/pkg/aggregator"
	"throughput-tester/pkg/fetch"
	"throughput-tester/pkg/metrics"
	"throughput-tester/pkg/models"
	"throughput-tester/pkg/notify"
	"throughput-tester/pkg/pool"
	"throughput-tester/pkg/records"
)

// DefaultMaxWorkers caps the number of workers per session.
const DefaultMaxWorkers = 8

var ErrInvalidRequest = errors.New("invalid request")

// Options configures a Controller. Zero fields take defaults.
type Options struct {
	Logger   *slog.Logger
	Clock    quartz.Clock
	Notifier notify.Notifier
	Store    records.Store
	Metrics  *metrics.Metrics
	// MaxWorkers caps the worker count (default 8).
	MaxWorkers int
	// Parallelism reports the available parallelism (default runtime.NumCPU).
	Parallelism func() int
	// Interval is the stats tick interval (default 1s).
	Interval time.Duration
	// NewRunner creates the workers (default fetch workers on http.DefaultClient).
	NewRunner pool.NewRunnerFunc
}

// StartResult describes a freshly started session.
type StartResult struct {
	SessionID   uuid.UUID
	TargetURL   string
	WorkerCount int
}

// Status describes the controller's current state.
type Status struct {
	Active        bool      `json:"active"`
	SessionID     uuid.UUID `json:"sessionId"`
	TargetURL     string    `json:"url,omitempty"`
	StartedAt     time.Time `json:"startTime"`
	WorkerCount   int       `json:"threads"`
	Bytes         int64     `json:"totalBytes"`
	RemoteAddress string    `json:"ip,omitempty"`
}

type activeSession struct {
	id        uuid.UUID
	targetURL string
	startedAt time.Time
	workers   int
	pool      *pool.Pool
	agg       *aggregator.Aggregator
}

// Controller guarantees that at most one session is active at any time.
type Controller struct {
	logger      *slog.Logger
	clock       quartz.Clock
	notifier    notify.Notifier
	store       records.Store
	metrics     *metrics.Metrics
	maxWorkers  int
	parallelism func() int
	interval    time.Duration
	newRunner   pool.NewRunnerFunc

	mu     sync.Mutex
	active *activeSession
}

func NewController(opts Options) *Controller {
	c := &Controller{
		logger:      opts.Logger,
		clock:       opts.Clock,
		notifier:    opts.Notifier,
		store:       opts.Store,
		metrics:     opts.Metrics,
		maxWorkers:  opts.MaxWorkers,
		parallelism: opts.Parallelism,
		interval:    opts.Interval,
		newRunner:   opts.NewRunner,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.clock == nil {
		c.clock = quartz.NewReal()
	}
	if c.notifier == nil {
		c.notifier = notify.Discard
	}
	if c.store == nil {
		c.store = records.NewMemoryStore(0)
	}
	if c.maxWorkers < 1 {
		c.maxWorkers = DefaultMaxWorkers
	}
	if c.parallelism == nil {
		c.parallelism = runtime.NumCPU
	}
	if c.interval <= 0 {
		c.interval = aggregator.DefaultInterval
	}
	if c.newRunner == nil {
		c.newRunner = FetchRunners(fetch.WorkerConfig{
			Clock:   c.clock,
			Logger:  c.logger,
			OnError: func(error) { c.metrics.FetchFailed() },
		})
	}
	return c
}

// FetchRunners returns a runner factory creating fetch workers with cfg.
func FetchRunners(cfg fetch.WorkerConfig) pool.NewRunnerFunc {
	return func(id int, url string) pool.Runner {
		return fetch.NewWorker(id, url, cfg)
	}
}

// WorkerCount clamps the available parallelism to [1, limit].
func WorkerCount(parallelism, limit int) int {
	if limit < 1 {
		limit = DefaultMaxWorkers
	}
	if parallelism < 1 {
		return 1
	}
	if parallelism > limit {
		return limit
	}
	return parallelism
}

// Start begins a session against targetURL. An active session is torn down
// first and its data discarded. The workers outlive ctx's cancellation; they
// run until Stop or the next Start.
func (c *Controller) Start(ctx context.Context, targetURL string) (StartResult, error) {
	targetURL = strings.TrimSpace(targetURL)
	if targetURL == "" {
		return StartResult{}, fmt.Errorf("%w: missing url", ErrInvalidRequest)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev := c.active; prev != nil {
		c.logger.Info("Superseding active session",
			"session", prev.id,
			"url", prev.targetURL,
			"discardedBytes", prev.agg.Bytes())
		c.teardownLocked()
		c.metrics.SessionFinished(metrics.OutcomeSuperseded, models.Record{})
	}

	workers := WorkerCount(c.parallelism(), c.maxWorkers)
	s := &activeSession{
		id:        uuid.New(),
		targetURL: targetURL,
		startedAt: c.clock.Now("session", "start"),
		workers:   workers,
	}
	logger := c.logger.With("session", s.id)
	s.agg = aggregator.New(c.clock, notify.Fanout{c.notifier, c.metrics}, workers, logger).WithInterval(c.interval)
	s.pool = pool.New(c.newRunner, logger)

	runCtx := context.WithoutCancel(ctx)
	if err := s.pool.Start(runCtx, targetURL, workers, s.agg); err != nil {
		return StartResult{}, fmt.Errorf("failed to start workers: %w", err)
	}
	s.agg.Start(runCtx)
	c.active = s
	c.metrics.SessionStarted(workers)

	logger.Info("Session started", "url", targetURL, "workers", workers)
	return StartResult{SessionID: s.id, TargetURL: targetURL, WorkerCount: workers}, nil
}

// Stop ends the active session and returns its Record. When idle it returns
// the zero Record and stores nothing.
func (c *Controller) Stop() models.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.active
	if s == nil {
		return models.Record{}
	}
	c.teardownLocked()

	rec := models.NewRecord(s.id, s.targetURL, s.startedAt, c.clock.Now("session", "stop"),
		s.agg.Bytes(), s.workers, s.agg.LastRemoteAddress())
	c.store.Append(rec)
	c.metrics.SessionFinished(metrics.OutcomeStopped, rec)

	c.logger.Info("Session stopped",
		"session", rec.ID,
		"url", rec.TargetURL,
		"durationSec", rec.DurationSeconds,
		"totalGB", rec.TotalVolumeGB,
		"averageMbps", rec.AverageRateMbps,
		"workers", rec.WorkerCount)
	return rec
}

// teardownLocked cancels the ticker, then stops the workers. c.mu must be held.
func (c *Controller) teardownLocked() {
	s := c.active
	s.agg.Stop()
	s.pool.Stop()
	c.active = nil
}

// Status reports whether a session is active and its running totals.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.active
	if s == nil {
		return Status{}
	}
	return Status{
		Active:        true,
		SessionID:     s.id,
		TargetURL:     s.targetURL,
		StartedAt:     s.startedAt,
		WorkerCount:   s.workers,
		Bytes:         s.agg.Bytes(),
		RemoteAddress: s.agg.LastRemoteAddress(),
	}
}

// Records returns the finished sessions in insertion order.
func (c *Controller) Records() []models.Record {
	return c.store.List()
}
