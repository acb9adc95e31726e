// Package aggregator turns worker byte counts into periodic stats snapshots.
package aggregator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/atomic"

	"throughput-tester/pkg/models"
	"throughput-tester/pkg/notify"
)

// DefaultInterval is the tick cadence. Rates are computed per tick, so the
// interval is also the rate denominator.
const DefaultInterval = time.Second

// Aggregator owns a session's cumulative byte counter and last remote address.
// It is the fetch.Sink shared by all workers of the session.
type Aggregator struct {
	clock    quartz.Clock
	notifier notify.Notifier
	logger   *slog.Logger
	interval time.Duration
	workers  int

	bytes  *atomic.Int64
	remote *atomic.String

	// touched only by the ticker goroutine
	bytesAtLastTick int64

	mu      sync.Mutex
	cancel  context.CancelFunc
	ticker  quartz.Waiter
	stopped *atomic.Bool
}

func New(clock quartz.Clock, notifier notify.Notifier, workers int, logger *slog.Logger) *Aggregator {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		clock:    clock,
		notifier: notifier,
		logger:   logger,
		interval: DefaultInterval,
		workers:  workers,
		bytes:    atomic.NewInt64(0),
		remote:   atomic.NewString(""),
		stopped:  atomic.NewBool(false),
	}
}

// WithInterval overrides the tick interval. It must be called before Start.
func (a *Aggregator) WithInterval(d time.Duration) *Aggregator {
	if d > 0 {
		a.interval = d
	}
	return a
}

// Progress adds n bytes to the cumulative counter. Non-positive values are ignored
// so the counter never decreases.
func (a *Aggregator) Progress(n int64) {
	if n > 0 {
		a.bytes.Add(n)
	}
}

// RemoteAddress records addr as the last observed peer. Last writer wins.
func (a *Aggregator) RemoteAddress(addr string) {
	if addr != "" {
		a.remote.Store(addr)
	}
}

// Bytes returns the cumulative byte count.
func (a *Aggregator) Bytes() int64 { return a.bytes.Load() }

// LastRemoteAddress returns the last observed peer address.
func (a *Aggregator) LastRemoteAddress() string { return a.remote.Load() }

// Start begins ticking. Calling Start on a started or stopped aggregator does nothing.
func (a *Aggregator) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ticker != nil || a.stopped.Load() {
		return
	}

	ctx, a.cancel = context.WithCancel(ctx)
	a.ticker = a.clock.TickerFunc(ctx, a.interval, a.tick, "aggregator", "tick")
}

// Stop cancels the ticker and waits for a tick in progress to finish. No
// snapshot is emitted once Stop returns. Progress events are still counted.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopped.Store(true)
	if a.ticker == nil {
		return
	}
	a.cancel()
	_ = a.ticker.Wait()
	a.ticker = nil
}

func (a *Aggregator) tick() error {
	if a.stopped.Load() {
		return nil
	}

	total := a.bytes.Load()
	interval := total - a.bytesAtLastTick
	a.bytesAtLastTick = total

	seconds := a.interval.Seconds()
	snap := models.NewSnapshot(total, interval, a.remote.Load(), a.workers)
	if seconds != 1 {
		snap.IntervalRateMbps = models.Decimal(models.RateMbps(interval, seconds))
	}
	a.notifier.Notify(snap)
	return nil
}
