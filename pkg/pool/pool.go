// Package pool runs a fixed set of fetch workers as one unit.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc"

	"throughput-tester/pkg/fetch"
)

var ErrAlreadyStarted = errors.New("pool already started")

// Runner is one concurrent fetch loop. *fetch.Worker implements it.
type Runner interface {
	Run(ctx context.Context, sink fetch.Sink)
	Stop()
}

// NewRunnerFunc creates the runner with the given ordinal for url.
type NewRunnerFunc func(id int, url string) Runner

// Pool owns the workers of one session. The handles it keeps are used for
// lifecycle control only; data flows from the workers straight to the sink.
type Pool struct {
	newRunner NewRunnerFunc
	logger    *slog.Logger

	mu      sync.Mutex
	runners []Runner
	cancel  context.CancelFunc
	wg      *conc.WaitGroup
}

func New(newRunner NewRunnerFunc, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{newRunner: newRunner, logger: logger}
}

// Start spawns count runners against url, each reporting to sink. A count
// below 1 is treated as 1.
func (p *Pool) Start(ctx context.Context, url string, count int, sink fetch.Sink) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.wg != nil {
		return ErrAlreadyStarted
	}
	if count < 1 {
		count = 1
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg = conc.NewWaitGroup()
	p.runners = make([]Runner, 0, count)
	for i := 0; i < count; i++ {
		r := p.newRunner(i, url)
		p.runners = append(p.runners, r)
		p.wg.Go(func() { r.Run(ctx, sink) })
	}

	p.logger.Debug("Worker pool started", "url", url, "workers", count)
	return nil
}

// Stop signals every runner to stop, cancels what is still in flight and
// waits for all of them to return. Once Stop returns no runner of this pool
// emits events. Stopping an idle pool is a no-op.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.wg == nil {
		return
	}

	for _, r := range p.runners {
		r.Stop()
	}
	p.cancel()
	if rec := p.wg.WaitAndRecover(); rec != nil {
		p.logger.Error("Worker panicked", "error", rec.AsError())
	}

	p.logger.Debug("Worker pool stopped", "workers", len(p.runners))
	p.runners = nil
	p.cancel = nil
	p.wg = nil
}

// Size returns the number of runners of a started pool, 0 otherwise.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.runners)
}
