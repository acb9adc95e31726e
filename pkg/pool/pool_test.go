package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/goleak"

	"throughput-tester/pkg/fetch"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingSink struct {
	bytes atomic.Int64
}

func (s *countingSink) Progress(n int64)     { s.bytes.Add(n) }
func (s *countingSink) RemoteAddress(string) {}

// tickingRunner reports one byte every millisecond until stopped.
type tickingRunner struct {
	id      int
	url     string
	stopped atomic.Bool
	panics  bool
}

func (r *tickingRunner) Run(ctx context.Context, sink fetch.Sink) {
	if r.panics {
		panic("boom")
	}
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for !r.stopped.Load() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sink.Progress(1)
		}
	}
}

func (r *tickingRunner) Stop() { r.stopped.Store(true) }

type factory struct {
	mu      sync.Mutex
	runners []*tickingRunner
	panics  bool
}

func (f *factory) new(id int, url string) Runner {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &tickingRunner{id: id, url: url, panics: f.panics}
	f.runners = append(f.runners, r)
	return r
}

func TestPoolStartStop(t *testing.T) {
	f := &factory{}
	p := New(f.new, nil)
	sink := &countingSink{}

	require.NoError(t, p.Start(context.Background(), "http://test.local/x", 4, sink))
	assert.Equal(t, 4, p.Size())

	require.Eventually(t, func() bool { return sink.bytes.Load() >= 20 }, 5*time.Second, time.Millisecond)
	p.Stop()

	frozen := sink.bytes.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, frozen, sink.bytes.Load(), "no events after Stop")
	assert.Zero(t, p.Size())

	require.Len(t, f.runners, 4)
	for i, r := range f.runners {
		assert.Equal(t, i, r.id)
		assert.Equal(t, "http://test.local/x", r.url)
		assert.True(t, r.stopped.Load())
	}
}

func TestPoolStopIsIdempotent(t *testing.T) {
	p := New((&factory{}).new, nil)

	// Never started.
	p.Stop()

	require.NoError(t, p.Start(context.Background(), "http://test.local/x", 2, &countingSink{}))
	p.Stop()
	p.Stop()
	assert.Zero(t, p.Size())
}

func TestPoolStartTwice(t *testing.T) {
	p := New((&factory{}).new, nil)
	require.NoError(t, p.Start(context.Background(), "http://test.local/x", 1, &countingSink{}))
	defer p.Stop()

	err := p.Start(context.Background(), "http://test.local/y", 1, &countingSink{})
	require.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestPoolRestartAfterStop(t *testing.T) {
	f := &factory{}
	p := New(f.new, nil)
	require.NoError(t, p.Start(context.Background(), "http://test.local/a", 1, &countingSink{}))
	p.Stop()
	require.NoError(t, p.Start(context.Background(), "http://test.local/b", 2, &countingSink{}))
	assert.Equal(t, 2, p.Size())
	p.Stop()
	assert.Len(t, f.runners, 3)
}

func TestPoolMinimumOneRunner(t *testing.T) {
	p := New((&factory{}).new, nil)
	require.NoError(t, p.Start(context.Background(), "http://test.local/x", 0, &countingSink{}))
	defer p.Stop()
	assert.Equal(t, 1, p.Size())
}

func TestPoolRecoversRunnerPanic(t *testing.T) {
	p := New((&factory{panics: true}).new, nil)
	require.NoError(t, p.Start(context.Background(), "http://test.local/x", 2, &countingSink{}))
	assert.NotPanics(t, p.Stop)
}

func TestFetchWorkerIsRunner(t *testing.T) {
	var _ Runner = fetch.NewWorker(0, "http://test.local/x", fetch.WorkerConfig{})
}
