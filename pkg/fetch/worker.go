package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/atomic"
)

const (
	// DefaultRetryDelay is the fixed backoff after a failed attempt.
	DefaultRetryDelay = time.Second
	// DefaultBufferSize is the read size used when streaming a body.
	DefaultBufferSize = 32 << 10
)

// Sink receives the events emitted by a Worker. Implementations must be safe
// for concurrent use by several workers.
type Sink interface {
	// Progress reports n freshly received body bytes.
	Progress(n int64)
	// RemoteAddress reports the peer address of the connection serving a response.
	RemoteAddress(addr string)
}

// WorkerConfig holds the dependencies of a Worker. Zero fields take defaults.
type WorkerConfig struct {
	Client     *http.Client
	Method     string
	Header     http.Header
	RetryDelay time.Duration
	BufferSize int
	Clock      quartz.Clock
	Logger     *slog.Logger
	// OnError is called for every failed attempt that will be retried.
	OnError func(err error)
}

// Worker downloads one URL over and over, discarding the content and
// reporting only byte counts.
type Worker struct {
	id         int
	url        string
	method     string
	header     http.Header
	client     *http.Client
	retryDelay time.Duration
	bufSize    int
	clock      quartz.Clock
	logger     *slog.Logger
	onError    func(error)

	running *atomic.Bool
}

func NewWorker(id int, url string, cfg WorkerConfig) *Worker {
	w := &Worker{
		id:         id,
		url:        url,
		method:     cfg.Method,
		header:     cfg.Header,
		client:     cfg.Client,
		retryDelay: cfg.RetryDelay,
		bufSize:    cfg.BufferSize,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		onError:    cfg.OnError,
		running:    atomic.NewBool(true),
	}
	if w.method == "" {
		w.method = http.MethodGet
	}
	if w.client == nil {
		w.client = http.DefaultClient
	}
	if w.retryDelay <= 0 {
		w.retryDelay = DefaultRetryDelay
	}
	if w.bufSize <= 0 {
		w.bufSize = DefaultBufferSize
	}
	if w.clock == nil {
		w.clock = quartz.NewReal()
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

func (w *Worker) ID() int { return w.id }

// Running reports whether the worker will schedule another attempt.
func (w *Worker) Running() bool { return w.running.Load() }

// Stop clears the running flag. The attempt in flight is left to finish or
// fail on its own; no new attempt is started afterwards.
func (w *Worker) Stop() { w.running.Store(false) }

// Run loops until Stop is called or ctx is done. Completed downloads are
// followed immediately by the next one; failed attempts are retried after the
// retry delay. Errors never leave Run.
func (w *Worker) Run(ctx context.Context, sink Sink) {
	buf := make([]byte, w.bufSize)
	for w.running.Load() {
		err := w.fetch(ctx, sink, buf)
		if err == nil {
			continue
		}
		if !w.running.Load() || ctx.Err() != nil {
			return
		}

		w.logger.Debug("Fetch attempt failed",
			"worker", w.id,
			"url", w.url,
			"retryIn", w.retryDelay,
			"error", err)
		if w.onError != nil {
			w.onError(err)
		}

		if !w.backoff(ctx) {
			return
		}
	}
}

func (w *Worker) backoff(ctx context.Context) bool {
	timer := w.clock.NewTimer(w.retryDelay, "fetch", "backoff")
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// fetch performs a single request and streams the body into sink.
func (w *Worker) fetch(ctx context.Context, sink Sink, buf []byte) error {
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if addr := remoteHost(info.Conn); addr != "" {
				sink.RemoteAddress(addr)
			}
		},
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), w.method, w.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for name, values := range w.header {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			sink.Progress(int64(n))
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read of body failed: %w", err)
		}
	}
}

func remoteHost(conn net.Conn) string {
	if conn == nil || conn.RemoteAddr() == nil {
		return ""
	}
	addr := conn.RemoteAddr().String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
