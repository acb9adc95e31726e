// Package notify delivers stats snapshots to observers.
package notify

import (
	"log/slog"

	"throughput-tester/pkg/models"
)

// Notifier receives one snapshot per tick. Notify must not block for long:
// delivery is fire-and-forget.
type Notifier interface {
	Notify(s models.Snapshot)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(s models.Snapshot)

func (f NotifierFunc) Notify(s models.Snapshot) { f(s) }

// Fanout broadcasts every snapshot to each of its notifiers in order.
type Fanout []Notifier

func (f Fanout) Notify(s models.Snapshot) {
	for _, n := range f {
		if n != nil {
			n.Notify(s)
		}
	}
}

// Discard drops every snapshot.
var Discard Notifier = NotifierFunc(func(models.Snapshot) {})

// LogNotifier writes each snapshot as a structured log line.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(s models.Snapshot) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Stats",
		"totalGB", s.CumulativeVolumeGB,
		"speedMbps", s.IntervalRateMbps,
		"ip", s.RemoteAddress,
		"workers", s.ActiveWorkers)
}
