/*
Package session implements the lifecycle of throughput measurement sessions.

A Controller is either Idle or Active. Start moves it to Active: it validates the
target URL, sizes the worker pool as min(available parallelism, max workers), starts
the workers and the one-second stats ticker. Stop moves it back to Idle: the ticker
is cancelled first, then the workers are stopped, and only then is the final Record
computed from the frozen byte count and appended to the record store.

Starting while Active tears the running session down completely before the new one
begins. The superseded session's partial data is discarded; no Record is produced
for it.

Usage Example:

	store := records.NewMemoryStore(0)
	ctrl := session.NewController(session.Options{
		Logger:   logger,
		Notifier: hub,
		Store:    store,
	})

	res, err := ctrl.Start(ctx, "http://speed.example.com/100MB.bin")
	if errors.Is(err, session.ErrInvalidRequest) {
		// missing URL
	}
	logger.Info("Started", "workers", res.WorkerCount)

	// ... later
	rec := ctrl.Stop()

Error Handling:

ErrInvalidRequest is the only error Start reports. Network failures are absorbed
and retried inside the fetch workers and never reach the Controller.
*/
package session
