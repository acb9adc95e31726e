/*
Package models defines the data structures shared by the throughput-tester packages:
the per-tick stats payload pushed to observers and the summary record kept for every
finished measurement session.

Core Types:

Snapshot is one tick's observable output. Its JSON names match the "stats" event
consumed by the browser front end:

	type Snapshot struct {
		CumulativeVolumeGB string // total volume so far, GiB, 3 decimals
		IntervalRateMbps   string // rate over the last tick, Mb/s, 3 decimals
		RemoteAddress      string // last remote peer address seen by any worker
		ActiveWorkers      int    // number of fetch workers in the session
	}

Record is the immutable summary of one finished session:

	type Record struct {
		ID              uuid.UUID // session identifier
		TargetURL       string    // resource that was downloaded
		StartedAt       time.Time // session start
		EndedAt         time.Time // session stop
		DurationSeconds float64   // EndedAt - StartedAt, 2 decimals
		TotalBytes      int64     // bytes received by all workers
		TotalVolumeGB   float64   // TotalBytes / 2^30, 3 decimals
		AverageRateMbps float64   // TotalBytes*8 / DurationSeconds / 1e6, 3 decimals
		WorkerCount     int       // workers used for the whole session
		RemoteAddress   string    // last remote peer address
	}

The zero Record is the "empty" record returned when a stop is requested while no
session is active; it is never stored.

Units:

Volume uses binary gigabytes (2^30 bytes). Rates use decimal megabits (1e6 bits).
*/
package models
