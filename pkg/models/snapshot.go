package models

// Snapshot is the stats payload emitted once per tick while a session is active.
type Snapshot struct {
	CumulativeVolumeGB string `json:"totalGB"`
	IntervalRateMbps   string `json:"lastSpeedMbps"`
	RemoteAddress      string `json:"ip"`
	ActiveWorkers      int    `json:"threads"`

	// Raw counters backing the formatted fields.
	Bytes         int64 `json:"-"`
	IntervalBytes int64 `json:"-"`
}

// NewSnapshot builds a snapshot from the cumulative byte count and the bytes
// received during the last one-second interval.
func NewSnapshot(total, interval int64, remoteAddr string, workers int) Snapshot {
	return Snapshot{
		CumulativeVolumeGB: Decimal(VolumeGB(total)),
		IntervalRateMbps:   Decimal(RateMbps(interval, 1)),
		RemoteAddress:      remoteAddr,
		ActiveWorkers:      workers,
		Bytes:              total,
		IntervalBytes:      interval,
	}
}
