package models

import (
	"time"

	"github.com/google/uuid"
)

// Record summarizes one finished measurement session.
type Record struct {
	ID              uuid.UUID `json:"id"`
	TargetURL       string    `json:"url"`
	StartedAt       time.Time `json:"startTime"`
	EndedAt         time.Time `json:"endTime"`
	DurationSeconds float64   `json:"durationSec"`
	TotalBytes      int64     `json:"totalBytes"`
	TotalVolumeGB   float64   `json:"totalGB"`
	AverageRateMbps float64   `json:"averageSpeedMbps"`
	WorkerCount     int       `json:"threads"`
	RemoteAddress   string    `json:"ip,omitempty"`
}

// NewRecord finalizes the totals of a session that ran from startedAt to endedAt.
func NewRecord(id uuid.UUID, targetURL string, startedAt, endedAt time.Time, totalBytes int64, workers int, remoteAddr string) Record {
	duration := endedAt.Sub(startedAt).Seconds()
	if duration < 0 {
		duration = 0
	}
	return Record{
		ID:              id,
		TargetURL:       targetURL,
		StartedAt:       startedAt,
		EndedAt:         endedAt,
		DurationSeconds: Round(duration, 2),
		TotalBytes:      totalBytes,
		TotalVolumeGB:   Round(VolumeGB(totalBytes), 3),
		AverageRateMbps: Round(RateMbps(totalBytes, duration), 3),
		WorkerCount:     workers,
		RemoteAddress:   remoteAddr,
	}
}

// IsZero reports whether r is the empty record.
func (r Record) IsZero() bool {
	return r.ID == uuid.Nil && r.StartedAt.IsZero() && r.TotalBytes == 0
}
