package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	start := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		duration time.Duration
		bytes    int64
		wantGB   float64
		wantMbps float64
		wantSecs float64
	}{
		{
			name:     "steady 100 Mbps over 10s",
			duration: 10 * time.Second,
			bytes:    125_000_000,
			wantGB:   0.116,
			wantMbps: 100,
			wantSecs: 10,
		},
		{
			name:     "zero duration",
			duration: 0,
			bytes:    1 << 30,
			wantGB:   1,
			wantMbps: 0,
			wantSecs: 0,
		},
		{
			name:     "sub-second session",
			duration: 250 * time.Millisecond,
			bytes:    1_000_000,
			wantGB:   0.001,
			wantMbps: 32,
			wantSecs: 0.25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecord(uuid.New(), "http://test.local/x", start, start.Add(tt.duration), tt.bytes, 4, "10.0.0.1")
			assert.InDelta(t, tt.wantGB, r.TotalVolumeGB, 0.0005)
			assert.InDelta(t, tt.wantMbps, r.AverageRateMbps, 0.0005)
			assert.InDelta(t, tt.wantSecs, r.DurationSeconds, 0.005)
			assert.Equal(t, 4, r.WorkerCount)
			assert.Equal(t, tt.bytes, r.TotalBytes)
			assert.False(t, r.IsZero())
		})
	}
}

func TestRecordIsZero(t *testing.T) {
	assert.True(t, Record{}.IsZero())
}

func TestNewSnapshot(t *testing.T) {
	s := NewSnapshot(125_000_000, 12_500_000, "192.0.2.7", 8)
	assert.Equal(t, "0.116", s.CumulativeVolumeGB)
	assert.Equal(t, "100.000", s.IntervalRateMbps)
	assert.Equal(t, "192.0.2.7", s.RemoteAddress)
	assert.Equal(t, 8, s.ActiveWorkers)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalGB":"0.116","lastSpeedMbps":"100.000","ip":"192.0.2.7","threads":8}`, string(data))
}

func TestRateMbps(t *testing.T) {
	assert.Equal(t, 0.0, RateMbps(1000, 0))
	assert.Equal(t, 0.0, RateMbps(1000, -1))
	assert.InDelta(t, 8.0, RateMbps(1_000_000, 1), 1e-9)
}
