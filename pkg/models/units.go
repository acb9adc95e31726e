package models

import (
	"math"
	"strconv"
)

const (
	bytesPerGB = 1 << 30
	bitsPerMb  = 1e6
)

// VolumeGB converts a byte count to binary gigabytes.
func VolumeGB(bytes int64) float64 {
	return float64(bytes) / bytesPerGB
}

// RateMbps returns the rate in megabits per second for bytes received over
// the given number of seconds. A non-positive duration yields 0.
func RateMbps(bytes int64, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return float64(bytes) * 8 / seconds / bitsPerMb
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Decimal formats v with exactly three decimal places.
func Decimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
