package transfer

import (
	"math"
	"testing"
	"time"
)

func TestSample(t *testing.T) {
	tests := []struct {
		name         string
		sample       Sample
		rate         float64
		wantFraction float64
		wantRate     float64
		wantETA      time.Duration
	}{
		{
			name:         "halfway",
			sample:       Sample{BytesSent: 500, TotalBytes: 1000, Elapsed: 2 * time.Second},
			rate:         250,
			wantFraction: 0.5,
			wantRate:     250,
			wantETA:      2 * time.Second,
		},
		{
			name:         "empty file",
			sample:       Sample{},
			wantFraction: 1,
			wantETA:      0,
		},
		{
			name:         "stalled",
			sample:       Sample{BytesSent: 1, TotalBytes: math.MaxUint64, Elapsed: time.Hour},
			rate:         1e-9,
			wantFraction: 1 / float64(math.MaxUint64),
			wantRate:     1 / time.Hour.Seconds(),
			wantETA:      math.MaxInt64,
		},
		{
			name:         "unknown rate",
			sample:       Sample{BytesSent: 0, TotalBytes: 10},
			wantFraction: 0,
			wantETA:      -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sample.Fraction(); got != tt.wantFraction {
				t.Errorf("Fraction() = %v, want %v", got, tt.wantFraction)
			}
			if got := tt.sample.Rate(); got != tt.wantRate {
				t.Errorf("Rate() = %v, want %v", got, tt.wantRate)
			}
			if got := tt.sample.ETA(tt.rate); got != tt.wantETA {
				t.Errorf("ETA() = %v, want %v", got, tt.wantETA)
			}
		})
	}
}
