package transfer

import (
	"math"
	"time"
)

// Sample is a snapshot of cumulative transfer state, emitted after every chunk.
type Sample struct {
	BytesSent  uint64
	TotalBytes uint64
	Elapsed    time.Duration
}

// Fraction is the completed share in [0, 1]. An empty file is complete.
func (s Sample) Fraction() float64 {
	if s.TotalBytes == 0 {
		return 1
	}
	return float64(s.BytesSent) / float64(s.TotalBytes)
}

// Done reports whether every byte has been sent.
func (s Sample) Done() bool {
	return s.BytesSent == s.TotalBytes
}

// Rate is the average throughput in bytes per second since the start.
func (s Sample) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.BytesSent) / s.Elapsed.Seconds()
}

// ETA estimates the remaining time at the given rate in bytes per second.
// It returns 0 once done and -1 when the rate is unknown.
func (s Sample) ETA(rate float64) time.Duration {
	if s.Done() {
		return 0
	}
	if rate <= 0 {
		return -1
	}
	eta := float64(s.TotalBytes-s.BytesSent) / rate * float64(time.Second)
	if eta >= math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(eta)
}

// Observer receives progress samples. Report is called on the transfer
// goroutine after each chunk and must return promptly.
type Observer interface {
	Report(Sample)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Sample)

func (f ObserverFunc) Report(s Sample) { f(s) }

var discard = ObserverFunc(func(Sample) {})
