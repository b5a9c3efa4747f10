package app

import "time"

// Breaker halts the reconnect loop after too many short cycles in a row.
type Breaker struct {
	threshold int
	minCycle  time.Duration
	fast      int
}

func NewBreaker(threshold int, minCycle time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{threshold: threshold, minCycle: minCycle}
}

// Observe records a finished cycle and reports whether the breaker tripped.
// A cycle that lasted at least minCycle resets the count.
func (b *Breaker) Observe(elapsed time.Duration) bool {
	if elapsed < b.minCycle {
		b.fast++
	} else {
		b.fast = 0
	}
	return b.fast >= b.threshold
}

// Fast returns the number of consecutive short cycles.
func (b *Breaker) Fast() int {
	return b.fast
}
