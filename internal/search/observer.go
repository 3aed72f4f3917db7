package search

import "time"

// Observer receives worker events. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	ItemProcessed(kind string, success bool, d time.Duration)
	Rejected(kind string)
	Committed(success bool, d time.Duration)
	QueueDepth(counts map[string]int)
	Searched(hits int, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ItemProcessed(string, bool, time.Duration) {}
func (nopObserver) Rejected(string)                           {}
func (nopObserver) Committed(bool, time.Duration)             {}
func (nopObserver) QueueDepth(map[string]int)                 {}
func (nopObserver) Searched(int, time.Duration)               {}
