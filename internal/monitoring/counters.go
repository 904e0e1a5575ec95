package monitoring

import "sync/atomic"

// Counters accumulates engine activity since process start. All fields are
// safe for concurrent use.
type Counters struct {
	RoutesComputed   atomic.Int64
	RecalcsStarted   atomic.Int64
	RecalcsCoalesced atomic.Int64
	RecalcsApplied   atomic.Int64
	NoPathFailures   atomic.Int64
	DeadlineFailures atomic.Int64
	SessionsCreated  atomic.Int64
	SessionsEvicted  atomic.Int64
}
