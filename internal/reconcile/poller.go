// Package reconcile recovers payments whose client-side flow did not close
// cleanly (UPI app switches, modal timeouts). It polls the gateway until a
// terminal state is seen or the budget runs out — and on budget exhaustion
// it reports pending, never failure, because a payment the UI gave up on
// may still complete.
package reconcile

import (
	"context"
	"time"
)

// Status is the poller's view of a payment.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// CheckFunc asks the authoritative source (gateway, or orders table) for
// the current payment status. Transient errors should be returned as-is;
// the poller keeps going.
type CheckFunc func(ctx context.Context) (Status, error)

// Poller drives a single payment's reconciliation schedule: a short fixed
// interval for an initial burst window, then a relaxed interval up to an
// overall budget.
type Poller struct {
	BurstInterval time.Duration
	BurstWindow   time.Duration
	SlowInterval  time.Duration
	Budget        time.Duration

	Check CheckFunc
}

// NewPoller returns a poller with the production schedule: every 500ms for
// the first 30 seconds, then every second, for at most 2 minutes overall.
func NewPoller(check CheckFunc) *Poller {
	return &Poller{
		BurstInterval: 500 * time.Millisecond,
		BurstWindow:   30 * time.Second,
		SlowInterval:  time.Second,
		Budget:        2 * time.Minute,
		Check:         check,
	}
}

// Run polls until a terminal status, budget exhaustion, or cancellation.
//
//   - StatusPaid / StatusFailed from Check end the loop immediately.
//   - Budget exhaustion returns (StatusPending, nil): the caller shows
//     "processing, we'll notify you", not an error.
//   - Context cancellation returns (StatusPending, ctx.Err()) so navigating
//     away never leaks a background loop.
//
// Check errors are tolerated and simply mean "try again next tick".
func (p *Poller) Run(ctx context.Context) (Status, error) {
	deadline := time.Now().Add(p.Budget)
	burstUntil := time.Now().Add(p.BurstWindow)

	// First probe happens immediately; a payment that completed while the
	// modal was closing should not wait a full interval.
	for {
		status, err := p.Check(ctx)
		if err == nil && (status == StatusPaid || status == StatusFailed) {
			return status, nil
		}
		if ctx.Err() != nil {
			return StatusPending, ctx.Err()
		}

		now := time.Now()
		if !now.Before(deadline) {
			return StatusPending, nil
		}

		interval := p.SlowInterval
		if now.Before(burstUntil) {
			interval = p.BurstInterval
		}

		select {
		case <-ctx.Done():
			return StatusPending, ctx.Err()
		case <-time.After(interval):
		}
	}
}
