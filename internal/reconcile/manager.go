package reconcile

import (
	"context"
	"log"
	"sync"
)

// OnPaidFunc runs exactly once when a reconciled payment turns out to have
// succeeded; it is where the order materializer gets invoked.
type OnPaidFunc func(ctx context.Context)

// Manager tracks at most one reconciliation loop per checkout session.
// Start is idempotent per checkout id; Cancel stops and forgets the loop.
type Manager struct {
	mu      sync.Mutex
	running map[string]context.CancelFunc

	newPoller func(check CheckFunc) *Poller
}

func NewManager() *Manager {
	return &Manager{
		running:   make(map[string]context.CancelFunc),
		newPoller: NewPoller,
	}
}

// Start launches a background reconciliation for the checkout session. A
// second Start for the same id while one is in flight is a no-op, so a
// client retrying the "payment stuck" action cannot stack pollers.
func (m *Manager) Start(checkoutID string, check CheckFunc, onPaid OnPaidFunc) {
	m.mu.Lock()
	if _, exists := m.running[checkoutID]; exists {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.running[checkoutID] = cancel
	m.mu.Unlock()

	go func() {
		defer m.forget(checkoutID)

		status, err := m.newPoller(check).Run(ctx)
		if err != nil {
			// Cancelled; nothing to report.
			return
		}
		switch status {
		case StatusPaid:
			onPaid(context.Background())
		case StatusFailed:
			log.Printf("Reconciliation for checkout %s observed a failed payment", checkoutID)
		default:
			log.Printf("Reconciliation budget exhausted for checkout %s; payment still pending", checkoutID)
		}
	}()
}

// Cancel stops a running reconciliation. Unknown ids are a no-op.
func (m *Manager) Cancel(checkoutID string) {
	m.mu.Lock()
	cancel, ok := m.running[checkoutID]
	delete(m.running, checkoutID)
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// Running reports whether a loop is active for the checkout id.
func (m *Manager) Running(checkoutID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[checkoutID]
	return ok
}

func (m *Manager) forget(checkoutID string) {
	m.mu.Lock()
	if cancel, ok := m.running[checkoutID]; ok {
		delete(m.running, checkoutID)
		m.mu.Unlock()
		cancel()
		return
	}
	m.mu.Unlock()
}
