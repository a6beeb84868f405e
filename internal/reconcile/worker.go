package reconcile

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/crumbcraft/bakehouse-golang/internal/models"
	"github.com/crumbcraft/bakehouse-golang/internal/orders"
)

// SessionLister exposes the sessions that are stuck waiting on a payment.
type SessionLister interface {
	ListProcessing(ctx context.Context) ([]*models.CheckoutSession, error)
}

// PaymentChecker asks the gateway whether a payment was captured.
type PaymentChecker interface {
	PaymentCaptured(gatewayOrderID string) (bool, error)
}

// OrderMaterializer converts a session into an order once payment is known
// to have succeeded.
type OrderMaterializer interface {
	Materialize(ctx context.Context, sessionID string, ref orders.PaymentRef) (*orders.Result, error)
}

// Worker is the server-side safety net behind the client's polling: every
// sweep it checks sessions still marked processing against the gateway, so
// a customer who was charged gets an order even if they closed the tab.
type Worker struct {
	Sessions SessionLister
	Gateway  PaymentChecker
	Orders   OrderMaterializer
	Interval time.Duration
}

func NewWorker(sessions SessionLister, gateway PaymentChecker, mat OrderMaterializer) *Worker {
	return &Worker{Sessions: sessions, Gateway: gateway, Orders: mat, Interval: 30 * time.Second}
}

// Run sweeps until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	log.Println("Reconciliation worker started: monitoring in-flight payments...")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	sessions, err := w.Sessions.ListProcessing(ctx)
	if err != nil {
		log.Printf("Reconciliation sweep failed to list sessions: %v", err)
		return
	}

	for _, sess := range sessions {
		captured, err := w.Gateway.PaymentCaptured(sess.GatewayOrderID)
		if err != nil {
			log.Printf("Reconciliation could not query gateway order %s: %v", sess.GatewayOrderID, err)
			continue
		}
		if !captured {
			continue
		}

		_, err = w.Orders.Materialize(ctx, sess.ID, orders.PaymentRef{
			Method:         "razorpay",
			GatewayOrderID: sess.GatewayOrderID,
		})
		switch {
		case err == nil:
			log.Printf("Reconciliation recovered checkout %s into an order", sess.ID)
		case errors.Is(err, orders.ErrAlreadyMaterialized):
			// Another path won the race; nothing to do.
		default:
			log.Printf("Reconciliation failed to materialize checkout %s: %v", sess.ID, err)
		}
	}
}
