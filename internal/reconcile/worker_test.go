package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crumbcraft/bakehouse-golang/internal/models"
	"github.com/crumbcraft/bakehouse-golang/internal/orders"
)

type stubLister struct {
	sessions []*models.CheckoutSession
}

func (s *stubLister) ListProcessing(_ context.Context) ([]*models.CheckoutSession, error) {
	return s.sessions, nil
}

type stubChecker struct {
	captured map[string]bool
}

func (s *stubChecker) PaymentCaptured(id string) (bool, error) {
	return s.captured[id], nil
}

type stubMaterializer struct {
	calls []string
	err   error
}

func (s *stubMaterializer) Materialize(_ context.Context, sessionID string, _ orders.PaymentRef) (*orders.Result, error) {
	s.calls = append(s.calls, sessionID)
	if s.err != nil {
		return nil, s.err
	}
	return &orders.Result{OrderID: 1}, nil
}

func TestSweep_MaterializesOnlyCapturedPayments(t *testing.T) {
	lister := &stubLister{sessions: []*models.CheckoutSession{
		{ID: "chk-paid", GatewayOrderID: "order_a", PaymentStatus: models.PaymentStatusProcessing},
		{ID: "chk-waiting", GatewayOrderID: "order_b", PaymentStatus: models.PaymentStatusProcessing},
	}}
	checker := &stubChecker{captured: map[string]bool{"order_a": true}}
	mat := &stubMaterializer{}

	w := NewWorker(lister, checker, mat)
	w.sweep(context.Background())

	assert.Equal(t, []string{"chk-paid"}, mat.calls)
}

func TestSweep_ToleratesAlreadyMaterialized(t *testing.T) {
	lister := &stubLister{sessions: []*models.CheckoutSession{
		{ID: "chk-dup", GatewayOrderID: "order_a", PaymentStatus: models.PaymentStatusProcessing},
	}}
	checker := &stubChecker{captured: map[string]bool{"order_a": true}}
	mat := &stubMaterializer{err: orders.ErrAlreadyMaterialized}

	w := NewWorker(lister, checker, mat)

	// Must not panic or error; the duplicate is a benign race.
	w.sweep(context.Background())
	assert.Len(t, mat.calls, 1)
}
