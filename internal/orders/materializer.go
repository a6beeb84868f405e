// Package orders converts verified checkout sessions into durable orders.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crumbcraft/bakehouse-golang/internal/checkout"
	"github.com/crumbcraft/bakehouse-golang/internal/models"
	"github.com/crumbcraft/bakehouse-golang/internal/pricing"
)

// SessionStore is the slice of the checkout store the materializer needs.
type SessionStore interface {
	Get(ctx context.Context, id string) (*models.CheckoutSession, error)
	Update(ctx context.Context, id string, mutate func(*models.CheckoutSession) error) (*models.CheckoutSession, error)
	Delete(ctx context.Context, id string) error
	AcquireLock(ctx context.Context, id string) (bool, error)
	ReleaseLock(ctx context.Context, id string) error
}

// Repository persists orders. CreateOrder must be atomic: order row, item
// rows and the cart clear commit together or not at all.
type Repository interface {
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	FindByCheckoutID(ctx context.Context, checkoutID string) (*models.Order, error)
	PricingConfig(ctx context.Context) (pricing.Config, error)
	AddressDistanceKm(ctx context.Context, addressID int64) (float64, error)
}

// EventSink receives order lifecycle events. Publishing is best-effort:
// a down broker must never fail an order that is already persisted.
type EventSink interface {
	OrderConfirmed(ctx context.Context, order *models.Order) error
}

// PaymentRef carries the verified payment behind a materialization.
type PaymentRef struct {
	Method           string // 'razorpay' or 'cod'
	GatewayOrderID   string
	GatewayPaymentID string
}

// Result identifies the persisted order. AlreadyExisted is set when a
// duplicate attempt resolved to the previously created order.
type Result struct {
	OrderID        int64
	OrderNumber    string
	AlreadyExisted bool
}

type Materializer struct {
	sessions SessionStore
	repo     Repository
	events   EventSink
}

func NewMaterializer(sessions SessionStore, repo Repository, events EventSink) *Materializer {
	return &Materializer{sessions: sessions, repo: repo, events: events}
}

// Materialize converts the session's cart snapshot into a persisted order.
//
// A per-session lock spans the status check through session deletion, so
// concurrent duplicate calls (webhook racing the client's success call)
// cannot both pass the checks; the loser gets ErrAlreadyMaterialized with
// the winner's order attached. The unique index on orders.checkout_id is
// the durable backstop underneath the lock.
func (m *Materializer) Materialize(ctx context.Context, sessionID string, ref PaymentRef) (*Result, error) {
	locked, err := m.sessions.AcquireLock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	if !locked {
		// A concurrent attempt holds the session. Resolve to its order if
		// it already exists; either way this caller lost the race.
		return m.resolveExisting(ctx, sessionID)
	}
	defer func() {
		if err := m.sessions.ReleaseLock(ctx, sessionID); err != nil {
			log.Printf("WARNING: failed to release checkout lock %s: %v", sessionID, err)
		}
	}()

	sess, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		// A winner deletes the session after committing, so a duplicate
		// arriving late sees "not found" for a checkout that in fact paid.
		// Resolve to the existing order before reporting the session gone.
		if errors.Is(err, checkout.ErrSessionNotFound) {
			if order, ferr := m.repo.FindByCheckoutID(ctx, sessionID); ferr == nil {
				return &Result{OrderID: order.ID, OrderNumber: order.OrderNumber, AlreadyExisted: true}, ErrAlreadyMaterialized
			}
		}
		return nil, err
	}

	if sess.PaymentStatus == models.PaymentStatusPaid {
		res := &Result{AlreadyExisted: true}
		if sess.DatabaseOrderID != nil {
			res.OrderID = *sess.DatabaseOrderID
		}
		return res, ErrAlreadyMaterialized
	}
	if sess.PaymentStatus != models.PaymentStatusProcessing {
		return nil, fmt.Errorf("%w: payment status is %q", ErrInvalidState, sess.PaymentStatus)
	}

	// Re-run the calculator against the session's snapshot. Client-supplied
	// totals are never trusted for the frozen figures.
	cfg, err := m.repo.PricingConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pricing config: %w", err)
	}
	var distanceKm float64
	if sess.SelectedAddressID != nil {
		distanceKm, err = m.repo.AddressDistanceKm(ctx, *sess.SelectedAddressID)
		if err != nil {
			return nil, fmt.Errorf("resolve delivery distance: %w", err)
		}
	}
	breakdown := pricing.Calculate(pricingItems(sess.Items), pricingCoupon(sess.AppliedCoupon), distanceKm, cfg).Rounded()

	order := buildOrder(sess, breakdown, ref)
	items := buildOrderItems(sess.Items)

	var createErr error
	for attempt := 0; attempt < 3; attempt++ {
		createErr = m.repo.CreateOrder(ctx, order, items)
		if errors.Is(createErr, ErrDuplicateOrderNumber) {
			order.OrderNumber = newOrderNumber()
			continue
		}
		break
	}
	if createErr != nil {
		if errors.Is(createErr, ErrAlreadyMaterialized) {
			return m.resolveExisting(ctx, sessionID)
		}
		return nil, createErr
	}

	// Mark the session paid before deleting it, so a retry racing the
	// delete fails fast at the paid check instead of re-inserting.
	if _, err := m.sessions.Update(ctx, sessionID, func(s *models.CheckoutSession) error {
		s.PaymentStatus = models.PaymentStatusPaid
		s.DatabaseOrderID = &order.ID
		return nil
	}); err != nil {
		// The order exists; the session is now cosmetic. Log and move on.
		log.Printf("WARNING: order %d created but session %s could not be marked paid: %v", order.ID, sessionID, err)
	}
	if err := m.sessions.Delete(ctx, sessionID); err != nil {
		log.Printf("WARNING: order %d created but session %s could not be deleted: %v", order.ID, sessionID, err)
	}

	if m.events != nil {
		if err := m.events.OrderConfirmed(ctx, order); err != nil {
			log.Printf("WARNING: failed to publish confirmation for order %s: %v", order.OrderNumber, err)
		}
	}

	return &Result{OrderID: order.ID, OrderNumber: order.OrderNumber}, nil
}

// MarkFailed flips a processing session to failed (e.g. the gateway
// reported the payment as declined). The user may retry from there.
func (m *Materializer) MarkFailed(ctx context.Context, sessionID string) error {
	_, err := m.sessions.Update(ctx, sessionID, func(s *models.CheckoutSession) error {
		if !s.PaymentStatus.CanTransitionTo(models.PaymentStatusFailed) {
			return fmt.Errorf("%w: payment status is %q", ErrInvalidState, s.PaymentStatus)
		}
		s.PaymentStatus = models.PaymentStatusFailed
		return nil
	})
	return err
}

func (m *Materializer) resolveExisting(ctx context.Context, sessionID string) (*Result, error) {
	order, err := m.repo.FindByCheckoutID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return &Result{AlreadyExisted: true}, ErrAlreadyMaterialized
		}
		return nil, err
	}
	return &Result{OrderID: order.ID, OrderNumber: order.OrderNumber, AlreadyExisted: true}, ErrAlreadyMaterialized
}

func buildOrder(sess *models.CheckoutSession, b pricing.Breakdown, ref PaymentRef) *models.Order {
	order := &models.Order{
		OrderNumber:   newOrderNumber(),
		CheckoutID:    sess.ID,
		UserID:        sess.UserID,
		Status:        models.OrderStatusPending,
		PaymentStatus: "paid",

		ItemTotal:      b.ItemTotal,
		DiscountAmount: b.Discount,
		DeliveryCharge: b.DeliveryFee,
		CGST:           b.CGST,
		SGST:           b.SGST,
		TotalAmount:    b.Total,

		DeliveryAddressID: sess.SelectedAddressID,
		ContactName:       sess.ContactName,
		ContactPhone:      sess.ContactPhone,
		ContactEmail:      sess.UserEmail,
		PaymentMethod:     ref.Method,
	}
	if ref.Method == "cod" {
		order.PaymentStatus = "pending"
	}
	if ref.GatewayPaymentID != "" {
		order.PaymentTransactionID = &ref.GatewayPaymentID
	}
	if sess.Notes != "" {
		notes := sess.Notes
		order.Notes = &notes
	}
	if sess.AppliedCoupon != nil {
		code := sess.AppliedCoupon.Code
		order.CouponCode = &code
	}
	return order
}

func buildOrderItems(items []models.SessionItem) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(items))
	for _, it := range items {
		oi := models.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.Name,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
		}
		if it.ImageURL != "" {
			img := it.ImageURL
			oi.ProductImage = &img
		}
		if it.Variant != "" {
			v := it.Variant
			oi.Variant = &v
		}
		if it.Customizations != "" {
			cz := it.Customizations
			oi.Customizations = &cz
		}
		out = append(out, oi)
	}
	return out
}

func pricingItems(items []models.SessionItem) []pricing.Item {
	out := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		out = append(out, pricing.Item{UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	return out
}

func pricingCoupon(c *models.AppliedCoupon) *pricing.Coupon {
	if c == nil {
		return nil
	}
	return &pricing.Coupon{
		Code:           c.Code,
		Type:           c.Type,
		Value:          c.Value,
		MinOrder:       c.MinOrder,
		MaxDiscountCap: c.MaxDiscountCap,
	}
}

// newOrderNumber generates the human-readable order reference, e.g.
// BH-20260901-4F2A1C.
func newOrderNumber() string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("BH-%s-%s", time.Now().Format("20060102"), token)
}
