package payment

import (
	"errors"
	"fmt"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/sony/gobreaker/v2"
)

var (
	ErrInvalidAmount      = errors.New("payment amount must be greater than zero")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrMissingCredentials = errors.New("razorpay credentials are not configured")
)

// Gateway wraps the Razorpay client. Outbound calls go through a circuit
// breaker so a flapping gateway fails fast instead of queueing requests.
type Gateway struct {
	client    *razorpay.Client
	keyID     string
	keySecret string
	breaker   *gobreaker.CircuitBreaker[map[string]interface{}]
}

// NewGateway builds the adapter. Missing credentials are a configuration
// error, not a runtime condition, so they fail construction.
func NewGateway(keyID, keySecret string) (*Gateway, error) {
	if keyID == "" || keySecret == "" {
		return nil, ErrMissingCredentials
	}

	breaker := gobreaker.NewCircuitBreaker[map[string]interface{}](gobreaker.Settings{
		Name:    "razorpay",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Gateway{
		client:    razorpay.NewClient(keyID, keySecret),
		keyID:     keyID,
		keySecret: keySecret,
		breaker:   breaker,
	}, nil
}

// KeyID returns the public key id the checkout UI needs to open the
// payment modal. The secret never leaves the server.
func (g *Gateway) KeyID() string {
	return g.keyID
}

// CreateOrder registers an order with Razorpay for the given amount in
// paise and returns the gateway order id. The checkout id travels as the
// receipt reference so gateway records can be traced back to a session.
func (g *Gateway) CreateOrder(amountPaise int64, currency, checkoutID string) (string, error) {
	if amountPaise <= 0 {
		return "", ErrInvalidAmount
	}

	data := map[string]interface{}{
		"amount":   amountPaise,
		"currency": currency,
		"receipt":  checkoutID,
	}

	body, err := g.breaker.Execute(func() (map[string]interface{}, error) {
		return g.client.Order.Create(data, nil)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: circuit open", ErrGatewayUnavailable)
		}
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	orderID, ok := body["id"].(string)
	if !ok || orderID == "" {
		return "", fmt.Errorf("%w: malformed create-order response", ErrGatewayUnavailable)
	}
	return orderID, nil
}

// PaymentCaptured asks Razorpay whether any payment against the gateway
// order has reached the 'captured' state. Used by the reconciliation
// poller when the client-side modal did not close cleanly.
func (g *Gateway) PaymentCaptured(gatewayOrderID string) (bool, error) {
	body, err := g.breaker.Execute(func() (map[string]interface{}, error) {
		return g.client.Order.Payments(gatewayOrderID, nil, nil)
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	items, ok := body["items"].([]interface{})
	if !ok {
		return false, nil
	}
	for _, raw := range items {
		p, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if status, _ := p["status"].(string); status == "captured" {
			return true, nil
		}
	}
	return false, nil
}

// VerifyCallback checks an inbound payment callback against the session's
// gateway order. See signature.go for the rules; the method only binds the
// adapter's secret.
func (g *Gateway) VerifyCallback(orderID, paymentID, signature string) (bool, error) {
	return VerifySignature(orderID, paymentID, signature, g.keySecret)
}
