package orders

import (
	"context"
	"sync"

	"github.com/crumbcraft/bakehouse-golang/internal/models"
	"github.com/crumbcraft/bakehouse-golang/internal/pricing"
)

// MockRepository implements Repository for testing
type MockRepository struct {
	mu sync.Mutex

	CreateErr     error
	CreateErrOnce error // returned for the first CreateOrder call only
	CreatedOrders []*models.Order
	CreatedItems  [][]models.OrderItem

	ExistingOrder *models.Order // returned by FindByCheckoutID
	Config        pricing.Config
	DistanceKm    float64

	nextOrderID int64
}

func (m *MockRepository) CreateOrder(_ context.Context, order *models.Order, items []models.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErrOnce != nil {
		err := m.CreateErrOnce
		m.CreateErrOnce = nil
		return err
	}
	if m.CreateErr != nil {
		return m.CreateErr
	}

	m.nextOrderID++
	order.ID = m.nextOrderID
	m.CreatedOrders = append(m.CreatedOrders, order)
	m.CreatedItems = append(m.CreatedItems, items)
	return nil
}

func (m *MockRepository) FindByCheckoutID(_ context.Context, checkoutID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ExistingOrder != nil {
		return m.ExistingOrder, nil
	}
	for _, o := range m.CreatedOrders {
		if o.CheckoutID == checkoutID {
			return o, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (m *MockRepository) PricingConfig(_ context.Context) (pricing.Config, error) {
	return m.Config, nil
}

func (m *MockRepository) AddressDistanceKm(_ context.Context, _ int64) (float64, error) {
	return m.DistanceKm, nil
}

func (m *MockRepository) CreateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.CreatedOrders)
}

// MockEventSink implements EventSink for testing
type MockEventSink struct {
	mu        sync.Mutex
	Confirmed []*models.Order
	Err       error
}

func (m *MockEventSink) OrderConfirmed(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Confirmed = append(m.Confirmed, order)
	return m.Err
}

func (m *MockEventSink) ConfirmedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Confirmed)
}
