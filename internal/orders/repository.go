package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/crumbcraft/bakehouse-golang/internal/models"
	"github.com/crumbcraft/bakehouse-golang/internal/pricing"
)

// ErrDuplicateOrderNumber surfaces an order_number collision so the caller
// can regenerate and retry. Distinct from ErrAlreadyMaterialized, which is
// a checkout_id collision and means the order already exists.
var ErrDuplicateOrderNumber = errors.New("order number already taken")

// SQLRepository implements Repository on the primary MySQL database.
type SQLRepository struct {
	DB *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{DB: db}
}

// CreateOrder writes the order, its item snapshots and the cart clear in
// one transaction. Rollback is the compensation for partial failure; if
// the rollback itself fails after the order row went in, a best-effort
// delete removes the orphan so no half-written order survives.
func (r *SQLRepository) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrPersistence, err)
	}
	defer tx.Rollback() // Safety net

	now := time.Now()
	orderQuery := `
		INSERT INTO orders
		(order_number, checkout_id, user_id, status, payment_status,
		 item_total, discount_amount, delivery_charge, cgst, sgst, total_amount,
		 delivery_address_id, contact_name, contact_phone, contact_email,
		 notes, coupon_code, payment_method, payment_transaction_id,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := tx.ExecContext(ctx, orderQuery,
		order.OrderNumber, order.CheckoutID, order.UserID, order.Status, order.PaymentStatus,
		order.ItemTotal, order.DiscountAmount, order.DeliveryCharge, order.CGST, order.SGST, order.TotalAmount,
		order.DeliveryAddressID, order.ContactName, order.ContactPhone, order.ContactEmail,
		order.Notes, order.CouponCode, order.PaymentMethod, order.PaymentTransactionID,
		now, now)
	if err != nil {
		if dup, key := duplicateKey(err); dup {
			if strings.Contains(key, "checkout_id") {
				return ErrAlreadyMaterialized
			}
			return ErrDuplicateOrderNumber
		}
		return fmt.Errorf("%w: insert order: %v", ErrPersistence, err)
	}

	orderID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: read order id: %v", ErrPersistence, err)
	}
	order.ID = orderID
	order.CreatedAt = now
	order.UpdatedAt = now

	itemQuery := `
		INSERT INTO order_items
		(order_id, product_id, product_name, product_image, unit_price, quantity, variant, customizations, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for i := range items {
		items[i].OrderID = orderID
		it := items[i]
		if _, err := tx.ExecContext(ctx, itemQuery,
			orderID, it.ProductID, it.ProductName, it.ProductImage,
			it.UnitPrice, it.Quantity, it.Variant, it.Customizations, now); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				// Last resort: the order row may have been committed by a
				// broken rollback. Remove the orphan directly.
				if _, delErr := r.DB.ExecContext(ctx, "DELETE FROM orders WHERE id = ?", orderID); delErr != nil {
					log.Printf("CRITICAL: orphaned order %d (checkout %s) could not be compensated: %v",
						orderID, order.CheckoutID, delErr)
				}
			}
			log.Printf("CRITICAL: order insert failed mid-items for checkout %s (payment ref %v): %v",
				order.CheckoutID, order.PaymentTransactionID, err)
			return fmt.Errorf("%w: insert order item: %v", ErrPersistence, err)
		}
	}

	// Clear the durable cart as part of the same commit. The session's
	// snapshot is untouched by this.
	if order.UserID != nil {
		if _, err := tx.ExecContext(ctx, `
			DELETE ci FROM cart_items ci
			JOIN carts c ON ci.cart_id = c.id
			WHERE c.user_id = ?`, *order.UserID); err != nil {
			return fmt.Errorf("%w: clear cart: %v", ErrPersistence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrPersistence, err)
	}
	order.Items = items
	return nil
}

// FindByCheckoutID resolves the order a checkout session materialized.
func (r *SQLRepository) FindByCheckoutID(ctx context.Context, checkoutID string) (*models.Order, error) {
	var o models.Order
	query := `
		SELECT id, order_number, checkout_id, status, payment_status, total_amount, created_at
		FROM orders
		WHERE checkout_id = ?`
	err := r.DB.QueryRowContext(ctx, query, checkoutID).Scan(
		&o.ID, &o.OrderNumber, &o.CheckoutID, &o.Status, &o.PaymentStatus, &o.TotalAmount, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("find order by checkout id: %w", err)
	}
	return &o, nil
}

// PricingConfig loads the tax rates, free-delivery threshold and delivery
// tier table the admin maintains via the settings endpoints.
func (r *SQLRepository) PricingConfig(ctx context.Context) (pricing.Config, error) {
	var cfg pricing.Config

	rows, err := r.DB.QueryContext(ctx,
		"SELECT setting_key, setting_value FROM settings WHERE setting_key IN ('cgst_rate', 'sgst_rate', 'free_delivery_threshold')")
	if err != nil {
		return cfg, fmt.Errorf("load settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return cfg, fmt.Errorf("scan setting: %w", err)
		}
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err != nil {
			continue // a malformed setting falls back to the zero value
		}
		switch key {
		case "cgst_rate":
			cfg.CGSTRatePct = f
		case "sgst_rate":
			cfg.SGSTRatePct = f
		case "free_delivery_threshold":
			threshold := f
			cfg.FreeDeliveryThreshold = &threshold
		}
	}
	if err := rows.Err(); err != nil {
		return cfg, fmt.Errorf("iterate settings: %w", err)
	}

	tierRows, err := r.DB.QueryContext(ctx,
		"SELECT start_km, end_km, price FROM delivery_tiers ORDER BY start_km ASC")
	if err != nil {
		return cfg, fmt.Errorf("load delivery tiers: %w", err)
	}
	defer tierRows.Close()

	for tierRows.Next() {
		var t pricing.Tier
		if err := tierRows.Scan(&t.StartKm, &t.EndKm, &t.Price); err != nil {
			return cfg, fmt.Errorf("scan delivery tier: %w", err)
		}
		cfg.Tiers = append(cfg.Tiers, t)
	}
	if err := tierRows.Err(); err != nil {
		return cfg, fmt.Errorf("iterate delivery tiers: %w", err)
	}

	return cfg, nil
}

// AddressDistanceKm returns the stored distance for a delivery address.
func (r *SQLRepository) AddressDistanceKm(ctx context.Context, addressID int64) (float64, error) {
	var km float64
	err := r.DB.QueryRowContext(ctx, "SELECT distance_km FROM addresses WHERE id = ?", addressID).Scan(&km)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("address %d not found", addressID)
		}
		return 0, fmt.Errorf("load address distance: %w", err)
	}
	return km, nil
}

// duplicateKey reports whether err is a MySQL duplicate-entry error and,
// if so, which key it hit.
func duplicateKey(err error) (bool, string) {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true, mysqlErr.Message
	}
	return false, ""
}
