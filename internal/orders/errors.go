package orders

import "errors"

var (
	// ErrAlreadyMaterialized means this checkout session has produced its
	// order. Callers treat it as success-adjacent: fetch and show the
	// existing order, never an error page.
	ErrAlreadyMaterialized = errors.New("checkout session already materialized an order")

	// ErrInvalidState means the session's payment status is not
	// 'processing', so order creation must not proceed.
	ErrInvalidState = errors.New("checkout session is not in a payable state")

	// ErrPersistence means the order could not be durably written. Money
	// may have moved without an order record; the failure is logged with
	// full detail for manual reconciliation.
	ErrPersistence = errors.New("failed to persist order")

	// ErrOrderNotFound is the no-rows case for order lookups.
	ErrOrderNotFound = errors.New("order not found")
)
