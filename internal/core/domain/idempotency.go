package domain

import (
	"github.com/google/uuid"
)

// Ledger reference formats. References are unique across all transactions.

// OrderDebitReference is the reference of the wallet debit that pays an order.
func OrderDebitReference(orderNumber string) string {
	return "order-" + orderNumber
}

// RefundReference is unique per refund attempt of an order.
func RefundReference(orderNumber string) string {
	return "refund-" + orderNumber + "-" + uuid.NewString()
}

func ReloadReference() string {
	return "reload-" + uuid.NewString()
}

func DeductReference() string {
	return "debit-" + uuid.NewString()
}

// PlaceOrderIdempotencyKey scopes a client-supplied Idempotency-Key to its customer.
func PlaceOrderIdempotencyKey(customerID uuid.UUID, key string) string {
	return "order:" + customerID.String() + ":" + key
}

// WebhookEventKey identifies a gateway event for de-duplication.
func WebhookEventKey(event, reference string) string {
	return "paystack:" + event + ":" + reference
}
