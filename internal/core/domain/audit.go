package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionPlaceOrder     AuditAction = "PLACE_ORDER"
	AuditActionCancelOrder    AuditAction = "CANCEL_ORDER"
	AuditActionUpdateStatus   AuditAction = "UPDATE_ORDER_STATUS"
	AuditActionWalletReload   AuditAction = "WALLET_RELOAD"
	AuditActionWalletDeduct   AuditAction = "WALLET_DEDUCT"
	AuditActionPaymentInit    AuditAction = "PAYMENT_INITIALIZE"
	AuditActionPaymentWebhook AuditAction = "PAYMENT_WEBHOOK"
	AuditActionCleanup        AuditAction = "CLEANUP"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	StatusCode   int         `json:"status_code"`
	CreatedAt    time.Time   `json:"created_at"`
}
