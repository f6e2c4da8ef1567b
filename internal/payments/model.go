package payments

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Payment statuses. A payment moves to completed at most once;
// reconciliation is a no-op once there.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
)

// Payment types.
const (
	TypeAppointment = "appointment"
	TypeOrder       = "order"
)

// ErrPaymentNotFound indicates no local record matches the reference.
var ErrPaymentNotFound = errors.New("payments: not found")

// ErrGatewayUnreachable indicates a transient transport failure talking to
// the gateway. Safe to retry; the local record stays pending.
var ErrGatewayUnreachable = errors.New("payments: gateway unreachable")

// ErrInvalidSignature indicates a webhook whose HMAC did not verify.
var ErrInvalidSignature = errors.New("payments: invalid webhook signature")

// Payment is the local record of one gateway transaction. The reference is
// the idempotency key correlating it with the gateway's transaction.
type Payment struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	AppointmentID     *uuid.UUID `json:"appointment_id,omitempty"`
	Type              string     `json:"type"`
	AmountCents       int64      `json:"amount_cents"`
	Currency          string     `json:"currency"`
	Method            string     `json:"method"`
	Status            string     `json:"status"`
	Provider          string     `json:"provider"`
	Reference         string     `json:"reference"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
	RefundRequestedAt *time.Time `json:"refund_requested_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
