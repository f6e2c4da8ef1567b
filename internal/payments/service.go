package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/afyalink/telemed-platform/internal/observability/metrics"
	"github.com/afyalink/telemed-platform/pkg/logging"
)

var paymentsTracer = otel.Tracer("telemed.internal.payments")

// appointmentConfirmer applies the confirm transition on the linked
// appointment once a payment settles.
type appointmentConfirmer interface {
	Confirm(ctx context.Context, appointmentID, paymentID uuid.UUID) error
}

// InitializeParams opens a payment for a user.
type InitializeParams struct {
	UserID        uuid.UUID
	Type          string
	AmountCents   int64
	Currency      string
	Method        string
	Email         string
	AppointmentID *uuid.UUID
}

// InitializeResult is returned to the client so it can complete checkout.
type InitializeResult struct {
	PaymentID        uuid.UUID `json:"payment_id"`
	AuthorizationURL string    `json:"authorization_url"`
	Reference        string    `json:"reference"`
}

// Service reconciles local payment state with the gateway. The verify path
// is the single source of truth: both client polling and webhooks converge
// on it, which makes duplicated or out-of-order delivery safe.
type Service struct {
	store       Store
	gateway     GatewayClient
	confirmer   appointmentConfirmer
	callbackURL string
	channels    []string
	metrics     *metrics.LifecycleMetrics
	logger      *logging.Logger
}

// NewService constructs the reconciliation service. confirmer may be nil
// for order payments with no appointment attached.
func NewService(store Store, gateway GatewayClient, confirmer appointmentConfirmer, m *metrics.LifecycleMetrics, logger *logging.Logger) *Service {
	if store == nil {
		panic("payments: store required")
	}
	if gateway == nil {
		panic("payments: gateway client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:     store,
		gateway:   gateway,
		confirmer: confirmer,
		metrics:   m,
		logger:    logger,
	}
}

// WithCheckoutOptions sets the hosted-checkout callback URL and channels.
func (s *Service) WithCheckoutOptions(callbackURL string, channels []string) *Service {
	s.callbackURL = callbackURL
	s.channels = channels
	return s
}

// Initialize persists a pending payment and opens the gateway transaction.
// The local row is written first: a crash between the two steps leaves a
// harmless pending record, never an orphaned external charge.
func (s *Service) Initialize(ctx context.Context, params InitializeParams) (*InitializeResult, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.initialize")
	defer span.End()
	span.SetAttributes(
		attribute.String("telemed.user_id", params.UserID.String()),
		attribute.Int64("telemed.amount_cents", params.AmountCents),
	)

	if params.AmountCents <= 0 {
		return nil, fmt.Errorf("payments: amount must be positive, got %d", params.AmountCents)
	}
	if params.Type == "" {
		params.Type = TypeAppointment
	}

	reference := newReference()
	payment, err := s.store.CreatePending(ctx, &Payment{
		UserID:        params.UserID,
		AppointmentID: params.AppointmentID,
		Type:          params.Type,
		AmountCents:   params.AmountCents,
		Currency:      params.Currency,
		Method:        params.Method,
		Provider:      "paystack",
		Reference:     reference,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	init, err := s.gateway.Initialize(ctx, GatewayInitRequest{
		Email:       params.Email,
		AmountCents: params.AmountCents,
		Currency:    params.Currency,
		Reference:   reference,
		CallbackURL: s.callbackURL,
		Channels:    s.channels,
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.ObservePayment("init_failed")
		// Pending row stays behind for retry via Verify.
		return nil, err
	}

	s.metrics.ObservePayment("initialized")
	s.logger.Info("payment initialized", "payment_id", payment.ID, "reference", reference, "amount_cents", params.AmountCents)
	return &InitializeResult{
		PaymentID:        payment.ID,
		AuthorizationURL: init.AuthorizationURL,
		Reference:        reference,
	}, nil
}

// Verify reconciles a payment against the gateway. Already-completed
// payments short-circuit without a gateway call. On success the payment is
// completed and the linked appointment confirmed; both steps replay safely.
func (s *Service) Verify(ctx context.Context, reference string) (*Payment, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.verify")
	defer span.End()
	span.SetAttributes(attribute.String("telemed.reference", reference))

	payment, err := s.store.GetByReference(ctx, reference)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if payment.Status == StatusCompleted {
		s.metrics.ObservePayment("already_completed")
		return payment, nil
	}

	tx, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObservePayment("gateway_error")
		return nil, err
	}

	if !tx.Succeeded() {
		if tx.Status == "failed" || tx.Status == "abandoned" {
			if _, err := s.store.MarkFailed(ctx, reference); err != nil {
				return nil, err
			}
			s.metrics.ObservePayment("failed")
			s.logger.Info("payment failed at gateway", "reference", reference, "gateway_status", tx.Status)
		}
		return s.store.GetByReference(ctx, reference)
	}

	paidAt := time.Now().UTC()
	if tx.PaidAt != nil {
		paidAt = *tx.PaidAt
	}
	changed, err := s.store.MarkCompleted(ctx, reference, paidAt)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	payment, err = s.store.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.ObservePayment("completed")
		s.logger.Info("payment completed", "payment_id", payment.ID, "reference", reference)
		if payment.AppointmentID != nil && s.confirmer != nil {
			if err := s.confirmer.Confirm(ctx, *payment.AppointmentID, payment.ID); err != nil {
				// The payment is settled; the confirm will be retried on the
				// next verify or by the operator.
				s.logger.Error("appointment confirm failed after payment", "error", err, "appointment_id", *payment.AppointmentID)
			}
		}
	}
	return payment, nil
}

// RequestRefund records a refund request for a completed payment. Actual
// disbursement is an operator workflow outside this subsystem.
func (s *Service) RequestRefund(ctx context.Context, id uuid.UUID) error {
	changed, err := s.store.MarkRefundRequested(ctx, id)
	if err != nil {
		return err
	}
	if changed {
		s.metrics.ObservePayment("refund_requested")
		s.logger.Info("refund requested", "payment_id", id)
	}
	return nil
}

// newReference generates the globally unique idempotency key shared with
// the gateway.
func newReference() string {
	return "TM-" + uuid.NewString()
}

// IsTransient reports whether the error warrants a caller retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrGatewayUnreachable)
}
