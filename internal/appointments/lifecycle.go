package appointments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/afyalink/telemed-platform/internal/observability/metrics"
	"github.com/afyalink/telemed-platform/pkg/logging"
)

var lifecycleTracer = otel.Tracer("telemed.internal.appointments.lifecycle")

// consultationCounter bumps a doctor's lifetime consultation count.
type consultationCounter interface {
	IncrementConsultations(ctx context.Context, doctorID uuid.UUID) error
}

// paymentRefunder records a refund request against a completed payment.
type paymentRefunder interface {
	RequestRefund(ctx context.Context, paymentID uuid.UUID) error
}

// Lifecycle enforces the appointment state machine:
//
//	pending_payment -> confirmed -> in_progress -> completed
//	pending_payment | confirmed  -> cancelled
//	confirmed                    -> no_show
//
// Every transition is a storage-layer conditional update; a failed update
// is re-read and classified so callers see the authoritative state.
type Lifecycle struct {
	store    Store
	counter  consultationCounter
	refunds  paymentRefunder
	cache    cacheInvalidator
	metrics  *metrics.LifecycleMetrics
	logger   *logging.Logger
}

// NewLifecycle constructs the state machine service. counter is required;
// refunds and cache are optional.
func NewLifecycle(store Store, counter consultationCounter, refunds paymentRefunder, cache cacheInvalidator, m *metrics.LifecycleMetrics, logger *logging.Logger) *Lifecycle {
	if store == nil {
		panic("appointments: store required")
	}
	if counter == nil {
		panic("appointments: consultation counter required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Lifecycle{
		store:   store,
		counter: counter,
		refunds: refunds,
		cache:   cache,
		metrics: m,
		logger:  logger,
	}
}

// Get returns the appointment by id.
func (l *Lifecycle) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return l.store.GetByID(ctx, id)
}

// Confirm moves pending_payment -> confirmed, linking the payment. A repeat
// confirm with the same payment id is a no-op, which makes the payment
// reconciliation path safe to replay.
func (l *Lifecycle) Confirm(ctx context.Context, id, paymentID uuid.UUID) error {
	ctx, span := lifecycleTracer.Start(ctx, "appointments.confirm")
	defer span.End()
	span.SetAttributes(attribute.String("telemed.appointment_id", id.String()))

	ok, err := l.store.ConfirmPending(ctx, id, paymentID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !ok {
		appt, err := l.store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if appt.Status == StatusConfirmed && appt.PaymentID != nil && *appt.PaymentID == paymentID {
			return nil
		}
		return &TransitionError{Op: "confirm", Current: appt.Status}
	}
	l.metrics.ObserveTransition("confirm")
	l.logger.Info("appointment confirmed", "appointment_id", id, "payment_id", paymentID)
	return nil
}

// Start moves confirmed -> in_progress, recording the room and start time.
func (l *Lifecycle) Start(ctx context.Context, id uuid.UUID, roomID string, startedAt time.Time) (*Appointment, error) {
	ok, err := l.store.StartConfirmed(ctx, id, roomID, startedAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		appt, err := l.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &TransitionError{Op: "start", Current: appt.Status}
	}
	l.metrics.ObserveTransition("start")
	l.logger.Info("consultation started", "appointment_id", id, "room_id", roomID)
	return l.store.GetByID(ctx, id)
}

// Complete moves in_progress -> completed and bumps the doctor's counter.
// The conditional update succeeds exactly once per appointment, so the
// counter increments exactly once.
func (l *Lifecycle) Complete(ctx context.Context, id uuid.UUID, endedAt time.Time, actualMinutes int) (*Appointment, error) {
	ok, err := l.store.CompleteInProgress(ctx, id, endedAt, actualMinutes)
	if err != nil {
		return nil, err
	}
	appt, getErr := l.store.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if !ok {
		return nil, &TransitionError{Op: "complete", Current: appt.Status}
	}
	if err := l.counter.IncrementConsultations(ctx, appt.DoctorID); err != nil {
		l.logger.Error("consultation counter increment failed", "error", err, "doctor_id", appt.DoctorID)
	}
	l.metrics.ObserveTransition("complete")
	l.logger.Info("consultation completed", "appointment_id", id, "actual_minutes", actualMinutes)
	return appt, nil
}

// Cancel moves pending_payment|confirmed -> cancelled, recording the actor
// and reason. If a completed payment is attached, a refund request is
// recorded. The availability cache for that day is invalidated.
func (l *Lifecycle) Cancel(ctx context.Context, id, actorID uuid.UUID, reason string) (*Appointment, error) {
	ok, err := l.store.CancelActive(ctx, id, actorID, reason, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	appt, getErr := l.store.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if !ok {
		return nil, &TransitionError{Op: "cancel", Current: appt.Status}
	}

	if appt.PaymentID != nil && l.refunds != nil {
		if err := l.refunds.RequestRefund(ctx, *appt.PaymentID); err != nil {
			l.logger.Error("refund request failed", "error", err, "payment_id", *appt.PaymentID)
		}
	}
	if l.cache != nil {
		if err := l.cache.InvalidateDay(ctx, appt.DoctorID, appt.ScheduledAt); err != nil {
			l.logger.Warn("availability invalidation failed", "error", err, "doctor_id", appt.DoctorID)
		}
	}
	l.metrics.ObserveTransition("cancel")
	l.logger.Info("appointment cancelled", "appointment_id", id, "actor_id", actorID, "reason", reason)
	return appt, nil
}

// MarkNoShow moves confirmed -> no_show.
func (l *Lifecycle) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	ok, err := l.store.MarkNoShow(ctx, id)
	if err != nil {
		return nil, err
	}
	appt, getErr := l.store.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if !ok {
		return nil, &TransitionError{Op: "mark no-show", Current: appt.Status}
	}
	l.metrics.ObserveTransition("no_show")
	l.logger.Info("appointment marked no-show", "appointment_id", id)
	return appt, nil
}
