package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/afyalink/telemed-platform/internal/doctors"
	"github.com/afyalink/telemed-platform/internal/observability/metrics"
	"github.com/afyalink/telemed-platform/pkg/logging"
)

var bookingTracer = otel.Tracer("telemed.internal.appointments")

// doctorDirectory resolves bookable doctors.
type doctorDirectory interface {
	GetVerified(ctx context.Context, id uuid.UUID) (*doctors.Doctor, error)
}

// slotSource recomputes the bookable slots for a doctor/date.
type slotSource interface {
	SlotsForDate(ctx context.Context, doctorID uuid.UUID, date time.Time, durationMinutes int) ([]string, error)
}

// cacheInvalidator drops cached availability for a doctor/date.
type cacheInvalidator interface {
	InvalidateDay(ctx context.Context, doctorID uuid.UUID, day time.Time) error
}

// BookingRequest is the orchestrator input.
type BookingRequest struct {
	PatientID        uuid.UUID
	DoctorID         uuid.UUID
	ScheduledAt      time.Time
	ConsultationType string
	Notes            string
}

// BookingService validates eligibility and reserves slots. The reservation
// is the insert itself: the storage-layer unique constraint decides races,
// never a prior read.
type BookingService struct {
	store   Store
	doctors doctorDirectory
	slots   slotSource
	cache   cacheInvalidator
	metrics *metrics.LifecycleMetrics
	logger  *logging.Logger
}

// NewBookingService constructs the booking orchestrator. slots and cache
// are optional; metrics may be nil.
func NewBookingService(store Store, directory doctorDirectory, slots slotSource, cache cacheInvalidator, m *metrics.LifecycleMetrics, logger *logging.Logger) *BookingService {
	if store == nil {
		panic("appointments: store required")
	}
	if directory == nil {
		panic("appointments: doctor directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingService{
		store:   store,
		doctors: directory,
		slots:   slots,
		cache:   cache,
		metrics: m,
		logger:  logger,
	}
}

// Book creates an appointment in pending_payment for the requested slot.
func (s *BookingService) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	ctx, span := bookingTracer.Start(ctx, "appointments.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("telemed.doctor_id", req.DoctorID.String()),
		attribute.String("telemed.patient_id", req.PatientID.String()),
	)

	doctor, err := s.doctors.GetVerified(ctx, req.DoctorID)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveBooking("rejected")
		return nil, err
	}

	if err := s.validateSlot(ctx, doctor, req.ScheduledAt); err != nil {
		span.RecordError(err)
		s.metrics.ObserveBooking("conflict")
		return nil, err
	}

	appt, err := s.store.Insert(ctx, CreateParams{
		PatientID:        req.PatientID,
		DoctorID:         req.DoctorID,
		ScheduledAt:      req.ScheduledAt,
		DurationMinutes:  doctor.ConsultationDurationMinutes,
		ConsultationType: req.ConsultationType,
		Notes:            req.Notes,
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveBooking("conflict")
		return nil, err
	}

	s.invalidateDay(ctx, req.DoctorID, req.ScheduledAt)
	s.metrics.ObserveBooking("created")
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"doctor_id", req.DoctorID,
		"patient_id", req.PatientID,
		"scheduled_at", appt.ScheduledAt,
	)
	return appt, nil
}

// validateSlot checks the requested start against what the calculator would
// emit today. Racy by nature; the insert constraint is the real gate.
func (s *BookingService) validateSlot(ctx context.Context, doctor *doctors.Doctor, scheduledAt time.Time) error {
	if s.slots == nil {
		return nil
	}
	slots, err := s.slots.SlotsForDate(ctx, doctor.ID, scheduledAt, doctor.ConsultationDurationMinutes)
	if err != nil {
		return fmt.Errorf("appointments: slot lookup: %w", err)
	}
	want := scheduledAt.Format("15:04")
	for _, slot := range slots {
		if slot == want {
			return nil
		}
	}
	return ErrSlotUnavailable
}

// invalidateDay drops the cached slot list; failures are logged only, since
// the cache is best-effort.
func (s *BookingService) invalidateDay(ctx context.Context, doctorID uuid.UUID, at time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDay(ctx, doctorID, at); err != nil {
		s.logger.Warn("availability invalidation failed", "error", err, "doctor_id", doctorID)
	}
}
