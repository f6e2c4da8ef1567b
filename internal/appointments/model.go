package appointments

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the canonical appointment lifecycle state.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusConfirmed      Status = "confirmed"
	StatusInProgress     Status = "in_progress"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusNoShow         Status = "no_show"
)

// Active reports whether the appointment still occupies its slot.
func (s Status) Active() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// ErrSlotUnavailable indicates another active appointment already holds the slot.
var ErrSlotUnavailable = errors.New("appointments: slot unavailable")

// ErrAppointmentNotFound indicates the appointment id does not exist.
var ErrAppointmentNotFound = errors.New("appointments: not found")

// ErrInvalidTransition is the target for errors.Is on transition failures.
var ErrInvalidTransition = errors.New("appointments: invalid transition")

// TransitionError carries the authoritative current state so callers can
// refresh instead of retrying blindly.
type TransitionError struct {
	Op      string
	Current Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("appointments: cannot %s from %s", e.Op, e.Current)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Appointment is the central entity of the lifecycle subsystem. Rows are
// never physically deleted; terminal states release the slot instead.
type Appointment struct {
	ID                    uuid.UUID  `json:"id"`
	PatientID             uuid.UUID  `json:"patient_id"`
	DoctorID              uuid.UUID  `json:"doctor_id"`
	ScheduledAt           time.Time  `json:"scheduled_at"`
	DurationMinutes       int        `json:"duration_minutes"`
	ConsultationType      string     `json:"consultation_type"`
	Status                Status     `json:"status"`
	Notes                 string     `json:"notes,omitempty"`
	PaymentID             *uuid.UUID `json:"payment_id,omitempty"`
	VideoRoomID           *string    `json:"video_room_id,omitempty"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
	EndedAt               *time.Time `json:"ended_at,omitempty"`
	ActualDurationMinutes *int       `json:"actual_duration_minutes,omitempty"`
	CancelledBy           *uuid.UUID `json:"cancelled_by,omitempty"`
	CancelReason          *string    `json:"cancel_reason,omitempty"`
	CancelledAt           *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// CreateParams is the insert shape used by the booking orchestrator.
type CreateParams struct {
	PatientID        uuid.UUID
	DoctorID         uuid.UUID
	ScheduledAt      time.Time
	DurationMinutes  int
	ConsultationType string
	Notes            string
}
