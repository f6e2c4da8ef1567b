package doctors

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDoctorNotFound indicates the doctor id does not exist.
var ErrDoctorNotFound = errors.New("doctors: not found")

// ErrDoctorNotVerified indicates the doctor exists but has not passed verification.
var ErrDoctorNotVerified = errors.New("doctors: not verified")

// Doctor is the directory view of a practitioner as the booking flow needs it.
type Doctor struct {
	ID                          uuid.UUID  `json:"id"`
	FullName                    string     `json:"full_name"`
	Status                      string     `json:"status"`
	ClinicID                    *uuid.UUID `json:"clinic_id,omitempty"`
	ConsultationDurationMinutes int        `json:"consultation_duration_minutes"`
	ConsultationFeeCents        int64      `json:"consultation_fee_cents"`
	ConsultationCount           int64      `json:"consultation_count"`
	CreatedAt                   time.Time  `json:"created_at"`
}

// Verified reports whether the doctor may accept bookings.
func (d *Doctor) Verified() bool {
	return d.Status == "verified"
}
