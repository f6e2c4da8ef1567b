package availability

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Template is one recurring weekly availability window for a doctor.
// Overlapping templates for the same (doctor, weekday, mode) are legal;
// the calculator merges them instead of treating them as disjoint.
type Template struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Weekday   int       `json:"weekday"` // 0 = Sunday .. 6 = Saturday
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Mode      string    `json:"mode"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the window shape before persistence.
func (t *Template) Validate() error {
	if t.DoctorID == uuid.Nil {
		return fmt.Errorf("availability: doctor id required")
	}
	if t.Weekday < 0 || t.Weekday > 6 {
		return fmt.Errorf("availability: weekday out of range: %d", t.Weekday)
	}
	start, err := parseClock(t.StartTime)
	if err != nil {
		return fmt.Errorf("availability: bad start time %q: %w", t.StartTime, err)
	}
	end, err := parseClock(t.EndTime)
	if err != nil {
		return fmt.Errorf("availability: bad end time %q: %w", t.EndTime, err)
	}
	if start >= end {
		return fmt.Errorf("availability: start %q must be before end %q", t.StartTime, t.EndTime)
	}
	return nil
}

// parseClock converts "HH:MM" to minutes past midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
