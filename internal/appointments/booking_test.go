package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/afyalink/telemed-platform/internal/doctors"
)

type fakeDirectory struct {
	doctor *doctors.Doctor
	err    error
}

func (f *fakeDirectory) GetVerified(_ context.Context, _ uuid.UUID) (*doctors.Doctor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.doctor, nil
}

type fakeSlots struct {
	slots []string
	err   error
}

func (f *fakeSlots) SlotsForDate(_ context.Context, _ uuid.UUID, _ time.Time, _ int) ([]string, error) {
	return f.slots, f.err
}

func verifiedDoctor() *doctors.Doctor {
	return &doctors.Doctor{
		ID:                          uuid.New(),
		FullName:                    "Dr. Amina Okafor",
		Status:                      "verified",
		ConsultationDurationMinutes: 30,
		ConsultationFeeCents:        500000,
	}
}

func TestBookCreatesPendingAppointment(t *testing.T) {
	store := newMemStore()
	doctor := verifiedDoctor()
	cache := &fakeInvalidator{}
	svc := NewBookingService(store, &fakeDirectory{doctor: doctor}, &fakeSlots{slots: []string{"10:00", "10:30"}}, cache, nil, nil)

	appt, err := svc.Book(context.Background(), BookingRequest{
		PatientID:        uuid.New(),
		DoctorID:         doctor.ID,
		ScheduledAt:      time.Date(2026, 9, 10, 10, 0, 0, 0, time.UTC),
		ConsultationType: "video",
	})
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if appt.Status != StatusPendingPayment {
		t.Fatalf("expected pending_payment, got %s", appt.Status)
	}
	if appt.DurationMinutes != doctor.ConsultationDurationMinutes {
		t.Fatalf("expected duration from doctor profile, got %d", appt.DurationMinutes)
	}
	if cache.calls != 1 {
		t.Fatalf("expected slot cache invalidation, got %d calls", cache.calls)
	}
}

func TestBookRejectsUnverifiedDoctor(t *testing.T) {
	store := newMemStore()
	svc := NewBookingService(store, &fakeDirectory{err: doctors.ErrDoctorNotVerified}, &fakeSlots{}, nil, nil, nil)

	_, err := svc.Book(context.Background(), BookingRequest{
		PatientID:   uuid.New(),
		DoctorID:    uuid.New(),
		ScheduledAt: time.Now(),
	})
	if !errors.Is(err, doctors.ErrDoctorNotVerified) {
		t.Fatalf("expected ErrDoctorNotVerified, got %v", err)
	}
	if len(store.appts) != 0 {
		t.Fatalf("expected no appointment persisted")
	}
}

func TestBookRejectsSlotNotOffered(t *testing.T) {
	store := newMemStore()
	doctor := verifiedDoctor()
	svc := NewBookingService(store, &fakeDirectory{doctor: doctor}, &fakeSlots{slots: []string{"09:00"}}, nil, nil, nil)

	_, err := svc.Book(context.Background(), BookingRequest{
		PatientID:   uuid.New(),
		DoctorID:    doctor.ID,
		ScheduledAt: time.Date(2026, 9, 10, 10, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable for off-template time, got %v", err)
	}
}

func TestBookLosesRaceToConcurrentWriter(t *testing.T) {
	store := newMemStore()
	doctor := verifiedDoctor()
	svc := NewBookingService(store, &fakeDirectory{doctor: doctor}, &fakeSlots{slots: []string{"10:00"}}, nil, nil, nil)
	req := BookingRequest{
		PatientID:   uuid.New(),
		DoctorID:    doctor.ID,
		ScheduledAt: time.Date(2026, 9, 10, 10, 0, 0, 0, time.UTC),
	}

	if _, err := svc.Book(context.Background(), req); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	// The slot list is stale by now; the insert constraint decides.
	req.PatientID = uuid.New()
	if _, err := svc.Book(context.Background(), req); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable on second booking, got %v", err)
	}
}

func TestBookCancelledSlotIsReusable(t *testing.T) {
	store := newMemStore()
	doctor := verifiedDoctor()
	svc := NewBookingService(store, &fakeDirectory{doctor: doctor}, &fakeSlots{slots: []string{"10:00"}}, nil, nil, nil)
	lc := NewLifecycle(store, &fakeCounter{}, nil, nil, nil, nil)
	ctx := context.Background()
	req := BookingRequest{
		PatientID:   uuid.New(),
		DoctorID:    doctor.ID,
		ScheduledAt: time.Date(2026, 9, 10, 10, 0, 0, 0, time.UTC),
	}

	first, err := svc.Book(ctx, req)
	if err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	if _, err := lc.Cancel(ctx, first.ID, req.PatientID, "conflict"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	req.PatientID = uuid.New()
	if _, err := svc.Book(ctx, req); err != nil {
		t.Fatalf("expected released slot to be bookable again, got %v", err)
	}
}
