package reminders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestLogMarkNotified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	log := NewLogWithDB(mock)
	appointmentID := uuid.New()

	mock.ExpectExec("INSERT INTO reminder_log").
		WithArgs(appointmentID, 24).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	claimed, err := log.MarkNotified(context.Background(), appointmentID, 24)
	if err != nil || !claimed {
		t.Fatalf("expected first claim to win, got claimed=%v err=%v", claimed, err)
	}

	// ON CONFLICT DO NOTHING reports zero rows for the duplicate.
	mock.ExpectExec("INSERT INTO reminder_log").
		WithArgs(appointmentID, 24).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	claimed, err = log.MarkNotified(context.Background(), appointmentID, 24)
	if err != nil {
		t.Fatalf("expected no error on duplicate claim, got %v", err)
	}
	if claimed {
		t.Fatalf("expected duplicate claim to lose")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLogAlreadyNotified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	log := NewLogWithDB(mock)
	appointmentID := uuid.New()

	mock.ExpectQuery("SELECT 1 FROM reminder_log").
		WithArgs(appointmentID, 1).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	notified, err := log.AlreadyNotified(context.Background(), appointmentID, 1)
	if err != nil || !notified {
		t.Fatalf("expected existing row, got notified=%v err=%v", notified, err)
	}

	mock.ExpectQuery("SELECT 1 FROM reminder_log").
		WithArgs(appointmentID, 24).
		WillReturnError(pgx.ErrNoRows)
	notified, err = log.AlreadyNotified(context.Background(), appointmentID, 24)
	if err != nil || notified {
		t.Fatalf("expected missing row, got notified=%v err=%v", notified, err)
	}
}
