package reminders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Log durably records which (appointment, threshold) pairs were already
// notified, so overlapping sweeps never double-send.
type Log struct {
	db db
}

// NewLog creates a reminder log backed by pgx.
func NewLog(pool *pgxpool.Pool) *Log {
	if pool == nil {
		panic("reminders: pgx pool required")
	}
	return &Log{db: pool}
}

// NewLogWithDB allows injecting a mock for tests.
func NewLogWithDB(db db) *Log {
	if db == nil {
		panic("reminders: db required")
	}
	return &Log{db: db}
}

// AlreadyNotified checks whether this pair was handled by a prior sweep.
func (l *Log) AlreadyNotified(ctx context.Context, appointmentID uuid.UUID, thresholdHours int) (bool, error) {
	query := `SELECT 1 FROM reminder_log WHERE appointment_id = $1 AND threshold_hours = $2`
	var exists int
	if err := l.db.QueryRow(ctx, query, appointmentID, thresholdHours).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("reminders: check notified: %w", err)
	}
	return true, nil
}

// MarkNotified claims the pair, returning false if another sweep already
// holds it. The insert is the check-and-set: whoever lands the row sends.
func (l *Log) MarkNotified(ctx context.Context, appointmentID uuid.UUID, thresholdHours int) (bool, error) {
	query := `
		INSERT INTO reminder_log (appointment_id, threshold_hours)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := l.db.Exec(ctx, query, appointmentID, thresholdHours)
	if err != nil {
		return false, fmt.Errorf("reminders: mark notified: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
