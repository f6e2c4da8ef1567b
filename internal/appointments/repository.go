package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the persistence contract the services depend on. *Repository is
// the pgx-backed implementation; tests substitute in-memory fakes.
type Store interface {
	Insert(ctx context.Context, params CreateParams) (*Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ConfirmPending(ctx context.Context, id, paymentID uuid.UUID) (bool, error)
	StartConfirmed(ctx context.Context, id uuid.UUID, roomID string, startedAt time.Time) (bool, error)
	CompleteInProgress(ctx context.Context, id uuid.UUID, endedAt time.Time, actualMinutes int) (bool, error)
	CancelActive(ctx context.Context, id, actorID uuid.UUID, reason string, at time.Time) (bool, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) (bool, error)
	BookedTimes(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error)
	ConfirmedBetween(ctx context.Context, from, to time.Time) ([]Appointment, error)
}

// Repository persists appointments. Every transition is a conditional
// update guarded on the expected prior status, so racing writers lose
// deterministically instead of overwriting each other.
type Repository struct {
	db db
}

// NewRepository initializes a repo backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting a mock for tests.
func NewRepositoryWithDB(db db) *Repository {
	if db == nil {
		panic("appointments: db required")
	}
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

const selectColumns = `
	id, patient_id, doctor_id, scheduled_at, duration_minutes, consultation_type,
	status, notes, payment_id, video_room_id, started_at, ended_at,
	actual_duration_minutes, cancelled_by, cancel_reason, cancelled_at,
	created_at, updated_at
`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.ScheduledAt,
		&a.DurationMinutes,
		&a.ConsultationType,
		&a.Status,
		&a.Notes,
		&a.PaymentID,
		&a.VideoRoomID,
		&a.StartedAt,
		&a.EndedAt,
		&a.ActualDurationMinutes,
		&a.CancelledBy,
		&a.CancelReason,
		&a.CancelledAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Insert reserves the slot and creates the appointment in pending_payment.
// The partial unique index on (doctor_id, scheduled_at) over active rows is
// the reservation itself: a unique violation means another writer won.
func (r *Repository) Insert(ctx context.Context, params CreateParams) (*Appointment, error) {
	query := `
		INSERT INTO appointments (id, patient_id, doctor_id, scheduled_at, duration_minutes, consultation_type, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + selectColumns
	row := r.db.QueryRow(ctx, query,
		uuid.New(),
		params.PatientID,
		params.DoctorID,
		params.ScheduledAt.UTC(),
		params.DurationMinutes,
		params.ConsultationType,
		StatusPendingPayment,
		params.Notes,
	)
	appt, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("appointments: insert failed: %w", err)
	}
	return appt, nil
}

// GetByID fetches a single appointment.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + selectColumns + ` FROM appointments WHERE id = $1`
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	return appt, nil
}

func (r *Repository) conditionalUpdate(ctx context.Context, query string, args ...any) (bool, error) {
	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("appointments: conditional update: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// ConfirmPending moves pending_payment -> confirmed and links the payment.
func (r *Repository) ConfirmPending(ctx context.Context, id, paymentID uuid.UUID) (bool, error) {
	query := `
		UPDATE appointments
		SET status = $1, payment_id = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`
	return r.conditionalUpdate(ctx, query, StatusConfirmed, paymentID, id, StatusPendingPayment)
}

// StartConfirmed moves confirmed -> in_progress and records the room.
func (r *Repository) StartConfirmed(ctx context.Context, id uuid.UUID, roomID string, startedAt time.Time) (bool, error) {
	query := `
		UPDATE appointments
		SET status = $1, video_room_id = $2, started_at = $3, updated_at = now()
		WHERE id = $4 AND status = $5
	`
	return r.conditionalUpdate(ctx, query, StatusInProgress, roomID, startedAt.UTC(), id, StatusConfirmed)
}

// CompleteInProgress moves in_progress -> completed with the measured duration.
func (r *Repository) CompleteInProgress(ctx context.Context, id uuid.UUID, endedAt time.Time, actualMinutes int) (bool, error) {
	query := `
		UPDATE appointments
		SET status = $1, ended_at = $2, actual_duration_minutes = $3, updated_at = now()
		WHERE id = $4 AND status = $5
	`
	return r.conditionalUpdate(ctx, query, StatusCompleted, endedAt.UTC(), actualMinutes, id, StatusInProgress)
}

// CancelActive moves pending_payment|confirmed -> cancelled with actor metadata.
func (r *Repository) CancelActive(ctx context.Context, id, actorID uuid.UUID, reason string, at time.Time) (bool, error) {
	query := `
		UPDATE appointments
		SET status = $1, cancelled_by = $2, cancel_reason = $3, cancelled_at = $4, updated_at = now()
		WHERE id = $5 AND status IN ($6, $7)
	`
	return r.conditionalUpdate(ctx, query, StatusCancelled, actorID, reason, at.UTC(), id, StatusPendingPayment, StatusConfirmed)
}

// MarkNoShow moves confirmed -> no_show.
func (r *Repository) MarkNoShow(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE appointments
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`
	return r.conditionalUpdate(ctx, query, StatusNoShow, id, StatusConfirmed)
}

// BookedTimes lists active appointment start times in [from, to) for a doctor.
func (r *Repository) BookedTimes(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	query := `
		SELECT scheduled_at
		FROM appointments
		WHERE doctor_id = $1
		  AND scheduled_at >= $2 AND scheduled_at < $3
		  AND status NOT IN ($4, $5)
		ORDER BY scheduled_at
	`
	rows, err := r.db.Query(ctx, query, doctorID, from.UTC(), to.UTC(), StatusCancelled, StatusNoShow)
	if err != nil {
		return nil, fmt.Errorf("appointments: booked times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("appointments: scan booked time: %w", err)
		}
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: booked times rows: %w", err)
	}
	return times, nil
}

// ConfirmedBetween lists confirmed appointments scheduled inside [from, to].
// Used by the reminder sweep.
func (r *Repository) ConfirmedBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM appointments
		WHERE status = $1 AND scheduled_at BETWEEN $2 AND $3
		ORDER BY scheduled_at
	`
	rows, err := r.db.Query(ctx, query, StatusConfirmed, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("appointments: confirmed between: %w", err)
	}
	defer rows.Close()

	var appts []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan confirmed: %w", err)
		}
		appts = append(appts, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: confirmed rows: %w", err)
	}
	return appts, nil
}
