package consultations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/afyalink/telemed-platform/internal/appointments"
	"github.com/afyalink/telemed-platform/internal/video"
	"github.com/afyalink/telemed-platform/pkg/logging"
)

// ErrNotParticipant indicates the user is neither the patient nor the
// doctor on the appointment.
var ErrNotParticipant = errors.New("consultations: user is not a participant")

// ErrSessionNotActive indicates there is no running session to join or end.
var ErrSessionNotActive = errors.New("consultations: session not active")

// roomProvider allocates and tears down rooms on the video infrastructure.
type roomProvider interface {
	CreateRoom(ctx context.Context, name string) (string, error)
	DisableRoom(ctx context.Context, roomID string) error
}

// tokenIssuer mints role-scoped access tokens.
type tokenIssuer interface {
	IssueToken(roomID, userID, role string) (string, error)
}

// lifecycle is the slice of the appointment state machine the session
// manager drives.
type lifecycle interface {
	Get(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
	Start(ctx context.Context, id uuid.UUID, roomID string, startedAt time.Time) (*appointments.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID, endedAt time.Time, actualMinutes int) (*appointments.Appointment, error)
}

// Session is the derived view of a running or finished consultation.
type Session struct {
	AppointmentID   uuid.UUID  `json:"appointment_id"`
	RoomID          string     `json:"room_id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
}

// SessionAccess carries a fresh, short-lived token for one participant.
type SessionAccess struct {
	RoomID string `json:"room_id"`
	Token  string `json:"token"`
	Role   string `json:"role"`
}

// Manager creates video rooms when confirmed appointments start and
// finalizes duration and state when they end.
type Manager struct {
	appts  lifecycle
	rooms  roomProvider
	tokens tokenIssuer
	clock  func() time.Time
	logger *logging.Logger
}

// NewManager constructs the consultation session manager.
func NewManager(appts lifecycle, rooms roomProvider, tokens tokenIssuer, logger *logging.Logger) *Manager {
	if appts == nil {
		panic("consultations: lifecycle required")
	}
	if rooms == nil {
		panic("consultations: room provider required")
	}
	if tokens == nil {
		panic("consultations: token issuer required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		appts:  appts,
		rooms:  rooms,
		tokens: tokens,
		clock:  time.Now,
		logger: logger,
	}
}

// WithClock overrides the time source for tests.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	if clock != nil {
		m.clock = clock
	}
	return m
}

// StartSession allocates a room and moves a confirmed appointment to
// in_progress. Calling it again for a running session returns the existing
// room instead of erroring.
func (m *Manager) StartSession(ctx context.Context, appointmentID uuid.UUID) (*Session, error) {
	appt, err := m.appts.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if appt.Status == appointments.StatusInProgress && appt.VideoRoomID != nil {
		return sessionFrom(appt), nil
	}
	if appt.Status != appointments.StatusConfirmed {
		return nil, &appointments.TransitionError{Op: "start", Current: appt.Status}
	}

	roomID, err := m.rooms.CreateRoom(ctx, "consult-"+appointmentID.String())
	if err != nil {
		return nil, fmt.Errorf("consultations: room allocation: %w", err)
	}

	started, err := m.appts.Start(ctx, appointmentID, roomID, m.clock().UTC())
	if err != nil {
		// A concurrent start may have won the conditional update; if the
		// appointment is now running, join that session and drop our room.
		var transitionErr *appointments.TransitionError
		if errors.As(err, &transitionErr) && transitionErr.Current == appointments.StatusInProgress {
			if disableErr := m.rooms.DisableRoom(ctx, roomID); disableErr != nil {
				m.logger.Warn("orphan room disable failed", "error", disableErr, "room_id", roomID)
			}
			current, getErr := m.appts.Get(ctx, appointmentID)
			if getErr != nil {
				return nil, getErr
			}
			return sessionFrom(current), nil
		}
		return nil, err
	}

	m.logger.Info("consultation session started", "appointment_id", appointmentID, "room_id", roomID)
	return sessionFrom(started), nil
}

// GetSession authorizes the user as a participant and issues a fresh
// role-scoped access token: host for the doctor, guest for the patient.
func (m *Manager) GetSession(ctx context.Context, appointmentID, userID uuid.UUID) (*SessionAccess, error) {
	appt, err := m.appts.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != appointments.StatusInProgress || appt.VideoRoomID == nil {
		return nil, ErrSessionNotActive
	}

	var role string
	switch userID {
	case appt.DoctorID:
		role = video.RoleHost
	case appt.PatientID:
		role = video.RoleGuest
	default:
		return nil, ErrNotParticipant
	}

	token, err := m.tokens.IssueToken(*appt.VideoRoomID, userID.String(), role)
	if err != nil {
		return nil, err
	}
	return &SessionAccess{
		RoomID: *appt.VideoRoomID,
		Token:  token,
		Role:   role,
	}, nil
}

// EndSession computes the session duration, completes the appointment and
// disables the remote room.
func (m *Manager) EndSession(ctx context.Context, appointmentID, endedBy uuid.UUID) (*Session, error) {
	appt, err := m.appts.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != appointments.StatusInProgress || appt.StartedAt == nil {
		return nil, ErrSessionNotActive
	}
	if endedBy != appt.DoctorID && endedBy != appt.PatientID {
		return nil, ErrNotParticipant
	}

	endedAt := m.clock().UTC()
	minutes := int(endedAt.Sub(*appt.StartedAt).Round(time.Minute) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}

	completed, err := m.appts.Complete(ctx, appointmentID, endedAt, minutes)
	if err != nil {
		return nil, err
	}

	if completed.VideoRoomID != nil {
		if err := m.rooms.DisableRoom(ctx, *completed.VideoRoomID); err != nil {
			m.logger.Warn("room disable failed", "error", err, "room_id", *completed.VideoRoomID)
		}
	}

	m.logger.Info("consultation session ended",
		"appointment_id", appointmentID,
		"ended_by", endedBy,
		"duration_minutes", minutes,
	)
	return sessionFrom(completed), nil
}

func sessionFrom(appt *appointments.Appointment) *Session {
	s := &Session{AppointmentID: appt.ID}
	if appt.VideoRoomID != nil {
		s.RoomID = *appt.VideoRoomID
	}
	if appt.StartedAt != nil {
		s.StartedAt = *appt.StartedAt
	}
	s.EndedAt = appt.EndedAt
	s.DurationMinutes = appt.ActualDurationMinutes
	return s
}
