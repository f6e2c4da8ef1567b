package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/afyalink/telemed-platform/internal/appointments"
	"github.com/afyalink/telemed-platform/internal/observability/metrics"
	"github.com/afyalink/telemed-platform/pkg/logging"
)

// Notification is the fire-and-forget payload handed to the external
// dispatch collaborator.
type Notification struct {
	UserID uuid.UUID         `json:"user_id"`
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// Notifier delivers notifications through whatever channels the platform
// has configured. Failures are logged, never retried here.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// appointmentSource lists confirmed appointments in a scheduling window.
type appointmentSource interface {
	ConfirmedBetween(ctx context.Context, from, to time.Time) ([]appointments.Appointment, error)
}

// dedupLog claims (appointment, threshold) pairs before dispatch.
type dedupLog interface {
	MarkNotified(ctx context.Context, appointmentID uuid.UUID, thresholdHours int) (bool, error)
}

// Scheduler sweeps for confirmed appointments entering each look-ahead
// threshold and dispatches at most one reminder per (appointment,
// threshold) pair across overlapping sweeps.
type Scheduler struct {
	source     appointmentSource
	log        dedupLog
	notifier   Notifier
	thresholds []time.Duration
	window     time.Duration
	interval   time.Duration
	clock      func() time.Time
	metrics    *metrics.LifecycleMetrics
	logger     *logging.Logger
}

// NewScheduler constructs the reminder scheduler with the default 15m
// interval, 24h/1h thresholds and a ±7.5m matching window.
func NewScheduler(source appointmentSource, log dedupLog, notifier Notifier, m *metrics.LifecycleMetrics, logger *logging.Logger) *Scheduler {
	if source == nil {
		panic("reminders: appointment source required")
	}
	if log == nil {
		panic("reminders: dedup log required")
	}
	if notifier == nil {
		panic("reminders: notifier required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		source:     source,
		log:        log,
		notifier:   notifier,
		thresholds: []time.Duration{24 * time.Hour, time.Hour},
		window:     450 * time.Second,
		interval:   15 * time.Minute,
		clock:      time.Now,
		metrics:    m,
		logger:     logger,
	}
}

// WithThresholds overrides the look-ahead thresholds.
func (s *Scheduler) WithThresholds(thresholds []time.Duration) *Scheduler {
	if len(thresholds) > 0 {
		s.thresholds = thresholds
	}
	return s
}

// WithInterval overrides the sweep interval.
func (s *Scheduler) WithInterval(interval time.Duration) *Scheduler {
	if interval > 0 {
		s.interval = interval
	}
	return s
}

// WithWindow overrides the half-width of the matching window.
func (s *Scheduler) WithWindow(window time.Duration) *Scheduler {
	if window > 0 {
		s.window = window
	}
	return s
}

// WithClock overrides the time source for tests.
func (s *Scheduler) WithClock(clock func() time.Time) *Scheduler {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// Start runs the scheduler. Blocks until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("starting reminder scheduler",
		"interval", s.interval.String(),
		"thresholds", fmt.Sprintf("%v", s.thresholds),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder scheduler shutting down")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep across all thresholds.
func (s *Scheduler) RunOnce(ctx context.Context) {
	now := s.clock().UTC()
	for _, threshold := range s.thresholds {
		s.sweepThreshold(ctx, now, threshold)
	}
}

// sweepThreshold matches confirmed appointments whose start falls inside
// the window centered on now+threshold. The durable log gates dispatch so
// that sweeps overlapping the same window stay single-shot.
func (s *Scheduler) sweepThreshold(ctx context.Context, now time.Time, threshold time.Duration) {
	center := now.Add(threshold)
	from := center.Add(-s.window)
	to := center.Add(s.window)

	appts, err := s.source.ConfirmedBetween(ctx, from, to)
	if err != nil {
		s.logger.Error("reminder sweep query failed", "error", err, "threshold", threshold.String())
		return
	}
	if len(appts) == 0 {
		return
	}

	hours := int(threshold / time.Hour)
	for _, appt := range appts {
		claimed, err := s.log.MarkNotified(ctx, appt.ID, hours)
		if err != nil {
			s.logger.Error("reminder claim failed", "error", err, "appointment_id", appt.ID)
			continue
		}
		if !claimed {
			continue
		}
		s.dispatch(ctx, appt, threshold)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, appt appointments.Appointment, threshold time.Duration) {
	label := thresholdLabel(threshold)
	when := appt.ScheduledAt.Format("Monday, January 2 at 3:04 PM")

	patientNote := Notification{
		UserID: appt.PatientID,
		Type:   "appointment_reminder",
		Title:  fmt.Sprintf("Appointment in %s", label),
		Body:   fmt.Sprintf("Your consultation is scheduled for %s.", when),
		Data: map[string]string{
			"appointment_id": appt.ID.String(),
			"threshold":      label,
		},
	}
	if err := s.notifier.Send(ctx, patientNote); err != nil {
		s.logger.Error("patient reminder dispatch failed", "error", err, "appointment_id", appt.ID)
	} else {
		s.metrics.ObserveReminder(label)
	}

	// Doctors only get the short-notice reminder.
	if threshold <= time.Hour {
		doctorNote := Notification{
			UserID: appt.DoctorID,
			Type:   "appointment_reminder",
			Title:  fmt.Sprintf("Consultation in %s", label),
			Body:   fmt.Sprintf("You have a consultation scheduled for %s.", when),
			Data: map[string]string{
				"appointment_id": appt.ID.String(),
				"threshold":      label,
			},
		}
		if err := s.notifier.Send(ctx, doctorNote); err != nil {
			s.logger.Error("doctor reminder dispatch failed", "error", err, "appointment_id", appt.ID)
		}
	}

	s.logger.Info("reminder dispatched", "appointment_id", appt.ID, "threshold", label)
}

func thresholdLabel(threshold time.Duration) string {
	if threshold >= time.Hour && threshold%time.Hour == 0 {
		hours := int(threshold / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return threshold.String()
}
