package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/afyalink/telemed-platform/internal/appointments"
	"github.com/afyalink/telemed-platform/internal/doctors"
	"github.com/afyalink/telemed-platform/pkg/logging"
)

// AppointmentsHandler exposes booking and lifecycle operations.
type AppointmentsHandler struct {
	booking   *appointments.BookingService
	lifecycle *appointments.Lifecycle
	logger    *logging.Logger
}

// NewAppointmentsHandler creates the appointments HTTP handler.
func NewAppointmentsHandler(booking *appointments.BookingService, lifecycle *appointments.Lifecycle, logger *logging.Logger) *AppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{
		booking:   booking,
		lifecycle: lifecycle,
		logger:    logger,
	}
}

type bookRequest struct {
	PatientID        uuid.UUID `json:"patient_id"`
	DoctorID         uuid.UUID `json:"doctor_id"`
	ScheduledAt      time.Time `json:"scheduled_at"`
	ConsultationType string    `json:"consultation_type"`
	Notes            string    `json:"notes,omitempty"`
}

// Book handles POST /api/appointments.
func (h *AppointmentsHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PatientID == uuid.Nil || req.DoctorID == uuid.Nil || req.ScheduledAt.IsZero() {
		http.Error(w, "patient_id, doctor_id and scheduled_at are required", http.StatusBadRequest)
		return
	}
	if req.ConsultationType == "" {
		req.ConsultationType = "video"
	}

	appt, err := h.booking.Book(r.Context(), appointments.BookingRequest{
		PatientID:        req.PatientID,
		DoctorID:         req.DoctorID,
		ScheduledAt:      req.ScheduledAt,
		ConsultationType: req.ConsultationType,
		Notes:            req.Notes,
	})
	if err != nil {
		h.writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, appt)
}

func (h *AppointmentsHandler) writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, doctors.ErrDoctorNotFound):
		http.Error(w, "doctor not found", http.StatusNotFound)
	case errors.Is(err, doctors.ErrDoctorNotVerified):
		http.Error(w, "doctor is not accepting bookings", http.StatusUnprocessableEntity)
	case errors.Is(err, appointments.ErrSlotUnavailable):
		http.Error(w, "slot no longer available", http.StatusConflict)
	default:
		h.logger.Error("booking failed", "error", err)
		http.Error(w, "booking failed", http.StatusInternalServerError)
	}
}

// Get handles GET /api/appointments/{appointmentID}.
func (h *AppointmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "appointmentID")
	if !ok {
		return
	}
	appt, err := h.lifecycle.Get(r.Context(), id)
	if err != nil {
		h.writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type cancelRequest struct {
	ActorID uuid.UUID `json:"actor_id"`
	Reason  string    `json:"reason,omitempty"`
}

// Cancel handles POST /api/appointments/{appointmentID}/cancel.
func (h *AppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "appointmentID")
	if !ok {
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ActorID == uuid.Nil {
		http.Error(w, "actor_id is required", http.StatusBadRequest)
		return
	}

	appt, err := h.lifecycle.Cancel(r.Context(), id, req.ActorID, req.Reason)
	if err != nil {
		h.writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// MarkNoShow handles POST /api/appointments/{appointmentID}/no-show.
func (h *AppointmentsHandler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "appointmentID")
	if !ok {
		return
	}
	appt, err := h.lifecycle.MarkNoShow(r.Context(), id)
	if err != nil {
		h.writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *AppointmentsHandler) writeLifecycleError(w http.ResponseWriter, err error) {
	var transitionErr *appointments.TransitionError
	switch {
	case errors.Is(err, appointments.ErrAppointmentNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.As(err, &transitionErr):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":          transitionErr.Error(),
			"current_status": string(transitionErr.Current),
		})
	default:
		h.logger.Error("appointment operation failed", "error", err)
		http.Error(w, "operation failed", http.StatusInternalServerError)
	}
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
