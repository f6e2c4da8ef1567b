package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/afyalink/telemed-platform/internal/appointments"
	"github.com/afyalink/telemed-platform/internal/consultations"
	"github.com/afyalink/telemed-platform/pkg/logging"
)

// ConsultationsHandler exposes the session manager over HTTP.
type ConsultationsHandler struct {
	sessions *consultations.Manager
	logger   *logging.Logger
}

// NewConsultationsHandler creates the consultations HTTP handler.
func NewConsultationsHandler(sessions *consultations.Manager, logger *logging.Logger) *ConsultationsHandler {
	if sessions == nil {
		panic("handlers: session manager required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ConsultationsHandler{sessions: sessions, logger: logger}
}

// StartSession handles POST /api/appointments/{appointmentID}/session.
func (h *ConsultationsHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "appointmentID")
	if !ok {
		return
	}

	session, err := h.sessions.StartSession(r.Context(), id)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// GetSession handles GET /api/appointments/{appointmentID}/session?user_id=...
func (h *ConsultationsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "appointmentID")
	if !ok {
		return
	}
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return
	}

	access, err := h.sessions.GetSession(r.Context(), id, userID)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, access)
}

type endSessionRequest struct {
	EndedBy uuid.UUID `json:"ended_by"`
}

// EndSession handles POST /api/appointments/{appointmentID}/session/end.
func (h *ConsultationsHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "appointmentID")
	if !ok {
		return
	}
	var req endSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.EndedBy == uuid.Nil {
		http.Error(w, "ended_by is required", http.StatusBadRequest)
		return
	}

	session, err := h.sessions.EndSession(r.Context(), id, req.EndedBy)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *ConsultationsHandler) writeSessionError(w http.ResponseWriter, err error) {
	var transitionErr *appointments.TransitionError
	switch {
	case errors.Is(err, appointments.ErrAppointmentNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.Is(err, consultations.ErrNotParticipant):
		http.Error(w, "not a participant", http.StatusForbidden)
	case errors.Is(err, consultations.ErrSessionNotActive):
		http.Error(w, "session not active", http.StatusConflict)
	case errors.As(err, &transitionErr):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":          transitionErr.Error(),
			"current_status": string(transitionErr.Current),
		})
	default:
		h.logger.Error("session operation failed", "error", err)
		http.Error(w, "operation failed", http.StatusInternalServerError)
	}
}
