package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/afyalink/telemed-platform/internal/availability"
	"github.com/afyalink/telemed-platform/internal/doctors"
	"github.com/afyalink/telemed-platform/pkg/logging"
)

// AvailabilityHandler serves computed slot lists.
type AvailabilityHandler struct {
	calculator *availability.Calculator
	directory  *doctors.Repository
	logger     *logging.Logger
}

// NewAvailabilityHandler creates the availability HTTP handler.
func NewAvailabilityHandler(calculator *availability.Calculator, directory *doctors.Repository, logger *logging.Logger) *AvailabilityHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityHandler{
		calculator: calculator,
		directory:  directory,
		logger:     logger,
	}
}

type slotsResponse struct {
	DoctorID string   `json:"doctor_id"`
	Date     string   `json:"date"`
	Slots    []string `json:"slots"`
}

// Slots handles GET /api/doctors/{doctorID}/slots?date=YYYY-MM-DD.
func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := parseUUIDParam(w, r, "doctorID")
	if !ok {
		return
	}

	dateStr := r.URL.Query().Get("date")
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	doctor, err := h.directory.GetVerified(r.Context(), doctorID)
	if err != nil {
		if errors.Is(err, doctors.ErrDoctorNotFound) || errors.Is(err, doctors.ErrDoctorNotVerified) {
			http.Error(w, "doctor not found", http.StatusNotFound)
			return
		}
		h.logger.Error("doctor lookup failed", "error", err, "doctor_id", doctorID)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	slots, err := h.calculator.SlotsForDate(r.Context(), doctorID, date, doctor.ConsultationDurationMinutes)
	if err != nil {
		h.logger.Error("slot computation failed", "error", err, "doctor_id", doctorID)
		http.Error(w, "slot computation failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, slotsResponse{
		DoctorID: doctorID.String(),
		Date:     dateStr,
		Slots:    slots,
	})
}
