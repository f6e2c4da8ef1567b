package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/afyalink/telemed-platform/internal/payments"
	"github.com/afyalink/telemed-platform/pkg/logging"
)

// PaymentsHandler exposes payment initialization and verification.
type PaymentsHandler struct {
	service *payments.Service
	logger  *logging.Logger
}

// NewPaymentsHandler creates the payments HTTP handler.
func NewPaymentsHandler(service *payments.Service, logger *logging.Logger) *PaymentsHandler {
	if service == nil {
		panic("handlers: payments service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PaymentsHandler{service: service, logger: logger}
}

type initializeRequest struct {
	UserID        uuid.UUID  `json:"user_id"`
	Type          string     `json:"type,omitempty"`
	AmountCents   int64      `json:"amount_cents"`
	Currency      string     `json:"currency"`
	Method        string     `json:"method,omitempty"`
	Email         string     `json:"email"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
}

// Initialize handles POST /api/payments/initialize.
func (h *PaymentsHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == uuid.Nil || req.Email == "" || req.AmountCents <= 0 {
		http.Error(w, "user_id, email and a positive amount_cents are required", http.StatusBadRequest)
		return
	}

	result, err := h.service.Initialize(r.Context(), payments.InitializeParams{
		UserID:        req.UserID,
		Type:          req.Type,
		AmountCents:   req.AmountCents,
		Currency:      req.Currency,
		Method:        req.Method,
		Email:         req.Email,
		AppointmentID: req.AppointmentID,
	})
	if err != nil {
		if payments.IsTransient(err) {
			http.Error(w, "payment gateway unavailable, try again", http.StatusBadGateway)
			return
		}
		h.logger.Error("payment initialization failed", "error", err)
		http.Error(w, "payment failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// Verify handles GET /api/payments/verify/{reference}.
func (h *PaymentsHandler) Verify(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		http.Error(w, "missing reference", http.StatusBadRequest)
		return
	}

	payment, err := h.service.Verify(r.Context(), reference)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrPaymentNotFound):
			http.Error(w, "payment not found", http.StatusNotFound)
		case payments.IsTransient(err):
			http.Error(w, "payment gateway unavailable, try again", http.StatusBadGateway)
		default:
			h.logger.Error("payment verification failed", "error", err, "reference", reference)
			http.Error(w, "verification failed", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, payment)
}
