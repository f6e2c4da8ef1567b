package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/afyalink/telemed-platform/internal/observability/metrics"
	"github.com/afyalink/telemed-platform/pkg/logging"
)

// verifier is the slice of Service the webhook needs.
type verifier interface {
	Verify(ctx context.Context, reference string) (*Payment, error)
}

// WebhookHandler processes gateway webhooks. Delivery is at-least-once and
// may race a client-initiated verify, so the handler never mutates state
// from the payload: it re-derives truth through the same Verify path.
type WebhookHandler struct {
	secret  string
	service verifier
	metrics *metrics.LifecycleMetrics
	logger  *logging.Logger
}

// NewWebhookHandler creates a handler for gateway webhooks.
func NewWebhookHandler(secret string, service verifier, m *metrics.LifecycleMetrics, logger *logging.Logger) *WebhookHandler {
	if service == nil {
		panic("payments: verifier required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		secret:  secret,
		service: service,
		metrics: m,
		logger:  logger,
	}
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

// Handle processes an inbound webhook. Signature verification precedes any
// processing; internal failures still return 200 so the provider does not
// retry unboundedly, with the fault logged for operator follow-up.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("x-paystack-signature")
	if !verifySignature(h.secret, payload, signature) {
		h.logger.Warn("webhook signature mismatch", "remote_addr", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var evt webhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("failed to decode webhook payload", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	defer func() {
		h.metrics.ObserveWebhookLatency(evt.Event, time.Since(start).Seconds())
	}()

	switch evt.Event {
	case "charge.success", "charge.failed":
	default:
		w.WriteHeader(http.StatusOK)
		return
	}

	if evt.Data.Reference == "" {
		h.logger.Warn("webhook missing reference", "event", evt.Event)
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, err := h.service.Verify(r.Context(), evt.Data.Reference); err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			// A reference we never issued; log and ignore.
			h.logger.Warn("webhook references unknown payment", "reference", evt.Data.Reference)
		} else {
			h.logger.Error("webhook reconciliation failed", "error", err, "reference", evt.Data.Reference)
		}
	}

	w.WriteHeader(http.StatusOK)
}

// verifySignature checks the HMAC-SHA512 of the raw payload against the
// header value, using the gateway's shared secret.
func verifySignature(secret string, payload []byte, signature string) bool {
	if secret == "" {
		return true // bypass for development
	}
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
