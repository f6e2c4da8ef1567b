package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/afyalink/telemed-platform/pkg/logging"
)

// GatewayClient is the wire-level contract the reconciliation service
// consumes. PaystackClient is the production implementation; tests use
// fakes.
type GatewayClient interface {
	Initialize(ctx context.Context, req GatewayInitRequest) (*GatewayInitResponse, error)
	Verify(ctx context.Context, reference string) (*GatewayTransaction, error)
}

// GatewayInitRequest opens a transaction with the gateway. Amount is in
// minor units (cents).
type GatewayInitRequest struct {
	Email       string   `json:"email"`
	AmountCents int64    `json:"amount"`
	Currency    string   `json:"currency"`
	Reference   string   `json:"reference"`
	CallbackURL string   `json:"callback_url,omitempty"`
	Channels    []string `json:"channels,omitempty"`
}

// GatewayInitResponse carries the hosted checkout URL.
type GatewayInitResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// GatewayTransaction is the gateway's authoritative view of a transaction.
type GatewayTransaction struct {
	Status      string            `json:"status"`
	Reference   string            `json:"reference"`
	AmountCents int64             `json:"amount"`
	PaidAt      *time.Time        `json:"paid_at"`
	Metadata    map[string]string `json:"-"`
}

// Succeeded reports whether the gateway considers the charge settled.
func (t *GatewayTransaction) Succeeded() bool {
	return t.Status == "success"
}

// PaystackClient talks to a Paystack-compatible gateway over HTTP with a
// bounded timeout and a small retry budget for transient failures only.
type PaystackClient struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	logger     *logging.Logger
}

// NewPaystackClient creates a gateway client.
func NewPaystackClient(secretKey string, logger *logging.Logger) *PaystackClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &PaystackClient{
		secretKey:  secretKey,
		baseURL:    "https://api.paystack.co",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		retryDelay: 500 * time.Millisecond,
		logger:     logger,
	}
}

// WithBaseURL overrides the gateway host (e.g., a sandbox or test server).
func (c *PaystackClient) WithBaseURL(baseURL string) *PaystackClient {
	if baseURL == "" {
		return c
	}
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// WithRetryPolicy overrides the transient-failure retry budget.
func (c *PaystackClient) WithRetryPolicy(maxRetries int, delay time.Duration) *PaystackClient {
	if maxRetries > 0 {
		c.maxRetries = maxRetries
	}
	if delay > 0 {
		c.retryDelay = delay
	}
	return c
}

// WithTimeout overrides the per-request timeout.
func (c *PaystackClient) WithTimeout(timeout time.Duration) *PaystackClient {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize opens a transaction and returns the hosted authorization URL.
func (c *PaystackClient) Initialize(ctx context.Context, req GatewayInitRequest) (*GatewayInitResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("payments: encode init request: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}

	var out GatewayInitResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("payments: decode init response: %w", err)
	}
	return &out, nil
}

// Verify asks the gateway for the authoritative transaction state.
func (c *PaystackClient) Verify(ctx context.Context, reference string) (*GatewayTransaction, error) {
	data, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Status    string     `json:"status"`
		Reference string     `json:"reference"`
		Amount    int64      `json:"amount"`
		PaidAt    *time.Time `json:"paid_at"`
		Metadata  map[string]any `json:"metadata"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("payments: decode verify response: %w", err)
	}

	tx := &GatewayTransaction{
		Status:      raw.Status,
		Reference:   raw.Reference,
		AmountCents: raw.Amount,
		PaidAt:      raw.PaidAt,
		Metadata:    map[string]string{},
	}
	for k, v := range raw.Metadata {
		if s, ok := v.(string); ok {
			tx.Metadata[k] = s
		}
	}
	return tx, nil
}

// do performs one gateway call, retrying transport errors and 5xx responses
// up to the retry budget. 4xx responses fail immediately.
func (c *PaystackClient) do(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrGatewayUnreachable, ctx.Err())
			case <-time.After(delay):
			}
		}

		data, retryable, err := c.attempt(ctx, method, path, body)
		if err == nil {
			return data, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
		c.logger.Warn("gateway call failed, will retry", "method", method, "path", path, "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("%w: %v", ErrGatewayUnreachable, lastErr)
}

func (c *PaystackClient) attempt(ctx context.Context, method, path string, body []byte) (json.RawMessage, bool, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, false, fmt.Errorf("payments: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("payments: gateway request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("payments: read gateway response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("payments: gateway returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, false, fmt.Errorf("payments: gateway rejected request: %d %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var envelope paystackEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, false, fmt.Errorf("payments: decode gateway envelope: %w", err)
	}
	if !envelope.Status {
		return nil, false, fmt.Errorf("payments: gateway error: %s", envelope.Message)
	}
	return envelope.Data, false, nil
}
