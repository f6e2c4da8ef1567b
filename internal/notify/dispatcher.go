// Package notify bridges the reminder scheduler to the platform's
// notification dispatch collaborator. Delivery mechanics (push, SMS,
// email fan-out) live behind that service; from here sends are
// fire-and-forget.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/afyalink/telemed-platform/internal/reminders"
	"github.com/afyalink/telemed-platform/pkg/logging"
)

// HTTPDispatcher posts notifications to the dispatch service.
type HTTPDispatcher struct {
	endpoint   string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewHTTPDispatcher creates a dispatcher targeting the given endpoint.
func NewHTTPDispatcher(endpoint string, logger *logging.Logger) *HTTPDispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPDispatcher{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

// Send delivers one notification. Errors are returned for logging but the
// caller never retries; the dispatch service owns redelivery.
func (d *HTTPDispatcher) Send(ctx context.Context, n reminders.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: dispatch request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: dispatch returned %d", resp.StatusCode)
	}
	return nil
}

// StubDispatcher logs but doesn't send. Used when no dispatch endpoint is
// configured.
type StubDispatcher struct {
	logger *logging.Logger
}

// NewStubDispatcher creates a stub dispatcher.
func NewStubDispatcher(logger *logging.Logger) *StubDispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubDispatcher{logger: logger}
}

// Send logs the notification instead of delivering it.
func (d *StubDispatcher) Send(_ context.Context, n reminders.Notification) error {
	d.logger.Info("stub dispatcher: would send", "user_id", n.UserID, "type", n.Type, "title", n.Title)
	return nil
}

// Ensure interface compliance
var _ reminders.Notifier = (*HTTPDispatcher)(nil)
var _ reminders.Notifier = (*StubDispatcher)(nil)
