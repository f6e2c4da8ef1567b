package video

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

// RoomClient manages rooms on the external video infrastructure.
type RoomClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewRoomClient creates a client for the video room API.
func NewRoomClient(apiKey, baseURL string, logger *logging.Logger) *RoomClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &RoomClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type roomResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CreateRoom allocates a named room and returns its id.
func (c *RoomClient) CreateRoom(ctx context.Context, name string) (string, error) {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return "", fmt.Errorf("video: encode room request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rooms", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("video: build room request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("video: create room: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("video: read room response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("video: create room returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var room roomResponse
	if err := json.Unmarshal(raw, &room); err != nil {
		return "", fmt.Errorf("video: decode room response: %w", err)
	}
	if room.ID == "" {
		return "", fmt.Errorf("video: room response missing id")
	}
	return room.ID, nil
}

// DisableRoom shuts down a room so stale links stop working.
func (c *RoomClient) DisableRoom(ctx context.Context, roomID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/rooms/"+roomID, nil)
	if err != nil {
		return fmt.Errorf("video: build disable request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("video: disable room: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("video: disable room returned %d", resp.StatusCode)
	}
	return nil
}
