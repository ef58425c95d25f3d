package streamclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/manuelagm/portfolio-assistant/internal/assistant"
)

// ErrAssistant marks failures that should be rendered inline as an
// assistant message rather than crash the caller.
var ErrAssistant = errors.New("assistant error")

// Client talks to the chat endpoint and forwards answer fragments to a
// callback as they arrive.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: http.DefaultClient,
	}
}

// Chat posts the conversation and streams the reply. onFragment is called
// once per fragment in arrival order. All failure modes come back as an
// ErrAssistant-wrapped error whose message is safe to render to the user:
// an explicit error payload, a raw-text error body, or a generic
// contacting-error for network-level failures.
func (c *Client) Chat(ctx context.Context, messages []assistant.Message, onFragment func(string)) error {
	body, err := json.Marshal(assistant.ChatRequest{Messages: messages})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: could not contact the assistant", ErrAssistant)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrAssistant, errorMessage(resp.Body))
	}

	var scanner Scanner
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, ev := range scanner.Feed(buf[:n]) {
				if ev.Name == "error" {
					return fmt.Errorf("%w: %s", ErrAssistant, streamErrorMessage(ev.Data))
				}
				onFragment(ev.Data)
			}
		}
		if readErr == io.EOF {
			// A cleanly closed stream ends on a record boundary.
			// Leftover bytes mean the server died mid-record.
			if scanner.Pending() {
				return fmt.Errorf("%w: the answer stream was interrupted", ErrAssistant)
			}
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("%w: the answer stream was interrupted", ErrAssistant)
		}
	}
}

// errorMessage extracts a renderable message from a non-success response:
// the JSON {"error": ...} payload when present, the raw body otherwise.
func errorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return "the assistant returned an error"
	}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}

// streamErrorMessage decodes the mid-stream error event payload.
func streamErrorMessage(data string) string {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	if strings.TrimSpace(data) != "" {
		return data
	}
	return "the answer stream was interrupted"
}
