// Package hostapi is the HTTP client side of the host service contract:
// every builder request posts JSON and receives a
// {"success": bool, "data": ...} envelope.
package hostapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TokenHeader carries the request-signing token.
const TokenHeader = "X-PB-Token"

// ErrConfig marks a request that could not be sent because the
// endpoint, document identity or token is missing.
var ErrConfig = errors.New("missing endpoint configuration")

// ErrMalformed marks a response body that is not a valid envelope.
var ErrMalformed = errors.New("malformed response")

// Envelope is the response shape shared by all host endpoints.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ErrorData is the data payload of a failed request.
type ErrorData struct {
	Message string `json:"message"`
}

// StatusError is returned when the host answers with success=false or a
// non-2xx status.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Client posts JSON requests to one host service.
type Client struct {
	Endpoint string
	Token    string
	HTTP     *http.Client
}

// NewClient returns a client with a bounded default timeout.
func NewClient(endpoint, token string) *Client {
	return &Client{
		Endpoint: endpoint,
		Token:    token,
		HTTP:     &http.Client{Timeout: 120 * time.Second},
	}
}

// Configured reports whether requests can be sent at all.
func (c *Client) Configured() bool {
	return c != nil && c.Endpoint != "" && c.Token != ""
}

// Post sends body to path and decodes the envelope data into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	if !c.Configured() {
		return ErrConfig
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(TokenHeader, c.Token)

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	return Decode(resp.StatusCode, raw, out)
}

// Decode interprets a host response body.
func Decode(status int, raw []byte, out any) error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if status < 200 || status > 299 {
			return &StatusError{Status: status}
		}
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !env.Success || status < 200 || status > 299 {
		var data ErrorData
		_ = json.Unmarshal(env.Data, &data)
		return &StatusError{Status: status, Message: data.Message}
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: missing data", ErrMalformed)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Message normalizes any request error to one human-readable string,
// using fallback when nothing more specific is known.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var se *StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if errors.Is(err, ErrConfig) {
		return "Builder endpoint is missing. Open this builder from the host editor."
	}
	return fallback
}

// WriteJSON writes a success envelope.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	raw, err := json.Marshal(data)
	if err != nil {
		raw = []byte("null")
	}
	_ = json.NewEncoder(w).Encode(Envelope{Success: status < 300, Data: raw})
}

// WriteError writes a failure envelope carrying message.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorData{Message: message})
}
