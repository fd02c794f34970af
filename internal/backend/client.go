// Package backend is a client for the Idento REST API
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/thevladbog/idento-sub000/internal/model"
)

// DefaultTimeout bounds every request
const DefaultTimeout = 15 * time.Second

// ErrNotFound is matched by APIErrors with status 404
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is reports 404 responses as ErrNotFound
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to the backend
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     logrus.FieldLogger
}

// Option configures a Client
type Option func(*Client)

// WithToken sets the bearer token
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for baseURL, e.g. https://idento.example.com
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetEvent fetches an event with its settings
func (c *Client) GetEvent(ctx context.Context, eventID model.ID) (*model.Event, error) {
	var event model.Event
	if err := c.do(ctx, http.MethodGet, "/api/events/"+url.PathEscape(string(eventID)), nil, &event); err != nil {
		return nil, err
	}
	if event.ID == "" {
		event.ID = eventID
	}
	return &event, nil
}

// ListAttendees fetches the attendees of an event. Both a bare array and
// an {"items": [...]} envelope are accepted.
func (c *Client) ListAttendees(ctx context.Context, eventID model.ID) ([]model.Attendee, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/events/"+url.PathEscape(string(eventID))+"/attendees", nil, &raw); err != nil {
		return nil, err
	}
	return decodeAttendees(raw)
}

func decodeAttendees(raw json.RawMessage) ([]model.Attendee, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []model.Attendee{}, nil
	}

	if trimmed[0] == '[' {
		var list []model.Attendee
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("failed to decode attendees: %w", err)
		}
		return list, nil
	}

	var envelope struct {
		Items []model.Attendee `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode attendees: %w", err)
	}
	if envelope.Items == nil {
		envelope.Items = []model.Attendee{}
	}
	return envelope.Items, nil
}

// CheckIn marks the attendee as checked in and returns the server copy.
// An empty response body yields a nil attendee.
func (c *Client) CheckIn(ctx context.Context, attendeeID model.ID) (*model.Attendee, error) {
	body := map[string]bool{"checkin_status": true}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPut, "/api/attendees/"+url.PathEscape(string(attendeeID)), body, &raw); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var a model.Attendee
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("failed to decode attendee: %w", err)
	}
	return &a, nil
}

// Block blocks an attendee with a reason shown at check-in
func (c *Client) Block(ctx context.Context, attendeeID model.ID, reason string) error {
	body := map[string]string{"reason": reason}
	return c.do(ctx, http.MethodPost, "/api/attendees/"+url.PathEscape(string(attendeeID))+"/block", body, nil)
}

// Unblock lifts a block
func (c *Client) Unblock(ctx context.Context, attendeeID model.ID) error {
	return c.do(ctx, http.MethodPost, "/api/attendees/"+url.PathEscape(string(attendeeID))+"/unblock", map[string]string{}, nil)
}

// BadgeZPL asks the server to render an attendee's badge
func (c *Client) BadgeZPL(ctx context.Context, eventID, attendeeID model.ID) (string, error) {
	body := map[string]model.ID{"attendee_id": attendeeID}

	var resp struct {
		ZPL string `json:"zpl"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/events/"+url.PathEscape(string(eventID))+"/badge-zpl", body, &resp); err != nil {
		return "", err
	}
	if resp.ZPL == "" {
		return "", fmt.Errorf("server returned an empty badge")
	}
	return resp.ZPL, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("Backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
		}
	}

	if out == nil {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = data
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// errorMessage extracts {"error": ...} or {"message": ...} from a body
func errorMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}

	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
