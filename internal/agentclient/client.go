// Package agentclient talks to the local printer and scanner agent
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/thevladbog/idento-sub000/internal/checkin"
)

const (
	// DefaultURL is where the agent listens by default
	DefaultURL = "http://localhost:12212"
	// DefaultTimeout bounds every agent request
	DefaultTimeout = 5 * time.Second
)

var (
	_ checkin.ScanSource     = (*Client)(nil)
	_ checkin.PrintTransport = (*Client)(nil)
)

// Error is a non-2xx agent response
type Error struct {
	Path       string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("agent %s: %d %s", e.Path, e.StatusCode, e.Message)
}

// Client is an HTTP client for the agent
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client. An empty baseURL uses DefaultURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// BaseURL returns the agent address
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) Printers(ctx context.Context) ([]Printer, error) {
	var printers []Printer
	if err := c.do(ctx, http.MethodGet, "/printers", nil, &printers); err != nil {
		return nil, err
	}
	return printers, nil
}

func (c *Client) DefaultPrinter(ctx context.Context) (string, error) {
	var body DefaultPrinterBody
	if err := c.do(ctx, http.MethodGet, "/printers/default", nil, &body); err != nil {
		return "", err
	}
	return body.Default, nil
}

func (c *Client) SetDefaultPrinter(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/printers/default", DefaultPrinterBody{Default: name}, nil)
}

func (c *Client) Scanners(ctx context.Context) ([]Scanner, error) {
	var scanners []Scanner
	if err := c.do(ctx, http.MethodGet, "/scanners", nil, &scanners); err != nil {
		return nil, err
	}
	return scanners, nil
}

func (c *Client) ScannerPorts(ctx context.Context) ([]Port, error) {
	var ports []Port
	if err := c.do(ctx, http.MethodGet, "/scanners/ports", nil, &ports); err != nil {
		return nil, err
	}
	return ports, nil
}

func (c *Client) AddScanner(ctx context.Context, portName string) error {
	return c.do(ctx, http.MethodPost, "/scanners/add", AddScannerRequest{PortName: portName}, nil)
}

// LastScan returns the last scanned code or "" when there is none
func (c *Client) LastScan(ctx context.Context) (string, error) {
	var resp ScanResponse
	if err := c.do(ctx, http.MethodGet, "/scan/last", nil, &resp); err != nil {
		return "", err
	}
	return resp.Code, nil
}

func (c *Client) ClearScan(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/scan/clear", nil, nil)
}

// Print sends ZPL to a printer. An empty printerName uses the agent's
// default printer.
func (c *Client) Print(ctx context.Context, printerName, zpl string) error {
	_, err := c.Submit(ctx, printerName, zpl)
	return err
}

// Submit is Print returning the queued job
func (c *Client) Submit(ctx context.Context, printerName, zpl string) (*PrintResponse, error) {
	var resp PrintResponse
	if err := c.do(ctx, http.MethodPost, "/print", PrintRequest{PrinterName: printerName, ZPL: zpl}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Exec runs a console command line on the agent. A failed command is
// returned as an *Error carrying the command's message.
func (c *Client) Exec(ctx context.Context, line string) (*CommandResult, error) {
	var resp CommandResult
	if err := c.do(ctx, http.MethodPost, "/command", CommandRequest{Command: line}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
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
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("agent unavailable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &Error{Path: path, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
