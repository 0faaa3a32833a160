// Package lumix drives a Panasonic Lumix camera through its cam.cgi HTTP
// interface.
//
// Every command is a single GET. The camera answers 200 even when a command
// is rejected, so success is decided by looking for "<result>ok</result>" in
// the body. Checked commands return a *CommandError when the marker is
// missing; queries return the raw body for the caller to interpret.
package lumix

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"lumix-remote/internal/params"
)

const (
	successMarker = "<result>ok</result>"
	cgiPath       = "/cam.cgi"

	defaultTimeout = 10 * time.Second
)

// ErrCommandFailed is matched by every CommandError.
var ErrCommandFailed = errors.New("camera rejected command")

// CommandError is returned when the camera answered but the body did not
// carry the success marker.
type CommandError struct {
	Mode  string
	Type  string
	Value string
	Body  string
}

func (e *CommandError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "camera rejected %s", e.Mode)
	if e.Type != "" {
		fmt.Fprintf(&b, " type=%s", e.Type)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " value=%s", e.Value)
	}
	fmt.Fprintf(&b, ": %s", strings.TrimSpace(e.Body))
	return b.String()
}

func (e *CommandError) Is(target error) bool {
	return target == ErrCommandFailed
}

// IsOK reports whether a cam.cgi reply body carries the success marker.
func IsOK(body string) bool {
	return strings.Contains(body, successMarker)
}

// Config for the Lumix client
type Config struct {
	Address  string         // Camera IP address or hostname (e.g., "192.168.54.1")
	Timeout  time.Duration  // Per-request timeout, 0 uses the default
	Tables   *params.Tables // Aperture/shutter tables, nil uses params.Default()
	Observer Observer       // Optional command and focus observer
}

// Client manages cam.cgi communication with one camera
type Client struct {
	address  string
	baseURL  string
	http     *resty.Client
	tables   *params.Tables
	observer Observer
	logger   zerolog.Logger
	now      func() time.Time

	// the camera handles one request at a time
	mu sync.Mutex
}

// New creates a client without talking to the camera. Call Connect (or use
// Dial) to put the camera into record mode before issuing commands.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("camera address is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	tables := cfg.Tables
	if tables == nil {
		tables = params.Default()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	host := cfg.Address
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	host = strings.TrimRight(host, "/")

	r := resty.New()
	r.SetBaseURL(host)
	r.SetTimeout(timeout)

	return &Client{
		address:  cfg.Address,
		baseURL:  host + cgiPath,
		http:     r,
		tables:   tables,
		observer: observer,
		logger:   logger.With().Str("camera", cfg.Address).Logger(),
		now:      time.Now,
	}, nil
}

// Dial creates a client and puts the camera into record mode.
func Dial(ctx context.Context, cfg Config, logger zerolog.Logger) (*Client, error) {
	c, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Address returns the camera address the client was created with.
func (c *Client) Address() string { return c.address }

// BaseURL returns the cam.cgi endpoint, e.g. "http://192.168.54.1/cam.cgi".
func (c *Client) BaseURL() string { return c.baseURL }

// Tables returns the lookup tables used by SetFocal and SetShutter.
func (c *Client) Tables() *params.Tables { return c.tables }

// Connect switches the camera to record mode, which enables remote control.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.exec(ctx, command{mode: "camcmd", value: "recmode"}); err != nil {
		return err
	}
	c.logger.Debug().Msg("Connected to camera")
	return nil
}

// command is the parameter shape of one cam.cgi request
type command struct {
	mode  string
	typ   string
	value string
}

func (cmd command) params() map[string]string {
	p := map[string]string{"mode": cmd.mode}
	if cmd.typ != "" {
		p["type"] = cmd.typ
	}
	if cmd.value != "" {
		p["value"] = cmd.value
	}
	return p
}

// send issues the GET and returns the body. HTTP status is ignored because
// the camera reports errors in the body.
func (c *Client) send(ctx context.Context, cmd command) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(cmd.params()).
		Get(cgiPath)
	if err != nil {
		return "", fmt.Errorf("failed to send %s command: %w", cmd.mode, err)
	}
	return resp.String(), nil
}

// exec sends a command and checks the body for the success marker.
func (c *Client) exec(ctx context.Context, cmd command) error {
	start := time.Now()
	body, err := c.send(ctx, cmd)
	if err != nil {
		c.observer.ObserveCommand(cmd.mode, OutcomeTransportError, time.Since(start))
		return err
	}
	if !c.checkResponse(body) {
		c.observer.ObserveCommand(cmd.mode, OutcomeFailed, time.Since(start))
		return &CommandError{Mode: cmd.mode, Type: cmd.typ, Value: cmd.value, Body: body}
	}
	c.observer.ObserveCommand(cmd.mode, OutcomeOK, time.Since(start))
	c.logger.Debug().
		Str("mode", cmd.mode).
		Str("type", cmd.typ).
		Str("value", cmd.value).
		Msg("Command accepted")
	return nil
}

// fetch sends a query and returns the raw body.
func (c *Client) fetch(ctx context.Context, cmd command) (string, error) {
	start := time.Now()
	body, err := c.send(ctx, cmd)
	if err != nil {
		c.observer.ObserveCommand(cmd.mode, OutcomeTransportError, time.Since(start))
		return "", err
	}
	c.observer.ObserveCommand(cmd.mode, OutcomeUnchecked, time.Since(start))
	return body, nil
}

// checkResponse logs the whole body when the success marker is missing.
func (c *Client) checkResponse(body string) bool {
	if IsOK(body) {
		return true
	}
	c.logger.Error().Str("body", body).Msg("Camera returned an error response")
	return false
}
