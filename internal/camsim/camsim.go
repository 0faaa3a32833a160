// Package camsim simulates the cam.cgi interface of a Lumix camera.
//
// The focus motor is deterministic: tele steps lower the lens position and
// wide steps raise it, by NormalStep or FastStep, clamped to [Min, Max].
// Settings are kept in memory and every request is recorded so tests can
// check exactly what went over the wire.
package camsim

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	xmlHeader = "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\r\n"

	replyOK       = xmlHeader + "<camrply><result>ok</result></camrply>"
	replyErrParam = xmlHeader + "<camrply><result>err_param</result></camrply>"
	replyBusy     = xmlHeader + "<camrply><result>err_busy</result></camrply>"
)

// Config for the simulated camera
type Config struct {
	Position   int // Initial lens position
	Min        int // Closest lens position
	Max        int // Farthest lens position
	NormalStep int // Distance moved by a normal step
	FastStep   int // Distance moved by a fast step
}

// DefaultConfig returns a focus range of 0-1023 starting in the middle.
func DefaultConfig() Config {
	return Config{
		Position:   512,
		Min:        0,
		Max:        1023,
		NormalStep: 10,
		FastStep:   60,
	}
}

// Request is one recorded cam.cgi call.
type Request struct {
	Mode  string
	Type  string
	Value string
}

// Camera is an http.Handler serving /cam.cgi.
type Camera struct {
	mu         sync.Mutex
	cfg        Config
	pos        int
	stuck      bool
	recording  bool
	recMode    bool
	streamPort int
	settings   map[string]string
	failing    map[string]bool
	requests   []Request
	logger     zerolog.Logger
}

// New creates a simulated camera.
func New(cfg Config, logger zerolog.Logger) *Camera {
	if cfg.Max <= cfg.Min {
		cfg.Max = cfg.Min + 1023
	}
	if cfg.NormalStep <= 0 {
		cfg.NormalStep = 10
	}
	if cfg.FastStep <= 0 {
		cfg.FastStep = 6 * cfg.NormalStep
	}
	return &Camera{
		cfg:      cfg,
		pos:      clamp(cfg.Position, cfg.Min, cfg.Max),
		settings: map[string]string{"iso": "200", "focusmode": "mf", "mf_asst": "on", "mf_asst_mag": "5"},
		failing:  make(map[string]bool),
		logger:   logger,
	}
}

func (c *Camera) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/cam.cgi" {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	req := Request{Mode: q.Get("mode"), Type: q.Get("type"), Value: q.Get("value")}

	body := c.handle(req)
	c.logger.Debug().
		Str("mode", req.Mode).
		Str("type", req.Type).
		Str("value", req.Value).
		Msg("cam.cgi request")

	// The real camera answers 200 for rejected commands too
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, body)
}

func (c *Camera) handle(req Request) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	if c.failing[req.Mode] {
		return replyBusy
	}

	switch req.Mode {
	case "camcmd":
		return c.camcmd(req.Value)
	case "startstream":
		var port int
		if _, err := fmt.Sscanf(req.Value, "%d", &port); err != nil || port <= 0 {
			return replyErrParam
		}
		c.streamPort = port
		return replyOK
	case "stopstream":
		c.streamPort = 0
		return replyOK
	case "getinfo":
		return c.getinfo(req.Type)
	case "getsetting":
		v, ok := c.settings[req.Type]
		if !ok {
			return replyErrParam
		}
		return fmt.Sprintf("%s<camrply><result>ok</result><settingvalue %s=\"%s\"></settingvalue></camrply>",
			xmlHeader, req.Type, v)
	case "setsetting":
		if req.Type == "" || req.Value == "" {
			return replyErrParam
		}
		c.settings[req.Type] = req.Value
		return replyOK
	case "camctrl":
		if req.Type != "focus" {
			return replyErrParam
		}
		return c.focus(req.Value)
	case "getstate":
		rec := "off"
		if c.recording {
			rec = "on"
		}
		return fmt.Sprintf("%s<camrply><result>ok</result><state><batt>3/3</batt><cammode>rec</cammode>"+
			"<sdcardstatus>write_enable</sdcardstatus><rec>%s</rec></state></camrply>", xmlHeader, rec)
	}
	return replyErrParam
}

func (c *Camera) camcmd(value string) string {
	switch value {
	case "recmode":
		c.recMode = true
	case "capture":
	case "video_recstart":
		if c.recording {
			return replyBusy
		}
		c.recording = true
	case "video_recstop":
		c.recording = false
	default:
		return replyErrParam
	}
	return replyOK
}

func (c *Camera) getinfo(kind string) string {
	switch kind {
	case "lens":
		return "ok,2730/256,1024/256,3072/256,-1536/256,0,on,140,12,0,0,0"
	case "curmenu", "allmenu":
		return xmlHeader + "<camrply><result>ok</result><menuset></menuset></camrply>"
	}
	return replyErrParam
}

func (c *Camera) focus(value string) string {
	dir, speed, ok := strings.Cut(value, "-")
	if !ok {
		return replyErrParam
	}

	var step int
	switch speed {
	case "normal":
		step = c.cfg.NormalStep
	case "fast":
		step = c.cfg.FastStep
	default:
		return replyErrParam
	}

	switch dir {
	case "tele":
		step = -step
	case "wide":
	default:
		return replyErrParam
	}

	if !c.stuck {
		c.pos = clamp(c.pos+step, c.cfg.Min, c.cfg.Max)
	}
	return fmt.Sprintf("ok,%d,%d", c.pos, c.cfg.Max)
}

// Requests returns a copy of every request received so far.
func (c *Camera) Requests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// Position returns the current lens position.
func (c *Camera) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

// SetPosition moves the lens directly.
func (c *Camera) SetPosition(pos int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pos = clamp(pos, c.cfg.Min, c.cfg.Max)
}

// SetStuck freezes the focus motor; focus replies keep reporting the same
// position.
func (c *Camera) SetStuck(stuck bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stuck = stuck
}

// Fail makes every request with the given mode return an error body.
func (c *Camera) Fail(mode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing[mode] = true
}

// Setting returns the stored value of a setting.
func (c *Camera) Setting(typ string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.settings[typ]
	return v, ok
}

func (c *Camera) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

func (c *Camera) RecMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recMode
}

// StreamPort returns the UDP port requested by startstream, 0 when stopped.
func (c *Camera) StreamPort() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamPort
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
