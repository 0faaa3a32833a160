package lumix

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Direction of a relative focus step.
type Direction string

const (
	Tele Direction = "tele"
	Wide Direction = "wide"
)

// Speed is the size of a relative focus step.
type Speed string

const (
	Normal Speed = "normal"
	Fast   Speed = "fast"
)

// ParseDirection accepts "tele" or "wide".
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Tele, Wide:
		return d, nil
	}
	return "", fmt.Errorf("invalid focus direction %q (want tele or wide)", s)
}

// ParseSpeed accepts "normal" or "fast". An empty string is Normal.
func ParseSpeed(s string) (Speed, error) {
	switch sp := Speed(strings.ToLower(strings.TrimSpace(s))); sp {
	case "":
		return Normal, nil
	case Normal, Fast:
		return sp, nil
	}
	return "", fmt.Errorf("invalid focus speed %q (want normal or fast)", s)
}

// ErrMalformedFocusResponse is matched by every FocusResponseError.
var ErrMalformedFocusResponse = errors.New("malformed focus response")

// FocusResponseError is returned when a focus reply has no numeric position
// in its second comma separated field.
type FocusResponseError struct {
	Body string
	Err  error
}

func (e *FocusResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed focus response %q: %v", e.Body, e.Err)
	}
	return fmt.Sprintf("malformed focus response %q", e.Body)
}

func (e *FocusResponseError) Unwrap() error { return e.Err }

func (e *FocusResponseError) Is(target error) bool {
	return target == ErrMalformedFocusResponse
}

// ParseFocusPosition extracts the lens position from a focus reply such as
// "ok,512,1024".
func ParseFocusPosition(body string) (int, error) {
	fields := strings.Split(strings.TrimSpace(body), ",")
	if len(fields) < 2 {
		return 0, &FocusResponseError{Body: body}
	}
	pos, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return 0, &FocusResponseError{Body: body, Err: err}
	}
	return pos, nil
}

// FocusControl moves the focus motor one step and returns the raw reply.
func (c *Client) FocusControl(ctx context.Context, dir Direction, speed Speed) (string, error) {
	if dir != Tele && dir != Wide {
		return "", fmt.Errorf("invalid focus direction %q", dir)
	}
	if speed != Normal && speed != Fast {
		return "", fmt.Errorf("invalid focus speed %q", speed)
	}
	return c.fetch(ctx, command{
		mode:  "camctrl",
		typ:   "focus",
		value: fmt.Sprintf("%s-%s", dir, speed),
	})
}

// StepFocus moves the focus motor one step and returns the new position.
func (c *Client) StepFocus(ctx context.Context, dir Direction, speed Speed) (int, error) {
	body, err := c.FocusControl(ctx, dir, speed)
	if err != nil {
		return 0, err
	}
	pos, err := ParseFocusPosition(body)
	if err != nil {
		return 0, err
	}
	c.observer.ObserveFocus(dir, speed, pos)
	return pos, nil
}
