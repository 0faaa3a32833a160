package lumix

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// fineTolerance is the smallest distance a normal step can resolve.
	fineTolerance = 13
	// coarseTolerance is the stopping distance for fast steps.
	coarseTolerance = 70

	// DefaultMaxSteps bounds a rack focus when RackOptions.MaxSteps is unset.
	DefaultMaxSteps = 1000
)

// FocusTarget is an end point of a rack focus: either an absolute lens
// position or wherever the lens currently is. The zero value is Current;
// build absolute targets with At.
type FocusTarget struct {
	Position int
	abs      bool
}

// Current targets the lens position found by the calibration step.
var Current = FocusTarget{}

// At targets an absolute lens position.
func At(pos int) FocusTarget { return FocusTarget{Position: pos, abs: true} }

func (t FocusTarget) IsCurrent() bool { return !t.abs }

func (t FocusTarget) String() string {
	if !t.abs {
		return "current"
	}
	return strconv.Itoa(t.Position)
}

// resolve turns the target into a position. "current" sits one fine step
// past the calibrated position.
func (t FocusTarget) resolve(pos int) int {
	if !t.abs {
		return pos + fineTolerance
	}
	return t.Position
}

// ParseFocusTarget accepts "current" or an integer lens position.
func ParseFocusTarget(s string) (FocusTarget, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "current") || s == "" {
		return Current, nil
	}
	pos, err := strconv.Atoi(s)
	if err != nil {
		return FocusTarget{}, fmt.Errorf("invalid focus target %q (want current or a position)", s)
	}
	return At(pos), nil
}

// RackOptions configures RackFocus. The zero value racks from the current
// position to the current position at normal speed, which stops after the
// calibration step.
type RackOptions struct {
	Start    FocusTarget
	End      FocusTarget
	Speed    Speed
	MaxSteps int // 0 uses DefaultMaxSteps
}

// ErrNotConverged is matched by every NotConvergedError.
var ErrNotConverged = errors.New("rack focus did not converge")

// NotConvergedError is returned when the step budget runs out before the
// lens reaches its target.
type NotConvergedError struct {
	Target   int
	Position int
	Steps    int
}

func (e *NotConvergedError) Error() string {
	return fmt.Sprintf("rack focus did not converge: at %d, target %d after %d steps",
		e.Position, e.Target, e.Steps)
}

func (e *NotConvergedError) Is(target error) bool {
	return target == ErrNotConverged
}

// racker issues focus steps against a budget
type racker struct {
	c        *Client
	maxSteps int
	steps    int
	pos      int
}

func (r *racker) step(ctx context.Context, dir Direction, speed Speed, target int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.steps >= r.maxSteps {
		return &NotConvergedError{Target: target, Position: r.pos, Steps: r.steps}
	}
	pos, err := r.c.StepFocus(ctx, dir, speed)
	if err != nil {
		return fmt.Errorf("focus step %d: %w", r.steps+1, err)
	}
	r.steps++
	r.pos = pos
	r.c.logger.Debug().
		Str("direction", string(dir)).
		Str("speed", string(speed)).
		Int("position", pos).
		Int("target", target).
		Msg("Focus step")
	return nil
}

// RackFocus drives the focus motor from Start to End and returns the final
// lens position.
//
// The lens is first nudged one normal tele step to read its position. If
// Start is not Current the lens is brought there with fast steps. It then
// steps toward End at the requested speed; tele moves toward smaller
// positions and wide toward larger ones. Fast steps stop within 70 of the
// target, after which the rest is done with normal steps until within 13.
// The speed never goes back up within one call.
func (c *Client) RackFocus(ctx context.Context, opts RackOptions) (int, error) {
	speed := opts.Speed
	if speed == "" {
		speed = Normal
	}
	if speed != Normal && speed != Fast {
		return 0, fmt.Errorf("invalid focus speed %q", speed)
	}
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	r := &racker{c: c, maxSteps: maxSteps}

	// Calibrate with a fine step
	if err := r.step(ctx, Tele, Normal, 0); err != nil {
		return 0, err
	}
	end := opts.End.resolve(r.pos)

	// First get to the starting point if necessary
	start := opts.Start.resolve(r.pos)
	if !opts.Start.IsCurrent() {
		if start < r.pos {
			for r.pos-start > fineTolerance {
				if err := r.step(ctx, Tele, Fast, start); err != nil {
					return r.pos, err
				}
			}
		} else {
			for start-r.pos > fineTolerance {
				if err := r.step(ctx, Wide, Fast, start); err != nil {
					return r.pos, err
				}
			}
		}
	}

	tolerance := fineTolerance
	if speed == Fast {
		tolerance = coarseTolerance
	}

	dir := Wide
	remaining := func() int { return end - r.pos }
	if start > end {
		dir = Tele
		remaining = func() int { return r.pos - end }
	}

	for remaining() > tolerance {
		if err := r.step(ctx, dir, speed, end); err != nil {
			return r.pos, err
		}
		if remaining() <= tolerance {
			// Fine focus for the last bit
			tolerance = fineTolerance
			speed = Normal
		}
	}

	c.logger.Info().
		Str("start", opts.Start.String()).
		Int("end", end).
		Int("position", r.pos).
		Int("steps", r.steps).
		Msg("Rack focus complete")
	return r.pos, nil
}
