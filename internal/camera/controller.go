package camera

import (
	"context"
	"time"

	"lumix-remote/internal/lumix"
)

// Controller defines the camera operations the remote server drives
type Controller interface {
	// CapturePhoto takes a still image
	CapturePhoto(ctx context.Context) error

	// VideoRecordStart and VideoRecordStop start and stop recording
	VideoRecordStart(ctx context.Context) error
	VideoRecordStop(ctx context.Context) error

	// StartStream and StopStream control the UDP live view stream
	StartStream(ctx context.Context, port int) error
	StopStream(ctx context.Context) error

	// SetSetting sets a setting by its raw cam.cgi type name
	SetSetting(ctx context.Context, typ, value string) error
	SetISO(ctx context.Context, iso string) error
	// SetFocal and SetShutter take labels from the lookup tables
	SetFocal(ctx context.Context, label string) error
	SetShutter(ctx context.Context, label string) error
	SetVideoQuality(ctx context.Context, quality string) error
	// SetDate sets the camera clock, zero time means now
	SetDate(ctx context.Context, t time.Time) error

	// Queries return the raw reply body
	GetInfo(ctx context.Context, kind string) (string, error)
	GetSetting(ctx context.Context, kind string) (string, error)
	GetState(ctx context.Context) (string, error)

	// StepFocus moves the focus motor one step, returning the new position
	StepFocus(ctx context.Context, dir lumix.Direction, speed lumix.Speed) (int, error)

	// RackFocus drives focus to a target, returning the final position
	RackFocus(ctx context.Context, opts lumix.RackOptions) (int, error)
}

var _ Controller = (*lumix.Client)(nil)
