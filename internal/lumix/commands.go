package lumix

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// DefaultVideoQuality is used by SetVideoQuality when no quality is given.
// Other common values are mp4_24p_100mbps_4k and mp4_30p_100mbps_4k.
const DefaultVideoQuality = "mp4ed_30p_100mbps_4k"

// clockLayout renders YYYYMMDDHHMMSS followed by the signed zone offset.
const clockLayout = "20060102150405-0700"

// StartStream asks the camera to push live view frames to the given UDP
// port on the requesting host.
func (c *Client) StartStream(ctx context.Context, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid stream port %d", port)
	}
	return c.exec(ctx, command{mode: "startstream", value: strconv.Itoa(port)})
}

// StopStream stops the live view stream.
func (c *Client) StopStream(ctx context.Context) error {
	return c.exec(ctx, command{mode: "stopstream"})
}

// CapturePhoto takes a still image.
func (c *Client) CapturePhoto(ctx context.Context) error {
	return c.exec(ctx, command{mode: "camcmd", value: "capture"})
}

// VideoRecordStart starts recording video.
func (c *Client) VideoRecordStart(ctx context.Context) error {
	return c.exec(ctx, command{mode: "camcmd", value: "video_recstart"})
}

// VideoRecordStop stops recording video.
func (c *Client) VideoRecordStop(ctx context.Context) error {
	return c.exec(ctx, command{mode: "camcmd", value: "video_recstop"})
}

// GetInfo returns the raw reply to a getinfo query.
func (c *Client) GetInfo(ctx context.Context, kind string) (string, error) {
	return c.fetch(ctx, command{mode: "getinfo", typ: kind})
}

func (c *Client) CurrentMenuInfo(ctx context.Context) (string, error) {
	return c.GetInfo(ctx, "curmenu")
}

func (c *Client) AllMenuInfo(ctx context.Context) (string, error) {
	return c.GetInfo(ctx, "allmenu")
}

// LensInfo returns the lens description. The comma separated fields include
// the aperture, shutter and zoom limits of the mounted lens.
func (c *Client) LensInfo(ctx context.Context) (string, error) {
	return c.GetInfo(ctx, "lens")
}

// GetSetting returns the raw reply to a getsetting query.
func (c *Client) GetSetting(ctx context.Context, kind string) (string, error) {
	return c.fetch(ctx, command{mode: "getsetting", typ: kind})
}

func (c *Client) FocusMode(ctx context.Context) (string, error) {
	return c.GetSetting(ctx, "focusmode")
}

func (c *Client) FocusMagnification(ctx context.Context) (string, error) {
	return c.GetSetting(ctx, "mf_asst_mag")
}

func (c *Client) MFAssistSetting(ctx context.Context) (string, error) {
	return c.GetSetting(ctx, "mf_asst")
}

// GetState returns the raw camera state document.
func (c *Client) GetState(ctx context.Context) (string, error) {
	return c.fetch(ctx, command{mode: "getstate"})
}

// SetSetting sets any camera setting by its cam.cgi type name.
func (c *Client) SetSetting(ctx context.Context, typ, value string) error {
	if typ == "" {
		return fmt.Errorf("setting type is required")
	}
	if value == "" {
		return fmt.Errorf("value for setting %q is required", typ)
	}
	return c.exec(ctx, command{mode: "setsetting", typ: typ, value: value})
}

// SetISO sets the sensitivity. The label "auto" is sent as "50".
func (c *Client) SetISO(ctx context.Context, iso string) error {
	if iso == "auto" {
		iso = "50"
	}
	if err := c.SetSetting(ctx, "iso", iso); err != nil {
		return err
	}
	c.logger.Debug().Str("iso", iso).Msg("ISO set")
	return nil
}

// SetFocal sets the aperture from an f-stop label such as "2.8". Unknown
// labels fail before anything is sent.
func (c *Client) SetFocal(ctx context.Context, label string) error {
	code, err := c.tables.Aperture(label)
	if err != nil {
		return err
	}
	if err := c.SetSetting(ctx, "focal", code); err != nil {
		return err
	}
	c.logger.Debug().Str("fstop", label).Msg("f stop set")
	return nil
}

// SetShutter sets the shutter speed from a label such as "1/250".
func (c *Client) SetShutter(ctx context.Context, label string) error {
	code, err := c.tables.ShutterSpeed(label)
	if err != nil {
		return err
	}
	if err := c.SetSetting(ctx, "shtrspeed", code); err != nil {
		return err
	}
	c.logger.Debug().Str("shutter", label).Msg("Shutter set")
	return nil
}

// SetVideoQuality sets the recording format. An empty quality selects
// DefaultVideoQuality.
func (c *Client) SetVideoQuality(ctx context.Context, quality string) error {
	if quality == "" {
		quality = DefaultVideoQuality
	}
	if err := c.SetSetting(ctx, "videoquality", quality); err != nil {
		return err
	}
	c.logger.Debug().Str("quality", quality).Msg("Video quality set")
	return nil
}

// SetDate sets the camera clock. A zero t uses the current local time.
func (c *Client) SetDate(ctx context.Context, t time.Time) error {
	if t.IsZero() {
		t = c.now().Local()
	}
	return c.SetSetting(ctx, "clock", FormatClock(t))
}

// FormatClock renders t as YYYYMMDDHHMMSS±ZZZZ in t's own zone.
func FormatClock(t time.Time) string {
	return t.Format(clockLayout)
}
