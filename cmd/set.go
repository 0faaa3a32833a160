package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lumix-remote/internal/lumix"
)

// setter carries the connected camera into a set subcommand
type setter struct {
	ctx context.Context
	cam *lumix.Client
}

func runSet(cmd *cobra.Command, name string, apply func(setter) error) error {
	cam, _, err := setupCamera(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	if err := apply(setter{ctx: ctx, cam: cam}); err != nil {
		return err
	}
	return done(cmd, "set "+name)
}

// Parent Command
var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Change a camera setting",
	Long: `Change exposure and recording settings. Aperture and shutter take
labels such as "2.8" or "1/250"; run 'lumix-remote tables' to list them.`,
}

var setISOCmd = &cobra.Command{
	Use:     "iso <value>",
	Short:   "Set ISO (\"auto\" or a number such as 400)",
	Example: `  lumix-remote set iso 800`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSet(cmd, "iso", func(c setter) error { return c.cam.SetISO(c.ctx, args[0]) })
	},
}

var setFocalCmd = &cobra.Command{
	Use:     "focal <f-stop>",
	Aliases: []string{"aperture"},
	Short:   "Set aperture by f-stop label",
	Example: `  lumix-remote set focal 2.8`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSet(cmd, "focal", func(c setter) error { return c.cam.SetFocal(c.ctx, args[0]) })
	},
}

var setShutterCmd = &cobra.Command{
	Use:     "shutter <speed>",
	Short:   "Set shutter speed by label",
	Example: `  lumix-remote set shutter 1/250`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSet(cmd, "shutter", func(c setter) error { return c.cam.SetShutter(c.ctx, args[0]) })
	},
}

var setQualityCmd = &cobra.Command{
	Use:   "quality [value]",
	Short: "Set video quality",
	Long: `Set the video recording format. Without a value the camera is set to
4K 30p at 100Mbps (mp4ed_30p_100mbps_4k).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var quality string
		if len(args) == 1 {
			quality = args[0]
		}
		return runSet(cmd, "quality", func(c setter) error { return c.cam.SetVideoQuality(c.ctx, quality) })
	},
}

var setClockCmd = &cobra.Command{
	Use:   "clock [RFC3339 time]",
	Short: "Set the camera clock",
	Long: `Set the camera clock to the given time, or to the local time of this
machine when no time is given.`,
	Example: `  lumix-remote set clock
  lumix-remote set clock 2024-06-01T12:00:00+02:00`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var t time.Time
		if len(args) == 1 {
			parsed, err := time.Parse(time.RFC3339, args[0])
			if err != nil {
				return fmt.Errorf("invalid time %q: %w", args[0], err)
			}
			t = parsed
		}
		return runSet(cmd, "clock", func(c setter) error { return c.cam.SetDate(c.ctx, t) })
	},
}

var setRawCmd = &cobra.Command{
	Use:     "raw <type> <value>",
	Short:   "Send a setting by its cam.cgi type name",
	Example: `  lumix-remote set raw focusmode mf`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSet(cmd, args[0], func(c setter) error { return c.cam.SetSetting(c.ctx, args[0], args[1]) })
	},
}

func init() {
	rootCmd.AddCommand(setCmd)
	setCmd.AddCommand(setISOCmd)
	setCmd.AddCommand(setFocalCmd)
	setCmd.AddCommand(setShutterCmd)
	setCmd.AddCommand(setQualityCmd)
	setCmd.AddCommand(setClockCmd)
	setCmd.AddCommand(setRawCmd)
}
