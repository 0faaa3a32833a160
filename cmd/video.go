package cmd

import (
	"github.com/spf13/cobra"
)

// Parent Command
var videoCmd = &cobra.Command{
	Use:   "video",
	Short: "Start or stop video recording",
}

var videoStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start recording",
	RunE: func(cmd *cobra.Command, args []string) error {
		cam, _, err := setupCamera(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := cam.VideoRecordStart(ctx); err != nil {
			return err
		}
		return done(cmd, "video start")
	},
}

var videoStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop recording",
	RunE: func(cmd *cobra.Command, args []string) error {
		cam, _, err := setupCamera(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := cam.VideoRecordStop(ctx); err != nil {
			return err
		}
		return done(cmd, "video stop")
	},
}

func init() {
	rootCmd.AddCommand(videoCmd)
	videoCmd.AddCommand(videoStartCmd)
	videoCmd.AddCommand(videoStopCmd)
}
