package cmd

import (
	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Take a photo",
	RunE: func(cmd *cobra.Command, args []string) error {
		cam, _, err := setupCamera(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := cam.CapturePhoto(ctx); err != nil {
			return err
		}
		return done(cmd, "capture")
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)
}
