package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"lumix-remote/internal/liveview"
)

var (
	streamPort   int
	savePort     int
	saveCount    int
	saveDir      string
	saveDeadline time.Duration
)

// Parent Command
var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Control the UDP live view stream",
	Long: `The camera pushes live view as JPEG frames in UDP datagrams to the
port given when the stream is started. The stream stops on its own unless
it is refreshed every few seconds.`,
}

var streamStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Ask the camera to stream live view to a UDP port",
	RunE: func(cmd *cobra.Command, args []string) error {
		cam, _, err := setupCamera(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := cam.StartStream(ctx, streamPort); err != nil {
			return err
		}
		return done(cmd, "stream start")
	},
}

var streamStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the live view stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		cam, _, err := setupCamera(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := cam.StopStream(ctx); err != nil {
			return err
		}
		return done(cmd, "stream stop")
	},
}

var streamSaveCmd = &cobra.Command{
	Use:     "save",
	Short:   "Receive live view frames and write them as JPEG files",
	Example: `  lumix-remote stream save --count 10 --dir frames`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cam, logger, err := setupCamera(cmd)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(saveDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		recv, err := liveview.NewReceiver(liveview.Config{Port: savePort}, cam, logger, nil)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if err := recv.Start(ctx); err != nil {
			return err
		}
		defer recv.Close()

		timeout := time.NewTimer(saveDeadline)
		defer timeout.Stop()

		saved := 0
		for saved < saveCount {
			select {
			case frame, ok := <-recv.Frames():
				if !ok {
					return fmt.Errorf("live view closed after %d frames", saved)
				}
				name := filepath.Join(saveDir, fmt.Sprintf("frame-%04d.jpg", saved))
				if err := os.WriteFile(name, frame, 0o644); err != nil {
					return fmt.Errorf("error writing file: %w", err)
				}
				saved++
			case <-timeout.C:
				return fmt.Errorf("timed out after %d of %d frames", saved, saveCount)
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
		}

		if jsonOutput {
			return printJSON(cmd, map[string]any{"frames": saved, "dir": saveDir})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %d frames to %s\n", saved, saveDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(streamCmd)
	streamCmd.AddCommand(streamStartCmd)
	streamCmd.AddCommand(streamStopCmd)
	streamCmd.AddCommand(streamSaveCmd)

	streamStartCmd.Flags().IntVar(&streamPort, "port", 49199, "UDP port the camera streams to")
	streamSaveCmd.Flags().IntVar(&savePort, "port", 0, "UDP port to listen on (0 picks a free port)")
	streamSaveCmd.Flags().IntVar(&saveCount, "count", 1, "Number of frames to save")
	streamSaveCmd.Flags().StringVar(&saveDir, "dir", ".", "Output directory")
	streamSaveCmd.Flags().DurationVar(&saveDeadline, "timeout", 30*time.Second, "Give up after this long")
}
