package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"lumix-remote/internal/lumix"
)

var (
	focusDirection string
	focusSpeed     string
	rackStart      string
	rackEnd        string
	rackSpeed      string
	rackMaxSteps   int
)

// Parent Command
var focusCmd = &cobra.Command{
	Use:   "focus",
	Short: "Drive the focus motor",
	Long: `Step the focus motor or rack focus between two lens positions. The
camera must be in manual focus for focus commands to move the lens.`,
}

var focusStepCmd = &cobra.Command{
	Use:     "step",
	Short:   "Move focus one step and print the new lens position",
	Example: `  lumix-remote focus step --direction wide --speed fast`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := lumix.ParseDirection(focusDirection)
		if err != nil {
			return err
		}
		speed, err := lumix.ParseSpeed(focusSpeed)
		if err != nil {
			return err
		}

		cam, _, err := setupCamera(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		pos, err := cam.StepFocus(ctx, dir, speed)
		if err != nil {
			return err
		}
		return printPosition(cmd, pos)
	},
}

var focusRackCmd = &cobra.Command{
	Use:   "rack",
	Short: "Rack focus from a start position to an end position",
	Long: `Move the lens to the start position, then drive it to the end
position, slowing to normal steps close to the target. Positions are lens
positions as reported by 'focus step', or "current".`,
	Example: `  lumix-remote focus rack --end 300
  lumix-remote focus rack --start 100 --end 800 --speed fast`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := lumix.ParseFocusTarget(rackStart)
		if err != nil {
			return err
		}
		end, err := lumix.ParseFocusTarget(rackEnd)
		if err != nil {
			return err
		}
		speed, err := lumix.ParseSpeed(rackSpeed)
		if err != nil {
			return err
		}

		cam, _, err := setupCamera(cmd)
		if err != nil {
			return err
		}

		// Interrupts cancel the rack through the command context
		pos, err := cam.RackFocus(cmd.Context(), lumix.RackOptions{
			Start:    start,
			End:      end,
			Speed:    speed,
			MaxSteps: rackMaxSteps,
		})
		if err != nil {
			return err
		}
		return printPosition(cmd, pos)
	},
}

func printPosition(cmd *cobra.Command, pos int) error {
	if jsonOutput {
		return printJSON(cmd, map[string]int{"position": pos})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Focus position: %d\n", pos)
	return nil
}

func init() {
	rootCmd.AddCommand(focusCmd)
	focusCmd.AddCommand(focusStepCmd)
	focusCmd.AddCommand(focusRackCmd)

	focusStepCmd.Flags().StringVar(&focusDirection, "direction", "", "tele or wide")
	focusStepCmd.Flags().StringVar(&focusSpeed, "speed", "normal", "normal or fast")
	_ = focusStepCmd.MarkFlagRequired("direction")

	focusRackCmd.Flags().StringVar(&rackStart, "start", "current", "Start position or \"current\"")
	focusRackCmd.Flags().StringVar(&rackEnd, "end", "current", "End position or \"current\"")
	focusRackCmd.Flags().StringVar(&rackSpeed, "speed", "normal", "normal or fast")
	focusRackCmd.Flags().IntVar(&rackMaxSteps, "max-steps", lumix.DefaultMaxSteps, "Give up after this many focus steps")
}
