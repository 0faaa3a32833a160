package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Parent Command
var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Query the camera",
	Long: `Query camera information, settings or state. Replies are printed as
the camera sends them.`,
}

var getInfoCmd = &cobra.Command{
	Use:     "info <type>",
	Short:   "Query camera information (lens, curmenu, allmenu, capability)",
	Example: `  lumix-remote get info lens`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cam, _, err := setupCamera(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		body, err := cam.GetInfo(ctx, args[0])
		if err != nil {
			return err
		}
		return printBody(cmd, "info", args[0], body)
	},
}

var getSettingCmd = &cobra.Command{
	Use:     "setting <type>",
	Short:   "Query a camera setting (focusmode, mf_asst, mf_asst_mag, iso, ...)",
	Example: `  lumix-remote get setting focusmode`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cam, _, err := setupCamera(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		body, err := cam.GetSetting(ctx, args[0])
		if err != nil {
			return err
		}
		return printBody(cmd, "setting", args[0], body)
	},
}

var getStateCmd = &cobra.Command{
	Use:   "state",
	Short: "Query camera state (battery, card, recording)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cam, _, err := setupCamera(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		body, err := cam.GetState(ctx)
		if err != nil {
			return err
		}
		return printBody(cmd, "state", "", body)
	},
}

func printBody(cmd *cobra.Command, kind, typ, body string) error {
	if jsonOutput {
		return printJSON(cmd, map[string]string{"kind": kind, "type": typ, "body": body})
	}
	fmt.Fprintln(cmd.OutOrStdout(), body)
	return nil
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.AddCommand(getInfoCmd)
	getCmd.AddCommand(getSettingCmd)
	getCmd.AddCommand(getStateCmd)
}
