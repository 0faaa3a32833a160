package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lumix-remote/internal/params"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the aperture and shutter speed labels",
	Long: `List the labels accepted by 'set focal' and 'set shutter'. The
built-in tables can be replaced with camera.tables in the config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tables, err := params.Load(viper.GetString("camera.tables"))
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd, map[string][]string{
				"aperture": tables.ApertureLabels(),
				"shutter":  tables.ShutterLabels(),
			})
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "TABLE\tLABELS")
		fmt.Fprintln(w, "-----\t------")
		fmt.Fprintf(w, "aperture\t%s\n", strings.Join(tables.ApertureLabels(), " "))
		fmt.Fprintf(w, "shutter\t%s\n", strings.Join(tables.ShutterLabels(), " "))
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}
