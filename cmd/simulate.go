package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"lumix-remote/internal/camsim"
)

var (
	simListen   string
	simPosition int
	simMax      int
	simStuck    bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated camera for trying the CLI and remote without hardware",
	Example: `  lumix-remote simulate --listen 127.0.0.1:8090
  lumix-remote --camera 127.0.0.1:8090 focus rack --end 300`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		simCfg := camsim.DefaultConfig()
		simCfg.Position = simPosition
		simCfg.Max = simMax
		cam := camsim.New(simCfg, logger.With().Str("component", "camsim").Logger())
		cam.SetStuck(simStuck)

		srv := &http.Server{Addr: simListen, Handler: cam}
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()
		logger.Info().Str("addr", simListen).Msg("Simulated camera listening")

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simListen, "listen", "127.0.0.1:8090", "Address to serve cam.cgi on")
	simulateCmd.Flags().IntVar(&simPosition, "position", 512, "Initial lens position")
	simulateCmd.Flags().IntVar(&simMax, "max", 1023, "Farthest lens position")
	simulateCmd.Flags().BoolVar(&simStuck, "stuck", false, "Report a focus motor that never moves")
}
