package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kardianos/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lumix-remote/internal/config"
	"lumix-remote/internal/lumix"
	"lumix-remote/internal/metrics"
	"lumix-remote/internal/server"
)

var serviceAction string

// program implements the kardianos/service interface
type program struct {
	cfg    *config.Config
	logger zerolog.Logger

	srv  *server.Server
	done chan struct{}
}

func (p *program) Start(s service.Service) error {
	// Start should not block
	srv, err := p.build()
	if err != nil {
		return err
	}
	p.srv = srv
	p.done = make(chan struct{})
	go p.run()
	return nil
}

// build connects to the camera and wires metrics into the server
func (p *program) build() (*server.Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	lcfg, err := clientConfig(p.cfg, recorder)
	if err != nil {
		return nil, err
	}
	cam, err := lumix.New(lcfg, p.logger)
	if err != nil {
		return nil, err
	}

	// The camera may still be joining the network, so a failed connect is
	// not fatal; commands report their own errors.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := cam.Connect(ctx); err != nil {
		p.logger.Warn().Err(err).Str("camera", p.cfg.Camera.Address).Msg("Camera not reachable yet")
	}

	return server.New(server.Config{
		ListenAddr:    p.cfg.Server.Listen,
		CameraName:    p.cfg.Camera.Address,
		LiveviewPort:  p.cfg.Server.LiveviewPort,
		KeepAlive:     p.cfg.Server.KeepAlive,
		Metrics:       registry,
		FrameObserver: recorder,
	}, cam, p.logger)
}

func (p *program) run() {
	defer close(p.done)
	if err := p.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		p.logger.Error().Err(err).Msg("HTTP server error")
	}
}

func (p *program) Stop(s service.Service) error {
	p.logger.Info().Msg("Stopping service...")
	if p.srv != nil {
		p.srv.Stop()
		<-p.done
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the browser remote control server",
	Long: `Serve a web remote with live view on server.listen. WebSocket clients
connect on /ws and Prometheus metrics are exposed on /metrics. Can be
installed as a system service.`,
	Example: `  lumix-remote serve --listen :8080 --liveview-port 49199
  lumix-remote serve --config /etc/lumix-remote.yaml --service install`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		// Arguments passed to the binary when run as a service
		svcArgs := []string{"serve"}
		if cfgFile != "" {
			svcArgs = append(svcArgs, "--config", cfgFile)
		}
		svcArgs = append(svcArgs,
			"--camera", cfg.Camera.Address,
			"--listen", cfg.Server.Listen,
			"--liveview-port", fmt.Sprint(cfg.Server.LiveviewPort),
		)

		svcConfig := &service.Config{
			Name:        "lumix-remote",
			DisplayName: "Lumix Remote",
			Description: "Browser remote control and live view for Panasonic Lumix cameras",
			Arguments:   svcArgs,
		}

		prg := &program{cfg: cfg, logger: logger}
		s, err := service.New(prg, svcConfig)
		if err != nil {
			return err
		}

		switch serviceAction {
		case "", "run":
			// Blocks until the service manager or an interrupt stops it
			return s.Run()
		case "install", "uninstall", "start", "stop", "restart":
			if err := service.Control(s, serviceAction); err != nil {
				return fmt.Errorf("failed to %s service: %w", serviceAction, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service action '%s' completed successfully.\n", serviceAction)
			return nil
		}
		return fmt.Errorf("unknown service action %q", serviceAction)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "HTTP listen address (default :8080)")
	serveCmd.Flags().Int("liveview-port", 0, "UDP port for live view, 0 disables it")
	serveCmd.Flags().StringVar(&serviceAction, "service", "", "Service action: install, uninstall, start, stop, restart, run")

	_ = viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("server.liveview_port", serveCmd.Flags().Lookup("liveview-port"))
}
