package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lumix-remote/internal/config"
	"lumix-remote/internal/lumix"
	"lumix-remote/internal/params"
)

var (
	cfgFile    string
	jsonOutput bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lumix-remote",
	Short: "Remote control for Panasonic Lumix cameras over Wi-Fi",
	Long: `Drive a Lumix camera through its cam.cgi interface: capture, record,
change exposure settings, step or rack focus, relay live view and run a
browser remote.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.InitConfig(viper.GetViper(), cfgFile)
	},
}

// Execute runs the root command. Interrupts cancel the command context so
// long operations such as rack focus stop cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.lumix-remote.yaml)")
	rootCmd.PersistentFlags().String("camera", "", "camera address (default 192.168.54.1)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	_ = viper.BindPFlag("camera.address", rootCmd.PersistentFlags().Lookup("camera"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// loadConfig returns the validated configuration and a logger built from it
func loadConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	level, err := cfg.Log.ParseLevel()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, newLogger(cmd.ErrOrStderr(), level), nil
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()
}

// clientConfig builds the cam.cgi client settings, loading custom tables if configured
func clientConfig(cfg *config.Config, observer lumix.Observer) (lumix.Config, error) {
	tables, err := params.Load(cfg.Camera.Tables)
	if err != nil {
		return lumix.Config{}, err
	}
	return lumix.Config{
		Address:  cfg.Camera.Address,
		Timeout:  cfg.Camera.Timeout,
		Tables:   tables,
		Observer: observer,
	}, nil
}

// setupCamera connects to the configured camera and puts it into record mode
func setupCamera(cmd *cobra.Command) (*lumix.Client, zerolog.Logger, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, logger, err
	}
	lcfg, err := clientConfig(cfg, nil)
	if err != nil {
		return nil, logger, err
	}
	cam, err := lumix.Dial(cmd.Context(), lcfg, logger)
	if err != nil {
		return nil, logger, fmt.Errorf("failed to connect to camera at %s: %w", cfg.Camera.Address, err)
	}
	return cam, logger, nil
}

// commandContext bounds a single camera command
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, time.Minute)
}

// printJSON writes v as indented JSON
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("error encoding JSON: %w", err)
	}
	return nil
}

// done reports a completed action
func done(cmd *cobra.Command, action string) error {
	if jsonOutput {
		return printJSON(cmd, map[string]any{"action": action, "ok": true})
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Success.")
	return nil
}
