// Package config loads lumix-remote settings from file, environment and flags
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment variable names, e.g.
// LUMIX_CAMERA_ADDRESS for camera.address
const EnvPrefix = "LUMIX"

// Config holds all application configuration
type Config struct {
	Camera CameraConfig `mapstructure:"camera"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

// CameraConfig configures the cam.cgi client
type CameraConfig struct {
	Address string        `mapstructure:"address"` // host or host:port of the camera
	Timeout time.Duration `mapstructure:"timeout"`
	Tables  string        `mapstructure:"tables"` // Optional YAML file replacing the built-in tables
}

// ServerConfig configures the remote control server
type ServerConfig struct {
	Listen       string        `mapstructure:"listen"`
	LiveviewPort int           `mapstructure:"liveview_port"` // 0 disables live view
	KeepAlive    time.Duration `mapstructure:"keepalive"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("camera.address", "192.168.54.1")
	v.SetDefault("camera.timeout", 10*time.Second)
	v.SetDefault("camera.tables", "")
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.liveview_port", 0)
	v.SetDefault("server.keepalive", 5*time.Second)
	v.SetDefault("log.level", "info")
}

// InitConfig points v at the config file and environment. An explicit
// cfgFile must exist; the default $HOME/.lumix-remote.yaml is optional.
func InitConfig(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigType("yaml")
		v.SetConfigName(".lumix-remote")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Load decodes and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for values the camera or server cannot use
func (c *Config) Validate() error {
	if c.Camera.Address == "" {
		return errors.New("camera.address is required")
	}
	if c.Camera.Timeout < 0 {
		return fmt.Errorf("camera.timeout must not be negative, got %s", c.Camera.Timeout)
	}
	if c.Server.LiveviewPort < 0 || c.Server.LiveviewPort > 65535 {
		return fmt.Errorf("server.liveview_port out of range: %d", c.Server.LiveviewPort)
	}
	if c.Server.KeepAlive < 0 {
		return fmt.Errorf("server.keepalive must not be negative, got %s", c.Server.KeepAlive)
	}
	if _, err := c.Log.ParseLevel(); err != nil {
		return err
	}
	return nil
}

// ParseLevel returns the zerolog level for the configured name
func (l LogConfig) ParseLevel() (zerolog.Level, error) {
	if l.Level == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(l.Level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log.level %q: %w", l.Level, err)
	}
	return level, nil
}
