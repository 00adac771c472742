// Package config loads mudra's YAML configuration file and applies
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/preview"
	"github.com/ayusman/mudra/internal/tracking"
)

// DefaultFile is the config file looked up when none is given.
const DefaultFile = "mudra.yaml"

// ServerConfig configures the HTTP consumer.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
	// TickRate is the WebSocket consumer's render loop rate in Hz.
	TickRate int `yaml:"tick_rate"`
}

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Camera   capture.Config  `yaml:"camera"`
	Detector detector.Config `yaml:"detector"`
	Tracking tracking.Config `yaml:"tracking"`
	Preview  preview.Config  `yaml:"preview"`
	Log      logger.Config   `yaml:"log"`
	// Mobile marks a low-power device: the lighter landmark model is used
	// and consumers are told to scale down.
	Mobile  bool   `yaml:"mobile"`
	DataDir string `yaml:"data_dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:     ":8080",
			TickRate: 30,
		},
		Camera:   capture.DefaultConfig(),
		Detector: detector.DefaultConfig(),
		Tracking: tracking.DefaultConfig(),
		Preview:  preview.DefaultConfig(),
		Log:      logger.DefaultConfig(),
		DataDir:  defaultDataDir(),
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mudra"
	}
	return filepath.Join(home, ".mudra")
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error when path is the
// default file name; an explicitly named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.Mobile {
		cfg.Detector.ModelComplexity = detector.ConfigForPlatform(true).ModelComplexity
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Addr = getEnvOrDefault("MUDRA_ADDR", c.Server.Addr)
	c.Log.Level = getEnvOrDefault("MUDRA_LOG_LEVEL", c.Log.Level)
	c.DataDir = getEnvOrDefault("MUDRA_DATA_DIR", c.DataDir)

	if v := os.Getenv("MUDRA_CAMERA"); v != "" {
		id, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid MUDRA_CAMERA: %q", v)
		}
		c.Camera.DeviceID = id
	}
	if v := os.Getenv("MUDRA_MOBILE"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid MUDRA_MOBILE: %q", v)
		}
		c.Mobile = b
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server address is required")
	}
	if c.Server.TickRate <= 0 || c.Server.TickRate > 240 {
		return fmt.Errorf("server tick rate must be in (0,240], got %d", c.Server.TickRate)
	}
	if c.DataDir == "" {
		return errors.New("data directory is required")
	}
	if err := c.Camera.Validate(); err != nil {
		return err
	}
	if err := c.Tracking.Validate(); err != nil {
		return fmt.Errorf("tracking: %w", err)
	}
	return nil
}

// Platform returns the performance hint published by the tracker.
func (c *Config) Platform() tracking.Platform {
	return tracking.PlatformFor(c.Mobile)
}

// DatabasePath returns the SQLite file inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "mudra.db")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
