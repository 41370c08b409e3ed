package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"chat-relay/internal/presence"
	"chat-relay/internal/utils"

	"github.com/BurntSushi/toml"
)

// Duration lets TOML files spell durations as "30s" or "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the relay server configuration.
type Config struct {
	Host          string   `toml:"host"`
	Port          int      `toml:"port"`
	BaseURL       string   `toml:"base_url"`
	UploadDir     string   `toml:"upload_dir"`
	StaticDir     string   `toml:"static_dir"`
	BodyLimit     int      `toml:"body_limit"`
	SendBuffer    int      `toml:"send_buffer"`
	AwayAfter     Duration `toml:"away_after"`
	SweepInterval Duration `toml:"sweep_interval"`
	GracePeriod   Duration `toml:"grace_period"`
	LogLevel      string   `toml:"log_level"`
	LogFormat     string   `toml:"log_format"`
}

func Default() *Config {
	return &Config{
		Host:          "0.0.0.0",
		Port:          3001,
		UploadDir:     "uploads",
		StaticDir:     "public",
		BodyLimit:     10 * 1024 * 1024,
		SendBuffer:    256,
		AwayAfter:     Duration{presence.DefaultAwayAfter},
		SweepInterval: Duration{presence.DefaultSweepInterval},
		GracePeriod:   Duration{presence.DefaultGracePeriod},
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

// Load builds the configuration from defaults, then the optional TOML file at
// path, then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv loads .env, then calls Load with the file named by CHAT_CONFIG.
func FromEnv() (*Config, error) {
	if err := utils.LoadEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Load(utils.GetEnv("CHAT_CONFIG", ""))
}

func (c *Config) applyEnv() {
	c.Host = utils.GetEnv("HOST", c.Host)
	c.Port = utils.GetEnvInt("PORT", c.Port)
	c.BaseURL = utils.GetEnv("BASE_URL", c.BaseURL)
	c.UploadDir = utils.GetEnv("UPLOAD_DIR", c.UploadDir)
	c.StaticDir = utils.GetEnv("STATIC_DIR", c.StaticDir)
	c.BodyLimit = utils.GetEnvInt("BODY_LIMIT", c.BodyLimit)
	c.SendBuffer = utils.GetEnvInt("SEND_BUFFER", c.SendBuffer)
	c.AwayAfter.Duration = utils.GetEnvDuration("AWAY_AFTER", c.AwayAfter.Duration)
	c.SweepInterval.Duration = utils.GetEnvDuration("SWEEP_INTERVAL", c.SweepInterval.Duration)
	c.GracePeriod.Duration = utils.GetEnvDuration("GRACE_PERIOD", c.GracePeriod.Duration)
	c.LogLevel = utils.GetEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = utils.GetEnv("LOG_FORMAT", c.LogFormat)
}

func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.UploadDir == "" {
		return fmt.Errorf("upload_dir must not be empty")
	}
	if c.AwayAfter.Duration <= 0 || c.SweepInterval.Duration <= 0 || c.GracePeriod.Duration <= 0 {
		return fmt.Errorf("presence durations must be positive")
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) Presence() presence.Options {
	return presence.Options{
		AwayAfter:   c.AwayAfter.Duration,
		GracePeriod: c.GracePeriod.Duration,
	}
}
