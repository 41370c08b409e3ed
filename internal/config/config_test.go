package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsMatchFixedLiterals(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 3001 {
		t.Errorf("Port = %d, want 3001", cfg.Port)
	}
	if cfg.AwayAfter.Duration != 60*time.Second {
		t.Errorf("AwayAfter = %v", cfg.AwayAfter)
	}
	if cfg.SweepInterval.Duration != 30*time.Second {
		t.Errorf("SweepInterval = %v", cfg.SweepInterval)
	}
	if cfg.GracePeriod.Duration != 5*time.Minute {
		t.Errorf("GracePeriod = %v", cfg.GracePeriod)
	}
	if cfg.UploadDir != "uploads" || cfg.StaticDir != "public" {
		t.Errorf("dirs = %q %q", cfg.UploadDir, cfg.StaticDir)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.toml")
	body := `
port = 4000
upload_dir = "/tmp/up"
away_after = "90s"
grace_period = "1m"
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 4000 {
		t.Errorf("Port = %d, want 4000", cfg.Port)
	}
	if cfg.UploadDir != "/tmp/up" {
		t.Errorf("UploadDir = %q", cfg.UploadDir)
	}
	if cfg.AwayAfter.Duration != 90*time.Second {
		t.Errorf("AwayAfter = %v, want 90s", cfg.AwayAfter)
	}
	if cfg.GracePeriod.Duration != time.Minute {
		t.Errorf("GracePeriod = %v, want 1m", cfg.GracePeriod)
	}
	if cfg.SweepInterval.Duration != 30*time.Second {
		t.Errorf("SweepInterval = %v, want default 30s", cfg.SweepInterval)
	}
}

func TestEnvOverridesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.toml")
	if err := os.WriteFile(path, []byte("port = 4000\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "5000")
	t.Setenv("SWEEP_INTERVAL", "10s")
	t.Setenv("GRACE_PERIOD", "not-a-duration")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 5000 {
		t.Errorf("Port = %d, want 5000", cfg.Port)
	}
	if cfg.SweepInterval.Duration != 10*time.Second {
		t.Errorf("SweepInterval = %v, want 10s", cfg.SweepInterval)
	}
	if cfg.GracePeriod.Duration != 5*time.Minute {
		t.Errorf("GracePeriod = %v, want default on bad value", cfg.GracePeriod)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/chat.toml"); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Port = 70000 }},
		{"upload dir", func(c *Config) { c.UploadDir = "" }},
		{"grace", func(c *Config) { c.GracePeriod.Duration = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestAddr(t *testing.T) {
	cfg := Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = 8080
	if got := cfg.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q", got)
	}
}
