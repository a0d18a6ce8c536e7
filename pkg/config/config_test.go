package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Address != ":8000" {
		t.Errorf("Expected server.address ':8000', got %q", cfg.Server.Address)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("Expected storage.driver 'memory', got %q", cfg.Storage.Driver)
	}
	if cfg.Session.DefaultPoints != 100 {
		t.Errorf("Expected default points 100, got %d", cfg.Session.DefaultPoints)
	}
	if cfg.Session.DefaultTimeLimit != 20*time.Second {
		t.Errorf("Expected default time limit 20s, got %v", cfg.Session.DefaultTimeLimit)
	}
	if cfg.WebSocket.SendBuffer != 256 {
		t.Errorf("Expected send buffer 256, got %d", cfg.WebSocket.SendBuffer)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	yaml := []byte("session:\n  idle_ttl: 5m\n  default_points: 50\nlog:\n  level: DEBUG\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PARTYGAME_SERVER_ADDRESS", ":9999")

	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Session.IdleTTL != 5*time.Minute {
		t.Errorf("Expected idle ttl 5m, got %v", cfg.Session.IdleTTL)
	}
	if cfg.Session.DefaultPoints != 50 {
		t.Errorf("Expected default points 50, got %d", cfg.Session.DefaultPoints)
	}
	if cfg.Log.Level != "DEBUG" {
		t.Errorf("Expected log level DEBUG, got %q", cfg.Log.Level)
	}
	if cfg.Server.Address != ":9999" {
		t.Errorf("Expected env override ':9999', got %q", cfg.Server.Address)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		v := viper.New()
		SetDefaults(v)
		var c Config
		if err := v.Unmarshal(&c); err != nil {
			t.Fatal(err)
		}
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"postgres driver", func(c *Config) { c.Storage.Driver = "postgres" }, false},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, true},
		{"short code", func(c *Config) { c.Session.CodeLength = 2 }, true},
		{"no retries", func(c *Config) { c.Session.CodeRetries = 0 }, true},
		{"negative points", func(c *Config) { c.Session.DefaultPoints = -1 }, true},
		{"no workers", func(c *Config) { c.Persistence.Workers = 0 }, true},
		{"ping after pong", func(c *Config) { c.WebSocket.PingPeriod = c.WebSocket.PongWait }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
