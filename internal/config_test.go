package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/geocam/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigSectionValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.App.HTTP.Port = 70000 }},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "ftp" }},
		{"fs without path", func(c *Config) { c.Storage.Path = "" }},
		{"zero rehydrate limit", func(c *Config) { c.Storage.RehydrateLimit = 0 }},
		{"minio without bucket", func(c *Config) {
			c.Storage.Backend = StorageMinIO
			c.Storage.MinIO.Endpoint = "localhost:9000"
		}},
		{"unknown kv", func(c *Config) { c.KV.Backend = "etcd" }},
		{"redis without addr", func(c *Config) {
			c.KV.Backend = KVRedis
			c.KV.Redis.Addr = ""
		}},
		{"bad camera output", func(c *Config) { c.Camera.Output = "stdout" }},
		{"unknown location", func(c *Config) { c.Location.Source = "wifi" }},
		{"latitude out of range", func(c *Config) {
			c.Location.Source = LocationStatic
			c.Location.Lat = 91
		}},
		{"gpsd without addr", func(c *Config) {
			c.Location.Source = LocationGPSD
			c.Location.GPSDAddr = ""
		}},
		{"geocode without user agent", func(c *Config) { c.Geocode.UserAgent = "" }},
		{"negative epsilon", func(c *Config) { c.Markers.Epsilon = -1 }},
		{"inbox without path", func(c *Config) {
			c.Inbox.Enabled = true
			c.Inbox.Path = ""
		}},
		{"bad cron", func(c *Config) { c.Maintenance.Schedule = "whenever" }},
		{"nats without url", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.URL = ""
		}},
		{"negative throttle", func(c *Config) { c.SSE.MapThrottle = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfigAlternateBackendsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Storage.Backend = StorageMinIO
	cfg.Storage.Path = ""
	cfg.Storage.MinIO = MinIOConfig{Endpoint: "localhost:9000", Bucket: "photos"}
	cfg.KV.Backend = KVRedis
	cfg.KV.SQLite.Path = ""
	cfg.Location.Source = LocationGPSD
	cfg.Geocode.Enabled = false
	cfg.Geocode.UserAgent = ""
	cfg.Maintenance.Enabled = false
	cfg.Maintenance.Schedule = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid alternate config rejected: %v", err)
	}
}

func TestConfigLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  log_level: debug
  http:
    port: 9090
location:
  source: static
  lat: 48.85
  lng: 2.35
  fix_timeout: 2s
inbox:
  enabled: true
  path: /tmp/geocam-inbox
sse:
  map_throttle: 500ms
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.App.LogLevel != slog.LevelDebug || cfg.App.HTTP.Port != 9090 {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Location.FixTimeout != 2*time.Second || cfg.Location.Lat != 48.85 {
		t.Errorf("location = %+v", cfg.Location)
	}
	if cfg.SSE.MapThrottle != 500*time.Millisecond {
		t.Errorf("map throttle = %v", cfg.SSE.MapThrottle)
	}
	if cfg.KV.Backend != KVSQLite || cfg.Storage.PhotoDir != "photos" {
		t.Error("defaults not kept for unset sections")
	}
}
