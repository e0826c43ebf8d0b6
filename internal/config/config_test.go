package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeAppFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "enclient.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENCLIENT_CONFIG", filepath.Join(t.TempDir(), "missing.yml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Platform != "ios" {
		t.Errorf("Expected default platform ios, got %s", cfg.Platform)
	}
	if cfg.Verification.Timeout != 5*time.Second {
		t.Errorf("Expected 5s verification timeout, got %v", cfg.Verification.Timeout)
	}
	if cfg.Exposure.QuarantineLengthDays != 14 {
		t.Errorf("Expected 14-day quarantine, got %d", cfg.Exposure.QuarantineLengthDays)
	}
	if cfg.Exposure.CalendarDayCount != 21 {
		t.Errorf("Expected 21-day calendar, got %d", cfg.Exposure.CalendarDayCount)
	}
	if cfg.Storage.Type != "sqlite" {
		t.Errorf("Expected sqlite storage, got %s", cfg.Storage.Type)
	}
	if len(cfg.Publish.RegionCodes) != 1 || cfg.Publish.RegionCodes[0] != "US" {
		t.Errorf("Expected default region US, got %v", cfg.Publish.RegionCodes)
	}
	if cfg.Observability.MetricsPort != 9090 {
		t.Errorf("Expected metrics port 9090, got %d", cfg.Observability.MetricsPort)
	}
}

func TestLoad_AppFile(t *testing.T) {
	path := writeAppFile(t, `regions:
  - US
  - MX
verificationBaseUrl: https://verify.example.org
publishUrl: https://publish.example.org/v1/publish
appPackageName: org.pathcheck.example
quarantineLengthDays: 10
calendarDayCount: 14
`)
	t.Setenv("ENCLIENT_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Verification.BaseURL != "https://verify.example.org" {
		t.Errorf("Expected app-file verification URL, got %s", cfg.Verification.BaseURL)
	}
	if cfg.Publish.URL != "https://publish.example.org/v1/publish" {
		t.Errorf("Expected app-file publish URL, got %s", cfg.Publish.URL)
	}
	if len(cfg.Publish.RegionCodes) != 2 || cfg.Publish.RegionCodes[1] != "MX" {
		t.Errorf("Expected app-file regions, got %v", cfg.Publish.RegionCodes)
	}
	if cfg.Exposure.QuarantineLengthDays != 10 {
		t.Errorf("Expected app-file quarantine length, got %d", cfg.Exposure.QuarantineLengthDays)
	}
}

func TestLoad_EnvWinsOverAppFile(t *testing.T) {
	path := writeAppFile(t, `verificationBaseUrl: https://from-file.example.org
regions:
  - US
`)
	t.Setenv("ENCLIENT_CONFIG", path)
	t.Setenv("VERIFICATION_BASE_URL", "https://from-env.example.org")
	t.Setenv("REGION_CODES", "GU, PR")
	t.Setenv("PLATFORM", "android")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Verification.BaseURL != "https://from-env.example.org" {
		t.Errorf("Expected env override, got %s", cfg.Verification.BaseURL)
	}
	if len(cfg.Publish.RegionCodes) != 2 || cfg.Publish.RegionCodes[0] != "GU" || cfg.Publish.RegionCodes[1] != "PR" {
		t.Errorf("Expected env regions, got %v", cfg.Publish.RegionCodes)
	}
	if cfg.Platform != "android" {
		t.Errorf("Expected android platform, got %s", cfg.Platform)
	}
}

func TestLoad_MalformedAppFile(t *testing.T) {
	path := writeAppFile(t, "regions: [unclosed")
	t.Setenv("ENCLIENT_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed app file")
	}
}

func validConfig() *Config {
	return &Config{
		Platform: "ios",
		Verification: VerificationConfig{
			BaseURL: "https://verify.example.org",
			APIKey:  "key",
			Timeout: 5 * time.Second,
		},
		Publish: PublishConfig{
			URL:            "https://publish.example.org",
			AppPackageName: "org.pathcheck.example",
			RegionCodes:    []string{"US"},
			Timeout:        30 * time.Second,
		},
		Exposure: ExposureConfig{QuarantineLengthDays: 14, CalendarDayCount: 21},
		Storage:  StorageConfig{Type: "memory"},
		Bridge:   BridgeConfig{Network: "unix", Addr: "/tmp/bridge.sock"},
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad platform", func(c *Config) { c.Platform = "windows" }},
		{"missing verification URL", func(c *Config) { c.Verification.BaseURL = "" }},
		{"missing API key", func(c *Config) { c.Verification.APIKey = "" }},
		{"missing publish URL", func(c *Config) { c.Publish.URL = "" }},
		{"missing app package name", func(c *Config) { c.Publish.AppPackageName = "" }},
		{"no regions", func(c *Config) { c.Publish.RegionCodes = nil }},
		{"bad storage type", func(c *Config) { c.Storage.Type = "redis" }},
		{"sqlite without path", func(c *Config) { c.Storage.Type = "sqlite"; c.Storage.SQLitePath = "" }},
		{"non-positive quarantine", func(c *Config) { c.Exposure.QuarantineLengthDays = 0 }},
		{"non-positive calendar", func(c *Config) { c.Exposure.CalendarDayCount = -1 }},
		{"missing bridge addr", func(c *Config) { c.Bridge.Addr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
