package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	AppFilePath   string
	Platform      string
	Verification  VerificationConfig
	Publish       PublishConfig
	Exposure      ExposureConfig
	Storage       StorageConfig
	Bridge        BridgeConfig
	Observability ObservabilityConfig
}

// VerificationConfig configures the verification server connection
type VerificationConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// PublishConfig configures diagnosis key submission
type PublishConfig struct {
	URL            string
	AppPackageName string
	RegionCodes    []string
	Timeout        time.Duration
}

// ExposureConfig configures exposure-history derivation
type ExposureConfig struct {
	QuarantineLengthDays int
	CalendarDayCount     int
}

// StorageConfig configures the local key-value store
type StorageConfig struct {
	Type       string
	SQLitePath string
}

// BridgeConfig configures the connection to the platform layer
type BridgeConfig struct {
	Network string
	Addr    string
}

// ObservabilityConfig configures logging and metrics
type ObservabilityConfig struct {
	LogLevel        string
	MetricsPort     int
	HealthCheckPort int
}

// appFile carries deployment data that ships with the app rather than the
// environment: region codes, endpoint overrides, quarantine policy.
type appFile struct {
	Regions              []string `yaml:"regions"`
	VerificationBaseURL  string   `yaml:"verificationBaseUrl"`
	PublishURL           string   `yaml:"publishUrl"`
	AppPackageName       string   `yaml:"appPackageName"`
	QuarantineLengthDays int      `yaml:"quarantineLengthDays"`
	CalendarDayCount     int      `yaml:"calendarDayCount"`
}

// Load loads configuration from environment variables and the app file.
// Environment variables win over app-file values.
func Load() (*Config, error) {
	appFilePath := getEnv("ENCLIENT_CONFIG", "enclient.yml")

	var app appFile
	if data, err := os.ReadFile(appFilePath); err == nil {
		if err := yaml.Unmarshal(data, &app); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", appFilePath, err)
		}
	}

	regions := app.Regions
	if env := getEnv("REGION_CODES", ""); env != "" {
		regions = splitCommaList(env)
	}
	if len(regions) == 0 {
		regions = []string{"US"}
	}

	quarantineLength := app.QuarantineLengthDays
	if quarantineLength == 0 {
		quarantineLength = 14
	}
	calendarDayCount := app.CalendarDayCount
	if calendarDayCount == 0 {
		calendarDayCount = 21
	}

	cfg := &Config{
		AppFilePath: appFilePath,
		Platform:    getEnv("PLATFORM", "ios"),
		Verification: VerificationConfig{
			BaseURL: getEnv("VERIFICATION_BASE_URL", app.VerificationBaseURL),
			APIKey:  getEnv("VERIFICATION_API_KEY", ""),
			Timeout: getEnvDuration("VERIFICATION_TIMEOUT", 5*time.Second),
		},
		Publish: PublishConfig{
			URL:            getEnv("PUBLISH_URL", app.PublishURL),
			AppPackageName: getEnv("APP_PACKAGE_NAME", app.AppPackageName),
			RegionCodes:    regions,
			Timeout:        getEnvDuration("PUBLISH_TIMEOUT", 30*time.Second),
		},
		Exposure: ExposureConfig{
			QuarantineLengthDays: getEnvInt("QUARANTINE_LENGTH_DAYS", quarantineLength),
			CalendarDayCount:     getEnvInt("CALENDAR_DAY_COUNT", calendarDayCount),
		},
		Storage: StorageConfig{
			Type:       getEnv("STORAGE_TYPE", "sqlite"),
			SQLitePath: getEnv("SQLITE_PATH", "enclient.db"),
		},
		Bridge: BridgeConfig{
			Network: getEnv("BRIDGE_NETWORK", "unix"),
			Addr:    getEnv("BRIDGE_ADDR", "/var/run/enclient/bridge.sock"),
		},
		Observability: ObservabilityConfig{
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			MetricsPort:     getEnvInt("METRICS_PORT", 9090),
			HealthCheckPort: getEnvInt("HEALTH_CHECK_PORT", 8081),
		},
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Platform != "ios" && c.Platform != "android" {
		return fmt.Errorf("invalid platform: %s (must be ios or android)", c.Platform)
	}

	if c.Verification.BaseURL == "" {
		return fmt.Errorf("verification base URL is required")
	}

	if c.Verification.APIKey == "" {
		return fmt.Errorf("verification API key is required")
	}

	if c.Publish.URL == "" {
		return fmt.Errorf("publish URL is required")
	}

	if c.Publish.AppPackageName == "" {
		return fmt.Errorf("app package name is required")
	}

	if len(c.Publish.RegionCodes) == 0 {
		return fmt.Errorf("at least one region code is required")
	}

	if c.Storage.Type != "sqlite" && c.Storage.Type != "memory" {
		return fmt.Errorf("invalid storage type: %s (must be sqlite or memory)", c.Storage.Type)
	}

	if c.Storage.Type == "sqlite" && c.Storage.SQLitePath == "" {
		return fmt.Errorf("sqlite path is required when using sqlite storage")
	}

	if c.Exposure.QuarantineLengthDays <= 0 {
		return fmt.Errorf("quarantine length must be positive")
	}

	if c.Exposure.CalendarDayCount <= 0 {
		return fmt.Errorf("calendar day count must be positive")
	}

	if c.Bridge.Addr == "" {
		return fmt.Errorf("bridge address is required")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitCommaList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
