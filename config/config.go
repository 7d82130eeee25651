package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the coordinator service's full runtime configuration.
type Config struct {
	// General holds node identity and logging verbosity.
	General struct {
		NodeID      string `yaml:"nodeId"`
		LogLevel    string `yaml:"logLevel"`
		Development bool   `yaml:"development"`
	} `yaml:"general"`

	// Logging tunes the asynchronous structured logger.
	Logging struct {
		Level       string `yaml:"level"`
		ChannelSize int    `yaml:"channelSize"`
		Format      string `yaml:"format"`
		Output      string `yaml:"output"`
	} `yaml:"logging"`

	// Engine carries the send-coordination tuning knobs enumerated in
	// spec.md §6.
	Engine struct {
		MaxRetries        int           `yaml:"maxRetries"`
		BaseDelayMs       int           `yaml:"baseDelayMs"`
		MaxDelayMs        int           `yaml:"maxDelayMs"`
		BreakerThreshold  int           `yaml:"breakerThreshold"`
		BreakerCooldownMs int           `yaml:"breakerCooldownMs"`
		RateMaxRequests   int           `yaml:"rateMaxRequests"`
		RateWindowMs      int           `yaml:"rateWindowMs"`
		DrainIntervalMs   int           `yaml:"drainIntervalMs"`
	} `yaml:"engine"`

	// Providers is the ordered list of configured transports; fallback
	// order follows list order (spec.md §6).
	Providers []ProviderConfig `yaml:"providers"`

	// HTTP configures the admin REST + websocket surface.
	HTTP struct {
		Enabled bool   `yaml:"enabled"`
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`

		CORS struct {
			Enabled        bool     `yaml:"enabled"`
			AllowedOrigins []string `yaml:"allowedOrigins"`
		} `yaml:"cors"`

		JWT struct {
			Secret            string `yaml:"secret"`
			ExpirationMinutes int    `yaml:"expirationMinutes"`
		} `yaml:"jwt"`
	} `yaml:"http"`

	// GRPC configures the optional mock-backed gRPC demo server. It starts
	// whenever Enabled is set, independent of the configured providers.
	GRPC struct {
		Enabled bool   `yaml:"enabled"`
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
	} `yaml:"grpc"`

	// Security guards the admin surface.
	Security struct {
		EnableAuthentication bool   `yaml:"enableAuthentication"`
		AdminUsername        string `yaml:"adminUsername"`
		AdminPasswordHash    string `yaml:"adminPasswordHash"`
	} `yaml:"security"`
}

// ProviderConfig names one configured transport and its kind-specific
// connection details. Kind selects which transport.Transport constructor
// wires it up at startup.
type ProviderConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // "mock" | "grpc"

	FailureRate float64 `yaml:"failureRate"` // mock only
	LatencyMs   int     `yaml:"latencyMs"`   // mock only

	Address string `yaml:"address"` // grpc only
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() *Config {
	c := &Config{}

	c.General.NodeID = "node1"
	c.General.LogLevel = "info"
	c.General.Development = false

	c.Logging.Level = "INFO"
	c.Logging.ChannelSize = 1000
	c.Logging.Format = "json"
	c.Logging.Output = "stdout"

	c.Engine.MaxRetries = 3
	c.Engine.BaseDelayMs = 1000
	c.Engine.MaxDelayMs = 30000
	c.Engine.BreakerThreshold = 5
	c.Engine.BreakerCooldownMs = 60000
	c.Engine.RateMaxRequests = 100
	c.Engine.RateWindowMs = 60000
	c.Engine.DrainIntervalMs = 1000

	c.HTTP.Enabled = true
	c.HTTP.Address = "0.0.0.0"
	c.HTTP.Port = 8080
	c.HTTP.CORS.Enabled = true
	c.HTTP.CORS.AllowedOrigins = []string{"*"}
	c.HTTP.JWT.Secret = "changeme"
	c.HTTP.JWT.ExpirationMinutes = 60

	c.GRPC.Enabled = false
	c.GRPC.Address = "0.0.0.0"
	c.GRPC.Port = 50051

	c.Security.EnableAuthentication = false
	c.Security.AdminUsername = "admin"

	return c
}

// LoadConfig reads and validates a YAML configuration file, overlaying it
// on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig writes cfg as YAML to path, creating parent directories as
// needed.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func validateConfig(cfg *Config) error {
	logLevel := strings.ToLower(cfg.General.LogLevel)
	if logLevel != "debug" && logLevel != "info" && logLevel != "warn" && logLevel != "error" {
		return fmt.Errorf("invalid log level: %s", cfg.General.LogLevel)
	}

	if cfg.Engine.MaxRetries < 0 {
		return fmt.Errorf("engine.maxRetries must be >= 0")
	}
	if cfg.Engine.BreakerThreshold <= 0 {
		return fmt.Errorf("engine.breakerThreshold must be > 0")
	}
	if cfg.Engine.RateMaxRequests <= 0 {
		return fmt.Errorf("engine.rateMaxRequests must be > 0")
	}

	if len(cfg.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	seen := make(map[string]bool, len(cfg.Providers))
	for _, p := range cfg.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider name must not be empty")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name: %s", p.Name)
		}
		seen[p.Name] = true
		if p.Kind != "mock" && p.Kind != "grpc" {
			return fmt.Errorf("provider %s: unknown kind %q", p.Name, p.Kind)
		}
	}

	if cfg.HTTP.Enabled && (cfg.HTTP.Port < 1 || cfg.HTTP.Port > 65535) {
		return fmt.Errorf("invalid HTTP port: %d", cfg.HTTP.Port)
	}
	if cfg.GRPC.Enabled && (cfg.GRPC.Port < 1 || cfg.GRPC.Port > 65535) {
		return fmt.Errorf("invalid gRPC port: %d", cfg.GRPC.Port)
	}

	return nil
}

// EngineConfigDurations resolves the millisecond fields of Engine into
// time.Duration, as consumed by service.EngineConfig.
func (c *Config) EngineConfigDurations() (baseDelay, maxDelay, breakerCooldown, rateWindow, drainInterval time.Duration) {
	baseDelay = time.Duration(c.Engine.BaseDelayMs) * time.Millisecond
	maxDelay = time.Duration(c.Engine.MaxDelayMs) * time.Millisecond
	breakerCooldown = time.Duration(c.Engine.BreakerCooldownMs) * time.Millisecond
	rateWindow = time.Duration(c.Engine.RateWindowMs) * time.Millisecond
	drainInterval = time.Duration(c.Engine.DrainIntervalMs) * time.Millisecond
	return
}
