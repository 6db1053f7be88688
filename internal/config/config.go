// Package config holds the harness run configuration. Values merge in
// priority order: built-in defaults, then an optional JSON config file,
// then SYMBION_* environment variables, then command-line flags.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"
)

// Config is the full configuration for one harness run.
type Config struct {
	ContractsDir string `json:"contracts_dir"`
	PluginsDir   string `json:"plugins_dir"`
	BrokerHost   string `json:"broker_host"`
	BrokerPort   int    `json:"broker_port"`
	TopicRoot    string `json:"topic_root"`

	// CollectSeconds is how long the harness listens before validating.
	CollectSeconds int `json:"collect_seconds"`
	// StartupGraceSeconds is the fixed wait after launching the coordinator.
	StartupGraceSeconds int `json:"startup_grace_seconds"`
	// TeardownGraceSeconds is the per-process wait between terminate and kill.
	TeardownGraceSeconds int `json:"teardown_grace_seconds"`
	// ConnectTimeoutSeconds bounds the broker handshake and subscriptions.
	ConnectTimeoutSeconds int `json:"connect_timeout_seconds"`

	// APIKey is injected into the coordinator environment as SYMBION_API_KEY.
	APIKey string `json:"api_key"`
	// CoordinatorCommand launches the coordinator, in CoordinatorDir.
	CoordinatorCommand []string `json:"coordinator_command"`
	CoordinatorDir     string   `json:"coordinator_dir"`
	// BuildCommand, when set, builds a plugin whose binary is missing.
	BuildCommand []string `json:"build_command"`

	// Strict flips the exit code when the run surfaces compliance gaps.
	Strict   bool   `json:"strict"`
	LogLevel string `json:"log_level"`
}

// Load builds the configuration from defaults, the config file at
// configPath (or SYMBION_CONFIG_PATH, or ./harness-config.json; a missing
// file is not an error), and the environment.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		ContractsDir:          "contracts/mqtt",
		PluginsDir:            "plugins",
		BrokerHost:            "127.0.0.1",
		BrokerPort:            1883,
		TopicRoot:             "symbion",
		CollectSeconds:        10,
		StartupGraceSeconds:   3,
		TeardownGraceSeconds:  5,
		ConnectTimeoutSeconds: 10,
		APIKey:                "test-key",
		LogLevel:              "info",
	}

	if configPath == "" {
		configPath = os.Getenv("SYMBION_CONFIG_PATH")
		if configPath == "" {
			configPath = "harness-config.json"
		}
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays SYMBION_* environment variables. Unset or unparseable
// values leave the existing value untouched.
func (c *Config) applyEnv() {
	overlayString(&c.ContractsDir, "SYMBION_CONTRACTS_DIR")
	overlayString(&c.PluginsDir, "SYMBION_PLUGINS_DIR")
	overlayString(&c.BrokerHost, "SYMBION_BROKER_HOST")
	overlayInt(&c.BrokerPort, "SYMBION_BROKER_PORT")
	overlayString(&c.TopicRoot, "SYMBION_TOPIC_ROOT")
	overlayString(&c.APIKey, "SYMBION_API_KEY")
	overlayString(&c.LogLevel, "SYMBION_LOG_LEVEL")
	overlayInt(&c.CollectSeconds, "SYMBION_COLLECT_SECONDS")
}

// CollectWindow returns the collection window as a duration.
func (c *Config) CollectWindow() time.Duration {
	return time.Duration(c.CollectSeconds) * time.Second
}

// StartupGrace returns the coordinator startup grace as a duration.
func (c *Config) StartupGrace() time.Duration {
	return time.Duration(c.StartupGraceSeconds) * time.Second
}

// TeardownGrace returns the teardown grace as a duration.
func (c *Config) TeardownGrace() time.Duration {
	return time.Duration(c.TeardownGraceSeconds) * time.Second
}

// ConnectTimeout returns the broker connect timeout as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

func overlayString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overlayInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
