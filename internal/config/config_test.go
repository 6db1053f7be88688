package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Point at a path that does not exist so only defaults apply.
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, "contracts/mqtt", cfg.ContractsDir)
	assert.Equal(t, "plugins", cfg.PluginsDir)
	assert.Equal(t, "127.0.0.1", cfg.BrokerHost)
	assert.Equal(t, 1883, cfg.BrokerPort)
	assert.Equal(t, "symbion", cfg.TopicRoot)
	assert.Equal(t, 10*time.Second, cfg.CollectWindow())
	assert.Equal(t, 3*time.Second, cfg.StartupGrace())
	assert.Equal(t, 5*time.Second, cfg.TeardownGrace())
	assert.Equal(t, "test-key", cfg.APIKey)
	assert.False(t, cfg.Strict)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harness.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"broker_host": "10.0.0.5",
		"collect_seconds": 30,
		"coordinator_command": ["cargo", "run"],
		"coordinator_dir": "symbion-kernel",
		"strict": true
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", cfg.BrokerHost)
	assert.Equal(t, 30*time.Second, cfg.CollectWindow())
	assert.Equal(t, []string{"cargo", "run"}, cfg.CoordinatorCommand)
	assert.Equal(t, "symbion-kernel", cfg.CoordinatorDir)
	assert.True(t, cfg.Strict)
	// Untouched fields keep their defaults.
	assert.Equal(t, 1883, cfg.BrokerPort)
}

func TestLoad_InvalidFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harness.json")
	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv("SYMBION_BROKER_HOST", "broker.lan")
	t.Setenv("SYMBION_BROKER_PORT", "8883")
	t.Setenv("SYMBION_API_KEY", "secret")
	t.Setenv("SYMBION_COLLECT_SECONDS", "25")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, "broker.lan", cfg.BrokerHost)
	assert.Equal(t, 8883, cfg.BrokerPort)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, 25*time.Second, cfg.CollectWindow())
}

func TestLoad_UnparseableEnvValueIsIgnored(t *testing.T) {
	t.Setenv("SYMBION_BROKER_PORT", "not-a-port")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, 1883, cfg.BrokerPort)
}
