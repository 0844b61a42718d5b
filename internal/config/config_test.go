package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig verifies default configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0, cfg.Generation.MaxRetries)
	assert.Equal(t, 1000, cfg.Generation.RetryDelayMS)
	assert.Equal(t, 100000, cfg.Generation.MaxTokens)
	assert.Equal(t, 4, cfg.Generation.CharsPerToken)
	assert.Equal(t, 1, cfg.Process.MaxRetries)
	assert.Equal(t, 60, cfg.Process.TimeoutSecs)
	assert.Equal(t, 10, cfg.Loop.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Loop.FixDelay)
	assert.False(t, cfg.Loop.PinTestsOnBuildFailure)
	assert.Equal(t, "console", cfg.Workspace.AppType)
	assert.NoError(t, cfg.Validate())
}

func TestTokenSplit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Generation.MaxTokens = 90000

	assert.Equal(t, 30000, cfg.MaxCompletionTokens())
	assert.Equal(t, 60000, cfg.MaxPromptTokens())
}

// TestLoadConfigValidFile tests loading a valid YAML config file
func TestLoadConfigValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `log_level: debug
generation:
  max_retries: 3
  retry_delay_ms: 250
  call_timeout: 30s
process:
  max_retries: 2
  timeout_secs: 5
  retry_delay: 0s
loop:
  max_attempts: 4
  pin_tests_on_build_failure: true
toolchain:
  build_command: go build ./...
  test_command: go test ./...
workspace:
  app_type: web
history:
  enabled: false
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Generation.MaxRetries)
	assert.Equal(t, 250, cfg.Generation.RetryDelayMS)
	assert.Equal(t, 30*time.Second, cfg.Generation.CallTimeout)
	assert.Equal(t, 2, cfg.Process.MaxRetries)
	assert.Equal(t, 5, cfg.Process.TimeoutSecs)
	assert.Equal(t, time.Duration(0), cfg.Process.RetryDelay)
	assert.Equal(t, 4, cfg.Loop.MaxAttempts)
	assert.True(t, cfg.Loop.PinTestsOnBuildFailure)
	assert.Equal(t, "go build ./...", cfg.Toolchain.BuildCommand)
	assert.Equal(t, "web", cfg.Workspace.AppType)
	assert.False(t, cfg.History.Enabled)

	// Untouched sections keep defaults
	assert.Equal(t, 100000, cfg.Generation.MaxTokens)
	assert.Equal(t, 200*time.Millisecond, cfg.Loop.FixDelay)
	assert.Equal(t, "Solution.cs", cfg.Workspace.CodeFile)
}

// TestLoadConfigFileNotExists tests fallback to defaults when file doesn't exist
func TestLoadConfigFileNotExists(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("loop: [unclosed"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".fixloop"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".fixloop", "config.yaml"), []byte("loop:\n  max_attempts: 7\n"), 0644))

	cfg, err := LoadConfigFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Loop.MaxAttempts)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvEndpoint:        "https://example.openai.azure.com/",
		EnvAPIKey:          "secret",
		EnvDeployment:      "gpt-4o",
		EnvCallMaxRetries:  "2",
		EnvCallWaitMS:      "50",
		EnvCallTimeoutSecs: "15",
		EnvMaxTokens:       "30000",
		EnvProcMaxRetries:  "3",
		EnvProcTimeoutSecs: "90",
		EnvMaxAttempts:     "5",
		EnvAppType:         "winforms",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(lookup))

	assert.Equal(t, "https://example.openai.azure.com/", cfg.Generation.Endpoint)
	assert.Equal(t, "secret", cfg.Generation.APIKey)
	assert.Equal(t, "gpt-4o", cfg.Generation.Deployment)
	assert.Equal(t, 2, cfg.Generation.MaxRetries)
	assert.Equal(t, 50, cfg.Generation.RetryDelayMS)
	assert.Equal(t, 15*time.Second, cfg.Generation.CallTimeout)
	assert.Equal(t, 30000, cfg.Generation.MaxTokens)
	assert.Equal(t, 3, cfg.Process.MaxRetries)
	assert.Equal(t, 90, cfg.Process.TimeoutSecs)
	assert.Equal(t, 5, cfg.Loop.MaxAttempts)
	assert.Equal(t, "winforms", cfg.Workspace.AppType)
}

func TestApplyEnvInvalidInteger(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == EnvMaxAttempts {
			return "ten", true
		}
		return "", false
	}

	cfg := DefaultConfig()
	err := cfg.ApplyEnv(lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvMaxAttempts)
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()
	attempts := 3
	timeout := 90 * time.Second
	dir := "out"

	cfg.MergeWithFlags(&attempts, &timeout, nil, &dir, nil)

	assert.Equal(t, 3, cfg.Loop.MaxAttempts)
	assert.Equal(t, 90, cfg.Process.TimeoutSecs)
	assert.Equal(t, "out", cfg.Workspace.Dir)
	assert.Equal(t, ".fixloop/logs", cfg.LogDir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"negative generation retries", func(c *Config) { c.Generation.MaxRetries = -1 }, "generation.max_retries"},
		{"zero chars per token", func(c *Config) { c.Generation.CharsPerToken = 0 }, "chars_per_token"},
		{"unknown provider", func(c *Config) { c.Generation.Provider = "bedrock" }, "generation.provider"},
		{"zero process retries", func(c *Config) { c.Process.MaxRetries = 0 }, "process.max_retries"},
		{"zero process timeout", func(c *Config) { c.Process.TimeoutSecs = 0 }, "process.timeout_secs"},
		{"zero attempts", func(c *Config) { c.Loop.MaxAttempts = 0 }, "loop.max_attempts"},
		{"empty build command", func(c *Config) { c.Toolchain.BuildCommand = "" }, "build_command"},
		{"unknown app type", func(c *Config) { c.Workspace.AppType = "mobile" }, "app_type"},
		{"history without path", func(c *Config) { c.History.DBPath = "" }, "history.db_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Generation.APIKey = "secret"

	red := cfg.Redacted()
	assert.Equal(t, "********", red.Generation.APIKey)
	assert.Equal(t, "secret", cfg.Generation.APIKey)
}
