package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/fixloop/internal/config"
	"github.com/harrison/fixloop/internal/logger"
)

// clearEnv blanks every variable ApplyEnv reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		config.EnvEndpoint, config.EnvAPIKey, config.EnvDeployment, config.EnvAPIVersion,
		config.EnvCallMaxRetries, config.EnvCallWaitMS, config.EnvCallTimeoutSecs,
		config.EnvMaxTokens, config.EnvCharsPerToken, config.EnvAppType,
		config.EnvProcMaxRetries, config.EnvProcTimeoutSecs, config.EnvMaxAttempts,
	} {
		t.Setenv(name, "")
	}
}

// writeConfig writes a config file into a fresh directory and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func parseRunFlags(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	cmd := NewRunCommand()
	require.NoError(t, cmd.ParseFlags(args))
	return loadRunConfig(cmd)
}

func TestLoadRunConfig_Precedence(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvMaxAttempts, "5")
	t.Setenv(config.EnvProcTimeoutSecs, "30")
	cfgPath := writeConfig(t, "loop:\n  max_attempts: 7\nworkspace:\n  dir: from-file\n")
	noEnv := filepath.Join(t.TempDir(), ".env")

	t.Run("env over file", func(t *testing.T) {
		cfg, err := parseRunFlags(t, "--config", cfgPath, "--env-file", noEnv)
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.Loop.MaxAttempts)
		assert.Equal(t, 30, cfg.Process.TimeoutSecs)
		assert.Equal(t, "from-file", cfg.Workspace.Dir)
	})

	t.Run("flags over env", func(t *testing.T) {
		cfg, err := parseRunFlags(t,
			"--config", cfgPath,
			"--env-file", noEnv,
			"--max-attempts", "3",
			"--timeout", "2m",
			"--workspace", "out",
			"--app-type", "web",
			"--log-dir", "logs",
		)
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Loop.MaxAttempts)
		assert.Equal(t, 120, cfg.Process.TimeoutSecs)
		assert.Equal(t, "out", cfg.Workspace.Dir)
		assert.Equal(t, "web", cfg.Workspace.AppType)
		assert.Equal(t, "logs", cfg.LogDir)
	})
}

func TestLoadRunConfig_DotEnv(t *testing.T) {
	clearEnv(t)
	const name = "FIXLOOP_TEST_DOTENV_MARKER"
	os.Unsetenv(name)
	t.Cleanup(func() { os.Unsetenv(name) })

	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte(name+"=loaded\n"), 0644))

	_, err := parseRunFlags(t, "--config", writeConfig(t, ""), "--env-file", envPath)
	require.NoError(t, err)
	assert.Equal(t, "loaded", os.Getenv(name))
}

func TestLoadRunConfig_Errors(t *testing.T) {
	clearEnv(t)
	cfgPath := writeConfig(t, "")
	noEnv := filepath.Join(t.TempDir(), ".env")

	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		wantErr string
	}{
		{"bad timeout", []string{"--timeout", "soon"}, nil, "invalid timeout format"},
		{"sub-second timeout", []string{"--timeout", "400ms"}, nil, "--timeout must be at least 1s"},
		{"negative timeout", []string{"--timeout=-5s"}, nil, "--timeout must be at least 1s"},
		{"bad app type", []string{"--app-type", "mobile"}, nil, "invalid configuration"},
		{"zero attempts", []string{"--max-attempts", "0"}, nil, "loop.max_attempts"},
		{"bad env integer", nil, map[string]string{config.EnvMaxAttempts: "many"}, "invalid environment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			args := append([]string{"--config", cfgPath, "--env-file", noEnv}, tt.args...)
			_, err := parseRunFlags(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRunConfig_MalformedFile(t *testing.T) {
	clearEnv(t)
	_, err := parseRunFlags(t, "--config", writeConfig(t, "loop: [unclosed"), "--env-file", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestLoadRunConfig_Verbose(t *testing.T) {
	clearEnv(t)
	cfg, err := parseRunFlags(t, "--config", writeConfig(t, ""), "--env-file", "", "--verbose")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestBuildSession(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Generation.Endpoint = "https://example.openai.azure.com"
	cfg.Generation.APIKey = "key"
	cfg.Generation.Deployment = "gpt-4o"
	cfg.Workspace.Dir = filepath.Join(dir, "generated")
	cfg.History.DBPath = filepath.Join(dir, "history.db")

	log := logger.NewMultiLogger(logger.NewNoOpLogger())

	t.Run("wires everything", func(t *testing.T) {
		sess, closeStore, err := buildSession(cfg, log)
		require.NoError(t, err)
		require.NotNil(t, sess)
		closeStore()
		assert.FileExists(t, cfg.History.DBPath)
	})

	t.Run("history disabled", func(t *testing.T) {
		c := *cfg
		c.History.Enabled = false
		c.History.DBPath = filepath.Join(dir, "unused.db")
		sess, closeStore, err := buildSession(&c, log)
		require.NoError(t, err)
		require.NotNil(t, sess)
		closeStore()
		assert.NoFileExists(t, c.History.DBPath)
	})

	t.Run("missing credentials", func(t *testing.T) {
		c := *cfg
		c.Generation.APIKey = ""
		_, closeStore, err := buildSession(&c, log)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "generation backend")
		closeStore()
	})
}

func TestRunCommand_MissingCredentials(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfgPath := writeConfig(t, "history:\n  enabled: false\n")

	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"run",
		"--config", cfgPath,
		"--env-file", "",
		"--log-dir", filepath.Join(dir, "logs"),
		"--workspace", filepath.Join(dir, "generated"),
		"Reverse a string",
	})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
}
