package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names recognised by ApplyEnv.
const (
	EnvEndpoint        = "AZURE_OPENAI_ENDPOINT"
	EnvAPIKey          = "AZURE_OPENAI_KEY"
	EnvDeployment      = "AZURE_OPENAI_DEPLOYMENT"
	EnvAPIVersion      = "AZURE_OPENAI_API_VERSION"
	EnvCallMaxRetries  = "AZURE_OPENAI_CALL_MAX_RETRIES"
	EnvCallWaitMS      = "AZURE_OPENAI_CALL_WAIT_INTERVAL_SECS" // historically named, value is milliseconds
	EnvCallTimeoutSecs = "AZURE_OPENAI_CALL_TIMEOUT_SECS"
	EnvMaxTokens       = "AZURE_OPENAI_MAX_NUMBER_OF_TOKENS"
	EnvCharsPerToken   = "NUMBER_OF_CHARS_PER_TOKEN"
	EnvAppType         = "APP_TYPE"
	EnvProcMaxRetries  = "RUN_PROCESS_MAX_RETRIES"
	EnvProcTimeoutSecs = "RUN_PROCESS_TIMEOUT_INTERVAL_SECS"
	EnvMaxAttempts     = "MAX_NUMBER_OF_CODEGEN_RETRIES"
)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set in the environment win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides configuration values from environment variables.
// lookup is usually os.LookupEnv; tests pass a map-backed function.
// Integer settings that fail to parse are reported as errors rather than
// silently falling back to defaults.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		*dst = n
		return nil
	}

	str(EnvEndpoint, &c.Generation.Endpoint)
	str(EnvAPIKey, &c.Generation.APIKey)
	str(EnvDeployment, &c.Generation.Deployment)
	str(EnvAPIVersion, &c.Generation.APIVersion)
	str(EnvAppType, &c.Workspace.AppType)

	var callTimeoutSecs int
	ints := []struct {
		name string
		dst  *int
	}{
		{EnvCallMaxRetries, &c.Generation.MaxRetries},
		{EnvCallWaitMS, &c.Generation.RetryDelayMS},
		{EnvCallTimeoutSecs, &callTimeoutSecs},
		{EnvMaxTokens, &c.Generation.MaxTokens},
		{EnvCharsPerToken, &c.Generation.CharsPerToken},
		{EnvProcMaxRetries, &c.Process.MaxRetries},
		{EnvProcTimeoutSecs, &c.Process.TimeoutSecs},
		{EnvMaxAttempts, &c.Loop.MaxAttempts},
	}
	for _, it := range ints {
		if err := num(it.name, it.dst); err != nil {
			return err
		}
	}
	if callTimeoutSecs > 0 {
		c.Generation.CallTimeout = time.Duration(callTimeoutSecs) * time.Second
	}

	return nil
}
