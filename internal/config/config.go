package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// GenerationConfig configures the text-generation backend and its call-level retries.
type GenerationConfig struct {
	// Endpoint is the base URL of the Azure OpenAI resource (or an OpenAI-compatible server)
	Endpoint string `yaml:"endpoint"`

	// APIKey authenticates against the endpoint
	APIKey string `yaml:"api_key"`

	// Deployment is the Azure deployment (or model) name
	Deployment string `yaml:"deployment"`

	// APIVersion is the Azure OpenAI API version
	APIVersion string `yaml:"api_version"`

	// Provider selects the wire flavour: "azure" or "openai"
	Provider string `yaml:"provider"`

	// MaxRetries is the number of extra attempts after a transport failure (0 = try once)
	MaxRetries int `yaml:"max_retries"`

	// RetryDelayMS is the wait between attempts, in milliseconds
	RetryDelayMS int `yaml:"retry_delay_ms"`

	// CallTimeout bounds a single round-trip to the backend
	CallTimeout time.Duration `yaml:"call_timeout"`

	// MaxTokens is the total token budget, split 1/3 completion and 2/3 prompt
	MaxTokens int `yaml:"max_tokens"`

	// CharsPerToken approximates characters per token when sizing prompts
	CharsPerToken int `yaml:"chars_per_token"`
}

// ProcessConfig configures the external process supervisor.
type ProcessConfig struct {
	// MaxRetries is the maximum number of launches per command when it times out
	MaxRetries int `yaml:"max_retries"`

	// TimeoutSecs is the hard per-launch timeout
	TimeoutSecs int `yaml:"timeout_secs"`

	// RetryDelay is the pause between timed-out launches
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// LoopConfig configures the outer attempt loop.
type LoopConfig struct {
	// MaxAttempts is the number of generate/build/test rounds per task
	MaxAttempts int `yaml:"max_attempts"`

	// FixDelay is the pause after a fix round before the next attempt
	FixDelay time.Duration `yaml:"fix_delay"`

	// PinTestsOnBuildFailure reuses the test artifact when the previous attempt failed to build
	PinTestsOnBuildFailure bool `yaml:"pin_tests_on_build_failure"`
}

// ToolchainConfig names the commands and targets used against the workspace.
type ToolchainConfig struct {
	// Language is the target language passed to prompt templates
	Language string `yaml:"language"`

	// TestFramework is the test framework passed to prompt templates
	TestFramework string `yaml:"test_framework"`

	// BuildCommand builds the code project (run in the code project dir)
	BuildCommand string `yaml:"build_command"`

	// TestCommand runs the test project (run in the test project dir)
	TestCommand string `yaml:"test_command"`
}

// WorkspaceConfig describes the generated project layout.
type WorkspaceConfig struct {
	// Dir is the root of the generated workspace
	Dir string `yaml:"dir"`

	// AppType selects the scaffold: console, web, or winforms
	AppType string `yaml:"app_type"`

	// CodeProject is the code project directory name under Dir
	CodeProject string `yaml:"code_project"`

	// TestProject is the test project directory name under Dir
	TestProject string `yaml:"test_project"`

	// CodeFile is the code artifact file name inside CodeProject
	CodeFile string `yaml:"code_file"`

	// TestFile is the test artifact file name inside TestProject
	TestFile string `yaml:"test_file"`

	// SkipScaffold disables project scaffolding (useful when the layout already exists)
	SkipScaffold bool `yaml:"skip_scaffold"`
}

// HistoryConfig configures the task run ledger.
type HistoryConfig struct {
	// Enabled turns history recording on
	Enabled bool `yaml:"enabled"`

	// DBPath is the SQLite database path
	DBPath string `yaml:"db_path"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	// Enabled turns OTLP tracing on
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP/HTTP collector endpoint
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector
	Insecure bool `yaml:"insecure"`
}

// Config represents fixloop configuration options
type Config struct {
	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where logs will be written
	LogDir string `yaml:"log_dir"`

	Generation GenerationConfig `yaml:"generation"`
	Process    ProcessConfig    `yaml:"process"`
	Loop       LoopConfig       `yaml:"loop"`
	Toolchain  ToolchainConfig  `yaml:"toolchain"`
	Workspace  WorkspaceConfig  `yaml:"workspace"`
	History    HistoryConfig    `yaml:"history"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		LogDir:   ".fixloop/logs",
		Generation: GenerationConfig{
			APIVersion:    "2024-12-01-preview",
			Provider:      "azure",
			MaxRetries:    0,
			RetryDelayMS:  1000,
			CallTimeout:   2 * time.Minute,
			MaxTokens:     100000,
			CharsPerToken: 4,
		},
		Process: ProcessConfig{
			MaxRetries:  1,
			TimeoutSecs: 60,
			RetryDelay:  time.Second,
		},
		Loop: LoopConfig{
			MaxAttempts: 10,
			FixDelay:    200 * time.Millisecond,
		},
		Toolchain: ToolchainConfig{
			Language:      "C#",
			TestFramework: "NUnit",
			BuildCommand:  "dotnet build",
			TestCommand:   "dotnet test",
		},
		Workspace: WorkspaceConfig{
			Dir:         "generated",
			AppType:     "console",
			CodeProject: "CSProject",
			TestProject: "TestProject",
			CodeFile:    "Solution.cs",
			TestFile:    "Tests.cs",
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  ".fixloop/history.db",
		},
		Telemetry: TelemetryConfig{
			Endpoint: "http://127.0.0.1:4318",
		},
	}
}

// MaxCompletionTokens is the share of MaxTokens reserved for the response.
func (c *Config) MaxCompletionTokens() int {
	return c.Generation.MaxTokens / 3
}

// MaxPromptTokens is the share of MaxTokens available to the prompt.
func (c *Config) MaxPromptTokens() int {
	return (c.Generation.MaxTokens * 2) / 3
}

// ProcessTimeout returns the per-launch process timeout.
func (c *Config) ProcessTimeout() time.Duration {
	return time.Duration(c.Process.TimeoutSecs) * time.Second
}

// GenerationRetryDelay returns the wait between generation attempts.
func (c *Config) GenerationRetryDelay() time.Duration {
	return time.Duration(c.Generation.RetryDelayMS) * time.Millisecond
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Booleans cannot be told apart from "unset" on the typed struct,
	// so presence is checked on the raw document.
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	merge(cfg, &fileCfg, rawMap)
	return cfg, nil
}

// LoadConfigFromDir loads configuration from .fixloop/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ".fixloop", "config.yaml")
	return LoadConfig(configPath)
}

// merge applies non-zero values from file over the defaults in cfg.
func merge(cfg *Config, file *Config, raw map[string]interface{}) {
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.LogDir != "" {
		cfg.LogDir = file.LogDir
	}

	g := file.Generation
	if g.Endpoint != "" {
		cfg.Generation.Endpoint = g.Endpoint
	}
	if g.APIKey != "" {
		cfg.Generation.APIKey = g.APIKey
	}
	if g.Deployment != "" {
		cfg.Generation.Deployment = g.Deployment
	}
	if g.APIVersion != "" {
		cfg.Generation.APIVersion = g.APIVersion
	}
	if g.Provider != "" {
		cfg.Generation.Provider = g.Provider
	}
	if sectionHas(raw, "generation", "max_retries") {
		cfg.Generation.MaxRetries = g.MaxRetries
	}
	if g.RetryDelayMS != 0 {
		cfg.Generation.RetryDelayMS = g.RetryDelayMS
	}
	if g.CallTimeout != 0 {
		cfg.Generation.CallTimeout = g.CallTimeout
	}
	if g.MaxTokens != 0 {
		cfg.Generation.MaxTokens = g.MaxTokens
	}
	if g.CharsPerToken != 0 {
		cfg.Generation.CharsPerToken = g.CharsPerToken
	}

	p := file.Process
	if p.MaxRetries != 0 {
		cfg.Process.MaxRetries = p.MaxRetries
	}
	if p.TimeoutSecs != 0 {
		cfg.Process.TimeoutSecs = p.TimeoutSecs
	}
	if sectionHas(raw, "process", "retry_delay") {
		cfg.Process.RetryDelay = p.RetryDelay
	}

	l := file.Loop
	if l.MaxAttempts != 0 {
		cfg.Loop.MaxAttempts = l.MaxAttempts
	}
	if sectionHas(raw, "loop", "fix_delay") {
		cfg.Loop.FixDelay = l.FixDelay
	}
	if sectionHas(raw, "loop", "pin_tests_on_build_failure") {
		cfg.Loop.PinTestsOnBuildFailure = l.PinTestsOnBuildFailure
	}

	t := file.Toolchain
	if t.Language != "" {
		cfg.Toolchain.Language = t.Language
	}
	if t.TestFramework != "" {
		cfg.Toolchain.TestFramework = t.TestFramework
	}
	if t.BuildCommand != "" {
		cfg.Toolchain.BuildCommand = t.BuildCommand
	}
	if t.TestCommand != "" {
		cfg.Toolchain.TestCommand = t.TestCommand
	}

	w := file.Workspace
	if w.Dir != "" {
		cfg.Workspace.Dir = w.Dir
	}
	if w.AppType != "" {
		cfg.Workspace.AppType = w.AppType
	}
	if w.CodeProject != "" {
		cfg.Workspace.CodeProject = w.CodeProject
	}
	if w.TestProject != "" {
		cfg.Workspace.TestProject = w.TestProject
	}
	if w.CodeFile != "" {
		cfg.Workspace.CodeFile = w.CodeFile
	}
	if w.TestFile != "" {
		cfg.Workspace.TestFile = w.TestFile
	}
	if sectionHas(raw, "workspace", "skip_scaffold") {
		cfg.Workspace.SkipScaffold = w.SkipScaffold
	}

	if sectionHas(raw, "history", "enabled") {
		cfg.History.Enabled = file.History.Enabled
	}
	if file.History.DBPath != "" {
		cfg.History.DBPath = file.History.DBPath
	}

	if sectionHas(raw, "telemetry", "enabled") {
		cfg.Telemetry.Enabled = file.Telemetry.Enabled
	}
	if file.Telemetry.Endpoint != "" {
		cfg.Telemetry.Endpoint = file.Telemetry.Endpoint
	}
	if sectionHas(raw, "telemetry", "insecure") {
		cfg.Telemetry.Insecure = file.Telemetry.Insecure
	}
}

// sectionHas reports whether key is explicitly present under section in the raw YAML.
func sectionHas(raw map[string]interface{}, section, key string) bool {
	s, ok := raw[section].(map[string]interface{})
	if !ok {
		return false
	}
	_, exists := s[key]
	return exists
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(maxAttempts *int, processTimeout *time.Duration, logDir *string, workspaceDir *string, appType *string) {
	if maxAttempts != nil {
		c.Loop.MaxAttempts = *maxAttempts
	}
	if processTimeout != nil {
		c.Process.TimeoutSecs = int(processTimeout.Round(time.Second) / time.Second)
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
	if workspaceDir != nil {
		c.Workspace.Dir = *workspaceDir
	}
	if appType != nil {
		c.Workspace.AppType = *appType
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.Generation.MaxRetries < 0 {
		return fmt.Errorf("generation.max_retries must be >= 0, got %d", c.Generation.MaxRetries)
	}
	if c.Generation.RetryDelayMS < 0 {
		return fmt.Errorf("generation.retry_delay_ms must be >= 0, got %d", c.Generation.RetryDelayMS)
	}
	if c.Generation.CallTimeout < 0 {
		return fmt.Errorf("generation.call_timeout must be >= 0, got %v", c.Generation.CallTimeout)
	}
	if c.Generation.MaxTokens < 3 {
		return fmt.Errorf("generation.max_tokens must be >= 3, got %d", c.Generation.MaxTokens)
	}
	if c.Generation.CharsPerToken <= 0 {
		return fmt.Errorf("generation.chars_per_token must be > 0, got %d", c.Generation.CharsPerToken)
	}
	switch c.Generation.Provider {
	case "azure", "openai":
	default:
		return fmt.Errorf("invalid generation.provider %q, must be one of: azure, openai", c.Generation.Provider)
	}

	if c.Process.MaxRetries <= 0 {
		return fmt.Errorf("process.max_retries must be > 0, got %d", c.Process.MaxRetries)
	}
	if c.Process.TimeoutSecs <= 0 {
		return fmt.Errorf("process.timeout_secs must be > 0, got %d", c.Process.TimeoutSecs)
	}
	if c.Process.RetryDelay < 0 {
		return fmt.Errorf("process.retry_delay must be >= 0, got %v", c.Process.RetryDelay)
	}

	if c.Loop.MaxAttempts <= 0 {
		return fmt.Errorf("loop.max_attempts must be > 0, got %d", c.Loop.MaxAttempts)
	}
	if c.Loop.FixDelay < 0 {
		return fmt.Errorf("loop.fix_delay must be >= 0, got %v", c.Loop.FixDelay)
	}

	if c.Toolchain.BuildCommand == "" {
		return fmt.Errorf("toolchain.build_command cannot be empty")
	}
	if c.Toolchain.TestCommand == "" {
		return fmt.Errorf("toolchain.test_command cannot be empty")
	}

	switch c.Workspace.AppType {
	case "console", "web", "winforms":
	default:
		return fmt.Errorf("invalid workspace.app_type %q, must be one of: console, web, winforms", c.Workspace.AppType)
	}
	if c.Workspace.Dir == "" {
		return fmt.Errorf("workspace.dir cannot be empty")
	}
	if c.Workspace.CodeFile == "" || c.Workspace.TestFile == "" {
		return fmt.Errorf("workspace.code_file and workspace.test_file cannot be empty")
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path cannot be empty when history is enabled")
	}

	return nil
}

// Redacted returns a copy safe to print, with the API key masked.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.Generation.APIKey != "" {
		cp.Generation.APIKey = "********"
	}
	return &cp
}
