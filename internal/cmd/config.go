package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harrison/fixloop/internal/config"
)

// NewConfigCommand creates the 'fixloop config' parent command
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect fixloop configuration",
	}

	cmd.AddCommand(newConfigShowCommand())
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration fixloop would run with after merging
.fixloop/config.yaml, the .env file and the process environment.
The API key is masked.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .fixloop/config.yaml)")
	cmd.Flags().String("env-file", ".env", "Path to a .env file with credentials")
	return cmd
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFlag(cmd)
	if err != nil {
		return err
	}

	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}

	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	}
	return nil
}
