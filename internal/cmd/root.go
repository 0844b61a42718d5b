package cmd

import (
	"github.com/spf13/cobra"
)

// Version is the version of the fixloop binary, set at build time.
var Version = "dev"

// NewRootCommand creates the root cobra command for fixloop
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixloop",
		Short: "Generate code and tests until they pass",
		Long: `fixloop turns a one-line task description into source code plus unit tests.

It asks a language model for an implementation, asks again for tests,
builds and runs both with the configured toolchain, and feeds compiler
or test failures back to the model until the tests pass or the attempt
budget runs out.`,
		Version:      Version,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewConfigCommand())

	return cmd
}
