package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/fixloop/internal/config"
	"github.com/harrison/fixloop/internal/history"
	"github.com/harrison/fixloop/internal/models"
)

// NewHistoryCommand creates the 'fixloop history' command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded task runs",
		Long: `Display the task run ledger, newest first:
  - Task description and ID
  - End state (SUCCEEDED, EXHAUSTED, ABORTED)
  - Attempts used and generation calls
  - Duration and error message

Use --attempts to include the per-attempt outcomes.`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .fixloop/config.yaml)")
	cmd.Flags().Int("limit", 20, "Maximum number of runs to show")
	cmd.Flags().Bool("attempts", false, "Show per-attempt outcomes for each run")

	cmd.AddCommand(newHistoryStatsCommand())

	return cmd
}

func newHistoryStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show end state counts across all recorded runs",
		Args:  cobra.NoArgs,
		RunE:  runHistoryStats,
	}
}

// loadConfigFlag loads the config named by --config, or the default one.
func loadConfigFlag(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadConfigFromDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openHistory opens the history database. It returns a nil store when the
// database has not been created yet.
func openHistory(cmd *cobra.Command) (*history.Store, error) {
	cfg, err := loadConfigFlag(cmd)
	if err != nil {
		return nil, err
	}

	output := cmd.OutOrStdout()
	if _, err := os.Stat(cfg.History.DBPath); os.IsNotExist(err) {
		fmt.Fprintf(output, "No task runs recorded yet.\n")
		fmt.Fprintf(output, "Database path: %s\n", cfg.History.DBPath)
		return nil, nil
	}

	store, err := history.NewStore(cfg.History.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return store, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("--limit must be > 0, got %d", limit)
	}
	withAttempts, _ := cmd.Flags().GetBool("attempts")

	store, err := openHistory(cmd)
	if err != nil || store == nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	runs, err := store.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	output := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintf(output, "No task runs recorded yet.\n")
		return nil
	}

	attempts := make(map[int64][]history.AttemptRow)
	if withAttempts {
		for _, run := range runs {
			rows, err := store.Attempts(ctx, run.ID)
			if err != nil {
				return fmt.Errorf("load attempts for run %d: %w", run.ID, err)
			}
			attempts[run.ID] = rows
		}
	}

	printRuns(output, runs, attempts)
	return nil
}

func runHistoryStats(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil || store == nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("get statistics: %w", err)
	}

	printHistoryStats(cmd.OutOrStdout(), stats)
	return nil
}

func stateColor(state models.EndState) *color.Color {
	switch state {
	case models.StateSucceeded:
		return color.New(color.FgGreen)
	case models.StateExhausted:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

// printRuns renders runs as an aligned table, optionally followed by each run's attempts.
func printRuns(w io.Writer, runs []history.TaskRun, attempts map[int64][]history.AttemptRow) {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(w, "\n=== Task Runs (%d) ===\n\n", len(runs))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tSTATE\tATTEMPTS\tCALLS\tDURATION\tTASK")
	for _, run := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
			run.ID,
			run.Timestamp.Local().Format("2006-01-02 15:04"),
			stateColor(run.State).Sprint(string(run.State)),
			run.AttemptsUsed,
			run.GenerationCalls,
			run.Duration.Round(time.Millisecond),
			truncate(run.Description, 50),
		)
	}
	tw.Flush()

	for _, run := range runs {
		rows, ok := attempts[run.ID]
		if !ok && run.ErrorMessage == "" {
			continue
		}
		fmt.Fprintf(w, "\nRun %d: %s\n", run.ID, run.Description)
		if run.ErrorMessage != "" {
			fmt.Fprintf(w, "  Error: %s\n", run.ErrorMessage)
		}
		if run.DesignDoc != "" {
			fmt.Fprintf(w, "  Design doc: %s\n", run.DesignDoc)
		}
		for _, row := range rows {
			fmt.Fprintf(w, "  Attempt %d: %s (%s)\n", row.Attempt, row.Outcome, row.Duration.Round(time.Millisecond))
			if row.Feedback != "" {
				fmt.Fprintf(w, "    %s\n", truncate(firstLine(row.Feedback), 100))
			}
		}
	}
}

func printHistoryStats(w io.Writer, stats history.Stats) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	cyan.Fprintf(w, "\n=== Run History Statistics ===\n\n")
	fmt.Fprintf(w, "  Total runs: %d\n", stats.Total)
	fmt.Fprintf(w, "  Succeeded: ")
	green.Fprintf(w, "%d\n", stats.Succeeded)
	fmt.Fprintf(w, "  Exhausted: ")
	yellow.Fprintf(w, "%d\n", stats.Exhausted)
	fmt.Fprintf(w, "  Aborted: ")
	red.Fprintf(w, "%d\n", stats.Aborted)

	if stats.Total > 0 {
		rate := float64(stats.Succeeded) / float64(stats.Total) * 100
		fmt.Fprintf(w, "  Success rate: ")
		if rate >= 70 {
			green.Fprintf(w, "%.1f%%\n", rate)
		} else if rate >= 40 {
			yellow.Fprintf(w, "%.1f%%\n", rate)
		} else {
			red.Fprintf(w, "%.1f%%\n", rate)
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// truncate shortens s to at most limit runes, marking the cut with "...".
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}
