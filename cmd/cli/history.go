package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/netprobe/internal/store"
)

const hoursPerDay = 24

var (
	historyLimit  int
	historyFormat string
	historyPrune  string
)

// historyCmd represents the history command.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored discovery runs",
	Long: `List the most recent discovery runs stored in the database, newest first.
With --prune, runs older than the given age are deleted instead.`,
	Example: `  netprobe history
  netprobe history --limit 50 --format json
  netprobe history --prune 30d`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", formatTable, "Output format: json or table")
	historyCmd.Flags().StringVar(&historyPrune, "prune", "", "Delete runs older than this age (e.g. 30d, 72h)")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if err := validateFormat(historyFormat); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	out := cmd.OutOrStdout()

	if historyPrune != "" {
		age, err := parseDuration(historyPrune)
		if err != nil {
			return fmt.Errorf("invalid --prune value: %w", err)
		}
		return withStore(ctx, cfg, func(st *store.Store) error {
			n, err := st.DeleteBefore(ctx, time.Now().Add(-age))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Deleted %d discovery runs older than %s\n", n, historyPrune)
			return nil
		})
	}

	return withStore(ctx, cfg, func(st *store.Store) error {
		runs, err := st.ListRuns(ctx, historyLimit)
		if err != nil {
			return err
		}
		return renderRuns(out, historyFormat, runs)
	})
}

func renderRuns(w io.Writer, format string, runs []store.RunSummary) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Scan ID", "Target", "Started", "Duration", "Devices", "Methods")
	for i := range runs {
		run := &runs[i]
		if err := table.Append([]string{
			run.ID.String(),
			run.Target,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%.1fs", run.DurationSeconds),
			strconv.Itoa(run.TotalDevices),
			strings.Join(run.Methods, ","),
		}); err != nil {
			return fmt.Errorf("failed to render history table: %w", err)
		}
	}
	return table.Render()
}

// parseDuration extends time.ParseDuration with a day suffix ("30d").
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		daysStr := strings.TrimSuffix(s, "d")
		days, err := strconv.Atoi(daysStr)
		if err != nil || days < 0 {
			return 0, fmt.Errorf("invalid days format: %s", daysStr)
		}
		return time.Duration(days) * hoursPerDay * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration: %s", s)
	}
	return d, nil
}
