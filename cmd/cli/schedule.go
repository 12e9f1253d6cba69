package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anstrom/netprobe/internal/discovery"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/scheduler"
)

const resultTimeFormat = "20060102T150405Z"

var (
	scheduleCron        string
	scheduleName        string
	scheduleOutDir      string
	scheduleExclude     []string
	scheduleImmediately bool
)

// scheduleCmd represents the schedule command.
var scheduleCmd = &cobra.Command{
	Use:   "schedule [network]",
	Short: "Run discovery repeatedly on a cron schedule",
	Long: `Run discovery of a network on a cron schedule until interrupted.
The schedule accepts standard five-field cron expressions and descriptors
such as "@hourly" or "@every 30m". Each result is written as a JSON file
to the output directory and, when database persistence is enabled,
stored in the database. A run that is still in progress when the next
tick arrives causes that tick to be skipped.`,
	Example: `  netprobe schedule 192.168.1.0/24 --cron "@every 1h" --out-dir /var/lib/netprobe
  netprobe schedule 10.0.0.0/24 --cron "0 2 * * *" --now`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "", "Cron expression (default from schedule.cron)")
	scheduleCmd.Flags().StringVar(&scheduleName, "name", "discovery", "Job name used in logs and result file names")
	scheduleCmd.Flags().StringVar(&scheduleOutDir, "out-dir", "", "Directory for result files (default from schedule.output)")
	scheduleCmd.Flags().StringSliceVarP(&scheduleExclude, "exclude", "e", nil, "Addresses or CIDR ranges to skip (repeatable)")
	scheduleCmd.Flags().BoolVar(&scheduleImmediately, "now", false, "Run once immediately before waiting for the schedule")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cronExpr := cfg.Schedule.Cron
	if scheduleCron != "" {
		cronExpr = scheduleCron
	}
	outDir := cfg.Schedule.Output
	if scheduleOutDir != "" {
		outDir = scheduleOutDir
	}

	spec, err := targetSpec(cfg, args, scheduleExclude)
	if err != nil {
		return err
	}

	logger := logging.Default()
	r, err := newRunner(cfg, logger)
	if err != nil {
		return err
	}

	s := scheduler.NewScheduler(r.run,
		scheduler.WithLogger(logger),
		scheduler.WithResultHandler(resultFileWriter(outDir, logger)))

	job, err := s.AddJob(scheduleName, cronExpr, spec)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Start(); err != nil {
		return err
	}
	defer s.Stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "Scheduled %q for %s on %q, next run %s\n",
		job.Name, job.Network, job.Cron, job.NextRun.Format("2006-01-02 15:04:05"))

	if scheduleImmediately {
		go s.RunNow(job.ID)
	}

	<-ctx.Done()
	return nil
}

// resultFileWriter returns a handler that stores each result as
// <dir>/<job>-<start time>.json. An empty dir disables the files.
func resultFileWriter(dir string, logger *logging.Logger) scheduler.ResultHandler {
	return func(job scheduler.JobStatus, result *discovery.Result) {
		if dir == "" {
			return
		}
		name := fmt.Sprintf("%s-%s.json", job.Name, result.Metadata.StartTime.UTC().Format(resultTimeFormat))
		path := filepath.Join(dir, name)
		if err := writeResult(nil, path, formatJSON, result); err != nil {
			logger.Error("Failed to write discovery result", "path", path, "error", err)
			return
		}
		logger.Info("Wrote discovery result", "path", path, "devices", result.Metadata.TotalDevices)
	}
}
