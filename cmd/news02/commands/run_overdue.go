package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/kliewerdaniel/News02/am"
	"github.com/kliewerdaniel/News02/errors"
	"github.com/kliewerdaniel/News02/logger"
	"github.com/kliewerdaniel/News02/schedule"
)

// RunOverdueCmd runs every due job once and exits
var RunOverdueCmd = &cobra.Command{
	Use:   "run-overdue",
	Short: "Run every overdue job once (cron entry point)",
	Long: `Run every enabled job whose next run has passed, one at a time, then exit.

Meant for cron when no scheduler process is running:

  */5 * * * * news02 run-overdue

Jobs that ran within runner.cooldown_seconds are skipped. If another news02
process holds the lock file the command does nothing and exits 0.`,
	Args: cobra.NoArgs,
	RunE: runOverdue,
}

func runOverdue(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	log := logger.Logger.Named("run-overdue")

	database, err := openDatabase(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	rt, err := newRuntime(cfg, database, log)
	if err != nil {
		return err
	}
	rt.reconcileStale(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := schedule.NewOverdueRunner(rt.jobs, rt.pipeline, schedule.OverdueConfig{
		LockPath:      cfg.LockFilePath(),
		Cooldown:      cfg.Runner.Cooldown(),
		InterJobDelay: cfg.Runner.InterJobDelay(),
	}, log)

	succeeded, err := runner.Run(ctx)
	if jsonOutput(cmd) {
		if perr := printJSON(cmd.OutOrStdout(), map[string]interface{}{"succeeded": succeeded}); perr != nil {
			return perr
		}
	} else if err == nil {
		pterm.Info.WithWriter(cmd.OutOrStdout()).Printfln("%d job(s) succeeded", succeeded)
	}
	if err != nil {
		return errors.Wrap(err, "overdue run failed")
	}
	return nil
}
