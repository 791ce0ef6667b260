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
	"github.com/kliewerdaniel/News02/profiles"
	"github.com/kliewerdaniel/News02/schedule"
	"github.com/kliewerdaniel/News02/server"
)

// SchedulerCmd groups the long-running scheduler commands
var SchedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the scheduler loop with its status/jobs API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// SchedulerStartCmd runs the scheduler in the foreground
var SchedulerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scheduler in the foreground",
	Long: `Start the scheduler in foreground mode.

The scheduler will:
- Seal executions left running by a crashed process
- Poll for due jobs and run them one at a time
- Reload feed profiles when the profiles file changes
- Serve the status/jobs API on server.address (when set)
- Run until interrupted (Ctrl+C); a job in flight is cancelled and recorded as failed`,
	Args: cobra.NoArgs,
	RunE: runSchedulerStart,
}

func init() {
	SchedulerStartCmd.Flags().String("addr", "", "Override server.address (\"-\" disables the API)")
	SchedulerCmd.AddCommand(SchedulerStartCmd)
}

func runSchedulerStart(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	addr := cfg.Server.Address
	if cmd.Flags().Changed("addr") {
		addr, _ = cmd.Flags().GetString("addr")
		if addr == "-" {
			addr = ""
		}
	}

	log := logger.Logger.Named("scheduler")

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

	tickerCfg := schedule.TickerConfig{
		Interval:     cfg.Scheduler.PollInterval(),
		ErrorBackoff: cfg.Scheduler.ErrorBackoff(),
		LockPath:     cfg.LockFilePath(),
	}
	ticker := schedule.NewTicker(rt.jobs, rt.pipeline, rt.status, tickerCfg, log)
	ticker.StartWithContext(ctx)

	watcher, err := profiles.NewWatcher(rt.profiles, profiles.DefaultDebounce, func() {
		log.Infow("Feed profiles reloaded", logger.FieldPath, rt.profiles.Path())
	}, log)
	if err != nil {
		// Profiles are still read on demand, only hot reload is lost
		log.Warnw("Profile watcher unavailable", logger.FieldError, err)
	} else {
		defer watcher.Close()
	}

	out := pterm.Info.WithWriter(cmd.OutOrStdout())
	out.Printfln("Scheduler started, polling every %v", tickerCfg.Interval)
	out.Printfln("Profiles: %s", cfg.Paths.ProfilesFile)
	out.Printfln("Output:   %s", cfg.Paths.OutputDir)

	// nil unless the API is enabled; receiving from it then blocks forever
	var serveErr chan error
	if addr != "" {
		srv := server.New(server.Deps{
			Jobs:       rt.jobs,
			Executions: rt.executions,
			Ticker:     ticker,
			Profiles:   rt.profiles,
		}, cfg.Server.AllowedOrigins, log)
		out.Printfln("API:      http://%s/api/status", addr)
		serveErr = make(chan error, 1)
		go func() {
			serveErr <- srv.Serve(ctx, addr)
		}()
	}
	out.Println("Press Ctrl+C to stop")

	var runErr error
	select {
	case <-ctx.Done():
		if serveErr != nil {
			if err := <-serveErr; err != nil {
				log.Warnw("HTTP server shutdown", logger.FieldError, err)
			}
		}
	case runErr = <-serveErr:
	}

	log.Infow("Shutting down")
	ticker.Stop()

	pterm.Success.WithWriter(cmd.OutOrStdout()).Println("Scheduler stopped")
	return runErr
}
