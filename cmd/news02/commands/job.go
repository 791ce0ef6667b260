package commands

import (
	"context"
	"database/sql"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kliewerdaniel/News02/am"
	"github.com/kliewerdaniel/News02/errors"
	"github.com/kliewerdaniel/News02/internal/flock"
	"github.com/kliewerdaniel/News02/logger"
	"github.com/kliewerdaniel/News02/profiles"
	"github.com/kliewerdaniel/News02/schedule"
)

// JobCmd manages digest jobs
var JobCmd = &cobra.Command{
	Use:   "job",
	Short: "Create, list, update and run digest jobs",
	Long: `job - Manage scheduled digest jobs

A job names a feed profile, a time of day (HH:MM, local time) and a
recurrence (daily, weekdays, weekends, once).

Examples:
  news02 job create --name Morning --time 07:30 --profile tech
  news02 job create --name "Weekend" --time 09:00 --profile world --recurrence weekends
  news02 job list
  news02 job update <id> --time 08:00
  news02 job disable <id>
  news02 job history <id>
  news02 job run <id>              # Run now in this process`,
}

var jobCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a job",
	Args:  cobra.NoArgs,
	RunE:  runJobCreate,
}

var jobListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List jobs, soonest next run first",
	Args:    cobra.NoArgs,
	RunE:    runJobList,
}

var jobShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobShow,
}

var jobUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change job fields; only flags given are updated",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobUpdate,
}

var jobDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a job and its execution history",
	Args:    cobra.ExactArgs(1),
	RunE:    runJobDelete,
}

var jobEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a job and schedule its next run",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runJobToggle(cmd, args[0], true) },
}

var jobDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a job",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runJobToggle(cmd, args[0], false) },
}

var jobHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "List a job's executions, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobHistory,
}

var jobRunCmd = &cobra.Command{
	Use:   "run <id>",
	Short: "Run a job now in this process",
	Long: `Run a job immediately in the foreground.

Takes the same lock file as the scheduler and run-overdue, so it refuses to
start while another process is executing a job.`,
	Args: cobra.ExactArgs(1),
	RunE: runJobRun,
}

var historyLimit int

func init() {
	addJobFlags(jobCreateCmd.Flags())
	jobCreateCmd.Flags().Bool("disabled", false, "Create the job disabled")
	_ = jobCreateCmd.MarkFlagRequired("name")
	_ = jobCreateCmd.MarkFlagRequired("time")
	_ = jobCreateCmd.MarkFlagRequired("profile")

	addJobFlags(jobUpdateCmd.Flags())
	jobHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of executions to show")

	JobCmd.AddCommand(jobCreateCmd, jobListCmd, jobShowCmd, jobUpdateCmd, jobDeleteCmd,
		jobEnableCmd, jobDisableCmd, jobHistoryCmd, jobRunCmd)
}

func addJobFlags(fs *pflag.FlagSet) {
	fs.String("name", "", "Job name")
	fs.String("time", "", "Time of day, HH:MM (24h, local time)")
	fs.String("profile", "", "Feed profile name")
	fs.Int("articles", schedule.DefaultArticlesPerFeed, "Articles taken from each feed")
	fs.String("summary-model", schedule.DefaultSummaryModel, "Model id used for article summaries")
	fs.String("broadcast-model", schedule.DefaultBroadcastModel, "Model id used for the broadcast script")
	fs.String("recurrence", string(schedule.DefaultRecurrence), "daily, weekdays, weekends or once")
}

// specFromFlags builds a JobSpec from create flags
func specFromFlags(fs *pflag.FlagSet) schedule.JobSpec {
	name, _ := fs.GetString("name")
	timeOfDay, _ := fs.GetString("time")
	profile, _ := fs.GetString("profile")
	articles, _ := fs.GetInt("articles")
	summaryModel, _ := fs.GetString("summary-model")
	broadcastModel, _ := fs.GetString("broadcast-model")
	recurrence, _ := fs.GetString("recurrence")

	spec := schedule.JobSpec{
		Name:            name,
		Time:            timeOfDay,
		Profile:         profile,
		ArticlesPerFeed: articles,
		SummaryModel:    summaryModel,
		BroadcastModel:  broadcastModel,
		Recurrence:      schedule.Recurrence(recurrence),
	}
	if disabled, err := fs.GetBool("disabled"); err == nil && disabled {
		enabled := false
		spec.Enabled = &enabled
	}
	return spec
}

// patchFromFlags builds a JobPatch from the update flags that were set
func patchFromFlags(fs *pflag.FlagSet) schedule.JobPatch {
	var p schedule.JobPatch
	str := func(name string) *string {
		if !fs.Changed(name) {
			return nil
		}
		v, _ := fs.GetString(name)
		return &v
	}

	p.Name = str("name")
	p.Time = str("time")
	p.Profile = str("profile")
	p.SummaryModel = str("summary-model")
	p.BroadcastModel = str("broadcast-model")
	if fs.Changed("articles") {
		v, _ := fs.GetInt("articles")
		p.ArticlesPerFeed = &v
	}
	if r := str("recurrence"); r != nil {
		rec := schedule.Recurrence(*r)
		p.Recurrence = &rec
	}
	return p
}

// withStore opens the database for a short-lived job command
func withStore(fn func(*sql.DB, *schedule.Store) error) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()
	return fn(database, schedule.NewStore(database))
}

func runJobCreate(cmd *cobra.Command, args []string) error {
	spec := specFromFlags(cmd.Flags())
	return withStore(func(_ *sql.DB, store *schedule.Store) error {
		id, err := store.CreateJob(spec)
		if err != nil {
			return errors.Wrap(err, "failed to create job")
		}
		job, err := store.GetJob(id)
		if err != nil {
			return err
		}
		warnUnknownProfile(cmd, job.Profile)

		if jsonOutput(cmd) {
			return printJSON(cmd.OutOrStdout(), job)
		}
		pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Created job %s (%s), next run %s", job.Name, job.ID, formatTime(job.NextRun))
		return nil
	})
}

func runJobList(cmd *cobra.Command, args []string) error {
	return withStore(func(_ *sql.DB, store *schedule.Store) error {
		jobs, err := store.ListJobs()
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			if jobs == nil {
				jobs = []*schedule.Job{}
			}
			return printJSON(cmd.OutOrStdout(), jobs)
		}
		if len(jobs) == 0 {
			pterm.Info.WithWriter(cmd.OutOrStdout()).Println("No jobs. Create one with: news02 job create --name <name> --time HH:MM --profile <profile>")
			return nil
		}
		return renderJobTable(cmd.OutOrStdout(), jobs)
	})
}

func runJobShow(cmd *cobra.Command, args []string) error {
	return withStore(func(_ *sql.DB, store *schedule.Store) error {
		job, err := store.GetJob(args[0])
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(cmd.OutOrStdout(), job)
		}
		return renderJob(cmd.OutOrStdout(), job)
	})
}

func runJobUpdate(cmd *cobra.Command, args []string) error {
	patch := patchFromFlags(cmd.Flags())
	if patch.IsEmpty() {
		return errors.WithHint(errors.NewInvalidRequestError("no fields to update"), "pass at least one of --name, --time, --profile, --articles, --summary-model, --broadcast-model, --recurrence")
	}

	return withStore(func(_ *sql.DB, store *schedule.Store) error {
		ok, err := store.UpdateJob(args[0], patch)
		if err != nil {
			return errors.Wrap(err, "failed to update job")
		}
		if !ok {
			return errors.NewNotFoundError("job not found: %s", args[0])
		}
		if patch.Profile != nil {
			warnUnknownProfile(cmd, *patch.Profile)
		}
		return showUpdated(cmd, store, args[0], "Updated")
	})
}

func runJobDelete(cmd *cobra.Command, args []string) error {
	return withStore(func(_ *sql.DB, store *schedule.Store) error {
		ok, err := store.DeleteJob(args[0])
		if err != nil {
			return errors.Wrap(err, "failed to delete job")
		}
		if !ok {
			return errors.NewNotFoundError("job not found: %s", args[0])
		}
		if jsonOutput(cmd) {
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{"id": args[0], "deleted": true})
		}
		pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Deleted job %s", args[0])
		return nil
	})
}

func runJobToggle(cmd *cobra.Command, id string, enabled bool) error {
	return withStore(func(_ *sql.DB, store *schedule.Store) error {
		ok, err := store.ToggleJob(id, enabled)
		if err != nil {
			return errors.Wrap(err, "failed to toggle job")
		}
		if !ok {
			return errors.NewNotFoundError("job not found: %s", id)
		}
		verb := "Disabled"
		if enabled {
			verb = "Enabled"
		}
		return showUpdated(cmd, store, id, verb)
	})
}

func showUpdated(cmd *cobra.Command, store *schedule.Store, id, verb string) error {
	job, err := store.GetJob(id)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), job)
	}
	pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("%s job %s, next run %s", verb, job.Name, formatTime(job.NextRun))
	return nil
}

func runJobHistory(cmd *cobra.Command, args []string) error {
	return withStore(func(database *sql.DB, store *schedule.Store) error {
		if _, err := store.GetJob(args[0]); err != nil {
			return err
		}
		execs, err := schedule.NewExecutionStore(database).ListExecutions(args[0], historyLimit)
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			if execs == nil {
				execs = []*schedule.Execution{}
			}
			return printJSON(cmd.OutOrStdout(), execs)
		}
		if len(execs) == 0 {
			pterm.Info.WithWriter(cmd.OutOrStdout()).Println("No executions yet")
			return nil
		}
		return renderExecutions(cmd.OutOrStdout(), execs)
	})
}

func runJobRun(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	log := logger.Logger.Named("job-run")

	lock, err := flock.TryLock(cfg.LockFilePath())
	if err != nil {
		if errors.Is(err, flock.ErrLocked) {
			return errors.WithHint(errors.Mark(err, errors.ErrConflict), "another news02 process is executing a job; try again when it finishes")
		}
		return err
	}
	defer lock.Release()

	database, err := openDatabase(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	rt, err := newRuntime(cfg, database, log)
	if err != nil {
		return err
	}
	job, err := rt.jobs.GetJob(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := rt.pipeline.Execute(ctx, job)
	if jsonOutput(cmd) {
		out := map[string]interface{}{
			"job_id":        job.ID,
			"success":       res.Success,
			"digest_path":   res.DigestPath,
			"audio_path":    res.AudioPath,
			"article_count": res.ArticleCount,
		}
		if res.Err != nil {
			out["error"] = res.Err.Error()
		}
		if err := printJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	}
	if !res.Success {
		if res.Err == nil {
			return errors.Newf("job %s failed", job.Name)
		}
		return errors.Wrapf(res.Err, "job %s failed", job.Name)
	}
	if !jsonOutput(cmd) {
		pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Digest written to %s (%d articles)", res.DigestPath, res.ArticleCount)
		if res.AudioPath != "" {
			pterm.Info.WithWriter(cmd.OutOrStdout()).Printfln("Audio written to %s", res.AudioPath)
		}
	}
	return nil
}

// warnUnknownProfile prints a warning when the profiles file does not list
// profile. The job is kept.
func warnUnknownProfile(cmd *cobra.Command, profile string) {
	cfg, err := am.Load()
	if err != nil {
		return
	}
	known, err := profileKnown(cfg.Paths.ProfilesFile, profile)
	if err != nil || known {
		return
	}
	pterm.Warning.WithWriter(cmd.ErrOrStderr()).Printfln("Profile %q is not in %s; the job will fail until it is added", profile, cfg.Paths.ProfilesFile)
}

func profileKnown(path, profile string) (bool, error) {
	names, err := profiles.NewFileResolver(path).Names()
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if name == profile {
			return true, nil
		}
	}
	return false, nil
}
