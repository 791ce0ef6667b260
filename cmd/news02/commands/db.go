package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/kliewerdaniel/News02/am"
	"github.com/kliewerdaniel/News02/db"
	"github.com/kliewerdaniel/News02/errors"
	"github.com/kliewerdaniel/News02/schedule"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the job database",
	Long: `db - Manage the News02 job database

Examples:
  news02 db migrate               # Apply pending migrations
  news02 db stats                 # Show migration state and row counts`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show migration state and row counts",
	Args:  cobra.NoArgs,
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	// openDatabase migrates on open
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	migrations, err := db.Status(database)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), migrations)
	}
	pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Database is at version %s", migrations[len(migrations)-1].Version)
	return nil
}

// DBStats summarizes the job database
type DBStats struct {
	Path         string         `json:"path"`
	Migrations   []db.Migration `json:"migrations"`
	Jobs         int            `json:"jobs"`
	EnabledJobs  int            `json:"enabled_jobs"`
	Executions   int            `json:"executions"`
	JobsWithRuns int            `json:"jobs_with_runs"`
	SeenArticles int            `json:"seen_articles"`
}

func runDbStats(cmd *cobra.Command, args []string) error {
	path, err := am.GetDatabasePath()
	if err != nil {
		return errors.Wrap(err, "failed to get database path")
	}
	database, err := openDatabase(path)
	if err != nil {
		return err
	}
	defer database.Close()

	stats := DBStats{Path: path}
	if stats.Migrations, err = db.Status(database); err != nil {
		return err
	}
	counts := []struct {
		dst   *int
		query string
	}{
		{&stats.Jobs, "SELECT COUNT(*) FROM scheduled_jobs"},
		{&stats.EnabledJobs, "SELECT COUNT(*) FROM scheduled_jobs WHERE enabled = 1"},
		{&stats.Executions, "SELECT COUNT(*) FROM job_executions"},
		{&stats.SeenArticles, "SELECT COUNT(*) FROM seen_articles"},
	}
	for _, c := range counts {
		if err := database.QueryRow(c.query).Scan(c.dst); err != nil {
			return errors.Wrapf(err, "failed to query %q", c.query)
		}
	}

	recorded, err := schedule.NewExecutionStore(database).RecordedJobIDs()
	if err != nil {
		return err
	}
	stats.JobsWithRuns = len(recorded)

	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), stats)
	}

	w := cmd.OutOrStdout()
	data := [][]string{
		{"Database", stats.Path},
		{"Jobs", pterm.Sprintf("%d (%d enabled)", stats.Jobs, stats.EnabledJobs)},
		{"Executions", pterm.Sprintf("%d (%d jobs)", stats.Executions, stats.JobsWithRuns)},
		{"Seen articles", pterm.Sprint(stats.SeenArticles)},
	}
	if err := pterm.DefaultTable.WithWriter(w).WithData(data).Render(); err != nil {
		return err
	}

	migrations := [][]string{{"Version", "File", "Applied"}}
	for _, m := range stats.Migrations {
		applied := pterm.Gray("no")
		if m.Applied {
			applied = pterm.Green("yes")
		}
		migrations = append(migrations, []string{m.Version, m.Filename, applied})
	}
	fmt.Fprintln(w)
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(migrations).Render()
}
