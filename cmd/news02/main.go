package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kliewerdaniel/News02/cmd/news02/commands"
	"github.com/kliewerdaniel/News02/errors"
	"github.com/kliewerdaniel/News02/logger"
)

var rootCmd = &cobra.Command{
	Use:   "news02",
	Short: "News02 - scheduled RSS news digests with LLM summaries and speech",
	Long: `News02 - scheduled RSS news digests.

Jobs name a feed profile and a time of day. At that time News02 fetches new
articles, summarizes them with a local LLM, writes a broadcast script to a
markdown digest and renders it to audio.

Available commands:
  am          - Show and validate configuration ("I am")
  job         - Create, list, update and run digest jobs
  scheduler   - Run the scheduler loop with its status/jobs API
  run-overdue - Run every overdue job once (cron entry point)
  db          - Manage the job database
  version     - Show version information

Examples:
  news02 job create --name Morning --time 07:30 --profile tech
  news02 job list
  news02 scheduler start
  */5 * * * * news02 run-overdue`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		// Logs go to stderr so stdout stays parseable
		if err := logger.InitializeWithVerbosity(jsonOutput, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.JobCmd)
	rootCmd.AddCommand(commands.SchedulerCmd)
	rootCmd.AddCommand(commands.RunOverdueCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintln(os.Stderr, "Hint:", hint)
		}
		os.Exit(1)
	}
}
