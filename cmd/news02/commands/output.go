package commands

import (
	"encoding/json"
	"io"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/kliewerdaniel/News02/errors"
	"github.com/kliewerdaniel/News02/schedule"
)

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func enabledLabel(enabled bool) string {
	if enabled {
		return pterm.Green("enabled")
	}
	return pterm.Gray("disabled")
}

func renderJobTable(w io.Writer, jobs []*schedule.Job) error {
	data := [][]string{{"ID", "Name", "Time", "Recurrence", "Profile", "State", "Next run", "Last run", "Runs"}}
	for _, j := range jobs {
		data = append(data, []string{
			shortID(j.ID),
			j.Name,
			j.Time,
			string(j.Recurrence),
			j.Profile,
			enabledLabel(j.Enabled),
			formatTime(j.NextRun),
			formatTime(j.LastRun),
			pterm.Sprintf("%d/%d", j.SuccessCount, j.RunCount),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}

func renderJob(w io.Writer, j *schedule.Job) error {
	data := [][]string{
		{"ID", j.ID},
		{"Name", j.Name},
		{"Time", j.Time},
		{"Recurrence", string(j.Recurrence)},
		{"Profile", j.Profile},
		{"Articles per feed", pterm.Sprint(j.ArticlesPerFeed)},
		{"Summary model", j.SummaryModel},
		{"Broadcast model", j.BroadcastModel},
		{"State", enabledLabel(j.Enabled)},
		{"Next run", formatTime(j.NextRun)},
		{"Last run", formatTime(j.LastRun)},
		{"Runs", pterm.Sprintf("%d (%d successful)", j.RunCount, j.SuccessCount)},
		{"Last output", orDash(j.LastOutput)},
		{"Last error", orDash(j.LastError)},
	}
	return pterm.DefaultTable.WithWriter(w).WithData(data).Render()
}

func renderExecutions(w io.Writer, execs []*schedule.Execution) error {
	data := [][]string{{"ID", "Started", "Duration", "Status", "Articles", "Output", "Error"}}
	for _, e := range execs {
		duration := "-"
		if d := e.Duration(); d > 0 {
			duration = d.Round(time.Second).String()
		}
		articles := "-"
		if e.ArticleCount != nil {
			articles = pterm.Sprint(*e.ArticleCount)
		}
		data = append(data, []string{
			pterm.Sprint(e.ID),
			formatTime(&e.StartedAt),
			duration,
			e.Status,
			articles,
			orDash(e.OutputFile),
			orDash(e.ErrorMessage),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}

// shortID truncates an ID to 8 characters for tables
func shortID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}
