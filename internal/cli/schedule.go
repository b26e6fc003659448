package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewScheduleCmd создаёт группу команд для просмотра schedules.
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect server schedules",
	}

	cmd.AddCommand(newScheduleListCmd(clientFn, outputFn))
	cmd.AddCommand(newScheduleShowCmd(clientFn, outputFn))

	return cmd
}

func newScheduleListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedules, err := client.ListSchedules()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "TRIGGER", "ENABLED", "NEXT_DUE", "LAST_JOB"}
			rows := make([][]string, len(schedules))
			for i, s := range schedules {
				rows[i] = []string{s.Name, scheduleTrigger(&s), strconv.FormatBool(s.Enabled), orDash(s.NextDueAt), orDash(s.LastJobID)}
			}

			out.Print(headers, rows, schedules)
			return nil
		},
	}
}

func newScheduleShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show one schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := clientFn().GetSchedule(args[0])
			if err != nil {
				return err
			}

			rows := [][]string{
				{"name", s.Name},
				{"flow", s.FlowFile},
				{"manifest", orDash(s.Manifest)},
				{"trigger", scheduleTrigger(s)},
				{"timezone", orDash(s.Timezone)},
				{"steplist", orDash(strings.Join(s.Steplist, ","))},
				{"enabled", strconv.FormatBool(s.Enabled)},
				{"next due", orDash(s.NextDueAt)},
				{"last run", orDash(s.LastRunAt)},
				{"last job", orDash(s.LastJobID)},
			}
			outputFn().Print([]string{"FIELD", "VALUE"}, rows, s)
			return nil
		},
	}
}

// scheduleTrigger — cron-выражение или "every Ns".
func scheduleTrigger(s *ScheduleResponse) string {
	if s.CronExpr != "" {
		return s.CronExpr
	}
	return "every " + strconv.Itoa(s.IntervalSec) + "s"
}
