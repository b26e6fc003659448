package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/pdflow/internal/domain"
)

// NewJobsCmd создаёт группу команд для просмотра jobs на сервере.
func NewJobsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect jobs recorded by the server",
	}
	cmd.PersistentFlags().StringVar(&schedule, "schedule", "", "Schedule whose manifest to read (default: server manifest)")

	cmd.AddCommand(
		newJobsListCmd(clientFn, outputFn, &schedule),
		newJobsShowCmd(clientFn, outputFn, &schedule),
		newJobsResultCmd(clientFn, outputFn, &schedule),
	)

	return cmd
}

func newJobsListCmd(clientFn func() *Client, outputFn func() *Output, schedule *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			jobs, err := client.ListJobs(*schedule)
			if err != nil {
				return err
			}

			headers := []string{"JOB", "STATUS", "NODES", "SUCCESS", "ERROR"}
			rows := make([][]string, len(jobs))
			for i, j := range jobs {
				rows[i] = []string{
					j.Job,
					orDash(j.Status),
					strconv.Itoa(j.Nodes),
					strconv.Itoa(j.Counts[string(domain.NodeStatusSuccess)]),
					strconv.Itoa(j.Counts[string(domain.NodeStatusError)]),
				}
			}

			out.Print(headers, rows, jobs)
			return nil
		},
	}
}

func newJobsShowCmd(clientFn func() *Client, outputFn func() *Output, schedule *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show JOB",
		Short: "Show per-node summary of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetJob(args[0], *schedule)
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(job)
				return nil
			}

			out.Success(fmt.Sprintf("Job %s: %s", job.Job, orDash(job.Status)))

			headers := []string{"NODE", "STATUS", "SELECTED", "METRICS"}
			rows := make([][]string, len(job.Nodes))
			for i, n := range job.Nodes {
				selected := "-"
				if n.Selected != nil {
					selected = n.Selected.Step + "/" + n.Selected.Index
				}
				rows[i] = []string{n.Node.Step + "/" + n.Node.Index, n.Status, selected, formatMetrics(n.Metrics)}
			}
			out.Table(headers, rows)
			return nil
		},
	}
}

func newJobsResultCmd(clientFn func() *Client, outputFn func() *Output, schedule *string) *cobra.Command {
	return &cobra.Command{
		Use:   "result JOB STEP[/INDEX] KIND",
		Short: "Print the path of a node artifact",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			id, err := domain.ParseNodeID(args[1])
			if err != nil {
				return err
			}

			res, err := client.GetResult(args[0], id.Step, id.Index, args[2], *schedule)
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(res)
				return nil
			}
			fmt.Fprintln(out.w, res.Path)
			return nil
		},
	}
}

// NewHistoryCmd создаёт группу команд для истории runs в Postgres.
func NewHistoryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect run history stored by the server",
	}

	cmd.AddCommand(
		newHistoryListCmd(clientFn, outputFn),
		newHistoryNodesCmd(clientFn, outputFn),
	)

	return cmd
}

func newHistoryListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListRunsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(opts)
			if err != nil {
				return err
			}

			headers := []string{"ID", "JOB", "FLOW", "STATUS", "STEPLIST", "CREATED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				steplist := "-"
				if len(r.Steplist) > 0 {
					steplist = strings.Join(r.Steplist, ",")
				}
				rows[i] = []string{r.ID, r.JobID, r.Flow, r.Status, steplist, r.CreatedAt}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Flow, "flow", "", "Filter by flow name")
	cmd.Flags().StringVar(&opts.Job, "job", "", "Filter by manifest job name")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newHistoryNodesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "nodes RUN_ID",
		Short: "List node runs of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			nodes, err := client.ListRunNodes(args[0])
			if err != nil {
				return err
			}

			headers := []string{"NODE", "TOOL", "STATUS", "THREADS", "SELECTED", "ERROR"}
			rows := make([][]string, len(nodes))
			for i, n := range nodes {
				rows[i] = []string{n.Node, n.Tool, n.Status, strconv.Itoa(n.Threads), orDash(n.Selected), orDash(n.Error)}
			}

			out.Print(headers, rows, nodes)
			return nil
		},
	}
}
