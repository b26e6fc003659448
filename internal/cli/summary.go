package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/pdflow/internal/domain"
	"github.com/shaiso/pdflow/internal/engine"
	"github.com/shaiso/pdflow/internal/manifest"
	"github.com/shaiso/pdflow/internal/orchestrator"
)

// NewSummaryCmd создаёт команду сводки по job из manifest.
func NewSummaryCmd(outputFn func() *Output) *cobra.Command {
	var job string
	var flowFile string

	cmd := &cobra.Command{
		Use:   "summary MANIFEST",
		Short: "Show per-node summary of a job recorded in the manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			store, err := manifest.ReadFile(args[0])
			if err != nil {
				return err
			}

			name, err := resolveJob(store, job)
			if err != nil {
				return err
			}

			// С flow-файлом строки идут в порядке графа и получают score.
			var g *engine.Graph
			if flowFile != "" {
				flow, err := engine.LoadFlowFile(flowFile)
				if err != nil {
					return err
				}
				if g, err = engine.BuildGraph(flow); err != nil {
					return err
				}
			}

			out.Summary(orchestrator.BuildSummary(g, store, store.NodeStatuses(name)))
			if status, ok := store.RunStatus(name); ok {
				out.Success(fmt.Sprintf("job %s: %s", name, status))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&job, "job", "", "Job name (default: latest job)")
	cmd.Flags().StringVar(&flowFile, "flow", "", "Flow file for graph order and scores")

	return cmd
}

// NewResultCmd создаёт команду поиска артефакта узла.
func NewResultCmd(outputFn func() *Output) *cobra.Command {
	var job string

	cmd := &cobra.Command{
		Use:   "result MANIFEST STEP[/INDEX] KIND",
		Short: "Print the path of a node artifact (e.g. def, gds, log)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			store, err := manifest.ReadFile(args[0])
			if err != nil {
				return err
			}

			id, err := domain.ParseNodeID(args[1])
			if err != nil {
				return err
			}

			path, err := FindResult(store, job, id, args[2])
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(map[string]string{"node": id.String(), "kind": args[2], "path": path})
				return nil
			}
			fmt.Fprintln(out.w, path)
			return nil
		},
	}

	cmd.Flags().StringVar(&job, "job", "", "Job name (default: latest terminal status of the node)")

	return cmd
}

// FindResult ищет артефакт kind узла в manifest.
// Без job статус узла берётся из последнего job, где узел завершился.
func FindResult(store *manifest.Store, job string, id domain.NodeID, kind string) (string, error) {
	var status domain.NodeStatus
	var ok bool
	if job != "" {
		status, ok = store.NodeStatus(job, id)
	} else {
		status, ok = store.PriorStatus(id)
	}
	if !ok {
		return "", fmt.Errorf("node %s has no recorded status", id)
	}

	path, found := orchestrator.LookupResult(store, status, id, kind)
	if !found {
		return "", fmt.Errorf("no %q result for node %s (status %s)", kind, id, status)
	}
	return path, nil
}

// resolveJob возвращает job или, если он не задан, последний job в manifest.
func resolveJob(store *manifest.Store, job string) (string, error) {
	jobs := store.Jobs()
	if len(jobs) == 0 {
		return "", fmt.Errorf("manifest has no jobs")
	}
	if job == "" {
		return jobs[len(jobs)-1], nil
	}
	for _, j := range jobs {
		if j == job {
			return job, nil
		}
	}
	return "", fmt.Errorf("job %s not found", job)
}
