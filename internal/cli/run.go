package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shaiso/pdflow/internal/domain"
	"github.com/shaiso/pdflow/internal/engine"
	"github.com/shaiso/pdflow/internal/manifest"
	"github.com/shaiso/pdflow/internal/mq"
	"github.com/shaiso/pdflow/internal/orchestrator"
)

// RunFlags — параметры команды run.
type RunFlags struct {
	Manifest    string
	Job         string
	Steplist    []string
	Require     []string
	Relax       bool
	Quiet       bool
	WorkDir     string
	MaxParallel int
	Threads     int
	DockerImage string
	Events      bool
	AMQPURL     string
}

// NewRunCmd создаёт команду локального выполнения flow.
func NewRunCmd(outputFn func() *Output) *cobra.Command {
	var flags RunFlags

	cmd := &cobra.Command{
		Use:   "run FLOW_FILE",
		Short: "Execute a flow and record the job in the manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			flow, err := engine.LoadFlowFile(args[0])
			if err != nil {
				return err
			}

			tc := &Toolchain{
				WorkDir:     flags.WorkDir,
				MaxParallel: flags.MaxParallel,
				Threads:     flags.Threads,
				DockerImage: flags.DockerImage,
				Logger:      slog.Default(),
			}
			if !flags.Quiet {
				tc.Console = cmd.OutOrStdout()
			}

			if flags.Events {
				conn, err := mq.NewConnection(mq.ConnectionConfig{
					URL:    flags.AMQPURL,
					Name:   "pdflow run",
					Logger: tc.Logger,
				})
				if err != nil {
					return fmt.Errorf("connect to RabbitMQ: %w", err)
				}
				defer conn.Close()

				if err := mq.SetupTopology(cmd.Context(), conn); err != nil {
					return fmt.Errorf("setup topology: %w", err)
				}
				tc.Events = mq.NewPublisher(conn, tc.Logger)
			}

			res, err := RunFlow(cmd, tc, flow, flags)
			if err != nil {
				var fatal *orchestrator.RunFatalError
				if errors.As(err, &fatal) {
					out.Summary(fatal.Summary)
				}
				return err
			}

			out.Summary(res.Summary())
			out.Success(fmt.Sprintf("job %s of %s succeeded", res.JobID, res.Flow))
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.Manifest, "manifest", "build/manifest.json", "Manifest file (created if missing)")
	cmd.Flags().StringVar(&flags.Job, "job", "", "Job name (default: next free jobN)")
	cmd.Flags().StringSliceVar(&flags.Steplist, "steplist", nil, "Steps to execute (default: all)")
	cmd.Flags().StringSliceVar(&flags.Require, "require", nil, "Additional nodes that must succeed (step/index)")
	cmd.Flags().BoolVar(&flags.Relax, "relax", false, "Do not fail nodes on tool warnings")
	cmd.Flags().BoolVar(&flags.Quiet, "quiet", false, "Do not echo tool output to the console")
	cmd.Flags().StringVar(&flags.WorkDir, "workdir", "build", "Root of node working directories")
	cmd.Flags().IntVar(&flags.MaxParallel, "jobs", 0, "Maximum concurrently running tools (default: CPU count)")
	cmd.Flags().IntVar(&flags.Threads, "threads", 0, "Total thread budget (default: CPU count)")
	cmd.Flags().StringVar(&flags.DockerImage, "docker-image", "", "Run tools inside this Docker image")
	cmd.Flags().BoolVar(&flags.Events, "events", false, "Publish node and job events to RabbitMQ")
	cmd.Flags().StringVar(&flags.AMQPURL, "amqp-url", mq.URLFromEnv(), "RabbitMQ URL")

	return cmd
}

// RunFlow выполняет flow с параметрами команды run.
// Manifest читается до запуска и сохраняется после каждого узла.
func RunFlow(cmd *cobra.Command, tc *Toolchain, flow *domain.FlowSpec, flags RunFlags) (*orchestrator.RunResult, error) {
	require := make([]domain.NodeID, 0, len(flags.Require))
	for _, raw := range flags.Require {
		id, err := domain.ParseNodeID(raw)
		if err != nil {
			return nil, err
		}
		require = append(require, id)
	}

	store, err := manifest.ReadFile(flags.Manifest)
	if err != nil {
		return nil, err
	}

	c, err := tc.NewController(store, flags.Manifest)
	if err != nil {
		return nil, err
	}
	defer tc.Close()

	return c.Execute(cmd.Context(), flow, orchestrator.RunOptions{
		JobID:    flags.Job,
		Steplist: flags.Steplist,
		Require:  require,
		Relax:    flags.Relax,
	})
}
