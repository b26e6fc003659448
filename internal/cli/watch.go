package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/pdflow/internal/mq"
)

// NewWatchCmd создаёт команду наблюдения за событиями выполнения.
func NewWatchCmd(outputFn func() *Output) *cobra.Command {
	var amqpURL string
	var filter string
	var reports bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream node and job events from RabbitMQ",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			cfg := mq.ConsumerConfig{
				Exchange: mq.ExchangeEvents,
				Handler: func(ctx context.Context, msg *mq.Message) error {
					// Нераспознанное событие не возвращается в очередь.
					if err := out.Event(msg); err != nil {
						out.Error(err.Error())
					}
					return nil
				},
			}

			if reports {
				// Общая очередь итогов: события не теряются, пока никто не слушает.
				cfg.Queue = string(mq.QueueRunsCompleted)
			} else {
				switch filter {
				case "all":
					cfg.Bindings = []mq.RoutingKey{mq.BindAll}
				case "node":
					cfg.Bindings = []mq.RoutingKey{mq.BindAllNodes}
				case "run":
					cfg.Bindings = []mq.RoutingKey{mq.BindAllRuns}
				default:
					return fmt.Errorf("unknown filter %q (want all, node or run)", filter)
				}
			}

			conn, err := mq.NewConnection(mq.ConnectionConfig{
				URL:    amqpURL,
				Name:   "pdflow watch",
				Logger: slog.Default(),
			})
			if err != nil {
				return fmt.Errorf("connect to RabbitMQ: %w", err)
			}
			defer conn.Close()

			if err := mq.SetupTopology(cmd.Context(), conn); err != nil {
				return fmt.Errorf("setup topology: %w", err)
			}

			err = mq.NewConsumer(conn, slog.Default(), cfg).Start(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&amqpURL, "amqp-url", mq.URLFromEnv(), "RabbitMQ URL")
	cmd.Flags().StringVar(&filter, "filter", "all", "Events to show: all, node or run")
	cmd.Flags().BoolVar(&reports, "reports", false, "Consume the durable runs.completed queue")

	return cmd
}

// Event выводит событие одной строкой или JSON.
func (o *Output) Event(msg *mq.Message) error {
	if o.jsonMode {
		o.JSON(msg)
		return nil
	}

	line, err := FormatEvent(msg)
	if err != nil {
		return err
	}
	fmt.Fprintln(o.w, line)
	return nil
}

// FormatEvent форматирует событие для консоли.
func FormatEvent(msg *mq.Message) (string, error) {
	ts := msg.Timestamp.Local().Format(time.TimeOnly)

	switch msg.Type {
	case mq.MessageTypeNodeCompleted:
		p, err := mq.ParsePayload[mq.NodeCompletedPayload](msg)
		if err != nil {
			return "", err
		}
		line := fmt.Sprintf("%s %s node %s/%s %s %s %s", ts, p.JobID, p.Step, p.Index, p.Tool, p.Status,
			(time.Duration(p.DurationMs) * time.Millisecond).String())
		if p.Selected != "" {
			line += " selected=" + p.Selected
		}
		if p.Error != "" {
			line += ": " + p.Error
		}
		return line, nil

	case mq.MessageTypeRunCompleted:
		p, err := mq.ParsePayload[mq.RunCompletedPayload](msg)
		if err != nil {
			return "", err
		}
		line := fmt.Sprintf("%s %s run %s %s %s", ts, p.JobID, p.Flow, p.Status,
			(time.Duration(p.DurationMs) * time.Millisecond).String())
		if p.Error != "" {
			line += ": " + p.Error
		}
		return line, nil

	default:
		return fmt.Sprintf("%s %s %v", ts, msg.Type, msg.Payload), nil
	}
}
