// pdflow — инструмент командной строки для выполнения flow
// физического проектирования и просмотра истории jobs.
//
// Использование:
//
//	pdflow [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	run       Выполнить flow
//	summary   Сводка по job из manifest
//	result    Путь к артефакту узла
//	watch     События выполнения из RabbitMQ
//	version   Версии pdflow и инструментов
//	jobs      Jobs на сервере
//	history   История runs на сервере
//	schedule  Расписания сервера
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/pdflow/internal/cli"
	"github.com/shaiso/pdflow/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "pdflow",
		Short:         "pdflow — physical design flow runner",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Логи — в stderr, stdout остаётся для данных.
			telemetry.SetupLoggerTo(os.Stderr, "text")
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "pdflow-server API URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(outputFn),
		cli.NewSummaryCmd(outputFn),
		cli.NewResultCmd(outputFn),
		cli.NewWatchCmd(outputFn),
		cli.NewVersionCmd(version, outputFn),
		cli.NewJobsCmd(clientFn, outputFn),
		cli.NewHistoryCmd(clientFn, outputFn),
		cli.NewScheduleCmd(clientFn, outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
