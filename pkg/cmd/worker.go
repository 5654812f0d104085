package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yeisme/depovault/pkg/app"
	workerMQ "github.com/yeisme/depovault/pkg/internal/mq"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the DOI registration worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := app.NewApp(configPath)

		ctx, stop := signal.NotifyContext(a.WorkerContext(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a.Scheduler.Start()
		defer func() { _ = a.Scheduler.Shutdown() }()

		worker := workerMQ.NewDOIWorker(ctx)

		return worker.Run(ctx)
	},
}

// registerWorkerCommand 注册 worker 命令.
func registerWorkerCommand() {
	rootCmd.AddCommand(workerCmd)
}
