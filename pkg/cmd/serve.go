package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yeisme/depovault/pkg/api"
	"github.com/yeisme/depovault/pkg/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := app.NewApp(configPath)
		api.RegisterGroup(a.Engine)

		return a.Run()
	},
}

// registerServeCommand 注册 serve 命令.
func registerServeCommand() {
	rootCmd.AddCommand(serveCmd)
}
