// Package cmd contains the command line applications for the project.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yeisme/depovault/pkg/configs"
)

var (
	rootCmd = &cobra.Command{
		Use:   "depovault",
		Short: "A deposit service for research data with versioned records and DOI registration",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configs.InitConfig(configPath)
		},
	}

	configPath string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "config file or directory")

	registerConfigsCommands()
	registerDBCommands()
	registerKVCommands()
	registerMQCommands()
	registerServeCommand()
	registerWorkerCommand()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
