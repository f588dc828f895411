package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var envFileFlag string
	var logLevelFlag string
	var jsonFlag bool

	ctx := newCommandContext(&envFileFlag, &logLevelFlag, &jsonFlag)

	rootCmd := &cobra.Command{
		Use:           "keyframes",
		Short:         "Extract and stage video keyframes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", "", "Load environment variables from this file before reading configuration")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override LOG_LEVEL")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Write machine-readable JSON output")

	rootCmd.AddCommand(newExtractCommand(ctx))
	rootCmd.AddCommand(newStagingCommand(ctx))

	return rootCmd
}
