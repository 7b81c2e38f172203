package main

import (
	"github.com/spf13/cobra"

	"experimenter/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server and background task worker",
		Long: "Run the web server and background task worker in the foreground.\n\n" +
			"The process exits when interrupted or when the configuration file changes,\n" +
			"so a supervisor can restart it with the new settings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
				ConfigPath:  ctx.configPath,
				Version:     buildVersion(),
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	return cmd
}
