// -- cmd/serve.go --
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Mukuloli/browser-automation-1/internal/config"
	"github.com/Mukuloli/browser-automation-1/internal/interaction"
	"github.com/Mukuloli/browser-automation-1/internal/observability"
	"github.com/Mukuloli/browser-automation-1/internal/safety"
	"github.com/Mukuloli/browser-automation-1/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP bridge so a frontend can start tasks and answer questions.",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return viper.BindPFlag("server.listen_addr", cmd.Flags().Lookup("listen"))
	},
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", ":8080", "address for the HTTP bridge")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := observability.GetLogger()

	cfg, err := config.NewConfigFromViper(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	safety.ResetEmergencyStop()
	registry := interaction.NewRegistry()

	// The bridge runs unattended; plan confirmation comes from the frontend
	// through the gateway only when step confirmation is enabled.
	comps, err := initializeAutomation(ctx, cfg, registry, nil, logger)
	if err != nil {
		return err
	}
	defer comps.Shutdown()

	startTask := func(goal string) error {
		if comps.registry.Active() {
			return interaction.ErrAutomationBusy
		}
		go func() {
			if _, taskErr := comps.supervisor.RunTask(ctx, goal); taskErr != nil {
				logger.Warn("Task ended with error", zap.Error(taskErr))
			}
		}()
		return nil
	}

	srv := server.NewServer(cfg.Server, registry, comps.gateway, startTask, logger)
	return srv.Run(ctx)
}
