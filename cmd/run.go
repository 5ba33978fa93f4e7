// -- cmd/run.go --
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
	"github.com/Mukuloli/browser-automation-1/internal/agent"
	"github.com/Mukuloli/browser-automation-1/internal/agent/planner"
	"github.com/Mukuloli/browser-automation-1/internal/config"
	"github.com/Mukuloli/browser-automation-1/internal/interaction"
	"github.com/Mukuloli/browser-automation-1/internal/observability"
	"github.com/Mukuloli/browser-automation-1/internal/safety"
)

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Plan and execute a browser task from a natural language goal.",
	Args:  cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlag("agent.auto_approve", cmd.Flags().Lookup("yes")); err != nil {
			return err
		}
		if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
			return err
		}
		return viper.BindPFlag("safety.allowed_domains", cmd.Flags().Lookup("allow-domain"))
	},
	RunE: runTask,
}

func init() {
	runCmd.Flags().Bool("yes", false, "approve the generated plan without asking")
	runCmd.Flags().Bool("headless", true, "run the browser headless")
	runCmd.Flags().StringSlice("allow-domain", nil, "restrict navigation to these domains")
	rootCmd.AddCommand(runCmd)
}

func runTask(cmd *cobra.Command, args []string) error {
	logger := observability.GetLogger()
	goal := strings.Join(args, " ")

	cfg, err := config.NewConfigFromViper(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	safety.ResetEmergencyStop()
	registry := interaction.NewRegistry()

	var confirm agent.ConfirmPlanFunc
	if !cfg.Agent.AutoApprove {
		confirm = confirmPlanStdin
	}

	comps, err := initializeAutomation(ctx, cfg, registry, confirm, logger)
	if err != nil {
		return err
	}
	defer comps.Shutdown()

	go stdinResponder(ctx, comps.gateway)

	summary, err := comps.supervisor.RunTask(ctx, goal)
	if summary != nil {
		printSummary(summary)
	}
	if err != nil {
		return fmt.Errorf("task failed: %w", err)
	}
	return nil
}

// signalContext cancels on the first interrupt and trips the emergency stop
// so in-flight dispatches halt too.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		if parent.Err() == nil {
			safety.TriggerEmergencyStop()
		}
	}()
	return ctx, stop
}

// confirmPlanStdin shows the plan and reads yes/step/no from the terminal.
func confirmPlanStdin(_ context.Context, plan *schemas.Plan) (agent.Approval, error) {
	fmt.Println()
	fmt.Print(planner.Describe(plan))
	fmt.Print("\nProceed? [yes = run all / step = confirm each step / no = cancel]: ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return agent.Reject, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "yes", "y":
		return agent.ApproveAll, nil
	case "step", "s":
		return agent.ApproveStep, nil
	default:
		return agent.Reject, nil
	}
}

// stdinResponder bridges gateway questions to the terminal for CLI runs.
func stdinResponder(ctx context.Context, gateway *interaction.Gateway) {
	reader := bufio.NewReader(os.Stdin)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	var lastQuestion string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		question := gateway.PendingQuestion()
		if question == "" || question == lastQuestion {
			continue
		}
		lastQuestion = question

		fmt.Printf("\n%s\n> ", question)
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		if err := gateway.Answer(strings.TrimSpace(line)); err != nil {
			observability.GetLogger().Debug("Answer not delivered", zap.Error(err))
		}
	}
}

func printSummary(summary *agent.RunSummary) {
	fmt.Printf("\nRun summary: %d completed, %d failed, %d skipped\n",
		summary.Completed, summary.Failed, summary.Skipped)
	fmt.Printf("Usage: %d actions, %d tokens, %d safety violations, %.1f minutes\n",
		summary.Safety.Actions, summary.Safety.Tokens,
		summary.Safety.Violations, summary.Safety.DurationMinutes)
	for _, result := range summary.Results {
		marker := "ok"
		switch result.Outcome {
		case schemas.StepFailed:
			marker = "FAILED"
		case schemas.StepSkipped:
			marker = "skipped"
		}
		fmt.Printf("  step %d [%s] %s\n", result.Step.Number, marker, result.Step.Action)
		if result.Error != "" {
			fmt.Printf("         %s\n", result.Error)
		}
	}
}
