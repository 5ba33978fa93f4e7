// -- cmd/components.go --
package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Mukuloli/browser-automation-1/internal/agent"
	"github.com/Mukuloli/browser-automation-1/internal/agent/captcha"
	"github.com/Mukuloli/browser-automation-1/internal/agent/dispatch"
	"github.com/Mukuloli/browser-automation-1/internal/agent/planner"
	"github.com/Mukuloli/browser-automation-1/internal/agent/validator"
	"github.com/Mukuloli/browser-automation-1/internal/browser"
	"github.com/Mukuloli/browser-automation-1/internal/config"
	"github.com/Mukuloli/browser-automation-1/internal/interaction"
	"github.com/Mukuloli/browser-automation-1/internal/llm"
	"github.com/Mukuloli/browser-automation-1/internal/safety"
)

// automationComponents bundles everything a command needs to run tasks, with
// a single Shutdown for teardown.
type automationComponents struct {
	cfg        *config.Config
	session    *browser.Session
	llmClient  *llm.GeminiClient
	vlog       *safety.ViolationLog
	policy     *safety.Policy
	dispatcher *dispatch.Dispatcher
	turns      *agent.TurnController
	planner    *planner.Planner
	validator  *validator.Validator
	gateway    *interaction.Gateway
	registry   *interaction.Registry
	supervisor *agent.Supervisor
	logger     *zap.Logger
}

// initializeAutomation builds the full component graph. The confirm function
// may be nil for unattended runs.
func initializeAutomation(ctx context.Context, cfg *config.Config, registry *interaction.Registry, confirm agent.ConfirmPlanFunc, logger *zap.Logger) (*automationComponents, error) {
	llmClient, err := llm.NewGeminiClient(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	session, err := browser.NewSession(ctx, cfg.Browser, logger)
	if err != nil {
		llmClient.Close()
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	vlog := safety.NewViolationLog(cfg.Safety.ViolationLog, logger)
	policy := safety.NewPolicy(cfg.Safety, vlog, logger)
	llmClient.SetUsageHook(policy.RecordTokens)

	dispatcher := dispatch.NewDispatcher(session.Executor(), policy, session.Viewport(), cfg.Browser, logger)
	dispatcher.SetCaptchaSolver(captcha.NewSolver(session.Executor(), llmClient, logger))

	turns := agent.NewTurnController(llmClient, dispatcher, session, cfg.Agent.MaxTurnsPerStep, logger)
	gateway := interaction.NewGateway(registry, cfg.Agent.AnswerTimeout, logger)

	errorDir := cfg.Artifacts.ErrorDir
	if errorDir == "" {
		errorDir = filepath.Join(".", "errors")
	}

	comps := &automationComponents{
		cfg:        cfg,
		session:    session,
		llmClient:  llmClient,
		vlog:       vlog,
		policy:     policy,
		dispatcher: dispatcher,
		turns:      turns,
		planner:    planner.NewPlanner(llmClient, logger),
		validator:  validator.NewValidator(llmClient, errorDir, logger),
		gateway:    gateway,
		registry:   registry,
		logger:     logger,
	}

	comps.supervisor = agent.NewSupervisor(agent.SupervisorDeps{
		SessionID: session.ID(),
		Planner:   comps.planner,
		Validator: comps.validator,
		Turns:     turns,
		Exec:      session.Executor(),
		Shots:     session,
		Gateway:   gateway,
		Registry:  registry,
		Policy:    policy,
		Confirm:   confirm,
	}, logger)

	return comps, nil
}

// Shutdown tears everything down in reverse order.
func (c *automationComponents) Shutdown() {
	if c.session != nil {
		c.session.Close()
	}
	if c.llmClient != nil {
		if err := c.llmClient.Close(); err != nil {
			c.logger.Debug("LLM client close failed", zap.Error(err))
		}
	}
	if c.vlog != nil {
		if err := c.vlog.Close(); err != nil {
			c.logger.Debug("Violation log close failed", zap.Error(err))
		}
	}
}
