// -- internal/agent/supervisor.go --
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
	"github.com/Mukuloli/browser-automation-1/internal/agent/planner"
	"github.com/Mukuloli/browser-automation-1/internal/agent/validator"
	"github.com/Mukuloli/browser-automation-1/internal/browser"
	"github.com/Mukuloli/browser-automation-1/internal/interaction"
	"github.com/Mukuloli/browser-automation-1/internal/safety"
)

// Approval is the user's verdict on a generated plan.
type Approval string

const (
	ApproveAll  Approval = "yes"  // run every step unattended
	ApproveStep Approval = "step" // confirm each step before it runs
	Reject      Approval = "no"   // cancel the run
)

// ConfirmPlanFunc presents a plan to the user and returns their verdict. A
// nil function means unattended approval.
type ConfirmPlanFunc func(ctx context.Context, plan *schemas.Plan) (Approval, error)

// RunSummary is the outcome of a whole task run.
type RunSummary struct {
	Plan      *schemas.Plan
	Results   []schemas.StepResult
	Completed int
	Failed    int
	Skipped   int
	// Safety carries the session's resource usage and violation tally, filled
	// in even when the run ends early.
	Safety safety.Summary
}

// Supervisor drives a task end to end: plan, confirm, execute each step
// through the turn controller, validate each step's screenshot, and record
// the outcome.
type Supervisor struct {
	sessionID string
	planner   *planner.Planner
	validator *validator.Validator
	turns     *TurnController
	exec      browser.Executor
	shots     ScreenshotSource
	gateway   *interaction.Gateway
	registry  *interaction.Registry
	policy    *safety.Policy
	confirm   ConfirmPlanFunc
	logger    *zap.Logger
}

// SupervisorDeps bundles the supervisor's collaborators.
type SupervisorDeps struct {
	SessionID string
	Planner   *planner.Planner
	Validator *validator.Validator
	Turns     *TurnController
	Exec      browser.Executor
	Shots     ScreenshotSource
	Gateway   *interaction.Gateway
	Registry  *interaction.Registry
	Policy    *safety.Policy
	Confirm   ConfirmPlanFunc
}

// NewSupervisor wires a supervisor from its dependencies.
func NewSupervisor(deps SupervisorDeps, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		sessionID: deps.SessionID,
		planner:   deps.Planner,
		validator: deps.Validator,
		turns:     deps.Turns,
		exec:      deps.Exec,
		shots:     deps.Shots,
		gateway:   deps.Gateway,
		registry:  deps.Registry,
		policy:    deps.Policy,
		confirm:   deps.Confirm,
		logger:    logger.Named("supervisor"),
	}
}

// RunTask plans and executes a natural language goal. Only one task may run
// per process; a concurrent call fails with ErrAutomationBusy.
func (s *Supervisor) RunTask(ctx context.Context, goal string) (summary *RunSummary, err error) {
	if err := s.registry.Begin(s.sessionID, goal); err != nil {
		return nil, err
	}
	defer func() { s.registry.Finish(err) }()

	plan, err := s.planner.Plan(ctx, goal)
	if err != nil {
		return nil, err
	}

	approval := ApproveAll
	if s.confirm != nil {
		approval, err = s.confirm(ctx, plan)
		if err != nil {
			return nil, fmt.Errorf("plan confirmation failed: %w", err)
		}
	}
	if approval == Reject {
		return nil, fmt.Errorf("plan rejected by user")
	}
	if s.policy.RequireStepConfirmation() {
		approval = ApproveStep
	}

	summary = &RunSummary{Plan: plan}
	defer func() { summary.Safety = s.policy.Summary() }()

	for i, step := range plan.Steps {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
			return summary, err
		}
		// The stop is a halt, not an error: the run ends with whatever the
		// summary holds so far.
		if safety.IsEmergencyStopped() {
			s.logger.Warn("Emergency stop active, halting run", zap.Int("next_step", step.Number))
			s.registry.SetDetail("halted by emergency stop")
			break
		}

		s.registry.SetStep(i+1, len(plan.Steps))

		if approval == ApproveStep {
			skip, askErr := s.confirmStep(ctx, step)
			if askErr != nil {
				if errors.Is(askErr, interaction.ErrAnswerTimeout) {
					s.logger.Warn("Step confirmation timed out", zap.Int("step", step.Number))
					summary.Results = append(summary.Results, schemas.StepResult{
						Step: step, Outcome: schemas.StepFailed,
						Error: "no answer to the step confirmation before the timeout",
					})
					summary.Failed++
					continue
				}
				err = askErr
				return summary, err
			}
			if skip {
				s.logger.Info("Step skipped by user", zap.Int("step", step.Number))
				summary.Results = append(summary.Results, schemas.StepResult{
					Step: step, Outcome: schemas.StepSkipped,
				})
				summary.Skipped++
				continue
			}
		}

		result := s.runStep(ctx, step)
		if result.Outcome == schemas.StepFailed && safety.IsEmergencyStopped() {
			// The stop interrupted this step mid-flight; that is a halt, not
			// a step failure.
			s.logger.Warn("Emergency stop interrupted step", zap.Int("step", step.Number))
			s.registry.SetDetail("halted by emergency stop")
			break
		}
		summary.Results = append(summary.Results, result)
		switch result.Outcome {
		case schemas.StepCompleted:
			summary.Completed++
		case schemas.StepFailed:
			summary.Failed++
		}
	}

	s.logger.Info("Task finished",
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

// confirmStep asks the human whether one step should run. Any answer that is
// not an explicit yes skips the step; an unanswered question surfaces as
// ErrAnswerTimeout and fails the step.
func (s *Supervisor) confirmStep(ctx context.Context, step schemas.Step) (skip bool, err error) {
	question := fmt.Sprintf("Execute step %d: %s? (yes/no)", step.Number, step.Action)
	answer, err := s.gateway.Ask(ctx, question, nil)
	if err != nil {
		return false, err
	}
	normalized := strings.ToLower(strings.TrimSpace(answer))
	return normalized != "yes" && normalized != "y", nil
}

// runStep executes and validates a single plan step. All failure paths
// produce a StepResult; errors never escape to kill the run.
func (s *Supervisor) runStep(ctx context.Context, step schemas.Step) schemas.StepResult {
	log := s.logger.With(zap.Int("step", step.Number))
	log.Info("Executing step", zap.String("action", step.Action))

	currentURL, _ := s.exec.Location(ctx)
	var hints string
	if elements, hintErr := browser.ExtractInteractiveElements(ctx, s.exec); hintErr == nil {
		hints = browser.FormatDOMHints(elements)
	} else {
		log.Debug("DOM hint extraction failed", zap.Error(hintErr))
	}

	shot, mime, shotErr := s.shots.Screenshot(ctx)
	if shotErr != nil {
		log.Warn("Initial screenshot failed", zap.Error(shotErr))
	}

	stepText, turnErr := s.turns.RunTurns(ctx, stepPrompt(step, currentURL, hints), shot, mime)
	if turnErr != nil {
		log.Warn("Step execution failed", zap.Error(turnErr))
		return schemas.StepResult{Step: step, Outcome: schemas.StepFailed, Error: turnErr.Error()}
	}
	s.registry.SetDetail(stepText)

	finalShot, finalMime, shotErr := s.shots.Screenshot(ctx)
	if shotErr != nil {
		log.Warn("Validation screenshot failed", zap.Error(shotErr))
		return schemas.StepResult{
			Step: step, Outcome: schemas.StepFailed,
			Error: fmt.Sprintf("could not capture validation screenshot: %v", shotErr),
		}
	}

	validation := s.validator.Validate(ctx, finalShot, finalMime, step.Expected)
	if !validation.Success {
		if _, saveErr := s.validator.SaveErrorArtifact(finalShot, step.Number, validation.ErrorType, validation.Reason); saveErr != nil {
			log.Warn("Failed to save error artifact", zap.Error(saveErr))
		}
		log.Warn("Step validation failed",
			zap.String("error_type", validation.ErrorType),
			zap.String("reason", validation.Reason),
		)
		return schemas.StepResult{
			Step: step, Outcome: schemas.StepFailed,
			Error:      validation.Reason,
			Validation: &validation,
		}
	}

	log.Info("Step completed", zap.Float64("confidence", validation.Confidence))
	return schemas.StepResult{Step: step, Outcome: schemas.StepCompleted, Validation: &validation}
}
