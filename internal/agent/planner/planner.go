// -- internal/agent/planner/planner.go --
package planner

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const plannerPrompt = `You are a task planner for a browser automation agent.
Break the user's goal into a short sequence of concrete browser steps.

Respond with ONLY a JSON object in exactly this shape:
{
  "goal": "<the goal restated>",
  "steps": [
    {
      "step_number": 1,
      "action": "<what the agent should do in the browser>",
      "expected_outcome": "<what the page should show afterwards>",
      "success_criteria": "<how a screenshot reviewer can verify it>"
    }
  ]
}

Rules:
- 3 to 8 steps. Each step must be achievable with clicks, typing and navigation.
- Start from opening the relevant website.
- No markdown, no commentary, JSON only.`

// Planner turns a natural language goal into an executable plan using the
// fast model tier.
type Planner struct {
	llm    schemas.LLMClient
	logger *zap.Logger
}

// NewPlanner builds a planner over the model client.
func NewPlanner(llm schemas.LLMClient, logger *zap.Logger) *Planner {
	return &Planner{llm: llm, logger: logger.Named("planner")}
}

// Plan asks the model to decompose the goal. An unusable model response
// degrades to a single-step fallback plan instead of failing the run.
func (p *Planner) Plan(ctx context.Context, goal string) (*schemas.Plan, error) {
	resp, err := p.llm.GenerateContent(ctx, schemas.GenerationRequest{
		Tier:              schemas.TierFast,
		SystemInstruction: plannerPrompt,
		Contents: []schemas.Content{{
			Role:  "user",
			Parts: []schemas.Part{{Text: fmt.Sprintf("Goal: %s", goal)}},
		}},
		Options: schemas.GenerationOptions{ForceJSONFormat: true},
	})
	if err != nil {
		return nil, fmt.Errorf("planner request failed: %w", err)
	}

	plan, err := parsePlan(resp.Text())
	if err != nil {
		p.logger.Warn("Unparseable plan from model, using fallback", zap.Error(err))
		return fallbackPlan(goal), nil
	}
	if plan.Goal == "" {
		plan.Goal = goal
	}
	renumber(plan)
	p.logger.Info("Plan generated", zap.Int("steps", len(plan.Steps)))
	return plan, nil
}

// parsePlan decodes the model output, tolerating markdown code fences.
func parsePlan(raw string) (*schemas.Plan, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty plan response")
	}
	var plan schemas.Plan
	if err := json.UnmarshalFromString(cleaned, &plan); err != nil {
		return nil, fmt.Errorf("invalid plan JSON: %w", err)
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("plan has no steps")
	}
	return &plan, nil
}

// stripFences removes a surrounding ```json ... ``` block if present.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

// renumber forces steps into 1..N order regardless of what the model emitted.
func renumber(plan *schemas.Plan) {
	for i := range plan.Steps {
		plan.Steps[i].Number = i + 1
	}
}

// fallbackPlan is the degenerate single-step plan used when the model output
// cannot be parsed. The agent still gets a chance to attempt the task.
func fallbackPlan(goal string) *schemas.Plan {
	return &schemas.Plan{
		Goal: goal,
		Steps: []schemas.Step{{
			Number:   1,
			Action:   "Navigate to https://www.google.com and attempt the task from there",
			Expected: "Google homepage loaded",
			Criteria: "Task attempted",
		}},
	}
}

// Describe renders the plan for terminal confirmation.
func Describe(plan *schemas.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", plan.Goal)
	for _, step := range plan.Steps {
		fmt.Fprintf(&b, "  %d. %s\n     expect: %s\n", step.Number, step.Action, step.Expected)
	}
	return b.String()
}
