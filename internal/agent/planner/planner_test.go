// -- internal/agent/planner/planner_test.go --
package planner

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
)

type stubLLM struct {
	text string
	err  error
	last schemas.GenerationRequest
}

func (s *stubLLM) GenerateContent(_ context.Context, req schemas.GenerationRequest) (*schemas.GenerationResponse, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &schemas.GenerationResponse{
		Content: schemas.Content{Role: "model", Parts: []schemas.Part{{Text: s.text}}},
	}, nil
}

func (s *stubLLM) Close() error { return nil }

const validPlanJSON = `{
	"goal": "search flights",
	"steps": [
		{"step_number": 4, "action": "Open Google Flights", "expected_outcome": "flight search page", "success_criteria": "search form visible"},
		{"step_number": 9, "action": "Enter origin and destination", "expected_outcome": "fields filled", "success_criteria": "both fields populated"}
	]
}`

func TestPlan_ParsesModelOutput(t *testing.T) {
	llm := &stubLLM{text: validPlanJSON}
	p := NewPlanner(llm, zaptest.NewLogger(t))

	plan, err := p.Plan(context.Background(), "search flights")
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "search flights", plan.Goal)
	assert.Equal(t, "Open Google Flights", plan.Steps[0].Action)

	// Uses the fast tier and forces JSON output.
	assert.Equal(t, schemas.TierFast, llm.last.Tier)
	assert.True(t, llm.last.Options.ForceJSONFormat)
}

func TestPlan_RenumbersSteps(t *testing.T) {
	p := NewPlanner(&stubLLM{text: validPlanJSON}, zaptest.NewLogger(t))

	plan, err := p.Plan(context.Background(), "search flights")
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Steps[0].Number)
	assert.Equal(t, 2, plan.Steps[1].Number)
}

func TestPlan_StripsMarkdownFences(t *testing.T) {
	fenced := "```json\n" + validPlanJSON + "\n```"
	p := NewPlanner(&stubLLM{text: fenced}, zaptest.NewLogger(t))

	plan, err := p.Plan(context.Background(), "search flights")
	require.NoError(t, err)
	assert.Len(t, plan.Steps, 2)
}

func TestPlan_FallbackOnGarbage(t *testing.T) {
	p := NewPlanner(&stubLLM{text: "I'd be happy to help with that!"}, zaptest.NewLogger(t))

	plan, err := p.Plan(context.Background(), "buy socks")
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "buy socks", plan.Goal)
	assert.Contains(t, plan.Steps[0].Action, "google.com")
}

func TestPlan_FallbackOnEmptySteps(t *testing.T) {
	p := NewPlanner(&stubLLM{text: `{"goal": "x", "steps": []}`}, zaptest.NewLogger(t))

	plan, err := p.Plan(context.Background(), "goal")
	require.NoError(t, err)
	assert.Len(t, plan.Steps, 1)
}

func TestPlan_ModelErrorPropagates(t *testing.T) {
	p := NewPlanner(&stubLLM{err: fmt.Errorf("quota exceeded")}, zaptest.NewLogger(t))

	_, err := p.Plan(context.Background(), "goal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestPlan_FillsMissingGoal(t *testing.T) {
	noGoal := `{"steps": [{"step_number": 1, "action": "do it", "expected_outcome": "done", "success_criteria": "done"}]}`
	p := NewPlanner(&stubLLM{text: noGoal}, zaptest.NewLogger(t))

	plan, err := p.Plan(context.Background(), "original goal")
	require.NoError(t, err)
	assert.Equal(t, "original goal", plan.Goal)
}

func TestDescribe(t *testing.T) {
	plan := &schemas.Plan{
		Goal: "find a flight",
		Steps: []schemas.Step{
			{Number: 1, Action: "Open the site", Expected: "homepage"},
		},
	}
	out := Describe(plan)
	assert.Contains(t, out, "Goal: find a flight")
	assert.Contains(t, out, "1. Open the site")
	assert.Contains(t, out, "expect: homepage")
}
