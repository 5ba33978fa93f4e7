// -- internal/agent/turns_test.go --
package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
	"github.com/Mukuloli/browser-automation-1/internal/agent/dispatch"
	"github.com/Mukuloli/browser-automation-1/internal/config"
	"github.com/Mukuloli/browser-automation-1/internal/safety"
)

// scriptedLLM replays a fixed sequence of model responses and records every
// request it receives.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []*schemas.GenerationResponse
	err       error
	requests  []schemas.GenerationRequest
}

func (s *scriptedLLM) GenerateContent(_ context.Context, req schemas.GenerationRequest) (*schemas.GenerationResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return textResponse("done"), nil
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

func (s *scriptedLLM) Close() error { return nil }

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *scriptedLLM) request(i int) schemas.GenerationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

func textResponse(text string) *schemas.GenerationResponse {
	return &schemas.GenerationResponse{
		Content: schemas.Content{Role: "model", Parts: []schemas.Part{{Text: text}}},
	}
}

func callResponse(calls ...schemas.FunctionCall) *schemas.GenerationResponse {
	parts := make([]schemas.Part, 0, len(calls))
	for i := range calls {
		parts = append(parts, schemas.Part{FunctionCall: &calls[i]})
	}
	return &schemas.GenerationResponse{Content: schemas.Content{Role: "model", Parts: parts}}
}

// stubExecutor is an inert browser.Executor that records dispatched events.
type stubExecutor struct {
	mu          sync.Mutex
	mouseEvents []schemas.MouseEventData
	typed       []string
	location    string
}

func (s *stubExecutor) Sleep(context.Context, time.Duration) error { return nil }
func (s *stubExecutor) Navigate(context.Context, string) error     { return nil }
func (s *stubExecutor) NavigateHistory(context.Context, int) error { return nil }
func (s *stubExecutor) Reload(context.Context) error               { return nil }

func (s *stubExecutor) DispatchMouseEvent(_ context.Context, data schemas.MouseEventData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mouseEvents = append(s.mouseEvents, data)
	return nil
}

func (s *stubExecutor) DispatchStructuredKey(context.Context, schemas.KeyEventData) error {
	return nil
}

func (s *stubExecutor) SendKeys(_ context.Context, keys string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typed = append(s.typed, keys)
	return nil
}

func (s *stubExecutor) CaptureScreenshot(context.Context) ([]byte, error) { return []byte("png"), nil }
func (s *stubExecutor) EvaluateJS(context.Context, string, any) error     { return nil }
func (s *stubExecutor) WaitReady(context.Context, time.Duration) error    { return nil }

func (s *stubExecutor) Location(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.location == "" {
		return "about:blank", nil
	}
	return s.location, nil
}

func (s *stubExecutor) Title(context.Context) (string, error) { return "Test Page", nil }

func (s *stubExecutor) mouseEventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mouseEvents)
}

// countingShots counts screenshot captures.
type countingShots struct {
	mu    sync.Mutex
	count int
	err   error
}

func (c *countingShots) Screenshot(context.Context) ([]byte, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, "", c.err
	}
	c.count++
	return []byte(fmt.Sprintf("shot-%d", c.count)), "image/png", nil
}

func (c *countingShots) captures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func newTestDispatcher(t *testing.T, exec *stubExecutor) *dispatch.Dispatcher {
	t.Helper()
	safety.ResetEmergencyStop()
	policy := safety.NewPolicy(config.SafetyConfig{
		MaxActions:     1000,
		MaxTokens:      1_000_000,
		SessionTimeout: time.Hour,
	}, nil, zaptest.NewLogger(t))
	browserCfg := config.BrowserConfig{
		SettleTimeout: 10 * time.Millisecond,
		SettleDelay:   time.Millisecond,
	}
	return dispatch.NewDispatcher(exec, policy, schemas.Viewport{Width: 1440, Height: 900}, browserCfg, zaptest.NewLogger(t))
}

func newTestTurns(t *testing.T, llm schemas.LLMClient, exec *stubExecutor, shots ScreenshotSource, maxTurns int) *TurnController {
	t.Helper()
	return NewTurnController(llm, newTestDispatcher(t, exec), shots, maxTurns, zaptest.NewLogger(t))
}

func TestRunTurns_TextOnlyConcludesImmediately(t *testing.T) {
	llm := &scriptedLLM{responses: []*schemas.GenerationResponse{textResponse("step finished")}}
	exec := &stubExecutor{}
	shots := &countingShots{}
	tc := newTestTurns(t, llm, exec, shots, 5)

	text, err := tc.RunTurns(context.Background(), "do the thing", []byte("initial"), "image/png")

	require.NoError(t, err)
	assert.Equal(t, "step finished", text)
	assert.Equal(t, 1, llm.callCount())
	assert.Zero(t, shots.captures(), "no actions ran, so no fresh screenshot")
}

func TestRunTurns_ExecutesActionsThenConcludes(t *testing.T) {
	llm := &scriptedLLM{responses: []*schemas.GenerationResponse{
		callResponse(schemas.FunctionCall{Name: "click_at", Args: map[string]any{"x": float64(500), "y": float64(500)}}),
		textResponse("clicked it"),
	}}
	exec := &stubExecutor{}
	shots := &countingShots{}
	tc := newTestTurns(t, llm, exec, shots, 5)

	text, err := tc.RunTurns(context.Background(), "click the button", []byte("initial"), "image/png")

	require.NoError(t, err)
	assert.Equal(t, "clicked it", text)
	assert.Equal(t, 2, llm.callCount())
	assert.Equal(t, 3, exec.mouseEventCount(), "move, press, release")
	assert.Equal(t, 1, shots.captures())

	// The second request must carry the action result and a fresh screenshot.
	second := llm.request(1)
	last := second.Contents[len(second.Contents)-1]
	assert.Equal(t, "user", last.Role)
	var sawResponse, sawImage bool
	for _, part := range last.Parts {
		if part.FunctionResponse != nil {
			sawResponse = true
			assert.Equal(t, "click_at", part.FunctionResponse.Name)
			assert.Equal(t, "success", part.FunctionResponse.Response["result"])
		}
		if part.InlineData != nil {
			sawImage = true
		}
	}
	assert.True(t, sawResponse)
	assert.True(t, sawImage)
}

func TestRunTurns_MinorActionsSkipScreenshot(t *testing.T) {
	llm := &scriptedLLM{responses: []*schemas.GenerationResponse{
		callResponse(schemas.FunctionCall{Name: "wait", Args: map[string]any{"seconds": float64(0.01)}}),
		textResponse("waited"),
	}}
	exec := &stubExecutor{}
	shots := &countingShots{}
	tc := newTestTurns(t, llm, exec, shots, 5)

	_, err := tc.RunTurns(context.Background(), "wait a moment", []byte("initial"), "image/png")

	require.NoError(t, err)
	assert.Zero(t, shots.captures(), "minor-only turns reuse the previous view")
}

func TestRunTurns_BudgetExhausted(t *testing.T) {
	// The model keeps acting forever; the loop must stop at the budget.
	llm := &scriptedLLM{responses: []*schemas.GenerationResponse{
		callResponse(schemas.FunctionCall{Name: "hover_at", Args: map[string]any{"x": float64(10), "y": float64(10)}}),
	}}
	exec := &stubExecutor{}
	tc := newTestTurns(t, llm, exec, &countingShots{}, 3)

	text, err := tc.RunTurns(context.Background(), "loop forever", []byte("initial"), "image/png")

	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, 3, llm.callCount())
}

func TestRunTurns_EmergencyStopAborts(t *testing.T) {
	llm := &scriptedLLM{}
	tc := newTestTurns(t, llm, &stubExecutor{}, &countingShots{}, 5)

	safety.TriggerEmergencyStop()
	t.Cleanup(safety.ResetEmergencyStop)

	_, err := tc.RunTurns(context.Background(), "anything", nil, "")
	require.ErrorIs(t, err, ErrEmergencyStopped)
	assert.Zero(t, llm.callCount())
}

func TestRunTurns_ModelErrorPropagates(t *testing.T) {
	llm := &scriptedLLM{err: fmt.Errorf("model unavailable")}
	tc := newTestTurns(t, llm, &stubExecutor{}, &countingShots{}, 5)

	_, err := tc.RunTurns(context.Background(), "anything", nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestRunTurns_UsesPowerfulTierWithTools(t *testing.T) {
	llm := &scriptedLLM{responses: []*schemas.GenerationResponse{textResponse("ok")}}
	tc := newTestTurns(t, llm, &stubExecutor{}, &countingShots{}, 5)

	_, err := tc.RunTurns(context.Background(), "prompt", []byte("shot"), "image/png")
	require.NoError(t, err)

	req := llm.request(0)
	assert.Equal(t, schemas.TierPowerful, req.Tier)
	require.NotEmpty(t, req.Tools)
	assert.NotEmpty(t, req.Tools[0].FunctionDeclarations)
	assert.NotEmpty(t, req.SystemInstruction)
}
