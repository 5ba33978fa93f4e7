// -- internal/agent/turns.go --
package agent

import (
	"context"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
	"github.com/Mukuloli/browser-automation-1/internal/agent/dispatch"
	"github.com/Mukuloli/browser-automation-1/internal/safety"
)

// ScreenshotSource provides optimized viewport captures.
type ScreenshotSource interface {
	Screenshot(ctx context.Context) (data []byte, mimeType string, err error)
}

// ErrEmergencyStopped aborts a turn loop when the stop flag trips mid-run.
var ErrEmergencyStopped = fmt.Errorf("emergency stop is active")

// TurnController runs the bounded observe-act loop for one step: send the
// page to the model, dispatch the actions it requests, feed the results and a
// fresh screenshot back, and repeat until the model answers with text or the
// turn budget runs out.
type TurnController struct {
	llm        schemas.LLMClient
	dispatcher *dispatch.Dispatcher
	shots      ScreenshotSource
	maxTurns   int
	logger     *zap.Logger
}

// NewTurnController wires the loop.
func NewTurnController(llm schemas.LLMClient, dispatcher *dispatch.Dispatcher, shots ScreenshotSource, maxTurns int, logger *zap.Logger) *TurnController {
	if maxTurns <= 0 {
		maxTurns = 5
	}
	return &TurnController{
		llm:        llm,
		dispatcher: dispatcher,
		shots:      shots,
		maxTurns:   maxTurns,
		logger:     logger.Named("turns"),
	}
}

// RunTurns executes up to maxTurns model turns for the given prompt and
// starting screenshot. It returns the model's final text, which is empty when
// the budget ran out before the model concluded.
func (tc *TurnController) RunTurns(ctx context.Context, prompt string, screenshot []byte, mimeType string) (string, error) {
	return tc.RunTurnsWithBudget(ctx, prompt, screenshot, mimeType, tc.maxTurns)
}

// RunTurnsWithBudget is RunTurns with an explicit turn budget, used by
// workflows that need longer or shorter phases.
func (tc *TurnController) RunTurnsWithBudget(ctx context.Context, prompt string, screenshot []byte, mimeType string, maxTurns int) (string, error) {
	if maxTurns <= 0 {
		maxTurns = tc.maxTurns
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	parts := []schemas.Part{{Text: prompt}}
	if len(screenshot) > 0 {
		parts = append(parts, inlinePart(screenshot, mimeType))
	}
	contents := []schemas.Content{{Role: "user", Parts: parts}}

	var finalText string
	for turn := 1; turn <= maxTurns; turn++ {
		if safety.IsEmergencyStopped() {
			return finalText, ErrEmergencyStopped
		}
		if err := ctx.Err(); err != nil {
			return finalText, err
		}

		resp, err := tc.llm.GenerateContent(ctx, schemas.GenerationRequest{
			Tier:              schemas.TierPowerful,
			SystemInstruction: actorSystemPrompt,
			Contents:          contents,
			Tools:             browserTools(),
		})
		if err != nil {
			return finalText, fmt.Errorf("model turn %d failed: %w", turn, err)
		}

		modelContent := resp.Content
		modelContent.Role = "model"
		contents = append(contents, modelContent)

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			finalText = resp.Text()
			tc.logger.Debug("Model concluded step", zap.Int("turn", turn))
			return finalText, nil
		}

		results := tc.dispatcher.ExecuteAll(ctx, calls)

		responseParts := make([]schemas.Part, 0, len(results)+1)
		for _, result := range results {
			responseParts = append(responseParts, schemas.Part{
				FunctionResponse: &schemas.FunctionResponse{
					Name:     result.Name,
					Response: result.FunctionResponsePayload(),
				},
			})
		}

		// Minor-only turns reuse the previous view instead of re-capturing.
		if !dispatch.ShouldSkipScreenshot(results) {
			shot, mime, err := tc.shots.Screenshot(ctx)
			if err != nil {
				tc.logger.Warn("Screenshot failed mid-step", zap.Error(err))
			} else {
				responseParts = append(responseParts, inlinePart(shot, mime))
			}
		}

		contents = append(contents, schemas.Content{Role: "user", Parts: responseParts})
		tc.logger.Debug("Turn executed",
			zap.Int("turn", turn),
			zap.Int("actions", len(calls)),
		)
	}

	tc.logger.Warn("Turn budget exhausted", zap.Int("max_turns", maxTurns))
	return finalText, nil
}

func inlinePart(data []byte, mimeType string) schemas.Part {
	return schemas.Part{InlineData: &schemas.InlineData{
		MIMEType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}}
}
