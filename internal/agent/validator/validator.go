// -- internal/agent/validator/validator.go --
package validator

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const validatorPrompt = `You are a strict validator for a browser automation agent.
You receive a screenshot and a description of the expected page state.

Judge ONLY what is visible in the screenshot. Be strict: when in doubt, fail.

Respond with ONLY a JSON object:
{
  "success": true or false,
  "confidence": 0.0 to 1.0,
  "reason": "<one sentence>",
  "error_type": null or one of "captcha", "error_page", "not_found", "blocked", "unexpected"
}`

// Validator judges step screenshots with the fast vision model and persists
// error artifacts for failed steps.
type Validator struct {
	llm      schemas.LLMClient
	errorDir string
	logger   *zap.Logger
}

// NewValidator builds a validator writing artifacts under errorDir.
func NewValidator(llm schemas.LLMClient, errorDir string, logger *zap.Logger) *Validator {
	return &Validator{llm: llm, errorDir: errorDir, logger: logger.Named("validator")}
}

// Validate asks the model whether the screenshot matches the expected state.
// Any unparseable or failed judgment defaults to failure, never success.
func (v *Validator) Validate(ctx context.Context, screenshot []byte, mimeType, expected string) schemas.ValidationResult {
	if mimeType == "" {
		mimeType = "image/png"
	}
	resp, err := v.llm.GenerateContent(ctx, schemas.GenerationRequest{
		Tier:              schemas.TierFast,
		SystemInstruction: validatorPrompt,
		Contents: []schemas.Content{{
			Role: "user",
			Parts: []schemas.Part{
				{Text: fmt.Sprintf("Expected page state: %s", expected)},
				{InlineData: &schemas.InlineData{
					MIMEType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(screenshot),
				}},
			},
		}},
		Options: schemas.GenerationOptions{ForceJSONFormat: true},
	})
	if err != nil {
		v.logger.Warn("Validation request failed", zap.Error(err))
		return failedResult(fmt.Sprintf("validation request failed: %v", err))
	}

	result, err := parseResult(resp.Text())
	if err != nil {
		v.logger.Warn("Unparseable validation response", zap.Error(err))
		return failedResult("validator response could not be parsed")
	}
	return result
}

// parseResult decodes the model's judgment, tolerating markdown fences.
func parseResult(raw string) (schemas.ValidationResult, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}
	var result schemas.ValidationResult
	if err := json.UnmarshalFromString(cleaned, &result); err != nil {
		return schemas.ValidationResult{}, err
	}
	if !result.Success && result.ErrorType == "" {
		result.ErrorType = "unexpected"
	}
	return result, nil
}

func failedResult(reason string) schemas.ValidationResult {
	return schemas.ValidationResult{
		Success:    false,
		Confidence: 0,
		Reason:     reason,
		ErrorType:  "unexpected",
	}
}

// errorSidecar is the JSON metadata written beside an error screenshot.
type errorSidecar struct {
	Timestamp string `json:"timestamp"`
	Step      int    `json:"step"`
	ErrorType string `json:"error_type"`
	Reason    string `json:"reason"`
}

// SaveErrorArtifact writes the failing screenshot plus a JSON sidecar named
// error_<timestamp>_step<N> and returns the screenshot path.
func (v *Validator) SaveErrorArtifact(screenshot []byte, stepNum int, errType, reason string) (string, error) {
	if err := os.MkdirAll(v.errorDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create error dir: %w", err)
	}

	stamp := time.Now().Format("20060102_150405")
	base := fmt.Sprintf("error_%s_step%d", stamp, stepNum)
	imgPath := filepath.Join(v.errorDir, base+".png")
	metaPath := filepath.Join(v.errorDir, base+".json")

	if err := os.WriteFile(imgPath, screenshot, 0o644); err != nil {
		return "", fmt.Errorf("failed to write error screenshot: %w", err)
	}

	meta, err := json.MarshalIndent(errorSidecar{
		Timestamp: stamp,
		Step:      stepNum,
		ErrorType: errType,
		Reason:    reason,
	}, "", "  ")
	if err == nil {
		if werr := os.WriteFile(metaPath, meta, 0o644); werr != nil {
			v.logger.Debug("Failed to write error sidecar", zap.Error(werr))
		}
	}

	v.logger.Info("Error artifact saved",
		zap.String("path", imgPath),
		zap.Int("step", stepNum),
		zap.String("error_type", errType),
	)
	return imgPath, nil
}
