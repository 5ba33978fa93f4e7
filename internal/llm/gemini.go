// -- internal/llm/gemini.go --
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
	"github.com/Mukuloli/browser-automation-1/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultEndpointFormat = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

// ErrEmptyResponse indicates the API returned no usable candidate.
var ErrEmptyResponse = fmt.Errorf("llm: empty response from API")

// GeminiClient talks to the Gemini generateContent REST API directly. It
// routes the fast and powerful tiers to their configured models and retries
// transient failures with exponential backoff.
type GeminiClient struct {
	cfg        config.LLMConfig
	httpClient *http.Client
	logger     *zap.Logger
	// onUsage, when set, receives the billed token total of every call.
	// The safety policy hooks its token budget here.
	onUsage func(totalTokens int)
}

var _ schemas.LLMClient = (*GeminiClient)(nil)

// NewGeminiClient builds a client for both model tiers.
func NewGeminiClient(cfg config.LLMConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.Fast.APIKey == "" && cfg.Powerful.APIKey == "" {
		return nil, fmt.Errorf("llm: no API key configured (set GEMINI_API_KEY)")
	}
	timeout := cfg.Powerful.APITimeout
	if cfg.Fast.APITimeout > timeout {
		timeout = cfg.Fast.APITimeout
	}
	return &GeminiClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("gemini"),
	}, nil
}

// SetUsageHook registers a callback invoked with the total token count of
// each successful call.
func (c *GeminiClient) SetUsageHook(fn func(totalTokens int)) {
	c.onUsage = fn
}

// Close releases client resources.
func (c *GeminiClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *GeminiClient) modelFor(tier schemas.ModelTier) config.LLMModelConfig {
	if tier == schemas.TierPowerful {
		return c.cfg.Powerful
	}
	return c.cfg.Fast
}

// -- Wire payloads --

type generationConfigPayload struct {
	Temperature      float64 `json:"temperature,omitempty"`
	TopP             float64 `json:"topP,omitempty"`
	TopK             int     `json:"topK,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type requestPayload struct {
	SystemInstruction *schemas.Content        `json:"system_instruction,omitempty"`
	Contents          []schemas.Content       `json:"contents"`
	Tools             []schemas.Tool          `json:"tools,omitempty"`
	GenerationConfig  generationConfigPayload `json:"generationConfig"`
}

type responsePayload struct {
	Candidates []struct {
		Content      schemas.Content `json:"content"`
		FinishReason string          `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GenerateContent sends a multimodal request and normalizes the first
// candidate into a GenerationResponse.
func (c *GeminiClient) GenerateContent(ctx context.Context, req schemas.GenerationRequest) (*schemas.GenerationResponse, error) {
	model := c.modelFor(req.Tier)

	payload := requestPayload{
		Contents: req.Contents,
		Tools:    req.Tools,
		GenerationConfig: generationConfigPayload{
			Temperature:     req.Options.Temperature,
			TopP:            req.Options.TopP,
			TopK:            req.Options.TopK,
			MaxOutputTokens: req.Options.MaxOutputTokens,
		},
	}
	if payload.GenerationConfig.Temperature == 0 {
		payload.GenerationConfig.Temperature = model.Temperature
	}
	if payload.GenerationConfig.TopP == 0 {
		payload.GenerationConfig.TopP = model.TopP
	}
	if payload.GenerationConfig.MaxOutputTokens == 0 {
		payload.GenerationConfig.MaxOutputTokens = model.MaxTokens
	}
	if req.Options.ForceJSONFormat {
		payload.GenerationConfig.ResponseMIMEType = "application/json"
	}
	if req.SystemInstruction != "" {
		payload.SystemInstruction = &schemas.Content{
			Parts: []schemas.Part{{Text: req.SystemInstruction}},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("llm: failed to marshal request: %w", err)
	}

	endpoint := model.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf(defaultEndpointFormat, model.Model)
	}

	var result *schemas.GenerationResponse
	operation := func() error {
		var opErr error
		result, opErr = c.doRequest(ctx, endpoint, model, body)
		return opErr
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	bo.MaxInterval = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}

	c.logger.Debug("Generation complete",
		zap.String("model", model.Model),
		zap.Int("prompt_tokens", result.Usage.PromptTokens),
		zap.Int("completion_tokens", result.Usage.CompletionTokens),
		zap.Int("total_tokens", result.Usage.TotalTokens),
	)
	if c.onUsage != nil {
		c.onUsage(result.Usage.TotalTokens)
	}
	return result, nil
}

// doRequest performs one HTTP attempt. Transient failures return plain errors
// so backoff retries them; everything else is wrapped in backoff.Permanent.
func (c *GeminiClient) doRequest(ctx context.Context, endpoint string, model config.LLMModelConfig, body []byte) (*schemas.GenerationResponse, error) {
	reqCtx := ctx
	if model.APITimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, model.APITimeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("llm: failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", model.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Network errors are retryable unless the parent context is done.
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llm: failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleAPIError(resp.StatusCode, respBody)
	}

	var parsed responsePayload
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("llm: failed to decode response: %w", err))
	}
	if len(parsed.Candidates) == 0 {
		return nil, backoff.Permanent(ErrEmptyResponse)
	}

	candidate := parsed.Candidates[0]
	switch candidate.FinishReason {
	case "SAFETY", "BLOCKLIST", "PROHIBITED_CONTENT":
		return nil, backoff.Permanent(fmt.Errorf("llm: generation blocked (finish reason %s)", candidate.FinishReason))
	}

	return &schemas.GenerationResponse{
		Content: candidate.Content,
		Usage: schemas.TokenUsage{
			PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
			CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      parsed.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

// handleAPIError classifies a non-200 response: rate limits and server
// hiccups are transient, everything else permanent.
func (c *GeminiClient) handleAPIError(status int, body []byte) error {
	var parsed responsePayload
	msg := string(body)
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		msg = parsed.Error.Message
	}

	apiErr := fmt.Errorf("llm: API error (status %d): %s", status, msg)
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		c.logger.Warn("Transient API error, will retry", zap.Int("status", status))
		return apiErr
	default:
		return backoff.Permanent(apiErr)
	}
}
