// -- api/schemas/llm.go --
package schemas

import "context"

// ModelTier selects a model by a preference for speed versus capability.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Planner, validator, captcha reading.
	TierPowerful ModelTier = "powerful" // The acting vision model.
)

// Part is one piece of multimodal content sent to or received from the model.
// Exactly one field is populated.
type Part struct {
	Text             string            `json:"text,omitempty"`
	InlineData       *InlineData       `json:"inline_data,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// InlineData carries base64-encoded media, typically a viewport screenshot.
type InlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// FunctionResponse reports a tool result back to the model.
type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// Content is a single conversational turn.
type Content struct {
	Role  string `json:"role"` // "user" or "model"
	Parts []Part `json:"parts"`
}

// FunctionDeclaration describes one callable tool in the Gemini schema format.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Tool groups function declarations for the request payload.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"function_declarations,omitempty"`
}

// GenerationOptions controls the generation process.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"top_p"`
	TopK            int     `json:"top_k"`
	MaxOutputTokens int     `json:"max_output_tokens"`
	ForceJSONFormat bool    `json:"force_json_format"`
}

// GenerationRequest encapsulates a complete multimodal request to the LLM.
type GenerationRequest struct {
	Tier              ModelTier         `json:"tier"`
	SystemInstruction string            `json:"system_instruction,omitempty"`
	Contents          []Content         `json:"contents"`
	Tools             []Tool            `json:"tools,omitempty"`
	Options           GenerationOptions `json:"options"`
}

// TokenUsage reports what the provider billed for a single call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerationResponse is the normalized model output.
type GenerationResponse struct {
	Content Content    `json:"content"`
	Usage   TokenUsage `json:"usage"`
}

// Text concatenates all text parts of the response.
func (r *GenerationResponse) Text() string {
	var out string
	for _, p := range r.Content.Parts {
		out += p.Text
	}
	return out
}

// FunctionCalls returns the tool invocations requested by the model, in order.
func (r *GenerationResponse) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range r.Content.Parts {
		if p.FunctionCall != nil {
			calls = append(calls, *p.FunctionCall)
		}
	}
	return calls
}

// HasFunctionCalls reports whether the model requested any tool invocation.
func (r *GenerationResponse) HasFunctionCalls() bool {
	for _, p := range r.Content.Parts {
		if p.FunctionCall != nil {
			return true
		}
	}
	return false
}

// LLMClient abstracts the underlying model provider.
type LLMClient interface {
	GenerateContent(ctx context.Context, req GenerationRequest) (*GenerationResponse, error)
	Close() error
}
