// -- internal/agent/validator/validator_test.go --
package validator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
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

func TestValidate_Success(t *testing.T) {
	llm := &stubLLM{text: `{"success": true, "confidence": 0.95, "reason": "search results visible", "error_type": null}`}
	v := NewValidator(llm, t.TempDir(), zaptest.NewLogger(t))

	result := v.Validate(context.Background(), []byte("png-bytes"), "image/png", "search results for flights")

	assert.True(t, result.Success)
	assert.InDelta(t, 0.95, result.Confidence, 0.001)
	assert.Empty(t, result.ErrorType)

	// The screenshot travels as inline image data.
	require.Len(t, llm.last.Contents, 1)
	var sawImage bool
	for _, part := range llm.last.Contents[0].Parts {
		if part.InlineData != nil {
			sawImage = true
			assert.Equal(t, "image/png", part.InlineData.MIMEType)
		}
	}
	assert.True(t, sawImage)
}

func TestValidate_FailureWithErrorType(t *testing.T) {
	llm := &stubLLM{text: "```json\n" + `{"success": false, "confidence": 0.8, "reason": "a captcha is blocking the page", "error_type": "captcha"}` + "\n```"}
	v := NewValidator(llm, t.TempDir(), zaptest.NewLogger(t))

	result := v.Validate(context.Background(), []byte("x"), "image/jpeg", "homepage")
	assert.False(t, result.Success)
	assert.Equal(t, "captcha", result.ErrorType)
}

func TestValidate_DefaultsToFailure(t *testing.T) {
	tests := []struct {
		name string
		llm  *stubLLM
	}{
		{"request error", &stubLLM{err: fmt.Errorf("api down")}},
		{"unparseable response", &stubLLM{text: "looks good to me!"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := NewValidator(tc.llm, t.TempDir(), zaptest.NewLogger(t))
			result := v.Validate(context.Background(), []byte("x"), "", "anything")
			assert.False(t, result.Success)
			assert.Equal(t, "unexpected", result.ErrorType)
			assert.Zero(t, result.Confidence)
		})
	}
}

func TestValidate_FailureWithoutErrorTypeGetsUnexpected(t *testing.T) {
	llm := &stubLLM{text: `{"success": false, "confidence": 0.6, "reason": "wrong page"}`}
	v := NewValidator(llm, t.TempDir(), zaptest.NewLogger(t))

	result := v.Validate(context.Background(), []byte("x"), "image/png", "expected")
	assert.False(t, result.Success)
	assert.Equal(t, "unexpected", result.ErrorType)
}

func TestSaveErrorArtifact(t *testing.T) {
	dir := t.TempDir()
	v := NewValidator(&stubLLM{}, dir, zaptest.NewLogger(t))

	imgPath, err := v.SaveErrorArtifact([]byte("fake-png"), 3, "error_page", "server returned 500")
	require.NoError(t, err)

	data, err := os.ReadFile(imgPath)
	require.NoError(t, err)
	assert.Equal(t, "fake-png", string(data))
	assert.Regexp(t, `error_\d{8}_\d{6}_step3\.png$`, imgPath)

	metaPath := imgPath[:len(imgPath)-len(".png")] + ".json"
	meta, err := os.ReadFile(metaPath)
	require.NoError(t, err)

	var sidecar errorSidecar
	require.NoError(t, json.Unmarshal(meta, &sidecar))
	assert.Equal(t, 3, sidecar.Step)
	assert.Equal(t, "error_page", sidecar.ErrorType)
	assert.Equal(t, "server returned 500", sidecar.Reason)
}

func TestSaveErrorArtifact_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "errors")
	v := NewValidator(&stubLLM{}, dir, zaptest.NewLogger(t))

	imgPath, err := v.SaveErrorArtifact([]byte("x"), 1, "blocked", "access denied")
	require.NoError(t, err)
	_, err = os.Stat(imgPath)
	require.NoError(t, err)
}
