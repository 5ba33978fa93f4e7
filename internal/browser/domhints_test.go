// -- internal/browser/domhints_test.go --
package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
)

// hintExecutor stubs only what hint extraction touches.
type hintExecutor struct {
	Executor
	elements []schemas.InteractiveElement
	err      error
}

func (h *hintExecutor) EvaluateJS(_ context.Context, _ string, out any) error {
	if h.err != nil {
		return h.err
	}
	if dst, ok := out.(*[]schemas.InteractiveElement); ok {
		*dst = h.elements
	}
	return nil
}

func (h *hintExecutor) Sleep(context.Context, time.Duration) error { return nil }

func TestExtractInteractiveElements(t *testing.T) {
	exec := &hintExecutor{elements: []schemas.InteractiveElement{
		{Tag: "button", Label: "Search", X: 512, Y: 300},
		{Tag: "input", Label: "", X: 400, Y: 250},
	}}

	elements, err := ExtractInteractiveElements(context.Background(), exec)
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, "button", elements[0].Tag)
}

func TestExtractInteractiveElements_CapsAtLimit(t *testing.T) {
	many := make([]schemas.InteractiveElement, maxHintElements+10)
	for i := range many {
		many[i] = schemas.InteractiveElement{Tag: "a", Label: "link", X: i, Y: i}
	}
	exec := &hintExecutor{elements: many}

	elements, err := ExtractInteractiveElements(context.Background(), exec)
	require.NoError(t, err)
	assert.Len(t, elements, maxHintElements)
}

func TestExtractInteractiveElements_Error(t *testing.T) {
	exec := &hintExecutor{err: errors.New("execution context destroyed")}

	_, err := ExtractInteractiveElements(context.Background(), exec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to extract interactive elements")
}

func TestFormatDOMHints(t *testing.T) {
	out := FormatDOMHints([]schemas.InteractiveElement{
		{Tag: "button", Label: "Search flights", X: 512, Y: 300},
		{Tag: "input", Label: "", X: 400, Y: 250},
	})

	assert.Contains(t, out, "coordinates in 0-1000 space")
	assert.Contains(t, out, `<button> "Search flights" at (512, 300)`)
	assert.Contains(t, out, `<input> "(unlabeled)" at (400, 250)`)
}

func TestFormatDOMHints_EmptyList(t *testing.T) {
	assert.Empty(t, FormatDOMHints(nil))
	assert.Empty(t, FormatDOMHints([]schemas.InteractiveElement{}))
}
