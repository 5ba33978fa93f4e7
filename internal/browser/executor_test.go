// -- internal/browser/executor_test.go --
package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
)

// newMockedExecutor returns an executor whose chromedp layer is replaced with
// a capture function.
func newMockedExecutor(t *testing.T, run func(ctx context.Context, actions ...chromedp.Action) error) *cdpExecutor {
	t.Helper()
	return &cdpExecutor{
		ctx:            context.Background(),
		logger:         zaptest.NewLogger(t),
		runActionsFunc: run,
	}
}

func TestDispatchMouseEvent_BuildsCDPParams(t *testing.T) {
	var captured []chromedp.Action
	exec := newMockedExecutor(t, func(_ context.Context, actions ...chromedp.Action) error {
		captured = actions
		return nil
	})

	data := schemas.MouseEventData{
		Type:       schemas.MousePress,
		X:          120.0,
		Y:          340.0,
		Button:     schemas.ButtonLeft,
		ClickCount: 1,
	}
	require.NoError(t, exec.DispatchMouseEvent(context.Background(), data))

	require.Len(t, captured, 1)
	params, ok := captured[0].(*input.DispatchMouseEventParams)
	require.True(t, ok, "action should be DispatchMouseEventParams")
	assert.Equal(t, input.MouseType(schemas.MousePress), params.Type)
	assert.Equal(t, 120.0, params.X)
	assert.Equal(t, 340.0, params.Y)
	assert.Equal(t, input.MouseButton(schemas.ButtonLeft), params.Button)
	assert.Equal(t, int64(1), params.ClickCount)
}

func TestDispatchMouseEvent_WheelCarriesDeltas(t *testing.T) {
	var captured []chromedp.Action
	exec := newMockedExecutor(t, func(_ context.Context, actions ...chromedp.Action) error {
		captured = actions
		return nil
	})

	data := schemas.MouseEventData{
		Type:   schemas.MouseWheel,
		X:      720,
		Y:      450,
		DeltaX: 0,
		DeltaY: 300,
	}
	require.NoError(t, exec.DispatchMouseEvent(context.Background(), data))

	require.Len(t, captured, 1)
	params, ok := captured[0].(*input.DispatchMouseEventParams)
	require.True(t, ok)
	assert.Equal(t, 300.0, params.DeltaY)
	assert.Zero(t, params.DeltaX)
}

func TestDispatchStructuredKey_ModifiersAndKeyUpDown(t *testing.T) {
	var captured []chromedp.Action
	exec := newMockedExecutor(t, func(_ context.Context, actions ...chromedp.Action) error {
		captured = actions
		return nil
	})

	data := schemas.KeyEventData{
		Key:       "a",
		Modifiers: schemas.ModCtrl | schemas.ModShift,
	}
	require.NoError(t, exec.DispatchStructuredKey(context.Background(), data))

	require.Len(t, captured, 2, "a structured key press is keyDown plus keyUp")
	down, ok := captured[0].(*input.DispatchKeyEventParams)
	require.True(t, ok)
	up, ok := captured[1].(*input.DispatchKeyEventParams)
	require.True(t, ok)

	assert.Equal(t, input.KeyDown, down.Type)
	assert.Equal(t, input.KeyUp, up.Type)
	assert.Equal(t, "a", down.Key)
	assert.Equal(t, input.ModifierCtrl|input.ModifierShift, down.Modifiers)
	assert.Equal(t, down.Modifiers, up.Modifiers)
}

func TestSendKeys_PassesThrough(t *testing.T) {
	var calls [][]chromedp.Action
	exec := newMockedExecutor(t, func(_ context.Context, actions ...chromedp.Action) error {
		calls = append(calls, actions)
		return nil
	})

	require.NoError(t, exec.SendKeys(context.Background(), "hello", 0))
	require.NoError(t, exec.SendKeys(context.Background(), "abc", time.Millisecond))

	require.Len(t, calls, 2)
	// Without a delay the whole string goes out as one KeyEvent.
	assert.Len(t, calls[0], 1)
	// With a delay each rune is its own KeyEvent with a sleep between them.
	assert.Len(t, calls[1], 5)
}

func TestNavigate_TimeoutWrapped(t *testing.T) {
	exec := newMockedExecutor(t, func(ctx context.Context, _ ...chromedp.Action) error {
		<-ctx.Done()
		return ctx.Err()
	})

	// Shrink the deadline through the caller context so the test stays fast.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := exec.Navigate(ctx, "https://example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCaptureScreenshot_ErrorWrapped(t *testing.T) {
	exec := newMockedExecutor(t, func(context.Context, ...chromedp.Action) error {
		return errors.New("target crashed")
	})

	_, err := exec.CaptureScreenshot(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "screenshot capture failed")
}

func TestNavigateHistory_ZeroDeltaIsNoop(t *testing.T) {
	called := false
	exec := newMockedExecutor(t, func(context.Context, ...chromedp.Action) error {
		called = true
		return nil
	})

	require.NoError(t, exec.NavigateHistory(context.Background(), 0))
	assert.False(t, called)

	require.NoError(t, exec.NavigateHistory(context.Background(), -1))
	require.NoError(t, exec.NavigateHistory(context.Background(), 1))
	assert.True(t, called)
}

func TestWaitReady_WrapsFailure(t *testing.T) {
	exec := newMockedExecutor(t, func(context.Context, ...chromedp.Action) error {
		return errors.New("polling timed out")
	})

	err := exec.WaitReady(context.Background(), 50*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document not ready")
}
