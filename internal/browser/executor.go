// -- internal/browser/executor.go --
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
)

// Executor is the low-level browser surface the action dispatcher drives.
// Implementations translate these calls into CDP traffic; tests substitute a
// mock.
type Executor interface {
	Sleep(ctx context.Context, d time.Duration) error
	Navigate(ctx context.Context, url string) error
	// NavigateHistory moves through session history: negative is back,
	// positive is forward.
	NavigateHistory(ctx context.Context, delta int) error
	Reload(ctx context.Context) error
	DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error
	// DispatchStructuredKey presses a key combination (modifiers + key).
	DispatchStructuredKey(ctx context.Context, data schemas.KeyEventData) error
	// SendKeys types a string with an optional per-key delay.
	SendKeys(ctx context.Context, keys string, perKeyDelay time.Duration) error
	CaptureScreenshot(ctx context.Context) ([]byte, error)
	EvaluateJS(ctx context.Context, expr string, out any) error
	// WaitReady blocks until the document is interactive or the timeout
	// elapses. A timeout is reported as an error; callers that treat
	// readiness as best-effort ignore it.
	WaitReady(ctx context.Context, timeout time.Duration) error
	Location(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
}

// cdpExecutor implements Executor with chromedp actions. The runActionsFunc
// indirection keeps every method testable without a live browser.
type cdpExecutor struct {
	ctx            context.Context // session's master chromedp context
	logger         *zap.Logger
	runActionsFunc func(ctx context.Context, actions ...chromedp.Action) error
}

var _ Executor = (*cdpExecutor)(nil)

// newCDPExecutor wires the executor to a session context.
func newCDPExecutor(ctx context.Context, logger *zap.Logger) *cdpExecutor {
	e := &cdpExecutor{ctx: ctx, logger: logger.Named("executor")}
	e.runActionsFunc = e.runActions
	return e
}

// runActions executes chromedp actions on the session context while honoring
// the operational context's deadline.
func (e *cdpExecutor) runActions(opCtx context.Context, actions ...chromedp.Action) error {
	combined, cancel := CombineContext(e.ctx, opCtx)
	defer cancel()
	return chromedp.Run(combined, actions...)
}

func (e *cdpExecutor) Sleep(ctx context.Context, d time.Duration) error {
	return e.runActionsFunc(ctx, chromedp.Sleep(d))
}

func (e *cdpExecutor) Navigate(ctx context.Context, url string) error {
	timeout := 30 * time.Second
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := e.runActionsFunc(opCtx, chromedp.Navigate(url))
	if err != nil && opCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("navigate to %s timed out after %v: %w", url, timeout, opCtx.Err())
	}
	return err
}

func (e *cdpExecutor) NavigateHistory(ctx context.Context, delta int) error {
	opCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var action chromedp.Action
	switch {
	case delta < 0:
		action = chromedp.NavigateBack()
	case delta > 0:
		action = chromedp.NavigateForward()
	default:
		return nil
	}
	return e.runActionsFunc(opCtx, action)
}

func (e *cdpExecutor) Reload(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return e.runActionsFunc(opCtx, chromedp.Reload())
}

func (e *cdpExecutor) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	p := input.DispatchMouseEvent(input.MouseType(data.Type), data.X, data.Y).
		WithButton(input.MouseButton(data.Button)).
		WithButtons(data.Buttons).
		WithClickCount(int64(data.ClickCount))

	if data.Type == schemas.MouseWheel {
		p = p.WithDeltaX(data.DeltaX).WithDeltaY(data.DeltaY)
	}

	timeout := 10 * time.Second
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := e.runActionsFunc(opCtx, p)
	if err != nil && opCtx.Err() == context.DeadlineExceeded {
		e.logger.Debug("DispatchMouseEvent timed out", zap.Duration("timeout", timeout))
		return fmt.Errorf("mouse event timed out after %v: %w", timeout, opCtx.Err())
	}
	return err
}

func (e *cdpExecutor) DispatchStructuredKey(ctx context.Context, data schemas.KeyEventData) error {
	var cdpModifiers input.Modifier
	if data.Modifiers&schemas.ModAlt != 0 {
		cdpModifiers |= input.ModifierAlt
	}
	if data.Modifiers&schemas.ModCtrl != 0 {
		cdpModifiers |= input.ModifierCtrl
	}
	if data.Modifiers&schemas.ModMeta != 0 {
		cdpModifiers |= input.ModifierMeta
	}
	if data.Modifiers&schemas.ModShift != 0 {
		cdpModifiers |= input.ModifierShift
	}

	keyDown := input.DispatchKeyEvent(input.KeyDown).
		WithModifiers(cdpModifiers).
		WithKey(data.Key)
	keyUp := input.DispatchKeyEvent(input.KeyUp).
		WithModifiers(cdpModifiers).
		WithKey(data.Key)

	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return e.runActionsFunc(opCtx, keyDown, keyUp)
}

func (e *cdpExecutor) SendKeys(ctx context.Context, keys string, perKeyDelay time.Duration) error {
	timeout := 30 * time.Second
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	actions := []chromedp.Action{chromedp.KeyEvent(keys)}
	if perKeyDelay > 0 {
		// chromedp types the whole string at once; a per-key delay needs one
		// KeyEvent per rune with a sleep between them.
		runes := []rune(keys)
		actions = make([]chromedp.Action, 0, 2*len(runes))
		for i, r := range runes {
			if i > 0 {
				actions = append(actions, chromedp.Sleep(perKeyDelay))
			}
			actions = append(actions, chromedp.KeyEvent(string(r)))
		}
	}

	err := e.runActionsFunc(opCtx, actions...)
	if err != nil && opCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("send keys timed out after %v: %w", timeout, opCtx.Err())
	}
	return err
}

func (e *cdpExecutor) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	opCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var buf []byte
	if err := e.runActionsFunc(opCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot capture failed: %w", err)
	}
	return buf, nil
}

func (e *cdpExecutor) EvaluateJS(ctx context.Context, expr string, out any) error {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return e.runActionsFunc(opCtx, chromedp.Evaluate(expr, out))
}

func (e *cdpExecutor) WaitReady(ctx context.Context, timeout time.Duration) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	const readyExpr = `document.readyState === "interactive" || document.readyState === "complete"`
	err := e.runActionsFunc(opCtx, chromedp.Poll(readyExpr, nil, chromedp.WithPollingTimeout(timeout)))
	if err != nil {
		return fmt.Errorf("document not ready within %v: %w", timeout, err)
	}
	return nil
}

func (e *cdpExecutor) Location(ctx context.Context) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var loc string
	if err := e.runActionsFunc(opCtx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (e *cdpExecutor) Title(ctx context.Context) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var title string
	if err := e.runActionsFunc(opCtx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}
