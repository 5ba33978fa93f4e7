// -- internal/agent/dispatch/dispatcher.go --
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
	"github.com/Mukuloli/browser-automation-1/internal/browser"
	"github.com/Mukuloli/browser-automation-1/internal/config"
	"github.com/Mukuloli/browser-automation-1/internal/safety"
)

// CaptchaSolver is the optional hook the solve_captcha action delegates to.
type CaptchaSolver interface {
	Solve(ctx context.Context) (string, error)
}

// handlerFunc executes one action and returns a human-readable detail string.
type handlerFunc func(ctx context.Context, args map[string]any) (string, error)

// minorActions do not change what the page looks like, so a turn consisting
// solely of them reuses the previous screenshot.
var minorActions = map[string]bool{
	"hover_at": true,
	"wait":     true,
}

// Dispatcher maps model function calls onto browser executor operations. All
// model coordinates arrive in the 0-1000 space and are denormalized against
// the viewport before dispatch.
type Dispatcher struct {
	exec     browser.Executor
	policy   *safety.Policy
	viewport schemas.Viewport
	logger   *zap.Logger
	captcha  CaptchaSolver

	settleTimeout time.Duration
	settleDelay   time.Duration

	handlers map[string]handlerFunc
}

// NewDispatcher wires the action table.
func NewDispatcher(exec browser.Executor, policy *safety.Policy, viewport schemas.Viewport, cfg config.BrowserConfig, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		exec:          exec,
		policy:        policy,
		viewport:      viewport,
		logger:        logger.Named("dispatch"),
		settleTimeout: cfg.SettleTimeout,
		settleDelay:   cfg.SettleDelay,
	}
	if d.settleTimeout <= 0 {
		d.settleTimeout = 3 * time.Second
	}
	if d.settleDelay <= 0 {
		d.settleDelay = 300 * time.Millisecond
	}

	d.handlers = map[string]handlerFunc{
		"open_web_browser": d.openWebBrowser,
		"navigate":         d.navigate,
		"go_to_url":        d.navigate,
		"go_back":          d.goBack,
		"go_forward":       d.goForward,
		"refresh":          d.refresh,
		"click_at":         d.clickAt,
		"double_click_at":  d.doubleClickAt,
		"right_click_at":   d.rightClickAt,
		"hover_at":         d.hoverAt,
		"type_text":        d.typeText,
		"type_text_at":     d.typeTextAt,
		"press_key":        d.pressKey,
		"key_combination":  d.pressKey,
		"scroll":           d.scroll,
		"scroll_up":        d.scrollUp,
		"scroll_down":      d.scrollDown,
		"scroll_document":  d.scrollDocument,
		"search":           d.search,
		"wait":             d.wait,
		"solve_captcha":    d.solveCaptcha,
	}
	return d
}

// SetCaptchaSolver installs the solve_captcha delegate.
func (d *Dispatcher) SetCaptchaSolver(s CaptchaSolver) { d.captcha = s }

// Execute runs a single model-requested action. Every failure mode, including
// unknown action names and handler panics, is converted into a failed
// ActionResult so the model can react; the process never dies on bad input.
func (d *Dispatcher) Execute(ctx context.Context, call schemas.FunctionCall) (result schemas.ActionResult) {
	result = schemas.ActionResult{Name: call.Name}

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	// The model sometimes attaches a safety_decision signal asking for human
	// confirmation. Policy enforcement happens on this side, so the signal is
	// acknowledged and stripped before dispatch.
	if _, ok := args["safety_decision"]; ok {
		delete(args, "safety_decision")
		result.SafetyAcknowledged = true
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Action handler panicked",
				zap.String("action", call.Name), zap.Any("panic", r))
			result.OK = false
			result.Error = fmt.Sprintf("internal error executing %s: %v", call.Name, r)
		}
	}()

	if violation := d.policy.CheckAction(call.Name, args); violation != nil {
		result.OK = false
		result.Blocked = true
		result.Error = fmt.Sprintf("blocked by safety policy (%s): %s", violation.Rule, violation.Detail)
		return result
	}

	handler, ok := d.handlers[call.Name]
	if !ok {
		d.logger.Warn("Unknown action requested", zap.String("action", call.Name))
		result.OK = false
		result.Error = fmt.Sprintf("unknown action %q", call.Name)
		return result
	}

	detail, err := handler(ctx, args)
	if err != nil {
		d.logger.Warn("Action failed", zap.String("action", call.Name), zap.Error(err))
		result.OK = false
		result.Error = err.Error()
		return result
	}

	d.settle(ctx)

	result.OK = true
	result.Detail = detail
	d.logger.Debug("Action executed", zap.String("action", call.Name), zap.String("detail", detail))
	return result
}

// ExecuteAll dispatches a batch of calls in order.
func (d *Dispatcher) ExecuteAll(ctx context.Context, calls []schemas.FunctionCall) []schemas.ActionResult {
	results := make([]schemas.ActionResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, d.Execute(ctx, call))
	}
	return results
}

// ShouldSkipScreenshot reports whether a fresh screenshot can be skipped:
// only when at least one action ran and every one of them was minor.
func ShouldSkipScreenshot(results []schemas.ActionResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !minorActions[r.Name] {
			return false
		}
	}
	return true
}

// settle gives the page a moment to react after an action. Readiness is best
// effort; a slow page is the model's problem to observe, not ours to fail on.
func (d *Dispatcher) settle(ctx context.Context) {
	if err := d.exec.WaitReady(ctx, d.settleTimeout); err != nil {
		d.logger.Debug("Settle wait elapsed without readiness", zap.Error(err))
	}
	_ = d.exec.Sleep(ctx, d.settleDelay)
}

// -- Coordinate denormalization --

// denormalize maps a 0-1000 model coordinate onto a pixel extent. Values
// above 1000 are already pixels and pass through unscaled.
func denormalize(v float64, extent int) float64 {
	px := int(v)
	if v <= 1000 {
		px = int(v / 1000.0 * float64(extent))
	}
	if px < 0 {
		px = 0
	}
	if px >= extent {
		px = extent - 1
	}
	return float64(px)
}

func (d *Dispatcher) denormX(v float64) float64 { return denormalize(v, d.viewport.Width) }
func (d *Dispatcher) denormY(v float64) float64 { return denormalize(v, d.viewport.Height) }

// -- Argument helpers --

func argFloat(args map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch v := args[key].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		}
	}
	return 0, false
}

func argString(args map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := args[key].(string); ok {
			return v, true
		}
	}
	return "", false
}

func argBool(args map[string]any, keys ...string) bool {
	for _, key := range keys {
		switch v := args[key].(type) {
		case bool:
			return v
		case string:
			if strings.EqualFold(v, "true") {
				return true
			}
		}
	}
	return false
}

func requireCoords(args map[string]any) (x, y float64, err error) {
	xv, okX := argFloat(args, "x")
	yv, okY := argFloat(args, "y")
	if !okX || !okY {
		return 0, 0, fmt.Errorf("missing x/y coordinates")
	}
	return xv, yv, nil
}

// -- Mouse primitives --

func (d *Dispatcher) clickSequence(ctx context.Context, x, y float64, button schemas.MouseButton, clicks int) error {
	move := schemas.MouseEventData{Type: schemas.MouseMove, X: x, Y: y, Button: schemas.ButtonNone}
	if err := d.exec.DispatchMouseEvent(ctx, move); err != nil {
		return err
	}
	for i := 1; i <= clicks; i++ {
		press := schemas.MouseEventData{Type: schemas.MousePress, X: x, Y: y, Button: button, ClickCount: i}
		release := schemas.MouseEventData{Type: schemas.MouseRelease, X: x, Y: y, Button: button, ClickCount: i}
		if err := d.exec.DispatchMouseEvent(ctx, press); err != nil {
			return err
		}
		if err := d.exec.DispatchMouseEvent(ctx, release); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) wheel(ctx context.Context, x, y, deltaX, deltaY float64) error {
	move := schemas.MouseEventData{Type: schemas.MouseMove, X: x, Y: y, Button: schemas.ButtonNone}
	if err := d.exec.DispatchMouseEvent(ctx, move); err != nil {
		return err
	}
	return d.exec.DispatchMouseEvent(ctx, schemas.MouseEventData{
		Type: schemas.MouseWheel, X: x, Y: y, DeltaX: deltaX, DeltaY: deltaY,
	})
}

// -- Action handlers --

func (d *Dispatcher) openWebBrowser(ctx context.Context, _ map[string]any) (string, error) {
	loc, err := d.exec.Location(ctx)
	if err != nil {
		return "", err
	}
	// A page is already loaded; opening the browser again is a no-op.
	if loc != "" && loc != "about:blank" && !strings.HasPrefix(loc, "chrome://") {
		return fmt.Sprintf("browser already open at %s", loc), nil
	}
	return "browser ready", nil
}

func (d *Dispatcher) navigate(ctx context.Context, args map[string]any) (string, error) {
	rawURL, ok := argString(args, "url")
	if !ok || rawURL == "" {
		return "", fmt.Errorf("navigate requires a url argument")
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	if err := d.exec.Navigate(ctx, rawURL); err != nil {
		return "", err
	}
	// Give slow pages a network-idle grace period, then a beat to paint.
	if err := d.exec.WaitReady(ctx, 5*time.Second); err != nil {
		d.logger.Debug("Page not ready after navigation", zap.Error(err))
	}
	_ = d.exec.Sleep(ctx, time.Second)
	return fmt.Sprintf("navigated to %s", rawURL), nil
}

func (d *Dispatcher) goBack(ctx context.Context, _ map[string]any) (string, error) {
	if err := d.exec.NavigateHistory(ctx, -1); err != nil {
		return "", err
	}
	return "navigated back", nil
}

func (d *Dispatcher) goForward(ctx context.Context, _ map[string]any) (string, error) {
	if err := d.exec.NavigateHistory(ctx, 1); err != nil {
		return "", err
	}
	return "navigated forward", nil
}

func (d *Dispatcher) refresh(ctx context.Context, _ map[string]any) (string, error) {
	if err := d.exec.Reload(ctx); err != nil {
		return "", err
	}
	return "page reloaded", nil
}

func (d *Dispatcher) clickAt(ctx context.Context, args map[string]any) (string, error) {
	x, y, err := requireCoords(args)
	if err != nil {
		return "", err
	}
	px, py := d.denormX(x), d.denormY(y)
	if err := d.clickSequence(ctx, px, py, schemas.ButtonLeft, 1); err != nil {
		return "", err
	}
	return fmt.Sprintf("clicked at (%.0f, %.0f)", px, py), nil
}

func (d *Dispatcher) doubleClickAt(ctx context.Context, args map[string]any) (string, error) {
	x, y, err := requireCoords(args)
	if err != nil {
		return "", err
	}
	px, py := d.denormX(x), d.denormY(y)
	if err := d.clickSequence(ctx, px, py, schemas.ButtonLeft, 2); err != nil {
		return "", err
	}
	return fmt.Sprintf("double-clicked at (%.0f, %.0f)", px, py), nil
}

func (d *Dispatcher) rightClickAt(ctx context.Context, args map[string]any) (string, error) {
	x, y, err := requireCoords(args)
	if err != nil {
		return "", err
	}
	px, py := d.denormX(x), d.denormY(y)
	if err := d.clickSequence(ctx, px, py, schemas.ButtonRight, 1); err != nil {
		return "", err
	}
	return fmt.Sprintf("right-clicked at (%.0f, %.0f)", px, py), nil
}

func (d *Dispatcher) hoverAt(ctx context.Context, args map[string]any) (string, error) {
	x, y, err := requireCoords(args)
	if err != nil {
		return "", err
	}
	px, py := d.denormX(x), d.denormY(y)
	move := schemas.MouseEventData{Type: schemas.MouseMove, X: px, Y: py, Button: schemas.ButtonNone}
	if err := d.exec.DispatchMouseEvent(ctx, move); err != nil {
		return "", err
	}
	return fmt.Sprintf("hovering at (%.0f, %.0f)", px, py), nil
}

func (d *Dispatcher) typeText(ctx context.Context, args map[string]any) (string, error) {
	text, ok := argString(args, "text")
	if !ok {
		return "", fmt.Errorf("type_text requires a text argument")
	}
	if err := d.exec.SendKeys(ctx, text, 50*time.Millisecond); err != nil {
		return "", err
	}
	if argBool(args, "press_enter") {
		if err := d.exec.SendKeys(ctx, namedKeys["enter"].char, 0); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("typed %d characters", len([]rune(text))), nil
}

func (d *Dispatcher) typeTextAt(ctx context.Context, args map[string]any) (string, error) {
	x, y, err := requireCoords(args)
	if err != nil {
		return "", err
	}
	text, ok := argString(args, "text")
	if !ok {
		return "", fmt.Errorf("type_text_at requires a text argument")
	}

	px, py := d.denormX(x), d.denormY(y)
	if err := d.clickSequence(ctx, px, py, schemas.ButtonLeft, 1); err != nil {
		return "", fmt.Errorf("failed to focus target field: %w", err)
	}
	_ = d.exec.Sleep(ctx, 200*time.Millisecond)

	// Clear whatever the field already holds.
	selectAll := schemas.KeyEventData{Key: "a", Modifiers: schemas.ModCtrl}
	if err := d.exec.DispatchStructuredKey(ctx, selectAll); err != nil {
		return "", err
	}
	if err := d.exec.SendKeys(ctx, namedKeys["backspace"].char, 0); err != nil {
		return "", err
	}
	_ = d.exec.Sleep(ctx, 100*time.Millisecond)

	if err := d.exec.SendKeys(ctx, text, 30*time.Millisecond); err != nil {
		return "", err
	}
	if argBool(args, "press_enter") {
		if err := d.exec.SendKeys(ctx, namedKeys["enter"].char, 0); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("typed %d characters at (%.0f, %.0f)", len([]rune(text)), px, py), nil
}

func (d *Dispatcher) pressKey(ctx context.Context, args map[string]any) (string, error) {
	spec, ok := argString(args, "key", "keys", "combination")
	if !ok || spec == "" {
		return "", fmt.Errorf("press_key requires a key argument")
	}
	parsed, err := parseKeySpec(spec)
	if err != nil {
		return "", err
	}

	if parsed.Modifiers == schemas.ModNone {
		if err := d.exec.SendKeys(ctx, parsed.Chars, 0); err != nil {
			return "", err
		}
	} else {
		event := schemas.KeyEventData{Key: parsed.DOMKey, Modifiers: parsed.Modifiers}
		if err := d.exec.DispatchStructuredKey(ctx, event); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("pressed %s", spec), nil
}

func (d *Dispatcher) scroll(ctx context.Context, args map[string]any) (string, error) {
	x, okX := argFloat(args, "x")
	y, okY := argFloat(args, "y")
	px := float64(d.viewport.Width / 2)
	py := float64(d.viewport.Height / 2)
	if okX {
		px = d.denormX(x)
	}
	if okY {
		py = d.denormY(y)
	}

	deltaX, _ := argFloat(args, "delta_x")
	deltaY, hasDeltaY := argFloat(args, "delta_y")
	if !hasDeltaY && deltaX == 0 {
		if dir, ok := argString(args, "direction"); ok {
			amount, hasAmount := argFloat(args, "amount")
			if !hasAmount {
				amount = 300
			}
			deltaX, deltaY = directionToDelta(dir, amount)
		} else {
			deltaY = 300
		}
	}

	if err := d.wheel(ctx, px, py, deltaX, deltaY); err != nil {
		return "", err
	}
	return fmt.Sprintf("scrolled by (%.0f, %.0f) at (%.0f, %.0f)", deltaX, deltaY, px, py), nil
}

func (d *Dispatcher) scrollUp(ctx context.Context, args map[string]any) (string, error) {
	amount, ok := argFloat(args, "amount")
	if !ok {
		amount = 300
	}
	return d.scrollCenter(ctx, 0, -amount)
}

func (d *Dispatcher) scrollDown(ctx context.Context, args map[string]any) (string, error) {
	amount, ok := argFloat(args, "amount")
	if !ok {
		amount = 300
	}
	return d.scrollCenter(ctx, 0, amount)
}

func (d *Dispatcher) scrollDocument(ctx context.Context, args map[string]any) (string, error) {
	dir, _ := argString(args, "direction")
	amount, ok := argFloat(args, "amount")
	if !ok {
		amount = 300
	}
	deltaX, deltaY := directionToDelta(dir, amount)
	return d.scrollCenter(ctx, deltaX, deltaY)
}

func (d *Dispatcher) scrollCenter(ctx context.Context, deltaX, deltaY float64) (string, error) {
	px := float64(d.viewport.Width / 2)
	py := float64(d.viewport.Height / 2)
	if err := d.wheel(ctx, px, py, deltaX, deltaY); err != nil {
		return "", err
	}
	return fmt.Sprintf("scrolled by (%.0f, %.0f)", deltaX, deltaY), nil
}

// directionToDelta converts a scroll direction word into wheel deltas. Down
// and right are positive in CDP wheel space.
func directionToDelta(direction string, amount float64) (dx, dy float64) {
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "up":
		return 0, -amount
	case "left":
		return -amount, 0
	case "right":
		return amount, 0
	default: // "down" and anything unrecognized
		return 0, amount
	}
}

func (d *Dispatcher) search(ctx context.Context, args map[string]any) (string, error) {
	query, ok := argString(args, "query", "text")
	if !ok || query == "" {
		return "", fmt.Errorf("search requires a query argument")
	}
	if err := d.exec.SendKeys(ctx, query, 30*time.Millisecond); err != nil {
		return "", err
	}
	if err := d.exec.SendKeys(ctx, namedKeys["enter"].char, 0); err != nil {
		return "", err
	}
	return fmt.Sprintf("searched for %q", query), nil
}

func (d *Dispatcher) wait(ctx context.Context, args map[string]any) (string, error) {
	seconds, ok := argFloat(args, "duration", "seconds")
	if !ok || seconds <= 0 {
		seconds = 1
	}
	if seconds > 30 {
		seconds = 30
	}
	if err := d.exec.Sleep(ctx, time.Duration(seconds*float64(time.Second))); err != nil {
		return "", err
	}
	return fmt.Sprintf("waited %.1fs", seconds), nil
}

func (d *Dispatcher) solveCaptcha(ctx context.Context, _ map[string]any) (string, error) {
	if d.captcha == nil {
		return "", fmt.Errorf("no captcha solver configured")
	}
	return d.captcha.Solve(ctx)
}
