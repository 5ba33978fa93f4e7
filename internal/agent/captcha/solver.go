// -- internal/agent/captcha/solver.go --
package captcha

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
	"github.com/Mukuloli/browser-automation-1/internal/browser"
)

// detectTypeJS classifies the CAPTCHA present on the page, if any.
const detectTypeJS = `
(() => {
  if (document.querySelector("iframe[src*='recaptcha']")) return "recaptcha";
  if (document.querySelector("iframe[src*='hcaptcha']")) return "hcaptcha";
  const sliders = [".slider-btn", ".slide-verify", "#slider", ".geetest_slider"];
  for (const sel of sliders) { if (document.querySelector(sel)) return "slider"; }
  for (const kw of ["captcha", "verify", "validation"]) {
    if (document.querySelector("img[src*='" + kw + "']")) return "image";
    if (document.querySelector("img[alt*='" + kw + "']")) return "image";
  }
  return "";
})()
`

// sliderBoxJS locates the slider handle and returns its center.
const sliderBoxJS = `
(() => {
  const sliders = [".slider-btn", ".slide-verify", "#slider", ".geetest_slider"];
  for (const sel of sliders) {
    const el = document.querySelector(sel);
    if (!el) continue;
    const r = el.getBoundingClientRect();
    if (r.width === 0) continue;
    return {x: r.left + r.width / 2, y: r.top + r.height / 2};
  }
  return null;
})()
`

var slideDistanceRe = regexp.MustCompile(`SLIDE_DISTANCE:\s*(\d+)`)

const defaultSlideDistance = 200

// Solver attempts best-effort CAPTCHA handling with the fast vision model.
// Hard challenges still need a human; the solver reports what it found so the
// supervisor can escalate.
type Solver struct {
	exec   browser.Executor
	llm    schemas.LLMClient
	logger *zap.Logger
}

// NewSolver builds a solver over the browser surface and vision model.
func NewSolver(exec browser.Executor, llm schemas.LLMClient, logger *zap.Logger) *Solver {
	return &Solver{exec: exec, llm: llm, logger: logger.Named("captcha")}
}

// DetectType reports which CAPTCHA variant is on the page, or "" for none.
func (s *Solver) DetectType(ctx context.Context) (string, error) {
	var kind string
	if err := s.exec.EvaluateJS(ctx, detectTypeJS, &kind); err != nil {
		return "", fmt.Errorf("captcha detection failed: %w", err)
	}
	return kind, nil
}

// Solve detects and attempts to clear whatever CAPTCHA is present.
func (s *Solver) Solve(ctx context.Context) (string, error) {
	kind, err := s.DetectType(ctx)
	if err != nil {
		return "", err
	}
	switch kind {
	case "":
		return "no captcha detected", nil
	case "slider":
		if err := s.solveSlider(ctx); err != nil {
			return "", fmt.Errorf("slider captcha attempt failed: %w", err)
		}
		return "slider captcha attempted", nil
	case "image":
		text, err := s.readImageCaptcha(ctx)
		if err != nil {
			return "", fmt.Errorf("image captcha read failed: %w", err)
		}
		return fmt.Sprintf("image captcha reads %q; type it into the answer field", text), nil
	default:
		// recaptcha and hcaptcha challenges are left for the human.
		return fmt.Sprintf("%s detected; human assistance likely required", kind), nil
	}
}

// readImageCaptcha asks the vision model to transcribe the challenge.
func (s *Solver) readImageCaptcha(ctx context.Context) (string, error) {
	shot, err := s.exec.CaptureScreenshot(ctx)
	if err != nil {
		return "", err
	}

	resp, err := s.llm.GenerateContent(ctx, schemas.GenerationRequest{
		Tier: schemas.TierFast,
		Contents: []schemas.Content{{
			Role: "user",
			Parts: []schemas.Part{
				{Text: "This page shows a CAPTCHA image. Return ONLY the exact characters you see. No explanation, no quotes, just the characters."},
				{InlineData: &schemas.InlineData{
					MIMEType: "image/png",
					Data:     base64.StdEncoding.EncodeToString(shot),
				}},
			},
		}},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// solveSlider reads the puzzle offset from the model and drags the handle
// there with a slightly wobbly, stepped motion.
func (s *Solver) solveSlider(ctx context.Context) error {
	shot, err := s.exec.CaptureScreenshot(ctx)
	if err != nil {
		return err
	}

	offset := defaultSlideDistance
	resp, err := s.llm.GenerateContent(ctx, schemas.GenerationRequest{
		Tier: schemas.TierFast,
		Contents: []schemas.Content{{
			Role: "user",
			Parts: []schemas.Part{
				{Text: "This is a slider CAPTCHA puzzle. Find the gap in the main image where the puzzle piece must go. Return ONLY the horizontal distance in pixels from the left, as: SLIDE_DISTANCE: <number>"},
				{InlineData: &schemas.InlineData{
					MIMEType: "image/png",
					Data:     base64.StdEncoding.EncodeToString(shot),
				}},
			},
		}},
	})
	if err != nil {
		s.logger.Debug("Slider analysis failed, using default distance", zap.Error(err))
	} else if m := slideDistanceRe.FindStringSubmatch(resp.Text()); m != nil {
		if parsed, perr := strconv.Atoi(m[1]); perr == nil && parsed > 0 {
			offset = parsed
		}
	}

	var box *struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := s.exec.EvaluateJS(ctx, sliderBoxJS, &box); err != nil {
		return fmt.Errorf("failed to locate slider handle: %w", err)
	}
	if box == nil {
		return fmt.Errorf("slider handle not found")
	}

	return s.dragSlider(ctx, box.X, box.Y, float64(offset))
}

func (s *Solver) dragSlider(ctx context.Context, startX, startY, distance float64) error {
	press := schemas.MouseEventData{Type: schemas.MousePress, X: startX, Y: startY, Button: schemas.ButtonLeft, ClickCount: 1}
	if err := s.exec.DispatchMouseEvent(ctx, press); err != nil {
		return err
	}

	const steps = 20
	for i := 1; i <= steps; i++ {
		progress := float64(i) / steps
		wobble := float64(i%3 - 1)
		move := schemas.MouseEventData{
			Type: schemas.MouseMove,
			X:    startX + distance*progress,
			Y:    startY + wobble,
			// Buttons bit 1 keeps the left button held through the drag.
			Button:  schemas.ButtonLeft,
			Buttons: 1,
		}
		if err := s.exec.DispatchMouseEvent(ctx, move); err != nil {
			return err
		}
		if err := s.exec.Sleep(ctx, 20*time.Millisecond); err != nil {
			return err
		}
	}

	release := schemas.MouseEventData{Type: schemas.MouseRelease, X: startX + distance, Y: startY, Button: schemas.ButtonLeft, ClickCount: 1}
	if err := s.exec.DispatchMouseEvent(ctx, release); err != nil {
		return err
	}
	return s.exec.Sleep(ctx, time.Second)
}
