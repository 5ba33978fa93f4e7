// -- internal/browser/domhints.go --
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
)

// maxHintElements caps how many elements are surfaced to the model per turn.
const maxHintElements = 20

// extractElementsJS runs inside the page and returns visible interactive
// elements with their centers normalized to the 0-1000 model coordinate
// space, so the hints line up with what the vision model is asked to output.
const extractElementsJS = `
(() => {
  const selectors = 'a, button, input, select, textarea, [role="button"], [onclick]';
  const out = [];
  const vw = window.innerWidth, vh = window.innerHeight;
  for (const el of document.querySelectorAll(selectors)) {
    if (out.length >= 20) break;
    const r = el.getBoundingClientRect();
    if (r.width === 0 || r.height === 0) continue;
    if (r.bottom < 0 || r.top > vh || r.right < 0 || r.left > vw) continue;
    const style = window.getComputedStyle(el);
    if (style.display === 'none' || style.visibility === 'hidden') continue;
    let label = (el.innerText || el.value || el.placeholder ||
                 el.getAttribute('aria-label') || el.title || '').trim();
    label = label.replace(/\s+/g, ' ').slice(0, 60);
    if (!label && el.tagName !== 'INPUT' && el.tagName !== 'TEXTAREA') continue;
    const cx = r.left + r.width / 2, cy = r.top + r.height / 2;
    out.push({
      tag: el.tagName.toLowerCase(),
      label: label,
      x: Math.round(cx / vw * 1000),
      y: Math.round(cy / vh * 1000),
    });
  }
  return out;
})()
`

// ExtractInteractiveElements collects up to 20 visible interactive elements
// from the current page.
func ExtractInteractiveElements(ctx context.Context, exec Executor) ([]schemas.InteractiveElement, error) {
	var elements []schemas.InteractiveElement
	if err := exec.EvaluateJS(ctx, extractElementsJS, &elements); err != nil {
		return nil, fmt.Errorf("failed to extract interactive elements: %w", err)
	}
	if len(elements) > maxHintElements {
		elements = elements[:maxHintElements]
	}
	return elements, nil
}

// FormatDOMHints renders the element list as a prompt hint block. An empty
// list yields an empty string so callers can skip the section.
func FormatDOMHints(elements []schemas.InteractiveElement) string {
	if len(elements) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Interactive elements currently visible (coordinates in 0-1000 space):\n")
	for _, el := range elements {
		label := el.Label
		if label == "" {
			label = "(unlabeled)"
		}
		fmt.Fprintf(&b, "- <%s> %q at (%d, %d)\n", el.Tag, label, el.X, el.Y)
	}
	return b.String()
}
