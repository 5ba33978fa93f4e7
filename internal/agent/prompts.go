// -- internal/agent/prompts.go --
package agent

import (
	"fmt"
	"strings"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
)

// actorSystemPrompt steers the acting vision model. Coordinates it emits live
// in the 0-1000 space regardless of the real viewport.
const actorSystemPrompt = `You are a browser automation agent. You see the page
through screenshots and act through the provided functions.

Coordinate system: positions are normalized to 0-1000 on both axes.
(0,0) is the top-left corner, (1000,1000) the bottom-right.

Rules:
- Work toward the CURRENT STEP only. Do not jump ahead in the plan.
- Batch independent actions in one turn (e.g. fill several fields), but never
  batch an action with another that depends on its outcome.
- After clicking something that loads a new page, stop and wait for the next
  screenshot before acting again.
- If the page shows a cookie banner or popup blocking the content, dismiss it
  first.
- When the step is done, or you are stuck, reply with text instead of calling
  functions. Describe what you see and what happened.`

// stepPrompt assembles the per-turn user message for one plan step.
func stepPrompt(step schemas.Step, currentURL, domHints string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CURRENT STEP %d: %s\n", step.Number, step.Action)
	fmt.Fprintf(&b, "Expected outcome: %s\n", step.Expected)
	if currentURL != "" {
		fmt.Fprintf(&b, "Current URL: %s\n", currentURL)
	}
	if domHints != "" {
		b.WriteString("\n")
		b.WriteString(domHints)
	}
	b.WriteString("\nThe screenshot shows the current page. Perform the step now.")
	return b.String()
}
