// -- internal/agent/dispatch/keymap.go --
package dispatch

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp/kb"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
)

// keySpec is a parsed model key request. Chars feeds the chromedp keyboard
// layer for plain presses; DOMKey + Modifiers feeds raw CDP key events for
// combinations.
type keySpec struct {
	Chars     string
	DOMKey    string
	Modifiers schemas.KeyModifier
}

// namedKey pairs the control character chromedp's keyboard layer expects with
// the DOM key name raw CDP events expect.
type namedKey struct {
	char   string
	domKey string
}

// namedKeys maps the key names the model emits onto both representations.
var namedKeys = map[string]namedKey{
	"enter":       {kb.Enter, "Enter"},
	"return":      {kb.Enter, "Enter"},
	"tab":         {kb.Tab, "Tab"},
	"escape":      {kb.Escape, "Escape"},
	"esc":         {kb.Escape, "Escape"},
	"backspace":   {kb.Backspace, "Backspace"},
	"delete":      {kb.Delete, "Delete"},
	"space":       {" ", " "},
	"up":          {kb.ArrowUp, "ArrowUp"},
	"arrow_up":    {kb.ArrowUp, "ArrowUp"},
	"down":        {kb.ArrowDown, "ArrowDown"},
	"arrow_down":  {kb.ArrowDown, "ArrowDown"},
	"left":        {kb.ArrowLeft, "ArrowLeft"},
	"arrow_left":  {kb.ArrowLeft, "ArrowLeft"},
	"right":       {kb.ArrowRight, "ArrowRight"},
	"arrow_right": {kb.ArrowRight, "ArrowRight"},
	"home":        {kb.Home, "Home"},
	"end":         {kb.End, "End"},
	"page_up":     {kb.PageUp, "PageUp"},
	"pageup":      {kb.PageUp, "PageUp"},
	"page_down":   {kb.PageDown, "PageDown"},
	"pagedown":    {kb.PageDown, "PageDown"},
}

// modifierNames maps combination prefixes onto the CDP modifier bitfield.
var modifierNames = map[string]schemas.KeyModifier{
	"ctrl":    schemas.ModCtrl,
	"control": schemas.ModCtrl,
	"alt":     schemas.ModAlt,
	"shift":   schemas.ModShift,
	"meta":    schemas.ModMeta,
	"cmd":     schemas.ModMeta,
	"command": schemas.ModMeta,
}

// parseKeySpec turns a model key request like "enter", "a" or "ctrl+shift+t"
// into a keySpec.
func parseKeySpec(spec string) (keySpec, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(spec)), "+")
	base := strings.TrimSpace(parts[len(parts)-1])
	if base == "" {
		return keySpec{}, fmt.Errorf("empty key spec %q", spec)
	}

	var mods schemas.KeyModifier
	for _, part := range parts[:len(parts)-1] {
		mod, ok := modifierNames[strings.TrimSpace(part)]
		if !ok {
			return keySpec{}, fmt.Errorf("unknown modifier %q in key spec %q", part, spec)
		}
		mods |= mod
	}

	if mapped, ok := namedKeys[base]; ok {
		return keySpec{Chars: mapped.char, DOMKey: mapped.domKey, Modifiers: mods}, nil
	}
	if len([]rune(base)) != 1 {
		return keySpec{}, fmt.Errorf("unknown key %q in key spec %q", base, spec)
	}
	return keySpec{Chars: base, DOMKey: base, Modifiers: mods}, nil
}
