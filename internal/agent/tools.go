// -- internal/agent/tools.go --
package agent

import "github.com/Mukuloli/browser-automation-1/api/schemas"

// coordProps is the shared x/y parameter schema. Coordinates are in the
// 0-1000 model space; the dispatcher denormalizes them to pixels.
func coordProps() map[string]any {
	return map[string]any{
		"x": map[string]any{"type": "NUMBER", "description": "Horizontal position, 0-1000"},
		"y": map[string]any{"type": "NUMBER", "description": "Vertical position, 0-1000"},
	}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "OBJECT", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// browserTools declares the full action surface the acting model may call.
func browserTools() []schemas.Tool {
	decls := []schemas.FunctionDeclaration{
		{
			Name:        "open_web_browser",
			Description: "Ensure a browser page is available. No-op when a page is already open.",
		},
		{
			Name:        "navigate",
			Description: "Load a URL in the current page.",
			Parameters: objectSchema(map[string]any{
				"url": map[string]any{"type": "STRING", "description": "Absolute URL to open"},
			}, "url"),
		},
		{Name: "go_back", Description: "Navigate back in session history."},
		{Name: "go_forward", Description: "Navigate forward in session history."},
		{Name: "refresh", Description: "Reload the current page."},
		{
			Name:        "click_at",
			Description: "Left-click at a position.",
			Parameters:  objectSchema(coordProps(), "x", "y"),
		},
		{
			Name:        "double_click_at",
			Description: "Double-click at a position.",
			Parameters:  objectSchema(coordProps(), "x", "y"),
		},
		{
			Name:        "right_click_at",
			Description: "Right-click at a position.",
			Parameters:  objectSchema(coordProps(), "x", "y"),
		},
		{
			Name:        "hover_at",
			Description: "Move the mouse over a position without clicking.",
			Parameters:  objectSchema(coordProps(), "x", "y"),
		},
		{
			Name:        "type_text",
			Description: "Type text into the focused element.",
			Parameters: objectSchema(map[string]any{
				"text":        map[string]any{"type": "STRING"},
				"press_enter": map[string]any{"type": "BOOLEAN", "description": "Press Enter after typing"},
			}, "text"),
		},
		{
			Name:        "type_text_at",
			Description: "Click a field, clear it, and type text.",
			Parameters: objectSchema(map[string]any{
				"x":           map[string]any{"type": "NUMBER"},
				"y":           map[string]any{"type": "NUMBER"},
				"text":        map[string]any{"type": "STRING"},
				"press_enter": map[string]any{"type": "BOOLEAN"},
			}, "x", "y", "text"),
		},
		{
			Name:        "press_key",
			Description: "Press a named key or combination, e.g. \"enter\", \"tab\", \"ctrl+a\".",
			Parameters: objectSchema(map[string]any{
				"key": map[string]any{"type": "STRING"},
			}, "key"),
		},
		{
			Name:        "scroll",
			Description: "Scroll the page with the mouse wheel at a position.",
			Parameters: objectSchema(map[string]any{
				"x":         map[string]any{"type": "NUMBER"},
				"y":         map[string]any{"type": "NUMBER"},
				"direction": map[string]any{"type": "STRING", "description": "up, down, left or right"},
				"amount":    map[string]any{"type": "NUMBER", "description": "Scroll distance in pixels"},
			}),
		},
		{
			Name:        "scroll_document",
			Description: "Scroll the whole document up or down.",
			Parameters: objectSchema(map[string]any{
				"direction": map[string]any{"type": "STRING"},
				"amount":    map[string]any{"type": "NUMBER"},
			}, "direction"),
		},
		{
			Name:        "search",
			Description: "Type a query into the focused search field and press Enter.",
			Parameters: objectSchema(map[string]any{
				"query": map[string]any{"type": "STRING"},
			}, "query"),
		},
		{
			Name:        "wait",
			Description: "Pause for the page to catch up.",
			Parameters: objectSchema(map[string]any{
				"seconds": map[string]any{"type": "NUMBER", "description": "Seconds to wait, max 30"},
			}),
		},
		{
			Name:        "solve_captcha",
			Description: "Attempt to detect and solve a CAPTCHA on the current page.",
		},
	}
	return []schemas.Tool{{FunctionDeclarations: decls}}
}
