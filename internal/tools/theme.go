// ABOUTME: switch_theme tool: flips the client between light and dark
// ABOUTME: Stop tool; the client applies the theme and the turn ends

package tools

import (
	"context"
	"fmt"
	"strings"
)

type switchThemeArgs struct {
	Theme string `json:"theme" jsonschema:"the requested color scheme, light or dark"`
}

// NormalizeTheme maps a requested theme to "light" or "dark". Loose matches
// like "dark mode please" resolve by substring.
func NormalizeTheme(value string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "light", "dark":
		return normalized, nil
	}
	if strings.Contains(normalized, "dark") {
		return "dark", nil
	}
	if strings.Contains(normalized, "light") {
		return "light", nil
	}
	return "", fmt.Errorf("theme must be either 'light' or 'dark'")
}

// SwitchTheme builds the switch_theme tool. The new theme is recorded on
// thread metadata by the orchestrator and applied by the client action.
func SwitchTheme() *Tool {
	return &Tool{
		Name:        "switch_theme",
		Description: "Switch the chat interface between light and dark color schemes.",
		Schema:      schemaFor[switchThemeArgs](),
		Stop:        true,
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			args, err := DecodeArgs[switchThemeArgs](inv.Arguments)
			if err != nil {
				return nil, err
			}
			theme, err := NormalizeTheme(args.Theme)
			if err != nil {
				return nil, err
			}
			return &Result{
				Output: map[string]string{"theme": theme},
				ClientAction: &ClientAction{
					Name:      "switch_theme",
					Arguments: map[string]any{"theme": theme},
				},
			}, nil
		},
	}
}
