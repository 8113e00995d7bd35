// ABOUTME: Markdown rendering for widget copy-text fallbacks
// ABOUTME: Clients without widget support receive the copy text as HTML

package widgets

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// CopyTextHTML converts a widget's markdown copy text to HTML for clients
// that render the fallback instead of the widget tree.
func CopyTextHTML(copyText string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(copyText), &buf); err != nil {
		return "", fmt.Errorf("rendering copy text: %w", err)
	}
	return buf.String(), nil
}
