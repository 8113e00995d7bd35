// ABOUTME: Per-turn context carrying the thread and turn-scoped outputs
// ABOUTME: The client action slot is last-write-wins within a single turn

package chat

import (
	"github.com/2389/concierge/internal/store"
	"github.com/2389/concierge/internal/tools"
	"github.com/2389/concierge/internal/widgets"
)

// TurnContext is constructed for one turn and never outlives it. Tool
// outcomes write into it; the orchestrator reads it when the turn settles.
type TurnContext struct {
	Thread *store.Thread

	em           *emitter
	clientAction *tools.ClientAction
}

// SetClientAction records the turn's client action. A later call replaces
// an earlier one.
func (t *TurnContext) SetClientAction(action *tools.ClientAction) {
	t.clientAction = action
}

// ClientAction returns the action set during this turn, or nil.
func (t *TurnContext) ClientAction() *tools.ClientAction {
	return t.clientAction
}

// StreamWidget emits a widget to the client at the current stream position.
// The HTML fallback is best-effort; a rendering failure drops only the HTML.
func (t *TurnContext) StreamWidget(w *tools.Widget) {
	html, err := widgets.CopyTextHTML(w.CopyText)
	if err != nil {
		html = ""
	}
	t.em.emit(WidgetStreamed{
		Widget:       w.Root,
		CopyText:     w.CopyText,
		CopyTextHTML: html,
	})
}

// TurnResult is what a settled turn produced. ClientAction is scoped to
// this result, never global state.
type TurnResult struct {
	ThreadID        string
	AssistantItemID string
	Text            string
	ClientAction    *tools.ClientAction
	Stopped         bool
}
