// ABOUTME: Stream event types delivered to clients during a turn
// ABOUTME: MessageCompleted is sent only after the item has been persisted

package chat

import (
	"context"

	"github.com/2389/concierge/internal/store"
	"github.com/2389/concierge/internal/tools"
	"github.com/2389/concierge/internal/widgets"
)

// StreamEvent is one element of a turn's event stream.
type StreamEvent interface {
	isStreamEvent()
}

// MessageDelta carries an incremental piece of the assistant's reply.
type MessageDelta struct {
	ItemID string
	Text   string
}

// WidgetStreamed carries a widget produced by a tool, in tool-call order.
type WidgetStreamed struct {
	Widget       widgets.Card
	CopyText     string
	CopyTextHTML string
}

// MessageCompleted announces that the assistant item it names has been
// durably appended to the thread. It is never emitted before the store
// append returns.
type MessageCompleted struct {
	Item *store.Item
}

// ClientActionEvent delivers the turn's client action, if any, after the
// turn's items are persisted.
type ClientActionEvent struct {
	Action tools.ClientAction
}

// TurnErrorEvent reports a failed turn. Retryable distinguishes timeouts and
// transient upstream failures from permanent ones.
type TurnErrorEvent struct {
	Message   string
	Retryable bool
}

func (MessageDelta) isStreamEvent()      {}
func (WidgetStreamed) isStreamEvent()    {}
func (MessageCompleted) isStreamEvent()  {}
func (ClientActionEvent) isStreamEvent() {}
func (TurnErrorEvent) isStreamEvent()    {}

// emitter serializes event delivery for one turn. Once the client context is
// gone it drops events instead of blocking, so persistence can finish.
type emitter struct {
	ctx    context.Context
	events chan<- StreamEvent
}

func (e *emitter) emit(ev StreamEvent) {
	if e.events == nil {
		return
	}
	select {
	case e.events <- ev:
	case <-e.ctx.Done():
	}
}
