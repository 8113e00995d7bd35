// ABOUTME: Model engine abstraction: messages in, streamed events out
// ABOUTME: A generation pass ends at a tool call, a natural stop, or an error

package engine

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// Role identifies who produced a message in the model context.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in the model context window.
// Exactly one of Content, ToolCall is meaningful for assistant messages;
// tool messages carry the result of the call named by ToolCallID.
type Message struct {
	Role       Role
	Content    string
	ToolCall   *ToolCall
	ToolCallID string
}

// ToolCall is the model asking for a tool invocation. Arguments is the raw
// JSON string as emitted by the model and may be malformed.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDef describes a tool offered to the model for a pass.
type ToolDef struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// FinishReason reports how a generation pass ended.
type FinishReason string

const (
	FinishStop     FinishReason = "stop"
	FinishToolCall FinishReason = "tool_call"
	FinishLength   FinishReason = "length"
)

// Event is one element of a generation stream.
//
// A stream is a sequence of zero or more TextDelta events followed by at
// most one ToolCallEvent and exactly one Completed event, unless the stream
// fails first.
type Event interface {
	isEvent()
}

// TextDelta carries an incremental piece of assistant text.
type TextDelta struct {
	Text string
}

// ToolCallEvent carries a complete tool call with fully accumulated
// arguments. It always precedes the Completed event for its pass.
type ToolCallEvent struct {
	Call ToolCall
}

// Completed marks the end of a successful pass.
type Completed struct {
	Reason FinishReason
}

func (TextDelta) isEvent()     {}
func (ToolCallEvent) isEvent() {}
func (Completed) isEvent()     {}

// Request is the input for one generation pass.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolDef
}

// Stream delivers the events of one generation pass. The channel returned by
// Events is closed when the pass ends; after that Err reports the failure,
// if any. A pass that ends with Err() == nil always delivered a Completed
// event last.
type Stream struct {
	events chan Event
	err    error
}

// NewStream returns a stream to be fed by an Engine implementation via Send
// and Close.
func NewStream(buf int) *Stream {
	return &Stream{events: make(chan Event, buf)}
}

// Events returns the event channel. Read it to exhaustion before calling Err.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Err reports why the stream terminated early. Valid only after the events
// channel has been closed.
func (s *Stream) Err() error {
	return s.err
}

// Send delivers one event, giving up when ctx is done. It reports whether
// the event was accepted.
func (s *Stream) Send(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close ends the stream. Call exactly once, with nil on success.
func (s *Stream) Close(err error) {
	s.err = err
	close(s.events)
}

// Engine produces one generation pass per Run call. Implementations must
// deliver events in order and close the stream exactly once.
type Engine interface {
	Run(ctx context.Context, req *Request) (*Stream, error)
}

// Completer is the non-streaming, no-tools counterpart of Engine, used for
// one-shot auxiliary completions.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}
