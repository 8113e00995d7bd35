// ABOUTME: Tool abstraction: typed arguments in, structured results out
// ABOUTME: Results carry model output plus widget, client action, hidden context

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"

	"github.com/2389/concierge/internal/widgets"
)

// Invocation carries the call being dispatched and where it came from.
type Invocation struct {
	ThreadID  string
	CallID    string
	Arguments string
}

// ClientAction asks the connected client to perform a side effect, like
// switching its theme. It is surfaced on the turn output, never persisted.
type ClientAction struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Widget pairs a widget tree with its plain-text fallback.
type Widget struct {
	Root     widgets.Card
	CopyText string
}

// Result is what a successful tool invocation produces. Output is marshaled
// into the tool message the model sees on the next pass. The other fields
// are side channels consumed by the orchestrator.
type Result struct {
	Output        any
	Widget        *Widget
	ClientAction  *ClientAction
	HiddenContext string
}

// Handler executes one tool invocation. A returned error is recoverable: it
// is reported to the model as the tool outcome and generation continues.
type Handler func(ctx context.Context, inv *Invocation) (*Result, error)

// Tool is one entry in the dispatch table. Stop marks tools whose invocation
// ends the turn instead of resuming generation.
type Tool struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
	Stop        bool
	Timeout     time.Duration
	Handler     Handler
}

// DecodeArgs unmarshals a model-emitted argument string into T. Malformed
// JSON is repaired once before giving up; models frequently emit truncated
// or single-quoted JSON.
func DecodeArgs[T any](raw string) (T, error) {
	var v T
	if raw == "" {
		raw = "{}"
	}
	err := json.Unmarshal([]byte(raw), &v)
	if err == nil {
		return v, nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return v, fmt.Errorf("unmarshal %q: %w", raw, err)
		}
		if err := json.Unmarshal([]byte(fixed), &v); err != nil {
			return v, fmt.Errorf("unmarshal repaired %q: %w", raw, err)
		}
		return v, nil
	}
	return v, fmt.Errorf("unmarshal %q: %w", raw, err)
}

// schemaFor builds the argument schema for T, panicking on failure. Tool
// tables are assembled at startup from known types, so a failure here is a
// programming error.
func schemaFor[T any]() *jsonschema.Schema {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("building schema: %v", err))
	}
	return s
}
