// ABOUTME: Static tool dispatch table validated once at construction
// ABOUTME: Dispatch converts every failure mode into a structured outcome

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"

	"github.com/2389/concierge/internal/engine"
)

const defaultToolTimeout = 30 * time.Second

// Outcome is the dispatch boundary's sum type: exactly one of Result or
// FailureMsg is set. Failures here are model-visible, not turn-fatal; the
// orchestrator feeds FailureMsg back as the tool's outcome.
type Outcome struct {
	ToolName   string
	Stop       bool
	Result     *Result
	FailureMsg string
}

// Failed reports whether the invocation produced a failure message instead
// of a result.
func (o *Outcome) Failed() bool {
	return o.Result == nil
}

// Registry is the immutable tool table for a conversation engine. All
// validation happens in NewRegistry; after that lookups cannot fail in ways
// the caller must handle.
type Registry struct {
	tools    map[string]*Tool
	resolved map[string]*jsonschema.Resolved
	order    []string
	logger   *slog.Logger
}

// NewRegistry validates and indexes the given tools.
func NewRegistry(toolList ...*Tool) (*Registry, error) {
	r := &Registry{
		tools:    make(map[string]*Tool, len(toolList)),
		resolved: make(map[string]*jsonschema.Resolved, len(toolList)),
		logger:   slog.Default().With("component", "tools"),
	}
	for _, tool := range toolList {
		if tool.Name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, exists := r.tools[tool.Name]; exists {
			return nil, fmt.Errorf("duplicate tool %q", tool.Name)
		}
		if tool.Schema == nil {
			return nil, fmt.Errorf("tool %q has no argument schema", tool.Name)
		}
		if tool.Handler == nil {
			return nil, fmt.Errorf("tool %q has no handler", tool.Name)
		}
		if tool.Timeout <= 0 {
			tool.Timeout = defaultToolTimeout
		}
		resolved, err := tool.Schema.Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("tool %q schema: %w", tool.Name, err)
		}
		r.tools[tool.Name] = tool
		r.resolved[tool.Name] = resolved
		r.order = append(r.order, tool.Name)
	}
	return r, nil
}

// Defs returns the tool definitions offered to the model, in registration
// order.
func (r *Registry) Defs() []engine.ToolDef {
	defs := make([]engine.ToolDef, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		defs = append(defs, engine.ToolDef{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Schema,
		})
	}
	return defs
}

// IsStop reports whether the named tool terminates the turn. Unknown names
// report false.
func (r *Registry) IsStop(name string) bool {
	tool, ok := r.tools[name]
	return ok && tool.Stop
}

// Dispatch runs the named tool under its timeout. Handler errors and panics
// become failure outcomes; only the context's own cancellation propagates as
// an error, since the turn cannot continue without a live context.
func (r *Registry) Dispatch(ctx context.Context, call engine.ToolCall, threadID string) (*Outcome, error) {
	outcome := &Outcome{ToolName: call.Name}

	tool, ok := r.tools[call.Name]
	if !ok {
		r.logger.Warn("model called unknown tool", "tool", call.Name)
		outcome.FailureMsg = fmt.Sprintf("unknown tool %q", call.Name)
		return outcome, nil
	}
	outcome.Stop = tool.Stop

	if msg := r.validateArgs(call.Name, call.Arguments); msg != "" {
		r.logger.Warn("tool arguments rejected", "tool", call.Name, "reason", msg)
		outcome.FailureMsg = msg
		return outcome, nil
	}

	toolCtx, cancel := context.WithTimeout(ctx, tool.Timeout)
	defer cancel()

	start := time.Now()
	result, err := r.invoke(toolCtx, tool, &Invocation{
		ThreadID:  threadID,
		CallID:    call.ID,
		Arguments: call.Arguments,
	})
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		r.logger.Warn("tool failed",
			"tool", call.Name,
			"thread_id", threadID,
			"duration", elapsed,
			"error", err)
		outcome.FailureMsg = err.Error()
		return outcome, nil
	}

	r.logger.Info("tool completed",
		"tool", call.Name,
		"thread_id", threadID,
		"duration", elapsed)
	outcome.Result = result
	return outcome, nil
}

// validateArgs checks the raw arguments against the tool's resolved schema,
// repairing malformed JSON first. Returns a non-empty message on rejection.
func (r *Registry) validateArgs(name, raw string) string {
	if raw == "" {
		raw = "{}"
	}
	var instance any
	if err := json.Unmarshal([]byte(raw), &instance); err != nil {
		fixed, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil || json.Unmarshal([]byte(fixed), &instance) != nil {
			return fmt.Sprintf("arguments are not valid JSON: %v", err)
		}
	}
	if err := r.resolved[name].Validate(instance); err != nil {
		return fmt.Sprintf("invalid arguments: %v", err)
	}
	return ""
}

// invoke runs the handler with panic containment.
func (r *Registry) invoke(ctx context.Context, tool *Tool, inv *Invocation) (result *Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked", "tool", tool.Name, "panic", rec)
			result = nil
			err = fmt.Errorf("tool %s failed unexpectedly", tool.Name)
		}
	}()
	result, err = tool.Handler(ctx, inv)
	if err == nil && result == nil {
		err = fmt.Errorf("tool %s returned no result", tool.Name)
	}
	return result, err
}
