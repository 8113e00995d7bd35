// ABOUTME: Tests for the tool registry: validation, dispatch, failure modes
// ABOUTME: Covers unknown tools, handler errors, panics, and stop flags

package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/2389/concierge/internal/engine"
)

func stubTool(name string, stop bool, handler Handler) *Tool {
	if handler == nil {
		handler = func(ctx context.Context, inv *Invocation) (*Result, error) {
			return &Result{Output: "ok"}, nil
		}
	}
	return &Tool{
		Name:        name,
		Description: name + " description",
		Schema:      &jsonschema.Schema{Type: "object"},
		Stop:        stop,
		Handler:     handler,
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name  string
		tools []*Tool
	}{
		{"empty name", []*Tool{stubTool("", false, nil)}},
		{"duplicate name", []*Tool{stubTool("a", false, nil), stubTool("a", false, nil)}},
		{"nil schema", []*Tool{{Name: "a", Handler: func(context.Context, *Invocation) (*Result, error) { return nil, nil }}}},
		{"nil handler", []*Tool{{Name: "a", Schema: &jsonschema.Schema{Type: "object"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.tools...); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRegistry_DefsPreserveOrder(t *testing.T) {
	reg, err := NewRegistry(stubTool("b", false, nil), stubTool("a", true, nil), stubTool("c", false, nil))
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	defs := reg.Defs()
	if len(defs) != 3 {
		t.Fatalf("got %d defs, want 3", len(defs))
	}
	want := []string{"b", "a", "c"}
	for i, def := range defs {
		if def.Name != want[i] {
			t.Errorf("def[%d].Name = %q, want %q", i, def.Name, want[i])
		}
	}
}

func TestRegistry_IsStop(t *testing.T) {
	reg, err := NewRegistry(stubTool("stopper", true, nil), stubTool("continuer", false, nil))
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	if !reg.IsStop("stopper") {
		t.Error("stopper should be a stop tool")
	}
	if reg.IsStop("continuer") {
		t.Error("continuer should not be a stop tool")
	}
	if reg.IsStop("unknown") {
		t.Error("unknown tool should not be a stop tool")
	}
}

func TestRegistry_DispatchSuccess(t *testing.T) {
	reg, err := NewRegistry(stubTool("echo", false, func(ctx context.Context, inv *Invocation) (*Result, error) {
		return &Result{Output: map[string]string{"args": inv.Arguments}}, nil
	}))
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	outcome, err := reg.Dispatch(context.Background(), engine.ToolCall{
		ID:        "call-1",
		Name:      "echo",
		Arguments: `{"x":1}`,
	}, "thread-1")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if outcome.Failed() {
		t.Fatalf("unexpected failure: %s", outcome.FailureMsg)
	}
	if outcome.ToolName != "echo" {
		t.Errorf("ToolName = %q", outcome.ToolName)
	}
}

func TestRegistry_DispatchUnknownTool(t *testing.T) {
	reg, err := NewRegistry(stubTool("real", false, nil))
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	outcome, err := reg.Dispatch(context.Background(), engine.ToolCall{Name: "imaginary"}, "thread-1")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !outcome.Failed() {
		t.Fatal("expected failure outcome for unknown tool")
	}
	if outcome.FailureMsg == "" {
		t.Error("failure message should name the unknown tool")
	}
}

func TestRegistry_DispatchHandlerError(t *testing.T) {
	reg, err := NewRegistry(stubTool("flaky", false, func(context.Context, *Invocation) (*Result, error) {
		return nil, errors.New("upstream unavailable")
	}))
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	outcome, err := reg.Dispatch(context.Background(), engine.ToolCall{Name: "flaky"}, "thread-1")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !outcome.Failed() {
		t.Fatal("expected failure outcome")
	}
	if outcome.FailureMsg != "upstream unavailable" {
		t.Errorf("FailureMsg = %q", outcome.FailureMsg)
	}
}

func TestRegistry_DispatchContainsPanic(t *testing.T) {
	reg, err := NewRegistry(stubTool("bomb", false, func(context.Context, *Invocation) (*Result, error) {
		panic("boom")
	}))
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	outcome, err := reg.Dispatch(context.Background(), engine.ToolCall{Name: "bomb"}, "thread-1")
	if err != nil {
		t.Fatalf("Dispatch should not propagate panics as errors: %v", err)
	}
	if !outcome.Failed() {
		t.Fatal("expected failure outcome from panic")
	}
}

func TestRegistry_DispatchTimeout(t *testing.T) {
	slow := stubTool("slow", false, func(ctx context.Context, _ *Invocation) (*Result, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return &Result{Output: "done"}, nil
		}
	})
	slow.Timeout = 20 * time.Millisecond

	reg, err := NewRegistry(slow)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	outcome, err := reg.Dispatch(context.Background(), engine.ToolCall{Name: "slow"}, "thread-1")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !outcome.Failed() {
		t.Fatal("expected timeout to surface as failure outcome")
	}
}

func TestRegistry_DispatchParentCancellation(t *testing.T) {
	reg, err := NewRegistry(stubTool("any", false, func(ctx context.Context, _ *Invocation) (*Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = reg.Dispatch(ctx, engine.ToolCall{Name: "any"}, "thread-1")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRegistry_DispatchNilResult(t *testing.T) {
	reg, err := NewRegistry(stubTool("void", false, func(context.Context, *Invocation) (*Result, error) {
		return nil, nil
	}))
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	outcome, err := reg.Dispatch(context.Background(), engine.ToolCall{Name: "void"}, "thread-1")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !outcome.Failed() {
		t.Error("nil result without error should be a failure outcome")
	}
}

func TestRegistry_DispatchValidatesArgs(t *testing.T) {
	type strictArgs struct {
		Name string `json:"name"`
	}
	tool := stubTool("strict", false, nil)
	tool.Schema = schemaFor[strictArgs]()

	reg, err := NewRegistry(tool)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	// Repairable JSON passes validation after repair.
	outcome, err := reg.Dispatch(context.Background(), engine.ToolCall{
		Name:      "strict",
		Arguments: `{'name': 'x'}`,
	}, "thread-1")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if outcome.Failed() {
		t.Errorf("repairable arguments rejected: %s", outcome.FailureMsg)
	}

	// A wrong type is rejected before the handler runs.
	outcome, err = reg.Dispatch(context.Background(), engine.ToolCall{
		Name:      "strict",
		Arguments: `{"name": 7}`,
	}, "thread-1")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !outcome.Failed() {
		t.Error("expected schema rejection for wrong argument type")
	}
}

func TestRegistry_DefaultTimeoutApplied(t *testing.T) {
	tool := stubTool("t", false, nil)
	if _, err := NewRegistry(tool); err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	if tool.Timeout != defaultToolTimeout {
		t.Errorf("Timeout = %v, want %v", tool.Timeout, defaultToolTimeout)
	}
}

func ExampleRegistry_Dispatch() {
	reg, _ := NewRegistry(stubTool("greet", false, func(context.Context, *Invocation) (*Result, error) {
		return &Result{Output: "hello"}, nil
	}))
	outcome, _ := reg.Dispatch(context.Background(), engine.ToolCall{Name: "greet"}, "t1")
	fmt.Println(outcome.Failed())
	// Output: false
}
