// ABOUTME: Conversation orchestrator: one Respond call runs one full turn
// ABOUTME: Welcome, history, generation passes, tool dispatch, persistence

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/concierge/internal/engine"
	"github.com/2389/concierge/internal/store"
	"github.com/2389/concierge/internal/tools"
)

const (
	defaultPageSize      = 20
	defaultMaxPasses     = 8
	defaultEngineTimeout = 60 * time.Second

	// Persisted as the assistant reply when generation times out, so the
	// thread history stays coherent for the next turn.
	apologyMessage = "Sorry, I ran into a problem completing that request. Please try again."
)

// Options tunes orchestrator behavior. Zero values fall back to defaults;
// an empty WelcomeMessage disables welcome synthesis.
type Options struct {
	SystemPrompt   string
	WelcomeMessage string
	PageSize       int
	HiddenWindow   int
	EngineTimeout  time.Duration
	MaxPasses      int
}

// Orchestrator drives conversational turns against a thread store, a
// generation engine, and a tool registry. Safe for concurrent use; turns on
// the same thread are serialized.
type Orchestrator struct {
	store     store.Store
	engine    engine.Engine
	registry  *tools.Registry
	converter *Converter
	locks     *threadLocks
	logger    *slog.Logger
	opts      Options
}

// NewOrchestrator wires an orchestrator. Registry may be nil for a
// tool-less conversation.
func NewOrchestrator(st store.Store, eng engine.Engine, reg *tools.Registry, opts Options) *Orchestrator {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = defaultMaxPasses
	}
	if opts.EngineTimeout <= 0 {
		opts.EngineTimeout = defaultEngineTimeout
	}
	return &Orchestrator{
		store:     st,
		engine:    eng,
		registry:  reg,
		converter: &Converter{HiddenWindow: opts.HiddenWindow},
		locks:     newThreadLocks(),
		logger:    slog.Default().With("component", "chat"),
		opts:      opts,
	}
}

// Respond runs one turn. An empty threadID creates a new thread; an empty
// userMessage opens the thread without speaking, which on a fresh thread
// produces only the welcome message. Events are delivered on events until
// the turn settles; the channel is not closed by Respond.
//
// The returned TurnResult is valid whenever the error is nil, including the
// timeout path where the persisted reply is an apology.
func (o *Orchestrator) Respond(ctx context.Context, threadID, userMessage string, events chan<- StreamEvent) (*TurnResult, error) {
	em := &emitter{ctx: ctx, events: events}

	thread, err := o.resolveThread(ctx, threadID)
	if err != nil {
		em.emit(TurnErrorEvent{Message: "thread unavailable", Retryable: retryable(err)})
		return nil, err
	}

	unlock := o.locks.lock(thread.ID)
	defer unlock()

	turn := &TurnContext{Thread: thread, em: em}
	logger := o.logger.With("thread_id", thread.ID)

	if _, err := o.maybeWelcome(ctx, thread, em); err != nil {
		em.emit(TurnErrorEvent{Message: "failed to start conversation", Retryable: retryable(err)})
		return nil, err
	}
	if userMessage == "" {
		// Opening a thread with nothing to say ends the turn after the
		// welcome, if any.
		return &TurnResult{ThreadID: thread.ID}, nil
	}

	if _, err := o.appendItem(ctx, thread.ID, store.ItemKindUserMessage, userMessage); err != nil {
		em.emit(TurnErrorEvent{Message: "failed to record message", Retryable: false})
		return nil, err
	}

	history, err := o.loadHistory(ctx, thread.ID)
	if err != nil {
		em.emit(TurnErrorEvent{Message: "failed to load history", Retryable: retryable(err)})
		return nil, err
	}

	msgs, err := o.converter.ToModelInput(history)
	if err != nil {
		em.emit(TurnErrorEvent{Message: "conversation history is corrupted", Retryable: false})
		return nil, err
	}

	return o.generate(ctx, turn, msgs, em, logger)
}

// resolveThread loads the thread or creates a fresh one for an empty id.
func (o *Orchestrator) resolveThread(ctx context.Context, threadID string) (*store.Thread, error) {
	if threadID == "" {
		thread := &store.Thread{
			ID:        uuid.New().String(),
			CreatedAt: time.Now().UTC(),
		}
		if err := o.store.CreateThread(ctx, thread); err != nil {
			return nil, fmt.Errorf("creating thread: %w", err)
		}
		o.logger.Info("created thread", "thread_id", thread.ID)
		return thread, nil
	}
	thread, err := o.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("loading thread %s: %w", threadID, err)
	}
	return thread, nil
}

// maybeWelcome synthesizes the welcome message on an empty thread. Holding
// the thread lock makes this idempotent: a second caller sees the persisted
// welcome and skips. Reports whether a welcome was emitted.
func (o *Orchestrator) maybeWelcome(ctx context.Context, thread *store.Thread, em *emitter) (bool, error) {
	if o.opts.WelcomeMessage == "" {
		return false, nil
	}
	page, err := o.store.LoadItems(ctx, thread.ID, nil, 1, store.OrderAsc)
	if err != nil {
		return false, fmt.Errorf("checking thread history: %w", err)
	}
	if len(page.Data) > 0 {
		return false, nil
	}

	item, err := o.appendItem(ctx, thread.ID, store.ItemKindAssistantMessage, o.opts.WelcomeMessage)
	if err != nil {
		return false, err
	}
	em.emit(MessageDelta{ItemID: item.ID, Text: o.opts.WelcomeMessage})
	em.emit(MessageCompleted{Item: item})
	o.logger.Info("welcomed new thread", "thread_id", thread.ID)
	return true, nil
}

// loadHistory returns the newest page of items in ascending order.
func (o *Orchestrator) loadHistory(ctx context.Context, threadID string) ([]*store.Item, error) {
	page, err := o.store.LoadItems(ctx, threadID, nil, o.opts.PageSize, store.OrderDesc)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	items := page.Data
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

// generate runs the pass loop: each pass streams until the model stops or
// calls a tool; tool results feed the next pass unless the tool is in the
// stop set.
func (o *Orchestrator) generate(ctx context.Context, turn *TurnContext, msgs []engine.Message, em *emitter, logger *slog.Logger) (*TurnResult, error) {
	// A turn outlives its caller: once generation starts, a transport
	// disconnect must not abort it. Passes and tool dispatch run detached
	// from the request context, bounded only by the engine timeout. The
	// emitter still carries the request context and stops delivering once
	// the caller is gone.
	ctx = context.WithoutCancel(ctx)

	assistantItemID := uuid.New().String()
	var text strings.Builder
	stopped := false

	req := &engine.Request{System: o.opts.SystemPrompt, Messages: msgs}
	if o.registry != nil {
		req.Tools = o.registry.Defs()
	}

	for pass := 0; pass < o.opts.MaxPasses; pass++ {
		toolCall, err := o.runPass(ctx, req, assistantItemID, &text, em)
		if err != nil {
			return o.settleFailure(ctx, turn, err, em, logger)
		}
		if toolCall == nil || o.registry == nil {
			break
		}

		logger.Info("model invoked tool", "tool", toolCall.Name, "pass", pass)

		outcome, err := o.registry.Dispatch(ctx, *toolCall, turn.Thread.ID)
		if err != nil {
			return o.settleFailure(ctx, turn, err, em, logger)
		}

		req.Messages = append(req.Messages, engine.Message{
			Role:     engine.RoleAssistant,
			ToolCall: toolCall,
		})
		toolMsg, applyErr := o.applyOutcome(ctx, turn, outcome)
		if applyErr != nil {
			return o.settleFailure(ctx, turn, applyErr, em, logger)
		}
		req.Messages = append(req.Messages, engine.Message{
			Role:       engine.RoleTool,
			Content:    toolMsg,
			ToolCallID: toolCall.ID,
		})

		if outcome.Stop {
			stopped = true
			break
		}
	}

	return o.settle(ctx, turn, assistantItemID, text.String(), stopped, em, logger)
}

// runPass consumes one generation stream. It returns the pass's tool call,
// or nil when the model finished its reply.
func (o *Orchestrator) runPass(ctx context.Context, req *engine.Request, itemID string, text *strings.Builder, em *emitter) (*engine.ToolCall, error) {
	passCtx, cancel := context.WithTimeout(ctx, o.opts.EngineTimeout)
	defer cancel()

	stream, err := o.engine.Run(passCtx, req)
	if err != nil {
		return nil, fmt.Errorf("starting generation: %w", err)
	}

	var toolCall *engine.ToolCall
	for ev := range stream.Events() {
		switch ev := ev.(type) {
		case engine.TextDelta:
			text.WriteString(ev.Text)
			em.emit(MessageDelta{ItemID: itemID, Text: ev.Text})
		case engine.ToolCallEvent:
			// Only the first call of a pass is honored.
			if toolCall == nil {
				call := ev.Call
				toolCall = &call
			}
		case engine.Completed:
		}
	}
	if err := stream.Err(); err != nil {
		if errors.Is(passCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("generation pass: %w", context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("generation pass: %w", err)
	}
	return toolCall, nil
}

// applyOutcome folds a dispatch outcome into the turn: widgets stream to
// the client, hidden context persists immediately, the client action takes
// the slot. Returns the tool message content for the next pass.
func (o *Orchestrator) applyOutcome(ctx context.Context, turn *TurnContext, outcome *tools.Outcome) (string, error) {
	if outcome.Failed() {
		encoded, _ := json.Marshal(map[string]string{"error": outcome.FailureMsg})
		return string(encoded), nil
	}

	result := outcome.Result
	if result.Widget != nil {
		turn.StreamWidget(result.Widget)
	}
	if result.HiddenContext != "" {
		if _, err := o.appendItem(ctx, turn.Thread.ID, store.ItemKindHiddenContext, result.HiddenContext); err != nil {
			return "", err
		}
	}
	if result.ClientAction != nil {
		turn.SetClientAction(result.ClientAction)
	}

	encoded, err := json.Marshal(result.Output)
	if err != nil {
		encoded, _ = json.Marshal(map[string]string{"error": "tool produced unencodable output"})
	}
	return string(encoded), nil
}

// settle persists the assistant reply and emits the terminal events. The
// completion event follows the append unconditionally.
func (o *Orchestrator) settle(ctx context.Context, turn *TurnContext, itemID, text string, stopped bool, em *emitter, logger *slog.Logger) (*TurnResult, error) {
	result := &TurnResult{
		ThreadID:     turn.Thread.ID,
		Text:         text,
		ClientAction: turn.ClientAction(),
		Stopped:      stopped,
	}

	if text != "" {
		item := &store.Item{
			ID:        itemID,
			ThreadID:  turn.Thread.ID,
			Kind:      store.ItemKindAssistantMessage,
			Content:   text,
			CreatedAt: time.Now().UTC(),
		}
		// Detached context: a client disconnect must not lose the reply.
		if err := o.store.AppendItem(context.WithoutCancel(ctx), turn.Thread.ID, item); err != nil {
			writeErr := &StoreWriteError{ThreadID: turn.Thread.ID, Err: err}
			em.emit(TurnErrorEvent{Message: "failed to save reply", Retryable: false})
			return nil, writeErr
		}
		result.AssistantItemID = item.ID
		em.emit(MessageCompleted{Item: item})
	}

	if result.ClientAction != nil {
		em.emit(ClientActionEvent{Action: *result.ClientAction})
	}

	logger.Info("turn settled",
		"stopped", stopped,
		"text_len", len(text),
		"client_action", result.ClientAction != nil)
	return result, nil
}

// settleFailure handles a failed turn. Timeouts degrade to a persisted
// apology so the thread stays usable; everything else surfaces as an error
// after a TurnErrorEvent.
func (o *Orchestrator) settleFailure(ctx context.Context, turn *TurnContext, cause error, em *emitter, logger *slog.Logger) (*TurnResult, error) {
	logger.Error("turn failed", "error", cause)

	if errors.Is(cause, context.DeadlineExceeded) {
		item, err := o.appendItem(ctx, turn.Thread.ID, store.ItemKindAssistantMessage, apologyMessage)
		if err != nil {
			em.emit(TurnErrorEvent{Message: "generation timed out", Retryable: true})
			return nil, cause
		}
		em.emit(MessageDelta{ItemID: item.ID, Text: apologyMessage})
		em.emit(MessageCompleted{Item: item})
		return &TurnResult{
			ThreadID:        turn.Thread.ID,
			AssistantItemID: item.ID,
			Text:            apologyMessage,
		}, nil
	}

	em.emit(TurnErrorEvent{Message: "the assistant could not complete this turn", Retryable: retryable(cause)})
	return nil, cause
}

// appendItem persists one item with a fresh id under a detached context.
func (o *Orchestrator) appendItem(ctx context.Context, threadID string, kind store.ItemKind, content string) (*store.Item, error) {
	item := &store.Item{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		Kind:      kind,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.store.AppendItem(context.WithoutCancel(ctx), threadID, item); err != nil {
		return nil, &StoreWriteError{ThreadID: threadID, Err: err}
	}
	return item, nil
}
