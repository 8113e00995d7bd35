// ABOUTME: Turn error taxonomy: conversion, store write, engine failures
// ABOUTME: Retryable classification decides how failures surface to clients

package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/concierge/internal/store"
)

// ConversionError reports a thread item that cannot be mapped to model
// input. It is fatal for the turn: the history is unusable as written.
type ConversionError struct {
	ItemID string
	Kind   store.ItemKind
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert item %s of kind %q to model input", e.ItemID, e.Kind)
}

// StoreWriteError wraps a failed append during a turn. The turn cannot
// report completion for an item that was never persisted.
type StoreWriteError struct {
	ThreadID string
	Err      error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("persisting to thread %s: %v", e.ThreadID, e.Err)
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}

// retryable reports whether the client may simply retry the turn. Timeouts
// and cancellations qualify; conversion and store failures do not.
func retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var convErr *ConversionError
	var writeErr *StoreWriteError
	if errors.As(err, &convErr) || errors.As(err, &writeErr) {
		return false
	}
	// Engine and network failures default to retryable.
	return true
}
