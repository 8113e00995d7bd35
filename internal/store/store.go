// ABOUTME: Store interfaces and data types for concierge persistence
// ABOUTME: Defines Thread, Item, Fact structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateThread is returned when trying to create a thread that already exists
var ErrDuplicateThread = errors.New("thread already exists")

// ErrDuplicateItem is returned when appending an item whose id is already present
var ErrDuplicateItem = errors.New("item already exists")

// ErrThreadMismatch is returned when an item's thread id does not match the target thread
var ErrThreadMismatch = errors.New("item thread id does not match thread")

// Thread represents a conversation thread. Identity is immutable once created;
// metadata may be updated by the host application.
type Thread struct {
	ID        string
	CreatedAt time.Time
	Metadata  map[string]string
}

// ItemKind discriminates the thread item variants.
type ItemKind string

const (
	// ItemKindUserMessage is an inbound message from the end user.
	ItemKindUserMessage ItemKind = "user_message"
	// ItemKindAssistantMessage is a finalized assistant reply.
	ItemKindAssistantMessage ItemKind = "assistant_message"
	// ItemKindHiddenContext is a tool-written side channel: visible to future
	// model turns, never rendered in the user-facing transcript.
	ItemKindHiddenContext ItemKind = "hidden_context"
)

// Item is a single entry in a thread's append-only log. Items are immutable
// once appended; Seq is assigned by the store and is monotonic per thread.
type Item struct {
	ID        string
	ThreadID  string
	Seq       int64
	Kind      ItemKind
	Content   string
	CreatedAt time.Time
}

// ItemPage is one page of a thread's item log.
type ItemPage struct {
	Data    []*Item
	HasMore bool
	// Cursor is the Seq of the last item in Data; pass it as `after` to
	// continue paging in the same order. Nil when Data is empty.
	Cursor *int64
}

// Order controls pagination direction for LoadItems.
type Order string

const (
	OrderAsc  Order = "asc"  // oldest first
	OrderDesc Order = "desc" // newest first
)

// FactStatus is the lifecycle state of a recorded fact.
type FactStatus string

const (
	FactStatusPending   FactStatus = "pending"
	FactStatusSaved     FactStatus = "saved"
	FactStatusDiscarded FactStatus = "discarded"
)

// Fact is a short declarative statement recorded by the save_fact tool.
type Fact struct {
	ID        string
	Text      string
	Status    FactStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store defines the interface for thread and item persistence.
type Store interface {
	// Threads
	CreateThread(ctx context.Context, thread *Thread) error
	GetThread(ctx context.Context, id string) (*Thread, error)
	UpdateThreadMetadata(ctx context.Context, id string, metadata map[string]string) error
	ListThreads(ctx context.Context, limit int) ([]*Thread, error)

	// Items. AppendItem assigns Seq, rejects duplicate ids, and fails with
	// ErrThreadMismatch when item.ThreadID != threadID. Append order defines
	// item order; the store never reorders or duplicates.
	AppendItem(ctx context.Context, threadID string, item *Item) error
	LoadItems(ctx context.Context, threadID string, after *int64, limit int, order Order) (*ItemPage, error)

	// Close releases any resources held by the store
	Close() error
}

// FactStore defines methods for the fact ledger used by the save_fact tool
// and the facts REST endpoints.
type FactStore interface {
	CreateFact(ctx context.Context, fact *Fact) error
	GetFact(ctx context.Context, id string) (*Fact, error)
	MarkFactSaved(ctx context.Context, id string) (*Fact, error)
	DiscardFact(ctx context.Context, id string) (*Fact, error)
	ListSavedFacts(ctx context.Context, limit int) ([]*Fact, error)
}
