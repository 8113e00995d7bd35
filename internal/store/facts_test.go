// ABOUTME: Tests for fact persistence and status transitions
// ABOUTME: Covers pending/saved/discarded lifecycle and saved-fact listing

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCreateAndGetFact(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	fact := &Fact{
		ID:   "fact-1",
		Text: "prefers window seats",
	}
	if err := store.CreateFact(ctx, fact); err != nil {
		t.Fatalf("CreateFact failed: %v", err)
	}

	got, err := store.GetFact(ctx, "fact-1")
	if err != nil {
		t.Fatalf("GetFact failed: %v", err)
	}
	if got.Text != "prefers window seats" {
		t.Errorf("Text = %q", got.Text)
	}
	if got.Status != FactStatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestGetFact_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	_, err := store.GetFact(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkFactSaved(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateFact(ctx, &Fact{ID: "fact-save", Text: "vegetarian"}); err != nil {
		t.Fatalf("CreateFact failed: %v", err)
	}

	saved, err := store.MarkFactSaved(ctx, "fact-save")
	if err != nil {
		t.Fatalf("MarkFactSaved failed: %v", err)
	}
	if saved.Status != FactStatusSaved {
		t.Errorf("Status = %q, want saved", saved.Status)
	}

	// Saving again is a no-op, not an error
	again, err := store.MarkFactSaved(ctx, "fact-save")
	if err != nil {
		t.Fatalf("repeat MarkFactSaved failed: %v", err)
	}
	if again.Status != FactStatusSaved {
		t.Errorf("Status after repeat = %q, want saved", again.Status)
	}
}

func TestMarkFactSaved_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	_, err := store.MarkFactSaved(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDiscardFact(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateFact(ctx, &Fact{ID: "fact-discard", Text: "temporary"}); err != nil {
		t.Fatalf("CreateFact failed: %v", err)
	}

	discarded, err := store.DiscardFact(ctx, "fact-discard")
	if err != nil {
		t.Fatalf("DiscardFact failed: %v", err)
	}
	if discarded.Status != FactStatusDiscarded {
		t.Errorf("Status = %q, want discarded", discarded.Status)
	}
}

func TestListSavedFacts_OldestFirst(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		fact := &Fact{
			ID:        fmt.Sprintf("fact-%d", i),
			Text:      fmt.Sprintf("fact number %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.CreateFact(ctx, fact); err != nil {
			t.Fatalf("CreateFact failed: %v", err)
		}
		if _, err := store.MarkFactSaved(ctx, fact.ID); err != nil {
			t.Fatalf("MarkFactSaved failed: %v", err)
		}
	}

	// Pending and discarded facts are excluded
	if err := store.CreateFact(ctx, &Fact{ID: "fact-pending", Text: "unsaved"}); err != nil {
		t.Fatalf("CreateFact failed: %v", err)
	}
	if err := store.CreateFact(ctx, &Fact{ID: "fact-gone", Text: "rejected"}); err != nil {
		t.Fatalf("CreateFact failed: %v", err)
	}
	if _, err := store.DiscardFact(ctx, "fact-gone"); err != nil {
		t.Fatalf("DiscardFact failed: %v", err)
	}

	facts, err := store.ListSavedFacts(ctx, 10)
	if err != nil {
		t.Fatalf("ListSavedFacts failed: %v", err)
	}
	if len(facts) != 3 {
		t.Fatalf("got %d facts, want 3", len(facts))
	}
	for i, fact := range facts {
		if fact.ID != fmt.Sprintf("fact-%d", i) {
			t.Errorf("fact[%d].ID = %q, want fact-%d", i, fact.ID, i)
		}
	}
}
