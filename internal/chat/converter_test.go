// ABOUTME: Tests for thread item to model input conversion
// ABOUTME: Covers role mapping, timeline position, window, and unknown kinds

package chat

import (
	"errors"
	"fmt"
	"testing"

	"github.com/2389/concierge/internal/engine"
	"github.com/2389/concierge/internal/store"
)

func item(id string, kind store.ItemKind, content string) *store.Item {
	return &store.Item{ID: id, ThreadID: "t1", Kind: kind, Content: content}
}

func TestConverter_RoleMapping(t *testing.T) {
	c := &Converter{}
	msgs, err := c.ToModelInput([]*store.Item{
		item("1", store.ItemKindUserMessage, "hi"),
		item("2", store.ItemKindAssistantMessage, "hello"),
		item("3", store.ItemKindHiddenContext, `<FACT_SAVED id="f">x</FACT_SAVED>`),
		item("4", store.ItemKindUserMessage, "what did I say?"),
	})
	if err != nil {
		t.Fatalf("ToModelInput failed: %v", err)
	}

	wantRoles := []engine.Role{engine.RoleUser, engine.RoleAssistant, engine.RoleSystem, engine.RoleUser}
	if len(msgs) != len(wantRoles) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(wantRoles))
	}
	for i, want := range wantRoles {
		if msgs[i].Role != want {
			t.Errorf("msg[%d].Role = %q, want %q", i, msgs[i].Role, want)
		}
	}

	// Hidden context keeps its timeline position, not a prefix slot.
	if msgs[2].Content != `<FACT_SAVED id="f">x</FACT_SAVED>` {
		t.Errorf("hidden content = %q", msgs[2].Content)
	}
}

func TestConverter_UnknownKindFails(t *testing.T) {
	c := &Converter{}
	_, err := c.ToModelInput([]*store.Item{
		item("1", store.ItemKindUserMessage, "hi"),
		item("2", store.ItemKind("attachment"), "blob"),
	})

	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected ConversionError, got %v", err)
	}
	if convErr.ItemID != "2" {
		t.Errorf("ItemID = %q, want 2", convErr.ItemID)
	}
}

func TestConverter_HiddenWindow(t *testing.T) {
	var items []*store.Item
	for i := 0; i < 5; i++ {
		items = append(items, item(fmt.Sprintf("h%d", i), store.ItemKindHiddenContext, fmt.Sprintf("fact %d", i)))
	}
	items = append(items, item("u", store.ItemKindUserMessage, "hello"))

	t.Run("zero keeps all", func(t *testing.T) {
		c := &Converter{HiddenWindow: 0}
		msgs, err := c.ToModelInput(items)
		if err != nil {
			t.Fatalf("ToModelInput failed: %v", err)
		}
		if len(msgs) != 6 {
			t.Errorf("got %d messages, want 6", len(msgs))
		}
	})

	t.Run("window keeps newest", func(t *testing.T) {
		c := &Converter{HiddenWindow: 2}
		msgs, err := c.ToModelInput(items)
		if err != nil {
			t.Fatalf("ToModelInput failed: %v", err)
		}
		if len(msgs) != 3 {
			t.Fatalf("got %d messages, want 3", len(msgs))
		}
		if msgs[0].Content != "fact 3" || msgs[1].Content != "fact 4" {
			t.Errorf("kept hidden = %q, %q; want fact 3, fact 4", msgs[0].Content, msgs[1].Content)
		}
	})

	t.Run("window larger than total keeps all", func(t *testing.T) {
		c := &Converter{HiddenWindow: 50}
		msgs, err := c.ToModelInput(items)
		if err != nil {
			t.Fatalf("ToModelInput failed: %v", err)
		}
		if len(msgs) != 6 {
			t.Errorf("got %d messages, want 6", len(msgs))
		}
	})
}

func TestConverter_Empty(t *testing.T) {
	c := &Converter{}
	msgs, err := c.ToModelInput(nil)
	if err != nil {
		t.Fatalf("ToModelInput failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages, want 0", len(msgs))
	}
}
