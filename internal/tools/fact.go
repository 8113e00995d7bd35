// ABOUTME: save_fact tool: records a user-shared detail immediately
// ABOUTME: Stop tool; saving ends the turn after the client is notified

package tools

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/2389/concierge/internal/speech"
	"github.com/2389/concierge/internal/store"
)

var factAnnouncements = []string{
	"I am going to add this event detail to my database",
	"Got it, I'll save that event detail right away",
	"Perfect, I'm recording this event detail now",
	"I'm adding this information to your event details",
	"Let me save that event detail for you",
	"I'll make sure this event detail is saved",
	"Adding this event detail to the database now",
	"I'm documenting this event detail right away",
	"Got it, saving this event detail immediately",
	"I'll add this event detail to your event planning notes",
}

type saveFactArgs struct {
	Fact string `json:"fact" jsonschema:"a short, declarative summary of the detail to record"`
}

// HiddenFactContext formats the hidden context entry appended after a fact
// is saved, so later turns can see what was recorded without showing it to
// the user.
func HiddenFactContext(factID, threadID, text string) string {
	return fmt.Sprintf(`<FACT_SAVED id=%q threadId=%q>%s</FACT_SAVED>`, factID, threadID, text)
}

// SaveFact builds the save_fact tool. It persists the fact, announces the
// save out loud, and instructs the client to record it.
func SaveFact(facts store.FactStore, announcer speech.Announcer) *Tool {
	return &Tool{
		Name:        "save_fact",
		Description: "Record an event detail shared by the user so it is saved immediately.",
		Schema:      schemaFor[saveFactArgs](),
		Stop:        true,
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			args, err := DecodeArgs[saveFactArgs](inv.Arguments)
			if err != nil {
				return nil, err
			}
			if args.Fact == "" {
				return nil, fmt.Errorf("fact text is required")
			}

			// Announcement failures never block the save.
			if announcer != nil {
				_ = announcer.Announce(ctx, factAnnouncements[rand.Intn(len(factAnnouncements))])
			}

			fact := &store.Fact{
				ID:   uuid.New().String(),
				Text: args.Fact,
			}
			if err := facts.CreateFact(ctx, fact); err != nil {
				return nil, fmt.Errorf("recording fact: %w", err)
			}
			saved, err := facts.MarkFactSaved(ctx, fact.ID)
			if err != nil {
				return nil, fmt.Errorf("confirming fact: %w", err)
			}

			return &Result{
				Output: map[string]string{"fact_id": saved.ID, "status": "saved"},
				ClientAction: &ClientAction{
					Name: "record_fact",
					Arguments: map[string]any{
						"fact_id":   saved.ID,
						"fact_text": saved.Text,
					},
				},
				HiddenContext: HiddenFactContext(saved.ID, inv.ThreadID, saved.Text),
			}, nil
		},
	}
}
