// ABOUTME: Converts persisted thread items into model context messages
// ABOUTME: Hidden context becomes system messages at their timeline position

package chat

import (
	"github.com/2389/concierge/internal/engine"
	"github.com/2389/concierge/internal/store"
)

// Converter maps thread items to model input. HiddenWindow limits how many
// of the most recent hidden context items are included: 0 includes all,
// n > 0 includes only the newest n. User and assistant messages are always
// included.
type Converter struct {
	HiddenWindow int
}

// ToModelInput converts items, which must be in ascending timeline order.
// An item of unknown kind aborts the conversion; a turn must not silently
// generate against partial history.
func (c *Converter) ToModelInput(items []*store.Item) ([]engine.Message, error) {
	hiddenTotal := 0
	for _, item := range items {
		if item.Kind == store.ItemKindHiddenContext {
			hiddenTotal++
		}
	}

	msgs := make([]engine.Message, 0, len(items))
	hiddenSeen := 0
	for _, item := range items {
		switch item.Kind {
		case store.ItemKindUserMessage:
			msgs = append(msgs, engine.Message{Role: engine.RoleUser, Content: item.Content})
		case store.ItemKindAssistantMessage:
			msgs = append(msgs, engine.Message{Role: engine.RoleAssistant, Content: item.Content})
		case store.ItemKindHiddenContext:
			hiddenSeen++
			if c.HiddenWindow == 0 || hiddenSeen > hiddenTotal-c.HiddenWindow {
				msgs = append(msgs, engine.Message{Role: engine.RoleSystem, Content: item.Content})
			}
		default:
			return nil, &ConversionError{ItemID: item.ID, Kind: item.Kind}
		}
	}
	return msgs, nil
}
