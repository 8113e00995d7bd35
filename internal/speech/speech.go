// ABOUTME: Spoken announcements for tool side effects via text-to-speech
// ABOUTME: Announcer is best-effort: failures are logged, never propagated

package speech

import "context"

// Announcer speaks a short status line while a tool runs. Implementations
// must be safe for concurrent use and should not block turn processing on
// playback.
type Announcer interface {
	Announce(ctx context.Context, text string) error
}

// Noop discards announcements. Used when no speech backend is configured.
type Noop struct{}

func (Noop) Announce(context.Context, string) error { return nil }
