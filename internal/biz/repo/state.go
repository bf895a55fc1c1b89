package repo

import (
	"context"

	"github.com/anthropics/emoji-gateway/internal/biz/domain"
)

// StateRepo is the conversation store interface.
// Backed by a durable key/value store with per-key atomicity; no operation
// spans more than one key.
type StateRepo interface {
	// GetState returns the pending conversation state for a user, or nil if
	// absent. A corrupt record is deleted and treated as absent.
	GetState(ctx context.Context, userID string) (*domain.ConversationState, error)

	// SetState writes the state with the configured TTL, overwriting any
	// prior state unconditionally.
	SetState(ctx context.Context, userID string, state *domain.ConversationState) error

	// DeleteState removes the state; a no-op if absent.
	DeleteState(ctx context.Context, userID string) error

	// CheckRateLimit admits a request if the user's sliding window holds
	// fewer than the configured maximum entries, recording the admission.
	CheckRateLimit(ctx context.Context, userID string) (bool, error)

	// MarkProcessed atomically records a note id as seen. Returns true on
	// first sighting, false if the note was already marked.
	MarkProcessed(ctx context.Context, noteID string) (bool, error)

	// Ping reports backend liveness; never returns an error.
	Ping(ctx context.Context) bool

	// Close releases the backend connection.
	Close() error
}
