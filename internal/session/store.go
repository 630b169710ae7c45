package session

import (
	"context"

	id "surasmart/pkg/domain"
)

// Store persists search sessions.
type Store interface {
	Save(ctx context.Context, s SearchSession) error
	Get(ctx context.Context, sessionID id.SessionID) (SearchSession, error)
	// Close marks the session closed with its action and notes. Returns
	// sentinel.ErrInvalidState if the session is already closed; the close
	// check and write must be atomic.
	Close(ctx context.Context, sessionID id.SessionID, fn func(s *SearchSession) error) (SearchSession, error)
}
