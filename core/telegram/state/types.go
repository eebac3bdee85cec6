package state

import (
	"context"
	"time"
)

// State identifies a finite-state-machine step used in conversations.
type State string

// StateIdle indicates there is no active conversation with the user.
const StateIdle State = "idle"

// Session stores the conversation step and the typed data collected so far.
type Session[T any] struct {
	State     State     `json:"state"`
	Data      T         `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the session is somewhere other than idle.
func (s Session[T]) Active() bool {
	return s.State != "" && s.State != StateIdle
}

// Store persists sessions keyed by Telegram user id. Implementations hand out
// copies, so a session read for one user is never aliased by another.
type Store[T any] interface {
	// Get returns the session and true, or a zero session and false when the
	// user has none or it expired.
	Get(ctx context.Context, userID int64) (Session[T], bool, error)
	// Save replaces the session and restarts its idle timer.
	Save(ctx context.Context, userID int64, s Session[T]) error
	// Clear drops the session; clearing a missing session is not an error.
	Clear(ctx context.Context, userID int64) error
}
