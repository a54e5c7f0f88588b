package server


// Client-visible rejection codes.
const (
	ErrNotYourTurn     = "not_your_turn"
	ErrNotYourCell     = "not_your_cell"
	ErrEmptyNotAllowed = "empty_not_allowed_after_first_round"
	ErrRoomFull        = "room_full"
	ErrAlreadyJoined   = "already_joined"
	ErrAlreadyStarted  = "already_started"
	ErrNotInvited      = "not_invited"
	ErrNotHost         = "not_host"
	ErrTooFewPlayers   = "too_few_players"
	ErrSelfKick        = "self_kick"
	ErrNotInRoom       = "not_in_room"
	ErrInvalidCell     = "invalid_cell"
	ErrRoomNotFound    = "room_not_found"
	ErrGameNotFinished = "game_not_finished"
	ErrGameNotStarted  = "game_not_started"
	ErrExplosionLimit  = "explosion_limit_exceeded"
	ErrInternal        = "internal"
)

// ValidationError is a recoverable, client-visible rejection. It is
// delivered to the originating session as an error frame; nobody else
// in the room sees anything.
type ValidationError struct {
	Code string
}

func (e *ValidationError) Error() string {
	return e.Code
}

// ClientVisible marks the error as a handler rejection so the store
// does not retry the transaction it aborted.
func (e *ValidationError) ClientVisible() bool {
	return true
}

func reject(code string) error {
	return &ValidationError{Code: code}
}
