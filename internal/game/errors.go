package game

// Errors
var (
	ErrInvalidMove       = &GameError{"invalid move"}
	ErrEmptyUndo         = &GameError{"no move to undo"}
	ErrGameNotInProgress = &GameError{"game is not in progress"}
	ErrNotYourTurn       = &GameError{"not your turn"}
	ErrGameNotFound      = &GameError{"game not found"}
	ErrPlayerNotFound    = &GameError{"player not found"}
	ErrAlreadyQueued     = &GameError{"player is already waiting for a match"}
)

type GameError struct {
	msg string
}

func (e *GameError) Error() string {
	return e.msg
}
