package bracket

import "errors"

var (
	ErrValidation               = errors.New("validation failed")
	ErrNotFound                 = errors.New("not found")
	ErrInvalidState             = errors.New("operation not allowed in the current state")
	ErrInvalidFormat            = errors.New("invalid tournament format")
	ErrInsufficientParticipants = errors.New("at least two participants are required")
	ErrNoBracket                = errors.New("no bracket has been generated")
	ErrIncompleteRound          = errors.New("not all matches in the round have a winner")
	ErrInvalidWinner            = errors.New("winner is not part of this match")
	ErrDuplicate                = errors.New("already exists")
	ErrFull                     = errors.New("tournament is full")
	ErrAlreadyFinished          = errors.New("tournament is already finished")
)
