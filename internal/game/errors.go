package game

import "errors"

var (
	// ErrAlreadyActive is returned by Start while a game is running.
	ErrAlreadyActive = errors.New("game already active")

	// ErrGameNotActive is returned by AttemptMatch outside an active game.
	ErrGameNotActive = errors.New("game not active")

	// ErrInvalidCard is returned when a card index is outside the deck.
	ErrInvalidCard = errors.New("invalid card")

	// ErrAlreadyMatched is returned when either card has already been matched.
	ErrAlreadyMatched = errors.New("card already matched")

	// ErrSameCard is returned when both indices refer to the same card.
	ErrSameCard = errors.New("cannot match a card with itself")
)

// Wire codes for engine errors
const (
	CodeAlreadyActive  = "already_active"
	CodeGameNotActive  = "game_not_active"
	CodeInvalidCard    = "invalid_card"
	CodeAlreadyMatched = "already_matched"
	CodeSameCard       = "same_card"
	CodeInternal       = "internal"
)

// ErrorCode maps an engine error to its stable wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyActive):
		return CodeAlreadyActive
	case errors.Is(err, ErrGameNotActive):
		return CodeGameNotActive
	case errors.Is(err, ErrInvalidCard):
		return CodeInvalidCard
	case errors.Is(err, ErrAlreadyMatched):
		return CodeAlreadyMatched
	case errors.Is(err, ErrSameCard):
		return CodeSameCard
	default:
		return CodeInternal
	}
}

// ErrorFromCode is the inverse of ErrorCode, used by clients to turn a wire
// error back into a sentinel. Unknown codes return nil.
func ErrorFromCode(code string) error {
	switch code {
	case CodeAlreadyActive:
		return ErrAlreadyActive
	case CodeGameNotActive:
		return ErrGameNotActive
	case CodeInvalidCard:
		return ErrInvalidCard
	case CodeAlreadyMatched:
		return ErrAlreadyMatched
	case CodeSameCard:
		return ErrSameCard
	default:
		return nil
	}
}
