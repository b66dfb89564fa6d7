package naval

import "errors"

// Rejections returned by match commands. A rejected command never changes
// match state.
var (
	ErrInvalidPlacement      = errors.New("invalid placement")
	ErrOutOfBounds           = errors.New("coordinate out of bounds")
	ErrWrongPhase            = errors.New("command not allowed in this phase")
	ErrNotYourTurn           = errors.New("not your turn")
	ErrInsufficientAP        = errors.New("not enough action points")
	ErrLinkedShipUnavailable = errors.New("linked ship is missing or sunk")
	ErrAlreadyResolved       = errors.New("cell already resolved")
	ErrIncompleteDeployment  = errors.New("fleet not fully deployed")
	ErrAlreadyReady          = errors.New("player already ready")
	ErrMatchFull             = errors.New("match is full")
	ErrUnknownPlayer         = errors.New("player not in match")
	ErrUnknownSkill          = errors.New("unknown skill")
	ErrUnknownAction         = errors.New("unknown action type")
)
