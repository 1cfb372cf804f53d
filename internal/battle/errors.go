package battle

import (
	"fmt"

	"github.com/creaturequest/pvp-server/internal/apperr"
)

var (
	ErrNotYourTurn    = apperr.RuleViolation("Not your turn")
	ErrUnknownAction  = apperr.InvalidAction("Unknown action type")
	ErrBattleOver     = apperr.RuleViolation("Battle is not active")
	ErrNotParticipant = apperr.NotFound("Player is not part of this battle")
)

func unknownAction(name string) error {
	if name == "" {
		return apperr.Wrap(apperr.KindInvalidAction, ErrUnknownAction, "Action type is required")
	}
	return apperr.Wrap(apperr.KindInvalidAction, ErrUnknownAction, fmt.Sprintf("Unknown action type: %s", name))
}

func violation(format string, args ...any) error {
	return apperr.RuleViolation(format, args...)
}

func invalid(format string, args ...any) error {
	return apperr.InvalidAction(format, args...)
}
