package service

import (
	"fmt"

	"anoa.com/ulike/internal/entity"
	"anoa.com/ulike/pkg/apperror"
)

// ErrInvalidTransition is returned for a cross action, e.g. a dislike
// requested while the reactor currently likes the subject.
var ErrInvalidTransition = fmt.Errorf("%w: reaction cannot be changed with this action", apperror.ErrConflict)

// Step is one row of the transition table.
type Step struct {
	Next         entity.State
	LikeDelta    int64
	DislikeDelta int64
}

// Transition computes the next state and counter deltas for a reactor in
// state current pressing the kind button. Pressing the same button again
// moves the reaction to the opposite bucket instead of clearing it.
func Transition(current entity.State, kind entity.Kind) (Step, error) {
	switch current {
	case entity.StateNone, "":
		switch kind {
		case entity.KindLike:
			return Step{Next: entity.StateLiked, LikeDelta: 1}, nil
		case entity.KindDislike:
			return Step{Next: entity.StateDisliked, DislikeDelta: 1}, nil
		}
	case entity.StateLiked:
		switch kind {
		case entity.KindLike:
			return Step{Next: entity.StateDisliked, LikeDelta: -1, DislikeDelta: 1}, nil
		case entity.KindDislike:
			return Step{}, fmt.Errorf("%w (current %s, requested %s)", ErrInvalidTransition, current, kind)
		}
	case entity.StateDisliked:
		switch kind {
		case entity.KindDislike:
			return Step{Next: entity.StateLiked, LikeDelta: 1, DislikeDelta: -1}, nil
		case entity.KindLike:
			return Step{}, fmt.Errorf("%w (current %s, requested %s)", ErrInvalidTransition, current, kind)
		}
	default:
		return Step{}, fmt.Errorf("%w: %q", entity.ErrUnknownState, current)
	}
	return Step{}, fmt.Errorf("%w: %q", entity.ErrUnknownKind, kind)
}
