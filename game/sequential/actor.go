package sequential

import (
	"errors"
	"fmt"

	"github.com/sw965/progsynth/game"
)

var ErrNilActorFunc = errors.New("actor function must not be nil")

type PolicyFunc[S any, M comparable] func(S, []M) (game.Policy[M], error)

func UniformPolicyFunc[S any, M comparable](state S, legalMoves []M) (game.Policy[M], error) {
	n := len(legalMoves)
	if n == 0 {
		return nil, game.ErrEmptyLegalMoves
	}

	p := 1.0 / float32(n)
	policy := game.Policy[M]{}
	for _, a := range legalMoves {
		policy[a] = p
	}
	return policy, nil
}

type Actor[S any, M, A comparable] struct {
	Name       game.ActorName
	PolicyFunc PolicyFunc[S, M]
	SelectFunc game.SelectFunc[M, A]
}

func NewRandomActor[S any, M, A comparable]() Actor[S, M, A] {
	return Actor[S, M, A]{
		Name:       "random",
		PolicyFunc: UniformPolicyFunc[S, M],
		SelectFunc: game.WeightedRandomSelectFunc[M, A],
	}
}

func (a Actor[S, M, A]) Validate() error {
	if a.PolicyFunc == nil {
		return fmt.Errorf("%w: PolicyFunc", ErrNilActorFunc)
	}
	if a.SelectFunc == nil {
		return fmt.Errorf("%w: SelectFunc", ErrNilActorFunc)
	}
	return nil
}

// ActorError attributes a failure (returned or panicked) to the agent whose actor raised it.
type ActorError[A comparable] struct {
	Agent A
	Name  game.ActorName
	Err   error
	// Panicked is set when the actor panicked instead of returning an error.
	Panicked bool
}

func (e *ActorError[A]) Error() string {
	if e.Panicked {
		return fmt.Sprintf("actor %q (agent %v) panicked: %v", e.Name, e.Agent, e.Err)
	}
	return fmt.Sprintf("actor %q (agent %v): %v", e.Name, e.Agent, e.Err)
}

func (e *ActorError[A]) Unwrap() error {
	return e.Err
}
