// Package uct is an open-loop UCT player for sequential games with chance.
//
// Nodes are keyed by the sequence of moves from the root rather than by state, and the root
// state is re-determinised before every simulation, so stochastic transitions share statistics.
//
// Package uct は確率要素を含む逐次ゲームの為のオープンループUCTです。
package uct

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/sw965/progsynth/game"
	"github.com/sw965/progsynth/game/sequential"
	"github.com/sw965/progsynth/ucb"
)

var ErrNonPositiveSimulations = errors.New("simulations must be > 0")

// DeterminizeFunc resamples the hidden chance of a state.
type DeterminizeFunc[S any] func(S, *rand.Rand) S

type Node[M, A comparable] struct {
	Agent     A
	Manager   ucb.Manager[M]
	NextNodes map[M]*Node[M, A]
}

func newNode[M, A comparable](agent A) *Node[M, A] {
	return &Node[M, A]{Agent: agent, Manager: ucb.Manager[M]{}, NextNodes: map[M]*Node[M, A]{}}
}

func (n *Node[M, A]) Trial() int {
	return n.Manager.TotalTrial()
}

type selection[M, A comparable] struct {
	node *Node[M, A]
	move M
}

type MCTS[S any, M, A comparable] struct {
	Engine      sequential.Engine[S, M, A]
	UCBFunc     ucb.Func
	Simulations int
	// Rollout plays every agent from a new leaf. The zero value uses random moves.
	Rollout         sequential.Actor[S, M, A]
	MaxRolloutPlies int
	Determinize     DeterminizeFunc[S]
}

func (mcts *MCTS[S, M, A]) Validate() error {
	if err := mcts.Engine.Validate(); err != nil {
		return err
	}
	if mcts.UCBFunc == nil {
		return fmt.Errorf("UCBFunc must not be nil")
	}
	if mcts.Simulations <= 0 {
		return fmt.Errorf("%w: got %d", ErrNonPositiveSimulations, mcts.Simulations)
	}
	return nil
}

func (mcts *MCTS[S, M, A]) rolloutActors() map[A]sequential.Actor[S, M, A] {
	actor := mcts.Rollout
	if actor.PolicyFunc == nil || actor.SelectFunc == nil {
		actor = sequential.NewRandomActor[S, M, A]()
	}
	actors := make(map[A]sequential.Actor[S, M, A], len(mcts.Engine.Agents))
	for _, agent := range mcts.Engine.Agents {
		actors[agent] = actor
	}
	return actors
}

// evaluate scores a leaf by a rollout. A truncated rollout is a draw.
func (mcts *MCTS[S, M, A]) evaluate(state S, actors map[A]sequential.Actor[S, M, A], rng *rand.Rand) (sequential.ResultScoreByAgent[A], error) {
	result, err := mcts.Engine.Play(state, actors, mcts.MaxRolloutPlies, rng)
	if err != nil {
		return nil, err
	}
	if result.Truncated {
		draw := sequential.ResultScoreByAgent[A]{}
		for _, agent := range mcts.Engine.Agents {
			draw[agent] = 0.5
		}
		return draw, nil
	}
	return mcts.Engine.EvaluateResultScoreByAgent(result.Final)
}

func (mcts *MCTS[S, M, A]) simulate(root *Node[M, A], state S, actors map[A]sequential.Actor[S, M, A], rng *rand.Rand) error {
	if mcts.Determinize != nil {
		state = mcts.Determinize(state, rng)
	}

	logic := mcts.Engine.Logic
	node := root
	path := make([]selection[M, A], 0, 16)
	for {
		isEnd, err := mcts.Engine.IsEnd(state)
		if err != nil {
			return err
		}
		if isEnd {
			break
		}

		moves := logic.LegalMovesFunc(state)
		if len(moves) == 0 {
			return sequential.ErrNoLegalMoves
		}
		node.Manager.Ensure(moves, mcts.UCBFunc)
		move, err := node.Manager.Select(moves, rng)
		if err != nil {
			return err
		}
		path = append(path, selection[M, A]{node: node, move: move})

		state, err = logic.MoveFunc(state, move)
		if err != nil {
			return err
		}

		next, ok := node.NextNodes[move]
		if !ok {
			// 新しくノードを作成したら、選択を終了する
			node.NextNodes[move] = newNode[M, A](logic.CurrentAgentFunc(state))
			break
		}
		node = next
	}

	scores, err := mcts.evaluate(state, actors, rng)
	if err != nil {
		return err
	}
	for _, s := range path {
		s.node.Manager[s.move].Update(scores[s.node.Agent])
	}
	return nil
}

// Run performs Simulations simulations from state and returns the root.
func (mcts *MCTS[S, M, A]) Run(state S, rng *rand.Rand) (*Node[M, A], error) {
	if err := mcts.Validate(); err != nil {
		return nil, err
	}
	root := newNode[M, A](mcts.Engine.Logic.CurrentAgentFunc(state))
	actors := mcts.rolloutActors()
	for range mcts.Simulations {
		if err := mcts.simulate(root, state, actors, rng); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// NewPolicyFunc returns visit counts at the root as the policy. Each call seeds its own
// generator from seed and a hash of the exported fields of state, so the search at a given
// state is the same however many games share the policy.
func (mcts *MCTS[S, M, A]) NewPolicyFunc(seed uint64) sequential.PolicyFunc[S, M] {
	return func(state S, legalMoves []M) (game.Policy[M], error) {
		h, err := hashstructure.Hash(state, hashstructure.FormatV2, nil)
		if err != nil {
			return nil, fmt.Errorf("hash state: %w", err)
		}
		root, err := mcts.Run(state, rand.New(rand.NewPCG(seed, h)))
		if err != nil {
			return nil, err
		}

		policy := make(game.Policy[M], len(legalMoves))
		for _, m := range legalMoves {
			if c, ok := root.Manager[m]; ok {
				policy[m] = float32(c.Trial)
			} else {
				policy[m] = 0
			}
		}
		return policy, nil
	}
}

func (mcts *MCTS[S, M, A]) NewActor(name game.ActorName, seed uint64) sequential.Actor[S, M, A] {
	return sequential.Actor[S, M, A]{
		Name:       name,
		PolicyFunc: mcts.NewPolicyFunc(seed),
		SelectFunc: game.MaxSelectFunc[M, A],
	}
}
