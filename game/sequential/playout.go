package sequential

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/sw965/omw/parallel"
	"github.com/sw965/omw/slicesx"
	"github.com/sw965/progsynth/game"
)

type Step[S any, M, A comparable] struct {
	State  S
	Agent  A
	Move   M
	Policy game.Policy[M]
}

type Record[S any, M, A comparable] struct {
	Steps              []Step[S, M, A]
	FinalState         S
	Truncated          bool
	ResultScoreByAgent ResultScoreByAgent[A]
}

// PlayResult is the end of one game. Truncated is set when maxPlies was reached before a result.
type PlayResult[S any] struct {
	Final     S
	Plies     int
	Truncated bool
}

// decide asks actor for a move. Every failure inside the actor, including a panic, is
// returned as an *ActorError so callers can tell it apart from a broken engine.
func decide[S any, M, A comparable](actor Actor[S, M, A], state S, legalMoves []M, agent A, rng *rand.Rand) (move M, err error) {
	wrap := func(e error, panicked bool) error {
		return &ActorError[A]{Agent: agent, Name: actor.Name, Err: e, Panicked: panicked}
	}

	defer func() {
		if r := recover(); r != nil {
			var zero M
			move = zero
			if e, ok := r.(error); ok {
				err = wrap(e, true)
			} else {
				err = wrap(fmt.Errorf("%v", r), true)
			}
		}
	}()

	policy, err := actor.PolicyFunc(state, legalMoves)
	if err != nil {
		return move, wrap(err, false)
	}

	// legalMovesがユニークならば、policyは合法手のみを持つ事が保障される
	// 一手毎にユニーク性をチェックするのは、計算コストの観点から見送る
	if err := policy.ValidateForLegalMoves(legalMoves, false); err != nil {
		return move, wrap(err, false)
	}

	move, err = actor.SelectFunc(policy, legalMoves, agent, rng)
	if err != nil {
		return move, wrap(err, false)
	}
	return move, nil
}

func (e Engine[S, M, A]) run(init S, actorOf func(A) (Actor[S, M, A], error), maxPlies int, rng *rand.Rand, onStep func(Step[S, M, A])) (PlayResult[S], error) {
	state := init
	plies := 0
	for {
		isEnd, err := e.IsEnd(state)
		if err != nil {
			return PlayResult[S]{}, err
		}
		if isEnd {
			return PlayResult[S]{Final: state, Plies: plies}, nil
		}

		if maxPlies > 0 && plies >= maxPlies {
			return PlayResult[S]{Final: state, Plies: plies, Truncated: true}, nil
		}

		legalMoves := e.Logic.LegalMovesFunc(state)
		// policy.ValidateForLegalMovesでもlegalMovesの空チェックをするが、PolicyFuncを安全に呼ぶ為に、ここでもチェックする
		if len(legalMoves) == 0 {
			return PlayResult[S]{}, ErrNoLegalMoves
		}

		agent := e.Logic.CurrentAgentFunc(state)
		actor, err := actorOf(agent)
		if err != nil {
			return PlayResult[S]{}, err
		}

		var policy game.Policy[M]
		if onStep != nil {
			recording := actor
			recording.PolicyFunc = func(s S, ms []M) (game.Policy[M], error) {
				p, err := actor.PolicyFunc(s, ms)
				policy = p
				return p, err
			}
			actor = recording
		}

		move, err := decide(actor, state, legalMoves, agent, rng)
		if err != nil {
			return PlayResult[S]{Final: state, Plies: plies}, err
		}

		if onStep != nil {
			onStep(Step[S, M, A]{State: state, Agent: agent, Move: move, Policy: policy})
		}

		state, err = e.Logic.MoveFunc(state, move)
		if err != nil {
			return PlayResult[S]{}, err
		}
		plies++
	}
}

// Play runs one game from init with a dedicated actor per agent. maxPlies <= 0 disables the cap.
// A failing actor is reported as *ActorError, anything else comes from the engine.
func (e Engine[S, M, A]) Play(init S, actorByAgent map[A]Actor[S, M, A], maxPlies int, rng *rand.Rand) (PlayResult[S], error) {
	if err := e.Validate(); err != nil {
		return PlayResult[S]{}, err
	}

	for _, agent := range e.Agents {
		actor, ok := actorByAgent[agent]
		if !ok {
			return PlayResult[S]{}, fmt.Errorf("%w: no actor for %v", ErrAgentNotFound, agent)
		}
		if err := actor.Validate(); err != nil {
			return PlayResult[S]{}, err
		}
	}

	actorOf := func(agent A) (Actor[S, M, A], error) {
		actor, ok := actorByAgent[agent]
		if !ok {
			return Actor[S, M, A]{}, fmt.Errorf("%w: %v", ErrAgentNotFound, agent)
		}
		return actor, nil
	}
	return e.run(init, actorOf, maxPlies, rng, nil)
}

func (e Engine[S, M, A]) Playouts(inits []S, actor Actor[S, M, A], maxPlies int, rngs []*rand.Rand) ([]S, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	if err := actor.Validate(); err != nil {
		return nil, err
	}

	n := len(inits)
	p := len(rngs)
	finals := make([]S, n)
	actorOf := func(A) (Actor[S, M, A], error) { return actor, nil }

	err := parallel.For(n, p, func(workerId, idx int) error {
		result, err := e.run(inits[idx], actorOf, maxPlies, rngs[workerId], nil)
		if err != nil {
			return err
		}
		finals[idx] = result.Final
		return nil
	})
	return finals, err
}

func (e Engine[S, M, A]) RecordPlayouts(inits []S, actor Actor[S, M, A], maxPlies int, rngs []*rand.Rand) ([]Record[S, M, A], error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	if err := actor.Validate(); err != nil {
		return nil, err
	}

	n := len(inits)
	p := len(rngs)
	records := make([]Record[S, M, A], n)
	actorOf := func(A) (Actor[S, M, A], error) { return actor, nil }

	err := parallel.For(n, p, func(workerId, idx int) error {
		steps := make([]Step[S, M, A], 0, 64)
		result, err := e.run(inits[idx], actorOf, maxPlies, rngs[workerId], func(s Step[S, M, A]) {
			steps = append(steps, s)
		})
		if err != nil {
			return err
		}

		record := Record[S, M, A]{
			Steps:      steps,
			FinalState: result.Final,
			Truncated:  result.Truncated,
		}

		if !result.Truncated {
			scores, err := e.EvaluateResultScoreByAgent(result.Final)
			if err != nil {
				return err
			}
			record.ResultScoreByAgent = scores
		}
		records[idx] = record
		return nil
	})
	return records, err
}

// CrossPlayouter plays every ordered seating of actors over the same initial states and
// accumulates the result score of each actor by name.
type CrossPlayouter[S any, M, A comparable] struct {
	engine     Engine[S, M, A]
	inits      []S
	actorPerms [][]Actor[S, M, A]
	maxPlies   int
	rngs       []*rand.Rand

	currentIdx       int
	ScoreByActorName map[game.ActorName]float32
	GamesByActorName map[game.ActorName]int
}

func (e Engine[S, M, A]) NewCrossPlayouter(inits []S, actors []Actor[S, M, A], maxPlies int, rngs []*rand.Rand) (*CrossPlayouter[S, M, A], error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	agentsN := len(e.Agents)
	if len(actors) < agentsN {
		return nil, fmt.Errorf("insufficient actors: expected at least %d, got %d", agentsN, len(actors))
	}

	for _, actor := range actors {
		if err := actor.Validate(); err != nil {
			return nil, err
		}
	}

	perms := slices.Collect(slicesx.Permutations(actors, agentsN))
	return &CrossPlayouter[S, M, A]{
		engine:           e,
		inits:            inits,
		actorPerms:       perms,
		maxPlies:         maxPlies,
		rngs:             rngs,
		ScoreByActorName: make(map[game.ActorName]float32),
		GamesByActorName: make(map[game.ActorName]int),
	}, nil
}

func (cp *CrossPlayouter[S, M, A]) Len() int {
	return len(cp.actorPerms)
}

// Next plays the next seating. ok is false once every seating has been played.
// Truncated games count as draws for every seat.
func (cp *CrossPlayouter[S, M, A]) Next() ([]S, map[A]game.ActorName, bool, error) {
	if cp.currentIdx >= len(cp.actorPerms) {
		return nil, nil, false, nil
	}

	actorPerm := cp.actorPerms[cp.currentIdx]
	cp.currentIdx++

	actorByAgent := map[A]Actor[S, M, A]{}
	actorNameByAgent := map[A]game.ActorName{}
	for i, agent := range cp.engine.Agents {
		actorByAgent[agent] = actorPerm[i]
		actorNameByAgent[agent] = actorPerm[i].Name
	}

	n := len(cp.inits)
	results := make([]PlayResult[S], n)
	err := parallel.For(n, len(cp.rngs), func(workerId, idx int) error {
		result, err := cp.engine.Play(cp.inits[idx], actorByAgent, cp.maxPlies, cp.rngs[workerId])
		if err != nil {
			return err
		}
		results[idx] = result
		return nil
	})
	if err != nil {
		return nil, nil, false, err
	}

	finals := make([]S, n)
	for i, result := range results {
		finals[i] = result.Final
		if result.Truncated {
			for _, name := range actorNameByAgent {
				cp.ScoreByActorName[name] += 0.5
				cp.GamesByActorName[name]++
			}
			continue
		}

		scores, err := cp.engine.EvaluateResultScoreByAgent(result.Final)
		if err != nil {
			return nil, nil, false, err
		}
		for agent, score := range scores {
			name := actorNameByAgent[agent]
			cp.ScoreByActorName[name] += score
			cp.GamesByActorName[name]++
		}
	}
	return finals, actorNameByAgent, true, nil
}
