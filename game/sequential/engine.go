// Package sequential runs turn-based games between actors.
// Policy consistency validation is centralized in Engine.Play and Engine.Playouts.
//
// Package sequential は逐次（ターン制）ゲームのプレイアウト実行ユーティリティを提供します。
// Policy の整合性チェックは Engine.Play と Engine.Playouts に集約されています。
package sequential

import (
	"errors"
	"fmt"
)

var (
	ErrNilLogicFunc   = errors.New("logic function must not be nil")
	ErrNilEngineFunc  = errors.New("engine function must not be nil")
	ErrNoAgents       = errors.New("agents list must not be empty")
	ErrDuplicateAgent = errors.New("duplicate agent")
	ErrAgentNotFound  = errors.New("agent not found in Agents")
	ErrNoLegalMoves   = errors.New("game is not ended but no legal moves are available")
)

type LegalMovesFunc[S any, M comparable] func(S) []M
type MoveFunc[S any, M comparable] func(S, M) (S, error)
type EqualFunc[S any] func(S, S) bool
type CurrentAgentFunc[S any, A comparable] func(S) A

type Logic[S any, M, A comparable] struct {
	LegalMovesFunc   LegalMovesFunc[S, M]
	MoveFunc         MoveFunc[S, M]
	EqualFunc        EqualFunc[S]
	CurrentAgentFunc CurrentAgentFunc[S, A]
}

func (l Logic[S, M, A]) Validate() error {
	if l.LegalMovesFunc == nil {
		return fmt.Errorf("%w: LegalMovesFunc", ErrNilLogicFunc)
	}
	if l.MoveFunc == nil {
		return fmt.Errorf("%w: MoveFunc", ErrNilLogicFunc)
	}
	if l.EqualFunc == nil {
		return fmt.Errorf("%w: EqualFunc", ErrNilLogicFunc)
	}
	if l.CurrentAgentFunc == nil {
		return fmt.Errorf("%w: CurrentAgentFunc", ErrNilLogicFunc)
	}
	return nil
}

type Engine[S any, M, A comparable] struct {
	Logic                  Logic[S, M, A]
	RankByAgentFunc        RankByAgentFunc[S, A]
	ResultScoreByAgentFunc ResultScoreByAgentFunc[A]
	Agents                 []A
}

func (e Engine[S, M, A]) Validate() error {
	if err := e.Logic.Validate(); err != nil {
		return err
	}

	if e.RankByAgentFunc == nil {
		return fmt.Errorf("%w: RankByAgentFunc", ErrNilEngineFunc)
	}

	if e.ResultScoreByAgentFunc == nil {
		return fmt.Errorf("%w: ResultScoreByAgentFunc", ErrNilEngineFunc)
	}

	if len(e.Agents) == 0 {
		return ErrNoAgents
	}

	seen := make(map[A]struct{}, len(e.Agents))
	for _, a := range e.Agents {
		if _, ok := seen[a]; ok {
			return fmt.Errorf("%w: %v", ErrDuplicateAgent, a)
		}
		seen[a] = struct{}{}
	}
	return nil
}

func (e Engine[S, M, A]) IsEnd(state S) (bool, error) {
	rankByAgent, err := e.RankByAgentFunc(state)
	return len(rankByAgent) != 0, err
}
