package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
)

// TurnState is the state of the turn machine.
type TurnState string

const (
	StateStarting   TurnState = "Starting"
	StatePlayerTurn TurnState = "PlayerTurn"
	StateEnemyTurn  TurnState = "EnemyTurn"
	StateLunchBreak TurnState = "LunchBreak"
	StateRoundOver  TurnState = "RoundOver"
)

// Transition names fired on the machine.
const (
	evDeal        = "deal"
	evEndTurn     = "end_turn"
	evEnemiesDone = "enemies_done"
	evLunch       = "lunch"
	evLunchOver   = "lunch_over"
	evRoundOver   = "round_over"
	evNextRound   = "next_round"
)

func newTurnMachine(onEnter func(ctx context.Context, from, to TurnState)) *fsm.FSM {
	return fsm.NewFSM(
		string(StateStarting),
		fsm.Events{
			{Name: evDeal, Src: []string{string(StateStarting)}, Dst: string(StatePlayerTurn)},
			{Name: evEndTurn, Src: []string{string(StatePlayerTurn)}, Dst: string(StateEnemyTurn)},
			{Name: evEnemiesDone, Src: []string{string(StateEnemyTurn)}, Dst: string(StatePlayerTurn)},
			{Name: evLunch, Src: []string{string(StateEnemyTurn)}, Dst: string(StateLunchBreak)},
			{Name: evLunchOver, Src: []string{string(StateLunchBreak)}, Dst: string(StatePlayerTurn)},
			{
				Name: evRoundOver,
				Src: []string{
					string(StateStarting), string(StatePlayerTurn),
					string(StateEnemyTurn), string(StateLunchBreak),
				},
				Dst: string(StateRoundOver),
			},
			{Name: evNextRound, Src: []string{string(StateRoundOver)}, Dst: string(StateStarting)},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				onEnter(ctx, TurnState(e.Src), TurnState(e.Dst))
			},
		},
	)
}

// fire runs a transition. Self-transitions are not used, so NoTransitionError
// would indicate a programming error and is reported like any other.
func (e *Engine) fire(ctx context.Context, event string) error {
	if err := e.machine.Event(ctx, event); err != nil {
		var invalid fsm.InvalidEventError
		if errors.As(err, &invalid) {
			return fmt.Errorf("transition %q not allowed from %s: %w", event, e.machine.Current(), ErrWrongState)
		}
		return fmt.Errorf("failed to fire %q: %w", event, err)
	}
	return nil
}

// State returns the current turn state.
func (e *Engine) State() TurnState {
	return TurnState(e.machine.Current())
}
