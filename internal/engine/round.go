package engine

import (
	"context"

	"github.com/overtimegame/server/internal/domain/rules"
	"github.com/overtimegame/server/internal/events"
)

// RoundEndReason records what closed a round.
type RoundEndReason string

const (
	ReasonTimeUp    RoundEndReason = "TIME_UP"
	ReasonEndOfDay  RoundEndReason = "END_OF_DAY"
	ReasonStalemate RoundEndReason = "STALEMATE"
	ReasonForced    RoundEndReason = "FORCED"
)

// RoundResult is the frozen outcome of a round.
type RoundResult struct {
	Round      int            `json:"round"`
	Outcome    rules.Outcome  `json:"outcome"`
	Reason     RoundEndReason `json:"reason"`
	PlayerWork int            `json:"player_work"`
	EnemyWork  int            `json:"enemy_work"` // best enemy
	WinnerID   string         `json:"winner_id,omitempty"`
	WorkByID   map[string]int `json:"work_by_id"`
	Turns      int            `json:"turns"`
}

// Tick closes the round once every entity has used its whole time budget.
// Returns true when the match is in RoundOver.
func (e *Engine) Tick(ctx context.Context) bool {
	if e.State() == StateRoundOver {
		return true
	}
	for _, ent := range e.entities() {
		if !ent.OutOfTime(e.rules.MaxTime) {
			return false
		}
	}
	e.enterRoundOver(ctx, ReasonTimeUp)
	return e.State() == StateRoundOver
}

// EndRound forces the round closed. Calling it again is a no-op.
func (e *Engine) EndRound(ctx context.Context) {
	e.enterRoundOver(ctx, ReasonForced)
}

// enterRoundOver freezes plays, compares work and resets the clocks. It runs
// its effects at most once per round.
func (e *Engine) enterRoundOver(ctx context.Context, reason RoundEndReason) {
	if e.State() == StateRoundOver {
		return
	}

	best := e.enemies[0]
	for _, en := range e.enemies[1:] {
		if en.WorkDone > best.WorkDone {
			best = en
		}
	}

	res := RoundResult{
		Round:      e.round,
		Outcome:    rules.DecideOutcome(e.player.WorkDone, best.WorkDone),
		Reason:     reason,
		PlayerWork: e.player.WorkDone,
		EnemyWork:  best.WorkDone,
		WorkByID:   make(map[string]int, len(e.enemies)+1),
		Turns:      e.turn,
	}
	switch res.Outcome {
	case rules.OutcomePlayerWin:
		res.WinnerID = e.player.ID
	case rules.OutcomeEnemyWin:
		res.WinnerID = best.ID
	}
	for _, ent := range e.entities() {
		res.WorkByID[ent.ID] = ent.WorkDone
	}

	if err := e.fire(ctx, evRoundOver); err != nil {
		e.logger.Error("Failed to enter round over", "error", err)
		return
	}

	for _, ent := range e.entities() {
		ent.ResetRound()
	}
	e.queue = e.queue[:0]
	e.active = nil
	e.extraTurn = false
	e.extraCards = 0
	e.result = &res
	e.history = append(e.history, res)

	e.metrics.RecordRound(string(res.Outcome))
	e.emit(events.EventTypeRoundOver, events.ActorSystem, res.WinnerID, events.RoundOverPayload{
		Outcome:    string(res.Outcome),
		PlayerWork: res.PlayerWork,
		EnemyWork:  res.EnemyWork,
		WorkByID:   res.WorkByID,
		Turns:      res.Turns,
	})
	e.logger.Info("Round over",
		"outcome", res.Outcome,
		"reason", reason,
		"player_work", res.PlayerWork,
		"enemy_work", res.EnemyWork,
	)
}

// Result returns the outcome of the last finished round, or nil.
func (e *Engine) Result() *RoundResult {
	if e.result == nil {
		return nil
	}
	r := *e.result
	return &r
}

// History returns every finished round in order.
func (e *Engine) History() []RoundResult {
	out := make([]RoundResult, len(e.history))
	copy(out, e.history)
	return out
}

// NextRound starts another round after RoundOver: energy is refilled, work
// carries over, hands are topped up and the player moves first.
func (e *Engine) NextRound(ctx context.Context) bool {
	if e.State() != StateRoundOver {
		return false
	}
	if err := e.fire(ctx, evNextRound); err != nil {
		e.logger.Error("Failed to open next round", "error", err)
		return false
	}

	e.round++
	e.turn = 0
	for _, ent := range e.entities() {
		ent.ResetEnergyToMax()
	}
	e.deal()

	if err := e.fire(ctx, evDeal); err != nil {
		e.logger.Error("Failed to deal next round", "error", err)
		return false
	}
	e.beginCycle()
	e.Tick(ctx)
	return true
}
