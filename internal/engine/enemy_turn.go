package engine

import (
	"context"

	"github.com/overtimegame/server/internal/domain/rules"
	"github.com/overtimegame/server/internal/events"
)

// beginCycle opens a player turn: the per-turn draw (skipped on the opening
// turn of a round) plus any cards granted by lunch.
func (e *Engine) beginCycle() {
	e.playsThisCycle = 0
	n := e.extraCards
	if e.turn > 0 {
		n += e.rules.DrawPerTurn
	}
	e.extraCards = 0
	if n > 0 {
		e.draw(e.player, n)
	}
}

// EndPlayerTurn hands the turn to the enemies. With an extra turn pending the
// player keeps the turn once instead. Returns false outside the player turn.
func (e *Engine) EndPlayerTurn(ctx context.Context) bool {
	if e.State() != StatePlayerTurn {
		return false
	}

	if e.extraTurn {
		e.extraTurn = false
		e.emit(events.EventTypeTurnChanged, events.ActorSystem, "", events.TurnChangedPayload{
			From: string(StatePlayerTurn),
			To:   string(StatePlayerTurn),
			Turn: e.turn,
		})
		e.logger.Info("Player keeps the turn", "turn", e.turn)
		if e.rules.DrawPerTurn > 0 {
			e.draw(e.player, e.rules.DrawPerTurn)
		}
		return true
	}

	if err := e.fire(ctx, evEndTurn); err != nil {
		e.logger.Error("Failed to end player turn", "error", err)
		return false
	}
	e.queue = append(e.queue[:0], e.enemies...)
	e.active = nil
	e.Tick(ctx)
	return true
}

// AdvanceEnemy runs one step of the enemy turn: the next enemy in the queue
// draws and becomes active, then the active enemy selects and plays one card.
// An enemy's loop ends when its policy has no selection, when a play is
// rejected, or once its time spent has caught up with the player's. Returns
// whether more steps remain in this enemy turn.
func (e *Engine) AdvanceEnemy(ctx context.Context) bool {
	if e.State() != StateEnemyTurn {
		return false
	}

	if e.active == nil {
		if len(e.queue) == 0 {
			e.finishEnemyTurn(ctx)
			return false
		}
		e.active, e.queue = e.queue[0], e.queue[1:]
		e.enemyPlays = 0
		e.draw(e.active, 1)
	}

	en := e.active
	done := true
	if en.Strategy != nil {
		c := en.Strategy.Choose(en, e.player)
		e.metrics.RecordEnemyDecision(c != nil)
		if c != nil {
			res := e.PlayCard(ctx, c, en, nil)
			if e.State() != StateEnemyTurn {
				e.active = nil
				return false
			}
			e.enemyPlays++
			done = !res.Accepted || en.TimeSpent >= e.player.TimeSpent || e.enemyPlays >= maxEnemyPlays
		} else {
			e.logger.Info("Enemy forfeits", "enemy", en.ID, "energy", en.Energy, "time", en.TimeSpent)
		}
	}

	if done {
		e.active = nil
		if len(e.queue) == 0 {
			e.finishEnemyTurn(ctx)
			return false
		}
	}
	return true
}

// RunEnemyTurn drives AdvanceEnemy until the enemy turn ends or ctx is cancelled.
func (e *Engine) RunEnemyTurn(ctx context.Context) {
	for ctx.Err() == nil && e.AdvanceEnemy(ctx) {
	}
}

// finishEnemyTurn closes a player/enemy cycle and asks the hook what comes next.
func (e *Engine) finishEnemyTurn(ctx context.Context) {
	e.turn++

	if e.Tick(ctx) {
		return
	}
	if e.playsThisCycle == 0 && !e.anyPlayable() {
		e.logger.Warn("Nobody can play, closing the round", "turn", e.turn)
		e.enterRoundOver(ctx, ReasonStalemate)
		return
	}

	directive := e.hook.OnTurnCompleted(e.turn)
	switch directive {
	case EndDay:
		e.logger.Info("End of day reached", "turn", e.turn)
		e.enterRoundOver(ctx, ReasonEndOfDay)
	case LunchBreak:
		if err := e.fire(ctx, evLunch); err != nil {
			e.logger.Error("Failed to start lunch break", "error", err)
			return
		}
		e.metrics.RecordLunchBreak()
		e.emit(events.EventTypeLunchBreak, events.ActorSystem, "", nil)
	default:
		if err := e.fire(ctx, evEnemiesDone); err != nil {
			e.logger.Error("Failed to return turn to player", "error", err)
			return
		}
		e.beginCycle()
		e.Tick(ctx)
	}
}

// anyPlayable reports whether any entity holds a card it could legally play.
func (e *Engine) anyPlayable() bool {
	for _, ent := range e.entities() {
		for _, c := range ent.Pools.Hand() {
			if _, reason := rules.CheckPlay(c, ent, e.rules.MaxTime); reason == rules.RejectNone {
				return true
			}
		}
	}
	return false
}
