package engine

import (
	"context"

	"github.com/overtimegame/server/internal/domain/rules"
	"github.com/overtimegame/server/internal/events"
)

// ChooseLunch applies the perk picked during the lunch break, refills every
// entity's energy and returns the turn to the player. Returns false outside
// the lunch break or for an unknown option.
func (e *Engine) ChooseLunch(ctx context.Context, opt rules.LunchOption) bool {
	if e.State() != StateLunchBreak || !opt.Valid() {
		return false
	}

	switch opt {
	case rules.LunchSardineSushi:
		e.player.ResetEnergyToMax()
	case rules.LunchCatnipSandwich:
		e.extraTurn = true
	case rules.LunchTunaSalad:
		e.extraCards += rules.LunchExtraCards
	}
	e.emit(events.EventTypeLunchChosen, e.player.ID, "", events.LunchPayload{Option: string(opt)})
	e.logger.Info("Lunch chosen", "option", opt)

	for _, ent := range e.entities() {
		ent.ResetEnergyToMax()
	}

	if err := e.fire(ctx, evLunchOver); err != nil {
		e.logger.Error("Failed to end lunch break", "error", err)
		return false
	}
	e.beginCycle()
	e.Tick(ctx)
	return true
}
