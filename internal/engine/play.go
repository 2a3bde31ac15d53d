package engine

import (
	"context"

	"github.com/overtimegame/server/internal/domain/card"
	"github.com/overtimegame/server/internal/domain/entity"
	"github.com/overtimegame/server/internal/domain/rules"
	"github.com/overtimegame/server/internal/events"
)

// PlayCard resolves c for caster against target (nil picks the default
// opponent). Only the side whose turn it is may play, and nothing is accepted
// once the round is over. The round-over check runs after every accepted play.
func (e *Engine) PlayCard(ctx context.Context, c *card.Instance, caster, target *entity.Entity) PlayResult {
	if reason := e.gate(caster); reason != rules.RejectNone {
		res := PlayResult{Card: c, CasterID: caster.ID, Reason: reason}
		e.reportRejected(res)
		return res
	}

	res := ResolveCard(c, caster, e.targetsFor(c, caster, target), e.rules.MaxTime)
	if !res.Accepted {
		e.reportRejected(res)
		return res
	}

	e.playsThisCycle++
	e.metrics.RecordPlay(true)
	e.reportPlayed(res)
	e.Tick(ctx)
	return res
}

// PlayerPlay plays a card from the player's hand by instance id. An empty
// targetID picks the first enemy.
func (e *Engine) PlayerPlay(ctx context.Context, instanceID, targetID string) PlayResult {
	c := e.player.Pools.FindInHand(instanceID)
	if c == nil {
		res := PlayResult{CasterID: e.player.ID, Reason: rules.RejectNotInHand}
		e.reportRejected(res)
		return res
	}

	var target *entity.Entity
	if targetID != "" {
		target = e.Entity(targetID)
		if target == nil || target.IsPlayer() {
			res := PlayResult{Card: c, CasterID: e.player.ID, Reason: rules.RejectBadTarget}
			e.reportRejected(res)
			return res
		}
	}
	return e.PlayCard(ctx, c, e.player, target)
}

// gate checks that caster owns the current turn.
func (e *Engine) gate(caster *entity.Entity) rules.RejectReason {
	switch e.State() {
	case StateRoundOver:
		return rules.RejectRoundOver
	case StatePlayerTurn:
		if caster == e.player {
			return rules.RejectNone
		}
	case StateEnemyTurn:
		if caster != nil && caster == e.active {
			return rules.RejectNone
		}
	}
	return rules.RejectNotYourTurn
}

func (e *Engine) reportRejected(res PlayResult) {
	e.metrics.RecordPlay(false)

	payload := events.CardPlayedPayload{
		EnergyCost: res.Costs.Energy,
		TimeCost:   res.Costs.Time,
		Reason:     string(res.Reason),
	}
	if res.Card != nil {
		payload.InstanceID = res.Card.InstanceID
		payload.CardID = res.Card.Def.ID
		payload.CardName = res.Card.Def.Name
		payload.Work = res.Card.Def.Work
	}
	e.emit(events.EventTypeCardRejected, res.CasterID, "", payload)
}

func (e *Engine) reportPlayed(res PlayResult) {
	def := res.Card.Def
	target := ""
	if len(res.TargetIDs) == 1 {
		target = res.TargetIDs[0]
	}

	e.emit(events.EventTypeCardPlayed, res.CasterID, target, events.CardPlayedPayload{
		InstanceID: res.Card.InstanceID,
		CardID:     def.ID,
		CardName:   def.Name,
		EnergyCost: res.Costs.EnergyDelta(),
		TimeCost:   res.Costs.Time,
		Work:       def.Work,
		Debuff:     def.WorkDoneDebuff,
	})
	for _, fx := range res.Effects {
		e.emit(events.EventTypeEffectApplied, res.CasterID, "", events.EffectPayload{
			Effect: string(fx.Kind),
			Delta:  fx.Delta,
			Total:  fx.Total,
		})
	}
	e.emit(events.EventTypeCardDiscarded, res.CasterID, "", events.CardMovePayload{
		InstanceID: res.Card.InstanceID,
		CardID:     def.ID,
		HandIndex:  res.Slot,
	})
	if res.PaperPiles > 0 {
		e.emit(events.EventTypePaperPileSpawn, res.CasterID, "", events.PaperPilePayload{Count: res.PaperPiles})
	}

	e.logger.Info("Card played",
		"caster", res.CasterID,
		"card", def.Name,
		"energy", res.Costs.EnergyDelta(),
		"time", res.Costs.Time,
		"work", def.Work,
	)
}
