package engine

import (
	"github.com/overtimegame/server/internal/domain/card"
	"github.com/overtimegame/server/internal/domain/entity"
	"github.com/overtimegame/server/internal/domain/rules"
)

// AppliedEffect is one registry change made by a resolved card.
type AppliedEffect struct {
	Kind  entity.EffectKind `json:"kind"`
	Delta int               `json:"delta"`
	Total int               `json:"total"`
}

// PlayResult is the outcome of a play attempt. Rejections are values, not errors.
type PlayResult struct {
	Accepted   bool               `json:"accepted"`
	Reason     rules.RejectReason `json:"reason,omitempty"`
	Card       *card.Instance     `json:"card,omitempty"`
	CasterID   string             `json:"caster_id"`
	TargetIDs  []string           `json:"target_ids,omitempty"`
	Costs      rules.Costs        `json:"costs"`
	Effects    []AppliedEffect    `json:"effects,omitempty"`
	PaperPiles int                `json:"paper_piles"`
	Slot       int                `json:"slot"` // hand slot the card left
}

func rejected(c *card.Instance, caster *entity.Entity, costs rules.Costs, reason rules.RejectReason) PlayResult {
	return PlayResult{Card: c, CasterID: caster.ID, Costs: costs, Reason: reason, Slot: card.NoSlot}
}

// ResolveCard validates and applies one card. On rejection nothing is mutated.
// The work debuff lands on every target; the caster receives cost, work and
// buffs. The card ends in the caster's discard pile.
func ResolveCard(c *card.Instance, caster *entity.Entity, targets []*entity.Entity, maxTime int) PlayResult {
	costs, reason := rules.CheckPlay(c, caster, maxTime)
	if reason != rules.RejectNone {
		return rejected(c, caster, costs, reason)
	}

	def := c.Def
	res := PlayResult{
		Accepted: true,
		Card:     c,
		CasterID: caster.ID,
		Costs:    costs,
	}

	for _, t := range targets {
		t.AddWorkDone(def.WorkDoneDebuff)
		res.TargetIDs = append(res.TargetIDs, t.ID)
	}

	caster.SpendEnergy(costs.EnergyDelta())
	caster.AddTimeSpent(costs.Time)
	caster.AddWorkDone(def.Work)

	for _, fx := range []struct {
		kind  entity.EffectKind
		delta int
	}{
		{entity.EffectWorkDoneBuff, def.WorkDoneBuff},
		{entity.EffectEnergyBuff, def.EnergyGainBuff},
		{entity.EffectTimeCostReduction, def.TimeCostReduction},
	} {
		if fx.delta == 0 {
			continue
		}
		caster.Effects.Apply(fx.kind, fx.delta)
		res.Effects = append(res.Effects, AppliedEffect{
			Kind:  fx.kind,
			Delta: fx.delta,
			Total: caster.Effects.Value(fx.kind),
		})
	}

	res.Slot = c.HandIndex
	c.Played = true
	caster.Pools.Discard(c)

	if def.Work > 0 {
		res.PaperPiles = def.Work
	}
	return res
}

// targetsFor resolves who receives the work debuff of c.
func (e *Engine) targetsFor(c *card.Instance, caster, chosen *entity.Entity) []*entity.Entity {
	if c.Def.PlayOnSelf {
		return []*entity.Entity{caster}
	}
	if c.Def.AffectAll {
		return e.opponentsOf(caster)
	}
	if chosen != nil {
		return []*entity.Entity{chosen}
	}
	opponents := e.opponentsOf(caster)
	if len(opponents) == 0 {
		return nil
	}
	return opponents[:1]
}

func (e *Engine) opponentsOf(caster *entity.Entity) []*entity.Entity {
	if caster.IsPlayer() {
		out := make([]*entity.Entity, len(e.enemies))
		copy(out, e.enemies)
		return out
	}
	return []*entity.Entity{e.player}
}
