// Package rules contains the pure calculation logic for card play and round outcomes.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import (
	"github.com/overtimegame/server/internal/domain/card"
	"github.com/overtimegame/server/internal/domain/entity"
)

// DefaultMaxTime is the per-round time cap shared by every entity.
const DefaultMaxTime = 12

// RejectReason explains why a play was refused. The empty value means accepted.
type RejectReason string

const (
	RejectNone          RejectReason = ""
	RejectAlreadyPlayed RejectReason = "ALREADY_PLAYED"
	RejectNotInHand     RejectReason = "NOT_IN_HAND"
	RejectOverTime      RejectReason = "OVER_TIME"
	RejectNoEnergy      RejectReason = "NO_ENERGY"
	RejectNotYourTurn   RejectReason = "NOT_YOUR_TURN"
	RejectRoundOver     RejectReason = "ROUND_OVER"
	RejectBadTarget     RejectReason = "BAD_TARGET"
)

// Costs are the effect-adjusted costs of a card for a specific caster.
// Refund is the energy a restorative card gives back.
type Costs struct {
	Energy int `json:"energy"`
	Time   int `json:"time"`
	Refund int `json:"refund,omitempty"`
}

// EnergyDelta is the net amount subtracted from the caster's energy.
func (c Costs) EnergyDelta() int {
	return c.Energy - c.Refund
}

// ActualEnergyCost is max(card.Energy - EnergyBuff, 0).
// Restorative cards therefore cost 0; their refund is reported in Costs.
func ActualEnergyCost(def *card.Definition, fx entity.Effects) int {
	return max(def.Energy-fx.Value(entity.EffectEnergyBuff), 0)
}

// ActualTimeCost is max(card.Time - TimeCostReduction, 0).
func ActualTimeCost(def *card.Definition, fx entity.Effects) int {
	return max(def.Time-fx.Value(entity.EffectTimeCostReduction), 0)
}

// CostsFor computes both adjusted costs.
func CostsFor(def *card.Definition, fx entity.Effects) Costs {
	c := Costs{
		Energy: ActualEnergyCost(def, fx),
		Time:   ActualTimeCost(def, fx),
	}
	if def.Restorative() {
		c.Refund = -def.Energy
	}
	return c
}

// FitsTime reports whether the caster can still afford the card's time cost.
func FitsTime(def *card.Definition, caster *entity.Entity, maxTime int) bool {
	return caster.TimeSpent+ActualTimeCost(def, caster.Effects) <= maxTime
}

// CheckPlay validates a play without mutating anything.
func CheckPlay(c *card.Instance, caster *entity.Entity, maxTime int) (Costs, RejectReason) {
	if c.Played {
		return Costs{}, RejectAlreadyPlayed
	}
	if caster.Pools == nil || !caster.Pools.InHand(c) {
		return Costs{}, RejectNotInHand
	}
	costs := CostsFor(c.Def, caster.Effects)
	if caster.TimeSpent+costs.Time > maxTime {
		return costs, RejectOverTime
	}
	if caster.Energy-costs.Energy < 0 {
		return costs, RejectNoEnergy
	}
	return costs, RejectNone
}

// Outcome is the result of a finished round from the player's point of view.
type Outcome string

const (
	OutcomePlayerWin Outcome = "PLAYER_WIN"
	OutcomeEnemyWin  Outcome = "ENEMY_WIN"
	OutcomeDraw      Outcome = "DRAW"
)

// DecideOutcome compares work totals. Equal totals are a draw.
func DecideOutcome(playerWork, enemyWork int) Outcome {
	switch {
	case playerWork > enemyWork:
		return OutcomePlayerWin
	case playerWork < enemyWork:
		return OutcomeEnemyWin
	default:
		return OutcomeDraw
	}
}

// LunchOption is the perk picked during the lunch break.
type LunchOption string

const (
	LunchSardineSushi   LunchOption = "SardineSushi"   // Player energy back to max
	LunchCatnipSandwich LunchOption = "CatnipSandwich" // One extra player turn
	LunchTunaSalad      LunchOption = "TunaSalad"      // Extra cards at the next turn start
)

// LunchExtraCards is the number of extra cards granted by TunaSalad.
const LunchExtraCards = 2

// Valid reports whether o is a known lunch option.
func (o LunchOption) Valid() bool {
	switch o {
	case LunchSardineSushi, LunchCatnipSandwich, LunchTunaSalad:
		return true
	}
	return false
}
