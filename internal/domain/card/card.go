// Package card defines card definitions and the instances that move between pools.
// This package is PURE and must NOT import any infrastructure packages.
package card

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NoSlot marks an instance that is not sitting in a hand slot.
const NoSlot = -1

// Definition is the immutable catalog entry for a card.
// Energy is positive when the card consumes energy and negative when it restores it.
type Definition struct {
	ID                int    `json:"id" yaml:"id"`
	Name              string `json:"name" yaml:"name"`
	Description       string `json:"description" yaml:"description"`
	Time              int    `json:"time" yaml:"time"`
	Energy            int    `json:"energy" yaml:"energy"`
	Work              int    `json:"work" yaml:"work"`
	WorkDoneBuff      int    `json:"work_done_buff,omitempty" yaml:"work_done_buff"`
	WorkDoneDebuff    int    `json:"work_done_debuff,omitempty" yaml:"work_done_debuff"`
	EnergyGainBuff    int    `json:"energy_gain_buff,omitempty" yaml:"energy_gain_buff"`
	TimeCostReduction int    `json:"time_cost_reduction,omitempty" yaml:"time_cost_reduction"`
	AffectAll         bool   `json:"affect_all,omitempty" yaml:"affect_all"`
	PlayOnSelf        bool   `json:"play_on_self,omitempty" yaml:"play_on_self"`
}

// Restorative reports whether playing the card gives energy back.
func (d Definition) Restorative() bool {
	return d.Energy < 0
}

// ProducesWork reports whether the card adds to the caster's work total.
func (d Definition) ProducesWork() bool {
	return d.Work > 0
}

// Describe renders the description template: '#' is replaced by the energy
// magnitude, '?' by the work and '$' by the time cost.
func (d Definition) Describe() string {
	energy := d.Energy
	if energy < 0 {
		energy = -energy
	}
	r := strings.NewReplacer(
		"#", strconv.Itoa(energy),
		"?", strconv.Itoa(d.Work),
		"$", strconv.Itoa(d.Time),
	)
	return r.Replace(d.Description)
}

// CostText is the short cost label shown on the card face.
func (d Definition) CostText() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(d.Time))
	b.WriteString("h")
	if d.Energy != 0 {
		b.WriteString(" / ")
		if d.Energy < 0 {
			b.WriteString("+")
			b.WriteString(strconv.Itoa(-d.Energy))
		} else {
			b.WriteString(strconv.Itoa(d.Energy))
		}
		b.WriteString("E")
	}
	return b.String()
}

// Instance is one physical copy of a definition. It lives in exactly one pool.
type Instance struct {
	InstanceID string      `json:"instance_id"`
	Def        *Definition `json:"definition"`
	Played     bool        `json:"played"`
	HandIndex  int         `json:"hand_index"`
}

// NewInstance creates a fresh, unplayed copy of def.
func NewInstance(def *Definition) *Instance {
	return &Instance{
		InstanceID: uuid.NewString(),
		Def:        def,
		HandIndex:  NoSlot,
	}
}

// InHandSlot reports whether the instance currently occupies a hand slot.
func (c *Instance) InHandSlot() bool {
	return c.HandIndex != NoSlot
}
