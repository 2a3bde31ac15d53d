// Package entity defines the combatants of a round and their resource ledger.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package entity

import (
	"github.com/overtimegame/server/internal/domain/card"
	"github.com/overtimegame/server/internal/domain/pool"
)

// Kind separates the human-controlled entity from AI-controlled ones.
type Kind string

const (
	KindPlayer Kind = "PLAYER"
	KindEnemy  Kind = "ENEMY"
)

// Default starting energy per kind.
const (
	DefaultPlayerEnergy = 8
	DefaultEnemyEnergy  = 5
)

// Strategy picks the next card an entity wants to play.
// Returning nil means the entity has nothing it wants or is able to play.
type Strategy interface {
	Choose(self, opponent *Entity) *card.Instance
}

// Entity is a participant in a round: the player or an enemy.
type Entity struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Kind      Kind    `json:"kind"`
	Energy    int     `json:"energy"`
	MaxEnergy int     `json:"max_energy"`
	WorkDone  int     `json:"work_done"`
	TimeSpent int     `json:"time_spent"`
	Effects   Effects `json:"effects"`

	Pools    *pool.Set `json:"-"`
	Strategy Strategy  `json:"-"` // nil for the human player
}

// New creates an entity with full energy and an empty effect registry.
func New(id, name string, kind Kind, maxEnergy int, pools *pool.Set) *Entity {
	return &Entity{
		ID:        id,
		Name:      name,
		Kind:      kind,
		Energy:    maxEnergy,
		MaxEnergy: maxEnergy,
		Effects:   make(Effects),
		Pools:     pools,
	}
}

// IsPlayer reports whether the entity is the human side.
func (e *Entity) IsPlayer() bool {
	return e.Kind == KindPlayer
}

// SpendEnergy subtracts n. A negative n restores energy. No clamping.
func (e *Entity) SpendEnergy(n int) {
	e.Energy -= n
}

// AddWorkDone adds n to the work total. No clamping.
func (e *Entity) AddWorkDone(n int) {
	e.WorkDone += n
}

// AddTimeSpent adds n to the time spent this round. No clamping.
func (e *Entity) AddTimeSpent(n int) {
	e.TimeSpent += n
}

// ResetEnergyToMax refills energy.
func (e *Entity) ResetEnergyToMax() {
	e.Energy = e.MaxEnergy
}

// ResetRound clears the per-round clock. Energy and work carry over.
func (e *Entity) ResetRound() {
	e.TimeSpent = 0
}

// OutOfTime reports whether the entity has used its whole time budget.
func (e *Entity) OutOfTime(maxTime int) bool {
	return e.TimeSpent >= maxTime
}

// Snapshot is a copy of the ledger for presentation and caching.
type Snapshot struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Kind      Kind           `json:"kind"`
	Energy    int            `json:"energy"`
	MaxEnergy int            `json:"max_energy"`
	WorkDone  int            `json:"work_done"`
	TimeSpent int            `json:"time_spent"`
	Effects   Effects        `json:"effects"`
	HandSize  int            `json:"hand_size"`
	DeckSize  int            `json:"deck_size"`
	Discarded int            `json:"discarded"`
}

// Snapshot copies the ledger and pool sizes.
func (e *Entity) Snapshot() Snapshot {
	s := Snapshot{
		ID:        e.ID,
		Name:      e.Name,
		Kind:      e.Kind,
		Energy:    e.Energy,
		MaxEnergy: e.MaxEnergy,
		WorkDone:  e.WorkDone,
		TimeSpent: e.TimeSpent,
		Effects:   e.Effects.Clone(),
	}
	if e.Pools != nil {
		sizes := e.Pools.Sizes()
		s.HandSize = sizes.Hand
		s.DeckSize = sizes.Deck
		s.Discarded = sizes.Discard
	}
	return s
}
