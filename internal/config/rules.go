// Package config holds the rule profiles and server settings.
package config

import (
	"errors"
	"fmt"

	"github.com/overtimegame/server/internal/ai"
	"github.com/overtimegame/server/internal/domain/entity"
	"github.com/overtimegame/server/internal/domain/pool"
	"github.com/overtimegame/server/internal/domain/rules"
)

// Rules are the game constants for one profile.
type Rules struct {
	Profile               ai.Profile `yaml:"profile" json:"profile"`
	MaxTime               int        `yaml:"max_time" json:"max_time"`
	HandCapacity          int        `yaml:"hand_capacity" json:"hand_capacity"`
	InitialHand           int        `yaml:"initial_hand" json:"initial_hand"`
	DrawPerTurn           int        `yaml:"draw_per_turn" json:"draw_per_turn"`
	PlayerEnergy          int        `yaml:"player_energy" json:"player_energy"`
	EnemyEnergy           int        `yaml:"enemy_energy" json:"enemy_energy"`
	EnemyCount            int        `yaml:"enemy_count" json:"enemy_count"`
	LowEnergyThreshold    int        `yaml:"low_energy_threshold" json:"low_energy_threshold"`
	TimePressureThreshold int        `yaml:"time_pressure_threshold" json:"time_pressure_threshold"`

	// Scripted turn hooks. Zero disables the hook.
	LunchTurn  int `yaml:"lunch_turn" json:"lunch_turn"`
	EndDayTurn int `yaml:"end_day_turn" json:"end_day_turn"`
}

// SimpleRules is the single-enemy profile: five-card hand, time-aware policy, no scripted turns.
func SimpleRules() Rules {
	return Rules{
		Profile:               ai.ProfileSimple,
		MaxTime:               rules.DefaultMaxTime,
		HandCapacity:          pool.SimpleHandCapacity,
		InitialHand:           5,
		DrawPerTurn:           1,
		PlayerEnergy:          entity.DefaultPlayerEnergy,
		EnemyEnergy:           entity.DefaultEnemyEnergy,
		EnemyCount:            1,
		LowEnergyThreshold:    ai.DefaultLowEnergyThreshold,
		TimePressureThreshold: ai.DefaultTimePressureThreshold,
	}
}

// ExtendedRules is the multi-enemy profile with the lunch break and end-of-day hooks.
func ExtendedRules() Rules {
	r := SimpleRules()
	r.Profile = ai.ProfileExtended
	r.HandCapacity = pool.ExtendedHandCapacity
	r.EnemyCount = 2
	r.LunchTurn = 1
	r.EndDayTurn = 8
	return r
}

// RulesFor returns the preset for a profile name.
func RulesFor(profile ai.Profile) (Rules, error) {
	switch profile {
	case ai.ProfileSimple, "":
		return SimpleRules(), nil
	case ai.ProfileExtended:
		return ExtendedRules(), nil
	}
	return Rules{}, fmt.Errorf("unknown rules profile %q", profile)
}

// Validate rejects values the engine cannot run with.
func (r Rules) Validate() error {
	var errs []error
	if r.MaxTime <= 0 {
		errs = append(errs, errors.New("max_time must be positive"))
	}
	if r.HandCapacity <= 0 {
		errs = append(errs, errors.New("hand_capacity must be positive"))
	}
	if r.InitialHand < 0 || r.InitialHand > r.HandCapacity {
		errs = append(errs, errors.New("initial_hand must be between 0 and hand_capacity"))
	}
	if r.EnemyCount <= 0 {
		errs = append(errs, errors.New("enemy_count must be positive"))
	}
	if r.PlayerEnergy < 0 || r.EnemyEnergy < 0 {
		errs = append(errs, errors.New("energy must not be negative"))
	}
	if r.Profile != ai.ProfileSimple && r.Profile != ai.ProfileExtended {
		errs = append(errs, fmt.Errorf("unknown profile %q", r.Profile))
	}
	return errors.Join(errs...)
}
