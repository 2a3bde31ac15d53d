// Package ai implements the enemy decision policy: bucketed state inputs and a
// weighted-random card choice over the enemy's hand.
package ai

// EnergyState buckets the enemy's current energy.
type EnergyState string

const (
	LowEnergy  EnergyState = "LOW_ENERGY"
	HighEnergy EnergyState = "HIGH_ENERGY"
)

// TimeState buckets how far the player has pulled ahead on the clock.
type TimeState string

const (
	LowTime  TimeState = "LOW_TIME"
	HighTime TimeState = "HIGH_TIME"
)

// Profile selects between the two decision variants.
type Profile string

const (
	// ProfileSimple weighs energy and time and re-rolls around unaffordable cards.
	ProfileSimple Profile = "simple"
	// ProfileExtended weighs energy only and skips unaffordable cards while streaming.
	ProfileExtended Profile = "extended"
)

// Default bucket thresholds.
const (
	DefaultLowEnergyThreshold    = 3
	DefaultTimePressureThreshold = 2
)

// BucketEnergy returns LowEnergy when energy is at or below threshold.
func BucketEnergy(energy, threshold int) EnergyState {
	if energy <= threshold {
		return LowEnergy
	}
	return HighEnergy
}

// BucketTime returns LowTime when the player's lead on the clock is at most threshold.
func BucketTime(playerTime, enemyTime, threshold int) TimeState {
	if playerTime-enemyTime <= threshold {
		return LowTime
	}
	return HighTime
}
