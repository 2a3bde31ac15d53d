package ai

import (
	"math"

	"github.com/overtimegame/server/internal/domain/card"
	"github.com/overtimegame/server/internal/domain/entity"
	"github.com/overtimegame/server/internal/domain/rules"
	"github.com/overtimegame/server/internal/platform/random"
)

// baseWeight keeps every card selectable with a tiny probability.
const baseWeight = 0.01

// Rand is the random source used for the weighted draw.
type Rand interface {
	Float64() float64
}

// Input is the bucketed state the selection is keyed on.
type Input struct {
	Energy        EnergyState
	Time          TimeState
	CurrentEnergy int
	MaxTime       int
	Profile       Profile
}

// Affordable reports whether a card can be paid for with currentEnergy.
// Restorative cards are always affordable.
func Affordable(def *card.Definition, currentEnergy int) bool {
	if def.Energy < 0 {
		return true
	}
	return def.Energy <= currentEnergy
}

// Weight computes the selection weight of one card. minWorkEnergy is the
// lowest energy cost among work-producing cards in the hand.
func Weight(def *card.Definition, in Input, minWorkEnergy int) float64 {
	w := energyWeight(def, in, minWorkEnergy)
	if in.Profile == ProfileSimple {
		w *= timeWeight(def, in)
	}
	return w
}

func energyWeight(def *card.Definition, in Input, minWorkEnergy int) float64 {
	restore := float64(-def.Energy)*1000 + baseWeight
	switch in.Energy {
	case LowEnergy:
		if def.Restorative() {
			return restore
		}
		return baseWeight
	default:
		if in.CurrentEnergy < minWorkEnergy && def.Restorative() {
			return restore
		}
		return float64(max(def.Work, 0))*2 + baseWeight
	}
}

func timeWeight(def *card.Definition, in Input) float64 {
	if in.Time == LowTime {
		return float64(max(in.MaxTime-def.Time, 0))*2 + baseWeight
	}
	return float64(max(def.Time, 0))*2 + baseWeight
}

// minWorkEnergy returns the lowest energy cost among work cards, or
// math.MaxInt when the hand has none so restorative cards stay favored.
func minWorkEnergy(hand []*card.Instance) int {
	lowest := math.MaxInt
	for _, c := range hand {
		if c.Def.ProducesWork() && c.Def.Energy < lowest {
			lowest = c.Def.Energy
		}
	}
	return lowest
}

// SelectCard picks a card from hand by weighted random draw. It never returns
// a card that is unaffordable at in.CurrentEnergy and returns nil when no card
// is affordable. The hand is not modified.
func SelectCard(rng Rand, hand []*card.Instance, in Input) *card.Instance {
	if len(hand) == 0 {
		return nil
	}
	if in.MaxTime <= 0 {
		in.MaxTime = rules.DefaultMaxTime
	}

	minWork := minWorkEnergy(hand)
	weights := make([]float64, len(hand))
	for i, c := range hand {
		weights[i] = Weight(c.Def, in, minWork)
	}

	if in.Profile == ProfileExtended {
		return selectStreaming(rng, hand, weights, in.CurrentEnergy)
	}
	return selectReroll(rng, hand, weights, in.CurrentEnergy)
}

// selectReroll draws against the full total, then subtracts each unaffordable
// card's weight and re-rolls against the reduced total.
func selectReroll(rng Rand, hand []*card.Instance, weights []float64, energy int) *card.Instance {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total

	var candidates []int
	for i, c := range hand {
		if Affordable(c.Def, energy) {
			candidates = append(candidates, i)
			continue
		}
		total -= weights[i]
		r = rng.Float64() * total
	}
	return walk(hand, weights, candidates, r)
}

// selectStreaming skips unaffordable cards while accumulating the total, then
// draws once.
func selectStreaming(rng Rand, hand []*card.Instance, weights []float64, energy int) *card.Instance {
	total := 0.0
	var candidates []int
	for i, c := range hand {
		if !Affordable(c.Def, energy) {
			continue
		}
		total += weights[i]
		candidates = append(candidates, i)
	}
	if len(candidates) == 0 {
		return nil
	}
	return walk(hand, weights, candidates, rng.Float64()*total)
}

func walk(hand []*card.Instance, weights []float64, candidates []int, r float64) *card.Instance {
	if len(candidates) == 0 {
		return nil
	}
	cumulative := 0.0
	for _, i := range candidates {
		cumulative += weights[i]
		if r < cumulative {
			return hand[i]
		}
	}
	// Float rounding can leave r at the boundary.
	return hand[candidates[len(candidates)-1]]
}

// Policy is the enemy Strategy. It buckets the live state, drops cards that
// would break the time cap and delegates to SelectCard.
type Policy struct {
	Profile               Profile
	MaxTime               int
	LowEnergyThreshold    int
	TimePressureThreshold int
	rng                   Rand
}

// NewPolicy creates a policy with the default thresholds. A nil rng falls
// back to the global generator.
func NewPolicy(profile Profile, maxTime int, rng Rand) *Policy {
	if rng == nil {
		rng = random.Global()
	}
	return &Policy{
		Profile:               profile,
		MaxTime:               maxTime,
		LowEnergyThreshold:    DefaultLowEnergyThreshold,
		TimePressureThreshold: DefaultTimePressureThreshold,
		rng:                   rng,
	}
}

// Inputs returns the bucketed state for self against opponent.
func (p *Policy) Inputs(self, opponent *entity.Entity) Input {
	in := Input{
		Energy:        BucketEnergy(self.Energy, p.LowEnergyThreshold),
		Time:          HighTime,
		CurrentEnergy: self.Energy,
		MaxTime:       p.MaxTime,
		Profile:       p.Profile,
	}
	if opponent != nil {
		in.Time = BucketTime(opponent.TimeSpent, self.TimeSpent, p.TimePressureThreshold)
	}
	return in
}

// Choose implements entity.Strategy.
func (p *Policy) Choose(self, opponent *entity.Entity) *card.Instance {
	if self.Pools == nil {
		return nil
	}
	var playable []*card.Instance
	for _, c := range self.Pools.Hand() {
		if c.Played || !rules.FitsTime(c.Def, self, p.MaxTime) {
			continue
		}
		playable = append(playable, c)
	}
	return SelectCard(p.rng, playable, p.Inputs(self, opponent))
}
