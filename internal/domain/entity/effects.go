package entity

// EffectKind names a persistent modifier held in an entity's effect registry.
type EffectKind string

const (
	EffectWorkDoneBuff      EffectKind = "WorkDoneBuff"
	EffectWorkDoneDebuff    EffectKind = "WorkDoneDebuff"
	EffectEnergyBuff        EffectKind = "EnergyBuff"        // Reduces the energy cost of later cards
	EffectTimeCostReduction EffectKind = "TimeCostReduction" // Reduces the time cost of later cards
)

// Effects is an additive registry of effect magnitudes. A missing key reads as 0.
type Effects map[EffectKind]int

// Apply adds delta to the stored magnitude, creating the entry if absent.
// Values are never clamped.
func (e Effects) Apply(kind EffectKind, delta int) {
	e[kind] += delta
}

// Value returns the stored magnitude or 0.
func (e Effects) Value(kind EffectKind) int {
	return e[kind]
}

// Remove deletes the entry for kind.
func (e Effects) Remove(kind EffectKind) {
	delete(e, kind)
}

// Clone returns an independent copy of the registry.
func (e Effects) Clone() Effects {
	out := make(Effects, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}
