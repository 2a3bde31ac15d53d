// Package pool implements the deck, hand and discard pools owned by each entity.
// This package is PURE and must NOT import any infrastructure packages.
//
// Capacity and empty conditions are silent no-ops: Draw returns nil and
// Discard returns false rather than an error.
package pool

import (
	"math/rand/v2"

	"github.com/overtimegame/server/internal/domain/card"
)

// Hand capacities used by the two rule profiles.
const (
	SimpleHandCapacity   = 5
	ExtendedHandCapacity = 10
)

// Rand is the random source used to pick a deck card.
type Rand interface {
	IntN(n int) int
}

// Sizes reports the number of cards in each pool.
type Sizes struct {
	Deck    int `json:"deck"`
	Hand    int `json:"hand"`
	Discard int `json:"discard"`
}

// Total is the number of cards across all pools.
func (s Sizes) Total() int {
	return s.Deck + s.Hand + s.Discard
}

// Set holds one entity's deck (bag), hand (ordered, slotted) and discard (bag).
type Set struct {
	deck    []*card.Instance
	hand    []*card.Instance
	slots   []*card.Instance
	discard []*card.Instance
	rng     Rand
}

// NewSet creates an empty pool set whose hand has the given number of slots.
func NewSet(handCapacity int, rng Rand) *Set {
	if handCapacity <= 0 {
		handCapacity = SimpleHandCapacity
	}
	if rng == nil {
		rng = globalRand{}
	}
	return &Set{
		slots: make([]*card.Instance, handCapacity),
		rng:   rng,
	}
}

// AddToDeck puts new instances into the deck.
func (s *Set) AddToDeck(cards ...*card.Instance) {
	for _, c := range cards {
		c.HandIndex = card.NoSlot
		s.deck = append(s.deck, c)
	}
}

// Capacity is the number of hand slots.
func (s *Set) Capacity() int {
	return len(s.slots)
}

// Draw moves a uniformly random deck card into the lowest free hand slot.
// Returns nil when the hand is full or when both deck and discard are empty.
// An empty deck is refilled from the discard pile once before drawing.
func (s *Set) Draw() *card.Instance {
	if len(s.hand) >= len(s.slots) {
		return nil
	}
	if len(s.deck) == 0 {
		if len(s.discard) == 0 {
			return nil
		}
		s.Shuffle()
	}

	i := s.rng.IntN(len(s.deck))
	c := s.deck[i]
	last := len(s.deck) - 1
	s.deck[i] = s.deck[last]
	s.deck[last] = nil
	s.deck = s.deck[:last]

	slot := s.freeSlot()
	s.slots[slot] = c
	c.HandIndex = slot
	c.Played = false
	s.hand = append(s.hand, c)
	return c
}

// DrawN draws up to n cards and returns those actually drawn.
func (s *Set) DrawN(n int) []*card.Instance {
	var drawn []*card.Instance
	for i := 0; i < n; i++ {
		c := s.Draw()
		if c == nil {
			break
		}
		drawn = append(drawn, c)
	}
	return drawn
}

// Shuffle moves every discarded card back into the deck.
// Deck order is irrelevant because Draw picks at random.
func (s *Set) Shuffle() {
	for _, c := range s.discard {
		c.Played = false
		c.HandIndex = card.NoSlot
		s.deck = append(s.deck, c)
	}
	s.discard = s.discard[:0]
}

// Discard moves c from the hand to the discard pile and frees its slot.
// Returns false if c is not in the hand.
func (s *Set) Discard(c *card.Instance) bool {
	idx := s.handPosition(c)
	if idx < 0 {
		return false
	}
	s.hand = append(s.hand[:idx], s.hand[idx+1:]...)
	if c.InHandSlot() && c.HandIndex < len(s.slots) && s.slots[c.HandIndex] == c {
		s.slots[c.HandIndex] = nil
	}
	c.HandIndex = card.NoSlot
	s.discard = append(s.discard, c)
	return true
}

// InHand reports whether c is currently in the hand.
func (s *Set) InHand(c *card.Instance) bool {
	return s.handPosition(c) >= 0
}

// Hand returns the hand in draw order. The slice is a copy.
func (s *Set) Hand() []*card.Instance {
	out := make([]*card.Instance, len(s.hand))
	copy(out, s.hand)
	return out
}

// FindInHand looks a hand card up by instance id.
func (s *Set) FindInHand(instanceID string) *card.Instance {
	for _, c := range s.hand {
		if c.InstanceID == instanceID {
			return c
		}
	}
	return nil
}

// Slot returns the card occupying slot i, or nil.
func (s *Set) Slot(i int) *card.Instance {
	if i < 0 || i >= len(s.slots) {
		return nil
	}
	return s.slots[i]
}

// Sizes reports pool sizes.
func (s *Set) Sizes() Sizes {
	return Sizes{Deck: len(s.deck), Hand: len(s.hand), Discard: len(s.discard)}
}

// Deck returns a copy of the deck contents.
func (s *Set) Deck() []*card.Instance {
	out := make([]*card.Instance, len(s.deck))
	copy(out, s.deck)
	return out
}

// DiscardPile returns a copy of the discard contents.
func (s *Set) DiscardPile() []*card.Instance {
	out := make([]*card.Instance, len(s.discard))
	copy(out, s.discard)
	return out
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

func (s *Set) handPosition(c *card.Instance) int {
	for i, h := range s.hand {
		if h == c {
			return i
		}
	}
	return -1
}

func (s *Set) freeSlot() int {
	for i, occupant := range s.slots {
		if occupant == nil {
			return i
		}
	}
	// Unreachable while len(hand) < len(slots).
	return len(s.slots) - 1
}
