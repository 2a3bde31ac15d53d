// Package deck holds the saved deck-builder data for a player profile.
// This package is PURE and must NOT import any infrastructure packages.
package deck

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrNotUnlocked = errors.New("card is not unlocked")
	ErrBadCount    = errors.New("card count must be positive")
)

// Entry is one line of a deck list. Field names match the saved JSON shape.
type Entry struct {
	CardID    int `json:"CardID" yaml:"card_id" mapstructure:"CardID"`
	CardCount int `json:"CardCount" yaml:"count" mapstructure:"CardCount"`
}

// PlayerDeck is the persisted deck-builder state of one profile.
type PlayerDeck struct {
	UnlockedCardIDs   []int   `json:"unlockedCardIDs" yaml:"unlocked" mapstructure:"unlockedCardIDs"`
	PlayerDeckEntries []Entry `json:"playerDeckEntries" yaml:"entries" mapstructure:"playerDeckEntries"`
}

// IsUnlocked reports whether cardID has been unlocked.
func (d *PlayerDeck) IsUnlocked(cardID int) bool {
	for _, id := range d.UnlockedCardIDs {
		if id == cardID {
			return true
		}
	}
	return false
}

// Unlock adds cardID to the unlocked set. Unlocking twice is a no-op.
func (d *PlayerDeck) Unlock(cardID int) {
	if d.IsUnlocked(cardID) {
		return
	}
	d.UnlockedCardIDs = append(d.UnlockedCardIDs, cardID)
	sort.Ints(d.UnlockedCardIDs)
}

// Count returns how many copies of cardID are in the deck.
func (d *PlayerDeck) Count(cardID int) int {
	for _, e := range d.PlayerDeckEntries {
		if e.CardID == cardID {
			return e.CardCount
		}
	}
	return 0
}

// Add puts one more copy of an unlocked card in the deck.
func (d *PlayerDeck) Add(cardID int) error {
	if !d.IsUnlocked(cardID) {
		return fmt.Errorf("failed to add card %d: %w", cardID, ErrNotUnlocked)
	}
	for i := range d.PlayerDeckEntries {
		if d.PlayerDeckEntries[i].CardID == cardID {
			d.PlayerDeckEntries[i].CardCount++
			return nil
		}
	}
	d.PlayerDeckEntries = append(d.PlayerDeckEntries, Entry{CardID: cardID, CardCount: 1})
	return nil
}

// Remove takes one copy out of the deck, dropping the entry at zero.
// Removing a card that is not in the deck is a no-op.
func (d *PlayerDeck) Remove(cardID int) {
	for i := range d.PlayerDeckEntries {
		if d.PlayerDeckEntries[i].CardID != cardID {
			continue
		}
		d.PlayerDeckEntries[i].CardCount--
		if d.PlayerDeckEntries[i].CardCount <= 0 {
			d.PlayerDeckEntries = append(d.PlayerDeckEntries[:i], d.PlayerDeckEntries[i+1:]...)
		}
		return
	}
}

// Size is the total number of cards in the deck.
func (d *PlayerDeck) Size() int {
	total := 0
	for _, e := range d.PlayerDeckEntries {
		total += e.CardCount
	}
	return total
}

// Validate checks that every entry has a positive count and references an unlocked card.
func (d *PlayerDeck) Validate() error {
	for _, e := range d.PlayerDeckEntries {
		if e.CardCount <= 0 {
			return fmt.Errorf("card %d: %w", e.CardID, ErrBadCount)
		}
		if !d.IsUnlocked(e.CardID) {
			return fmt.Errorf("card %d: %w", e.CardID, ErrNotUnlocked)
		}
	}
	return nil
}
