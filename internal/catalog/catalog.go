// Package catalog loads card definitions and turns saved deck lists into card instances.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/overtimegame/server/internal/domain/card"
	"github.com/overtimegame/server/internal/domain/deck"
)

//go:embed cards.yaml
var builtin []byte

// ErrUnknownCard is returned when a card id has no catalog entry.
var ErrUnknownCard = errors.New("unknown card id")

type file struct {
	Cards   []card.Definition `yaml:"cards"`
	Starter deck.PlayerDeck   `yaml:"starter"`
	Enemy   deck.PlayerDeck   `yaml:"enemy"`
}

// Catalog is the read-only set of card definitions.
type Catalog struct {
	defs    map[int]*card.Definition
	starter deck.PlayerDeck
	enemy   deck.PlayerDeck
}

// Default parses the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(builtin)
}

// Load reads a catalog file from disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(f.Cards) == 0 {
		return nil, errors.New("catalog has no cards")
	}

	c := &Catalog{
		defs:    make(map[int]*card.Definition, len(f.Cards)),
		starter: f.Starter,
		enemy:   f.Enemy,
	}
	for i := range f.Cards {
		def := f.Cards[i]
		if def.ID <= 0 {
			return nil, fmt.Errorf("card %q: id must be positive", def.Name)
		}
		if _, dup := c.defs[def.ID]; dup {
			return nil, fmt.Errorf("duplicate card id %d", def.ID)
		}
		if def.Time < 0 {
			return nil, fmt.Errorf("card %d: time must not be negative", def.ID)
		}
		c.defs[def.ID] = &def
	}

	for name, d := range map[string]deck.PlayerDeck{"starter": c.starter, "enemy": c.enemy} {
		if _, err := c.BuildDeck(d); err != nil {
			return nil, fmt.Errorf("invalid %s deck: %w", name, err)
		}
	}
	return c, nil
}

// Definition looks a card up by id.
func (c *Catalog) Definition(id int) (*card.Definition, error) {
	def, ok := c.defs[id]
	if !ok {
		return nil, fmt.Errorf("card %d: %w", id, ErrUnknownCard)
	}
	return def, nil
}

// All returns every definition ordered by id.
func (c *Catalog) All() []*card.Definition {
	out := make([]*card.Definition, 0, len(c.defs))
	for _, def := range c.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StarterDeck is the deck given to a profile with no saved data.
func (c *Catalog) StarterDeck() deck.PlayerDeck {
	return copyDeck(c.starter)
}

// EnemyDeck is the deck list every AI entity plays with.
func (c *Catalog) EnemyDeck() deck.PlayerDeck {
	return copyDeck(c.enemy)
}

// BuildDeck expands a deck list into fresh instances, CardCount copies per entry.
// An entry pointing at an unknown id fails the whole build.
func (c *Catalog) BuildDeck(d deck.PlayerDeck) ([]*card.Instance, error) {
	var out []*card.Instance
	for _, e := range d.PlayerDeckEntries {
		def, err := c.Definition(e.CardID)
		if err != nil {
			return nil, err
		}
		for i := 0; i < e.CardCount; i++ {
			out = append(out, card.NewInstance(def))
		}
	}
	return out, nil
}

func copyDeck(d deck.PlayerDeck) deck.PlayerDeck {
	return deck.PlayerDeck{
		UnlockedCardIDs:   append([]int(nil), d.UnlockedCardIDs...),
		PlayerDeckEntries: append([]deck.Entry(nil), d.PlayerDeckEntries...),
	}
}
