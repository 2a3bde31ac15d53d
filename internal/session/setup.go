package session

import (
	"fmt"

	"github.com/overtimegame/server/internal/ai"
	"github.com/overtimegame/server/internal/catalog"
	"github.com/overtimegame/server/internal/config"
	"github.com/overtimegame/server/internal/domain/deck"
	"github.com/overtimegame/server/internal/domain/entity"
	"github.com/overtimegame/server/internal/domain/pool"
	"github.com/overtimegame/server/internal/platform/random"
)

// BuildSides builds the player from playerDeck and r.EnemyCount enemies from
// the catalog's enemy deck. Every pool and policy draws from rng.
func BuildSides(cat *catalog.Catalog, playerDeck deck.PlayerDeck, r config.Rules, rng random.Source) (*entity.Entity, []*entity.Entity, error) {
	playerCards, err := cat.BuildDeck(playerDeck)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build player deck: %w", err)
	}
	playerPools := pool.NewSet(r.HandCapacity, rng)
	playerPools.AddToDeck(playerCards...)
	player := entity.New(PlayerID, "Player", entity.KindPlayer, r.PlayerEnergy, playerPools)

	enemies := make([]*entity.Entity, 0, r.EnemyCount)
	for i := 1; i <= r.EnemyCount; i++ {
		cards, err := cat.BuildDeck(cat.EnemyDeck())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build enemy deck: %w", err)
		}
		set := pool.NewSet(r.HandCapacity, rng)
		set.AddToDeck(cards...)

		en := entity.New(fmt.Sprintf("enemy-%d", i), fmt.Sprintf("Coworker %d", i), entity.KindEnemy, r.EnemyEnergy, set)
		en.Strategy = NewPolicy(r, rng)
		enemies = append(enemies, en)
	}
	return player, enemies, nil
}

// NewPolicy returns the decision policy for r's profile and thresholds.
func NewPolicy(r config.Rules, rng random.Source) *ai.Policy {
	p := ai.NewPolicy(r.Profile, r.MaxTime, rng)
	p.LowEnergyThreshold = r.LowEnergyThreshold
	p.TimePressureThreshold = r.TimePressureThreshold
	return p
}
