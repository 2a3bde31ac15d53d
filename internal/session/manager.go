// Package session owns the lifetime of matches. A Session replaces ambient
// global state: it is built at match start from the catalog, the saved deck
// and the rule profile, and passed to whoever needs it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/overtimegame/server/internal/catalog"
	"github.com/overtimegame/server/internal/config"
	"github.com/overtimegame/server/internal/domain/deck"
	"github.com/overtimegame/server/internal/engine"
	"github.com/overtimegame/server/internal/events"
	"github.com/overtimegame/server/internal/infra/cache"
	"github.com/overtimegame/server/internal/infra/storage"
	"github.com/overtimegame/server/internal/platform/logger"
	"github.com/overtimegame/server/internal/platform/metrics"
	"github.com/overtimegame/server/internal/platform/random"
	"github.com/overtimegame/server/internal/scheduler"
)

// ErrMatchNotFound is returned for an unknown match id.
var ErrMatchNotFound = errors.New("match not found")

// ErrNoDeckStorage is returned when saving a deck without a deck repository.
var ErrNoDeckStorage = errors.New("no deck storage configured")

// PlayerID is the entity id of the human side in every match.
const PlayerID = "player"

// Deps are the collaborators shared by every match. Decks, Matches and Cache
// are optional.
type Deps struct {
	Catalog        *catalog.Catalog
	EventLog       *events.EventLog
	Decks          storage.DeckRepository
	Matches        storage.MatchRepository
	Cache          *cache.MatchCache
	Logger         *logger.Logger
	Metrics        *metrics.Collector
	EnemyStepDelay time.Duration
	Seed           uint64 // zero picks a fresh seed per match
}

// Manager indexes the open matches.
type Manager struct {
	deps     Deps
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager. Catalog and EventLog are required.
func NewManager(deps Deps) (*Manager, error) {
	if deps.Catalog == nil {
		return nil, errors.New("failed to create session manager: catalog is required")
	}
	if deps.EventLog == nil {
		return nil, errors.New("failed to create session manager: event log is required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Get()
	}
	return &Manager{deps: deps, sessions: make(map[string]*Session)}, nil
}

// NewMatch builds both sides from the profile's saved deck and the rules,
// deals the opening hands and registers the match.
func (m *Manager) NewMatch(ctx context.Context, profileID string, r config.Rules) (*Session, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	playerDeck, err := m.Deck(ctx, profileID)
	if err != nil {
		return nil, err
	}

	seed := m.deps.Seed
	if seed == 0 {
		seed = random.NewSeed()
	}
	rng := random.New(seed)

	player, enemies, err := BuildSides(m.deps.Catalog, playerDeck, r, rng)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	eng, err := engine.NewEngine(engine.Options{MatchID: id, Rules: r, Metrics: m.deps.Metrics},
		player, enemies, m.deps.EventLog, m.deps.Logger)
	if err != nil {
		return nil, err
	}
	if err := eng.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start match: %w", err)
	}

	s := &Session{
		id:        id,
		profileID: profileID,
		seed:      seed,
		engine:    eng,
		sched:     scheduler.New(m.deps.EnemyStepDelay, m.deps.Logger, m.deps.Metrics),
		deps:      m.deps,
		logger:    m.deps.Logger.With("match", id),
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.deps.Metrics.RecordMatch(1)
	s.logger.Info("Match created", "profile", profileID, "rules", r.Profile, "seed", seed)
	s.mu.Lock()
	s.syncLocked(ctx)
	s.mu.Unlock()
	return s, nil
}

// Get returns an open match.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", id, ErrMatchNotFound)
	}
	return s, nil
}

// List returns the ids of all open matches, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops a match's pending enemy steps and forgets it.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("match %s: %w", id, ErrMatchNotFound)
	}

	s.sched.Cancel()
	m.deps.Metrics.RecordMatch(-1)
	if m.deps.Cache != nil {
		if err := m.deps.Cache.InvalidateMatch(ctx, id); err != nil {
			s.logger.Warn("Failed to invalidate cached match", "error", err)
		}
	}
	return nil
}

// Deck loads a profile's saved deck, falling back to the starter deck when
// nothing was saved.
func (m *Manager) Deck(ctx context.Context, profileID string) (deck.PlayerDeck, error) {
	if m.deps.Decks == nil {
		return m.deps.Catalog.StarterDeck(), nil
	}
	d, err := m.deps.Decks.LoadPlayerDeck(ctx, profileID)
	if errors.Is(err, storage.ErrDeckNotFound) {
		return m.deps.Catalog.StarterDeck(), nil
	}
	if err != nil {
		return deck.PlayerDeck{}, fmt.Errorf("failed to load player deck: %w", err)
	}
	return d, nil
}

// SaveDeck validates a deck against the catalog and persists it.
func (m *Manager) SaveDeck(ctx context.Context, profileID string, d deck.PlayerDeck) error {
	if err := d.Validate(); err != nil {
		return err
	}
	for _, id := range d.UnlockedCardIDs {
		if _, err := m.deps.Catalog.Definition(id); err != nil {
			return err
		}
	}
	if m.deps.Decks == nil {
		return fmt.Errorf("failed to save deck: %w", ErrNoDeckStorage)
	}
	return m.deps.Decks.SavePlayerDeck(ctx, profileID, d)
}
