package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overtimegame/server/internal/catalog"
	"github.com/overtimegame/server/internal/config"
	"github.com/overtimegame/server/internal/domain/deck"
	"github.com/overtimegame/server/internal/domain/rules"
	"github.com/overtimegame/server/internal/engine"
	"github.com/overtimegame/server/internal/events"
	"github.com/overtimegame/server/internal/infra/storage"
	"github.com/overtimegame/server/internal/platform/logger"
	"github.com/overtimegame/server/internal/platform/metrics"
)

func newManager(t *testing.T, mutate func(*Deps)) *Manager {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	deps := Deps{
		Catalog:  cat,
		EventLog: events.NewEventLog(nil),
		Logger:   logger.NewNop(),
		Metrics:  metrics.NewCollector(),
		Seed:     42,
	}
	if mutate != nil {
		mutate(&deps)
	}
	m, err := NewManager(deps)
	require.NoError(t, err)
	return m
}

func TestNewMatchDealsBothSides(t *testing.T) {
	m := newManager(t, nil)
	ctx := context.Background()

	s, err := m.NewMatch(ctx, "", config.ExtendedRules())
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, engine.StatePlayerTurn, snap.State)
	assert.Len(t, snap.Hand, 5)
	assert.Len(t, snap.Enemies, 2)
	assert.Equal(t, 8, snap.Player.Energy)
	assert.Equal(t, 5, snap.Enemies[0].Energy)
	assert.Equal(t, uint64(42), s.Seed())

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, []string{s.ID()}, m.List())
	assert.Equal(t, int64(1), m.deps.Metrics.MatchesActive)

	require.NoError(t, m.Close(ctx, s.ID()))
	_, err = m.Get(s.ID())
	assert.ErrorIs(t, err, ErrMatchNotFound)
	assert.ErrorIs(t, m.Close(ctx, s.ID()), ErrMatchNotFound)
}

func TestSeedMakesMatchesReproducible(t *testing.T) {
	ctx := context.Background()
	hand := func() []int {
		m := newManager(t, nil)
		s, err := m.NewMatch(ctx, "", config.SimpleRules())
		require.NoError(t, err)
		var ids []int
		for _, c := range s.Snapshot().Hand {
			ids = append(ids, c.CardID)
		}
		return ids
	}
	assert.Equal(t, hand(), hand())
}

func TestPlayAndEndTurnSynchronously(t *testing.T) {
	db, err := storage.InitSQLite(filepath.Join(t.TempDir(), "overtime.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	matches := storage.NewSQLiteMatchRepository(db)

	m := newManager(t, func(d *Deps) { d.Matches = matches })
	ctx := context.Background()
	s, err := m.NewMatch(ctx, "", config.SimpleRules())
	require.NoError(t, err)

	first := s.Snapshot().Hand[0]
	res := s.Play(ctx, first.InstanceID, "")
	require.True(t, res.Accepted)

	again := s.Play(ctx, first.InstanceID, "")
	assert.Equal(t, rules.RejectNotInHand, again.Reason)

	require.True(t, s.EndTurn(ctx))
	snap := s.Snapshot()
	assert.NotEqual(t, engine.StateEnemyTurn, snap.State)
	assert.False(t, s.EnemyTurnRunning())
	if snap.State == engine.StatePlayerTurn {
		assert.Equal(t, 1, snap.Turn)
	}

	rec, err := matches.Get(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, string(snap.State), rec.State)
	assert.Equal(t, "simple", rec.Profile)
}

func TestPacedEnemyTurn(t *testing.T) {
	m := newManager(t, func(d *Deps) { d.EnemyStepDelay = time.Millisecond })
	ctx := context.Background()
	s, err := m.NewMatch(ctx, "", config.SimpleRules())
	require.NoError(t, err)

	require.True(t, s.Play(ctx, s.Snapshot().Hand[0].InstanceID, "").Accepted)
	require.True(t, s.EndTurn(ctx))

	assert.Eventually(t, func() bool {
		return s.Snapshot().State != engine.StateEnemyTurn && !s.EnemyTurnRunning()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDecks(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewFileDeckRepository(filepath.Join(t.TempDir(), "player_deck_data.json"))
	m := newManager(t, func(d *Deps) { d.Decks = repo })

	d, err := m.Deck(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, m.deps.Catalog.StarterDeck(), d, "starter deck when nothing is saved")

	locked := deck.PlayerDeck{UnlockedCardIDs: []int{1}, PlayerDeckEntries: []deck.Entry{{CardID: 2, CardCount: 1}}}
	assert.ErrorIs(t, m.SaveDeck(ctx, "alice", locked), deck.ErrNotUnlocked)

	unknown := deck.PlayerDeck{UnlockedCardIDs: []int{999}}
	assert.ErrorIs(t, m.SaveDeck(ctx, "alice", unknown), catalog.ErrUnknownCard)

	small := deck.PlayerDeck{UnlockedCardIDs: []int{1, 3}, PlayerDeckEntries: []deck.Entry{{CardID: 1, CardCount: 4}, {CardID: 3, CardCount: 2}}}
	require.NoError(t, m.SaveDeck(ctx, "alice", small))

	s, err := m.NewMatch(ctx, "alice", config.SimpleRules())
	require.NoError(t, err)
	snap := s.Snapshot()
	assert.Equal(t, 6, snap.Player.HandSize+snap.Player.DeckSize)
	for _, c := range snap.Hand {
		assert.Contains(t, []int{1, 3}, c.CardID)
	}
}

func TestSaveDeckWithoutStorage(t *testing.T) {
	m := newManager(t, nil)
	err := m.SaveDeck(context.Background(), "bob", m.deps.Catalog.StarterDeck())
	assert.ErrorIs(t, err, ErrNoDeckStorage)
}

func TestNewMatchRejectsBadRules(t *testing.T) {
	m := newManager(t, nil)
	r := config.SimpleRules()
	r.MaxTime = 0
	_, err := m.NewMatch(context.Background(), "", r)
	assert.Error(t, err)
}
