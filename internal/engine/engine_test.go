package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overtimegame/server/internal/config"
	"github.com/overtimegame/server/internal/domain/card"
	"github.com/overtimegame/server/internal/domain/entity"
	"github.com/overtimegame/server/internal/domain/pool"
	"github.com/overtimegame/server/internal/domain/rules"
	"github.com/overtimegame/server/internal/events"
	"github.com/overtimegame/server/internal/platform/logger"
	"github.com/overtimegame/server/internal/platform/metrics"
	"github.com/overtimegame/server/internal/platform/random"
)

// firstPlayable picks the first card in hand that can legally be played.
type firstPlayable struct{ maxTime int }

func (f firstPlayable) Choose(self, _ *entity.Entity) *card.Instance {
	for _, c := range self.Pools.Hand() {
		if _, reason := rules.CheckPlay(c, self, f.maxTime); reason == rules.RejectNone {
			return c
		}
	}
	return nil
}

func copies(def card.Definition, n int) []*card.Instance {
	out := make([]*card.Instance, n)
	for i := range out {
		d := def
		out[i] = card.NewInstance(&d)
	}
	return out
}

func newEntity(id string, kind entity.Kind, energy, handCap int, cards []*card.Instance) *entity.Entity {
	set := pool.NewSet(handCap, random.New(1))
	set.AddToDeck(cards...)
	return entity.New(id, id, kind, energy, set)
}

type match struct {
	eng     *Engine
	log     *events.EventLog
	metrics *metrics.Collector
	player  *entity.Entity
	enemies []*entity.Entity
}

func newMatch(t *testing.T, r config.Rules, hook TurnHook, playerCards []*card.Instance, enemyCards ...[]*card.Instance) *match {
	t.Helper()
	player := newEntity("player", entity.KindPlayer, r.PlayerEnergy, r.HandCapacity, playerCards)
	var enemies []*entity.Entity
	for i, cards := range enemyCards {
		en := newEntity("enemy-"+string(rune('a'+i)), entity.KindEnemy, r.EnemyEnergy, r.HandCapacity, cards)
		en.Strategy = firstPlayable{maxTime: r.MaxTime}
		enemies = append(enemies, en)
	}

	el := events.NewEventLog(nil)
	m := metrics.NewCollector()
	eng, err := NewEngine(Options{MatchID: "m-1", Rules: r, Hook: hook, Metrics: m}, player, enemies, el, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	return &match{eng: eng, log: el, metrics: m, player: player, enemies: enemies}
}

func rulesWithHand(n int) config.Rules {
	r := config.SimpleRules()
	r.InitialHand = n
	return r
}

func TestResolveCardScenario(t *testing.T) {
	short := card.Definition{ID: 1, Name: "Short Task", Time: 5, Energy: 3, Work: 2}
	long := card.Definition{ID: 2, Name: "Long Task", Time: 8, Energy: 1, Work: 4}

	caster := newEntity("p", entity.KindPlayer, 8, pool.SimpleHandCapacity,
		[]*card.Instance{card.NewInstance(&short), card.NewInstance(&long)})
	target := newEntity("e", entity.KindEnemy, 5, pool.SimpleHandCapacity, nil)
	hand := caster.Pools.DrawN(2)
	require.Len(t, hand, 2)

	var first, second *card.Instance
	for _, c := range hand {
		if c.Def.ID == short.ID {
			first = c
		} else {
			second = c
		}
	}

	res := ResolveCard(first, caster, []*entity.Entity{target}, rules.DefaultMaxTime)
	require.True(t, res.Accepted)
	assert.Equal(t, 5, caster.TimeSpent)
	assert.Equal(t, 5, caster.Energy)
	assert.Equal(t, 2, caster.WorkDone)
	assert.Equal(t, 2, res.PaperPiles)
	assert.True(t, first.Played)
	assert.Equal(t, 1, caster.Pools.Sizes().Discard)

	before := caster.Snapshot()
	res = ResolveCard(second, caster, []*entity.Entity{target}, rules.DefaultMaxTime)
	assert.False(t, res.Accepted)
	assert.Equal(t, rules.RejectOverTime, res.Reason)
	assert.Equal(t, before, caster.Snapshot())
	assert.True(t, caster.Pools.InHand(second))
	assert.False(t, second.Played)
}

func TestResolveCardRejectionLeavesLedger(t *testing.T) {
	pricey := card.Definition{ID: 3, Name: "Meeting", Time: 1, Energy: 3, Work: 1, WorkDoneBuff: 2}
	caster := newEntity("p", entity.KindPlayer, 2, pool.SimpleHandCapacity, copies(pricey, 1))
	target := newEntity("e", entity.KindEnemy, 5, pool.SimpleHandCapacity, nil)
	c := caster.Pools.Draw()
	require.NotNil(t, c)

	casterBefore, targetBefore := caster.Snapshot(), target.Snapshot()
	res := ResolveCard(c, caster, []*entity.Entity{target}, rules.DefaultMaxTime)

	assert.False(t, res.Accepted)
	assert.Equal(t, rules.RejectNoEnergy, res.Reason)
	assert.Equal(t, casterBefore, caster.Snapshot())
	assert.Equal(t, targetBefore, target.Snapshot())
	assert.True(t, caster.Pools.InHand(c))
}

func TestResolveCardEffects(t *testing.T) {
	t.Run("debuff strikes the target and buffs stay with the caster", func(t *testing.T) {
		def := card.Definition{ID: 4, Time: 2, Energy: 1, Work: 1, WorkDoneDebuff: -2, EnergyGainBuff: 1, TimeCostReduction: 1}
		caster := newEntity("p", entity.KindPlayer, 8, pool.SimpleHandCapacity, copies(def, 1))
		target := newEntity("e", entity.KindEnemy, 5, pool.SimpleHandCapacity, nil)
		c := caster.Pools.Draw()

		res := ResolveCard(c, caster, []*entity.Entity{target}, rules.DefaultMaxTime)
		require.True(t, res.Accepted)
		assert.Equal(t, -2, target.WorkDone)
		assert.Equal(t, 1, caster.WorkDone)
		assert.Equal(t, 1, caster.Effects.Value(entity.EffectEnergyBuff))
		assert.Equal(t, 1, caster.Effects.Value(entity.EffectTimeCostReduction))
		assert.Equal(t, 0, caster.Effects.Value(entity.EffectWorkDoneBuff))
		assert.Len(t, res.Effects, 2)
		assert.Equal(t, []string{"e"}, res.TargetIDs)
	})

	t.Run("restorative card refunds energy", func(t *testing.T) {
		coffee := card.Definition{ID: 5, Name: "Coffee", Time: 1, Energy: -3}
		caster := newEntity("p", entity.KindPlayer, 8, pool.SimpleHandCapacity, copies(coffee, 1))
		caster.Energy = 2
		c := caster.Pools.Draw()

		res := ResolveCard(c, caster, nil, rules.DefaultMaxTime)
		require.True(t, res.Accepted)
		assert.Equal(t, 5, caster.Energy)
		assert.Equal(t, 1, caster.TimeSpent)
		assert.Equal(t, 0, res.PaperPiles)
	})
}

func TestTargeting(t *testing.T) {
	r := config.ExtendedRules()
	r.InitialHand = 1
	onSelf := card.Definition{ID: 6, Time: 1, Energy: 0, WorkDoneDebuff: 3, PlayOnSelf: true}
	all := card.Definition{ID: 7, Time: 1, Energy: 0, WorkDoneDebuff: -1, AffectAll: true}
	filler := card.Definition{ID: 8, Time: 1, Energy: 0, Work: 1}

	t.Run("play on self", func(t *testing.T) {
		m := newMatch(t, r, nil, copies(onSelf, 1), copies(filler, 1), copies(filler, 1))
		res := m.eng.PlayerPlay(context.Background(), m.player.Pools.Hand()[0].InstanceID, "")
		require.True(t, res.Accepted)
		assert.Equal(t, 3, m.player.WorkDone)
		assert.Equal(t, 0, m.enemies[0].WorkDone)
	})

	t.Run("affect all", func(t *testing.T) {
		m := newMatch(t, r, nil, copies(all, 1), copies(filler, 1), copies(filler, 1))
		res := m.eng.PlayerPlay(context.Background(), m.player.Pools.Hand()[0].InstanceID, "")
		require.True(t, res.Accepted)
		assert.Equal(t, -1, m.enemies[0].WorkDone)
		assert.Equal(t, -1, m.enemies[1].WorkDone)
		assert.Len(t, res.TargetIDs, 2)
	})

	t.Run("chosen target", func(t *testing.T) {
		m := newMatch(t, r, nil, copies(all, 1), copies(filler, 1), copies(filler, 1))
		bad := m.eng.PlayerPlay(context.Background(), m.player.Pools.Hand()[0].InstanceID, m.player.ID)
		assert.Equal(t, rules.RejectBadTarget, bad.Reason)
		assert.Equal(t, 0, m.player.TimeSpent)
	})
}

func TestStartDealsAndGatesTurns(t *testing.T) {
	task := card.Definition{ID: 9, Name: "Task", Time: 2, Energy: 1, Work: 1}
	m := newMatch(t, rulesWithHand(5), nil, copies(task, 3), copies(task, 7))
	ctx := context.Background()

	assert.Equal(t, StatePlayerTurn, m.eng.State())
	assert.Equal(t, 3, m.player.Pools.Sizes().Hand, "fewer cards when the pool runs dry")
	assert.Equal(t, 5, m.enemies[0].Pools.Sizes().Hand)

	changed := m.log.GetByType(events.EventTypeTurnChanged)
	require.NotEmpty(t, changed)
	assert.Equal(t, string(StatePlayerTurn), changed[0].Payload.(events.TurnChangedPayload).To)
	assert.Len(t, m.log.GetByType(events.EventTypeCardDrawn), 8)

	err := m.eng.Start(ctx)
	assert.ErrorIs(t, err, ErrWrongState)

	enemyCard := m.enemies[0].Pools.Hand()[0]
	res := m.eng.PlayCard(ctx, enemyCard, m.enemies[0], nil)
	assert.Equal(t, rules.RejectNotYourTurn, res.Reason)
	assert.False(t, enemyCard.Played)

	missing := m.eng.PlayerPlay(ctx, "no-such-card", "")
	assert.Equal(t, rules.RejectNotInHand, missing.Reason)

	ok := m.eng.PlayerPlay(ctx, m.player.Pools.Hand()[0].InstanceID, "")
	require.True(t, ok.Accepted)
	assert.Len(t, m.log.GetByType(events.EventTypeCardPlayed), 1)
	assert.Len(t, m.log.GetByType(events.EventTypeCardDiscarded), 1)
	assert.Len(t, m.log.GetByType(events.EventTypePaperPileSpawn), 1)
	assert.Equal(t, int64(1), m.metrics.CardsPlayed)
	assert.Equal(t, int64(2), m.metrics.PlaysRejected)
}

func TestEnemyLoopStopsWhenCaughtUp(t *testing.T) {
	big := card.Definition{ID: 10, Name: "Report", Time: 4, Energy: 1, Work: 2}
	small := card.Definition{ID: 11, Name: "Email", Time: 2, Energy: 1, Work: 1}
	m := newMatch(t, rulesWithHand(3), nil, copies(big, 1), copies(small, 3))
	ctx := context.Background()

	require.True(t, m.eng.PlayerPlay(ctx, m.player.Pools.Hand()[0].InstanceID, "").Accepted)
	require.True(t, m.eng.EndPlayerTurn(ctx))
	assert.Equal(t, StateEnemyTurn, m.eng.State())
	assert.False(t, m.eng.EndPlayerTurn(ctx))

	require.True(t, m.eng.AdvanceEnemy(ctx))
	assert.Same(t, m.enemies[0], m.eng.ActiveEnemy(), "still behind the player on the clock")
	assert.Equal(t, m.enemies[0].ID, m.eng.Snapshot().ActiveEnemy)

	m.eng.RunEnemyTurn(ctx)
	assert.Nil(t, m.eng.ActiveEnemy())

	en := m.enemies[0]
	assert.Equal(t, 4, en.TimeSpent)
	assert.Equal(t, 2, en.WorkDone)
	assert.Equal(t, 3, en.Energy)
	assert.Equal(t, 1, en.Pools.Sizes().Hand)
	assert.Equal(t, StatePlayerTurn, m.eng.State())
	assert.Equal(t, 1, m.eng.Turn())
	assert.False(t, m.eng.AdvanceEnemy(ctx))
}

func TestEnemiesActInQueueOrder(t *testing.T) {
	r := config.ExtendedRules()
	r.InitialHand = 2
	r.LunchTurn = 0
	task := card.Definition{ID: 12, Time: 3, Energy: 1, Work: 1}
	m := newMatch(t, r, nil, copies(task, 1), copies(task, 2), copies(task, 2))
	ctx := context.Background()

	require.True(t, m.eng.PlayerPlay(ctx, m.player.Pools.Hand()[0].InstanceID, "").Accepted)
	require.True(t, m.eng.EndPlayerTurn(ctx))

	require.True(t, m.eng.AdvanceEnemy(ctx))
	assert.Equal(t, 3, m.enemies[0].TimeSpent)
	assert.Equal(t, 0, m.enemies[1].TimeSpent)

	m.eng.RunEnemyTurn(ctx)
	assert.Equal(t, 3, m.enemies[1].TimeSpent)
	assert.Equal(t, StatePlayerTurn, m.eng.State())

	var order []string
	for _, ev := range m.log.GetByType(events.EventTypeCardPlayed) {
		order = append(order, ev.ActorID)
	}
	assert.Equal(t, []string{"player", "enemy-a", "enemy-b"}, order)
}

func TestRoundOverIsIdempotent(t *testing.T) {
	shift := card.Definition{ID: 13, Name: "Double Shift", Time: 12, Energy: 0, Work: 10}
	slack := card.Definition{ID: 14, Name: "Slow Shift", Time: 12, Energy: 0, Work: 7}
	m := newMatch(t, rulesWithHand(1), nil, copies(shift, 1), copies(slack, 1))
	ctx := context.Background()

	require.True(t, m.eng.PlayerPlay(ctx, m.player.Pools.Hand()[0].InstanceID, "").Accepted)
	assert.Equal(t, StatePlayerTurn, m.eng.State(), "the enemy still has time")

	require.True(t, m.eng.EndPlayerTurn(ctx))
	m.eng.RunEnemyTurn(ctx)

	require.Equal(t, StateRoundOver, m.eng.State())
	res := m.eng.Result()
	require.NotNil(t, res)
	assert.Equal(t, rules.OutcomePlayerWin, res.Outcome)
	assert.Equal(t, ReasonTimeUp, res.Reason)
	assert.Equal(t, "player", res.WinnerID)
	assert.Equal(t, 0, m.player.TimeSpent)
	assert.Equal(t, 0, m.enemies[0].TimeSpent)

	m.player.TimeSpent = 3
	m.eng.EndRound(ctx)
	assert.True(t, m.eng.Tick(ctx))
	assert.Equal(t, 3, m.player.TimeSpent, "a second entry must not reset again")
	assert.Len(t, m.eng.History(), 1)
	assert.Len(t, m.log.GetByType(events.EventTypeRoundOver), 1)
	assert.Equal(t, int64(1), m.metrics.RoundsFinished)

	late := m.eng.PlayCard(ctx, card.NewInstance(&shift), m.player, nil)
	assert.Equal(t, rules.RejectRoundOver, late.Reason)
}

func TestStalemateClosesRound(t *testing.T) {
	huge := card.Definition{ID: 15, Time: 20, Energy: 0, Work: 5}
	m := newMatch(t, rulesWithHand(1), nil, copies(huge, 1), copies(huge, 1))
	ctx := context.Background()

	require.True(t, m.eng.EndPlayerTurn(ctx))
	m.eng.RunEnemyTurn(ctx)

	require.Equal(t, StateRoundOver, m.eng.State())
	assert.Equal(t, ReasonStalemate, m.eng.Result().Reason)
	assert.Equal(t, rules.OutcomeDraw, m.eng.Result().Outcome)
	assert.Equal(t, int64(1), m.metrics.EnemyForfeits)
}

func TestCustomHookEndsDay(t *testing.T) {
	task := card.Definition{ID: 16, Time: 1, Energy: 0, Work: 1}
	hook := TurnHookFunc(func(turn int) Directive {
		if turn == 1 {
			return EndDay
		}
		return Continue
	})
	m := newMatch(t, rulesWithHand(2), hook, copies(task, 2), copies(task, 2))
	ctx := context.Background()

	require.True(t, m.eng.PlayerPlay(ctx, m.player.Pools.Hand()[0].InstanceID, "").Accepted)
	require.True(t, m.eng.EndPlayerTurn(ctx))
	m.eng.RunEnemyTurn(ctx)

	require.Equal(t, StateRoundOver, m.eng.State())
	assert.Equal(t, ReasonEndOfDay, m.eng.Result().Reason)
	assert.Equal(t, rules.OutcomeDraw, m.eng.Result().Outcome)
}

func TestScriptedHook(t *testing.T) {
	h := HookFor(config.ExtendedRules())
	assert.Equal(t, LunchBreak, h.OnTurnCompleted(1))
	assert.Equal(t, Continue, h.OnTurnCompleted(2))
	assert.Equal(t, EndDay, h.OnTurnCompleted(8))

	simple := HookFor(config.SimpleRules())
	assert.Equal(t, Continue, simple.OnTurnCompleted(1))
	assert.Equal(t, Continue, simple.OnTurnCompleted(8))
}

func lunchMatch(t *testing.T, playerCards int) *match {
	r := config.ExtendedRules()
	r.InitialHand = 2
	r.EnemyCount = 1
	task := card.Definition{ID: 17, Time: 1, Energy: 2, Work: 1}
	chore := card.Definition{ID: 18, Time: 1, Energy: 1, Work: 1}
	m := newMatch(t, r, nil, copies(task, playerCards), copies(chore, 3))
	ctx := context.Background()

	require.True(t, m.eng.PlayerPlay(ctx, m.player.Pools.Hand()[0].InstanceID, "").Accepted)
	require.True(t, m.eng.EndPlayerTurn(ctx))
	m.eng.RunEnemyTurn(ctx)
	require.Equal(t, StateLunchBreak, m.eng.State())
	return m
}

func TestLunchBreak(t *testing.T) {
	ctx := context.Background()

	t.Run("catnip sandwich grants an extra turn", func(t *testing.T) {
		m := lunchMatch(t, 2)
		assert.Len(t, m.log.GetByType(events.EventTypeLunchBreak), 1)
		assert.Equal(t, 6, m.player.Energy)
		assert.Equal(t, 4, m.enemies[0].Energy)

		assert.False(t, m.eng.ChooseLunch(ctx, rules.LunchOption("Pizza")))
		assert.Equal(t, StateLunchBreak, m.eng.State())
		assert.False(t, m.eng.EndPlayerTurn(ctx))

		require.True(t, m.eng.ChooseLunch(ctx, rules.LunchCatnipSandwich))
		assert.Equal(t, StatePlayerTurn, m.eng.State())
		assert.Equal(t, 8, m.player.Energy)
		assert.Equal(t, 5, m.enemies[0].Energy)
		assert.True(t, m.eng.ExtraTurnPending())

		require.True(t, m.eng.EndPlayerTurn(ctx))
		assert.Equal(t, StatePlayerTurn, m.eng.State())
		assert.False(t, m.eng.ExtraTurnPending())

		require.True(t, m.eng.EndPlayerTurn(ctx))
		assert.Equal(t, StateEnemyTurn, m.eng.State())
		assert.False(t, m.eng.ChooseLunch(ctx, rules.LunchSardineSushi))
	})

	t.Run("tuna salad adds cards at the next turn start", func(t *testing.T) {
		m := lunchMatch(t, 8)
		handBefore := m.player.Pools.Sizes().Hand

		require.True(t, m.eng.ChooseLunch(ctx, rules.LunchTunaSalad))
		assert.Equal(t, handBefore+1+rules.LunchExtraCards, m.player.Pools.Sizes().Hand)
		chosen := m.log.GetByType(events.EventTypeLunchChosen)
		require.Len(t, chosen, 1)
		assert.Equal(t, "TunaSalad", chosen[0].Payload.(events.LunchPayload).Option)
	})

	t.Run("sardine sushi refills energy", func(t *testing.T) {
		m := lunchMatch(t, 2)
		require.True(t, m.eng.ChooseLunch(ctx, rules.LunchSardineSushi))
		assert.Equal(t, m.player.MaxEnergy, m.player.Energy)
		assert.Equal(t, int64(1), m.metrics.LunchBreaksHeld)
	})
}

func TestNextRound(t *testing.T) {
	shift := card.Definition{ID: 19, Time: 12, Energy: 2, Work: 5}
	m := newMatch(t, rulesWithHand(1), nil, copies(shift, 2), copies(shift, 2))
	ctx := context.Background()

	assert.False(t, m.eng.NextRound(ctx))
	require.True(t, m.eng.PlayerPlay(ctx, m.player.Pools.Hand()[0].InstanceID, "").Accepted)
	require.True(t, m.eng.EndPlayerTurn(ctx))
	m.eng.RunEnemyTurn(ctx)
	require.Equal(t, StateRoundOver, m.eng.State())
	assert.Equal(t, rules.OutcomeDraw, m.eng.Result().Outcome)

	require.True(t, m.eng.NextRound(ctx))
	assert.Equal(t, StatePlayerTurn, m.eng.State())
	assert.Equal(t, 1, m.eng.Round())
	assert.Equal(t, 0, m.eng.Turn())
	assert.Equal(t, m.player.MaxEnergy, m.player.Energy)
	assert.Equal(t, 5, m.player.WorkDone, "work carries over")
	assert.Equal(t, 1, m.player.Pools.Sizes().Hand)

	snap := m.eng.Snapshot()
	assert.Equal(t, StatePlayerTurn, snap.State)
	assert.Len(t, snap.Hand, 1)
	assert.True(t, snap.Hand[0].Playable)
	assert.Len(t, snap.RoundHistory, 1)
}
