package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/looplab/fsm"

	"github.com/overtimegame/server/internal/config"
	"github.com/overtimegame/server/internal/domain/card"
	"github.com/overtimegame/server/internal/domain/entity"
	"github.com/overtimegame/server/internal/domain/rules"
	"github.com/overtimegame/server/internal/events"
	"github.com/overtimegame/server/internal/platform/logger"
	"github.com/overtimegame/server/internal/platform/metrics"
)

// ErrWrongState is returned when an operation is not allowed in the current turn state.
var ErrWrongState = errors.New("wrong turn state")

// maxEnemyPlays bounds one enemy's decision loop inside a single enemy turn.
const maxEnemyPlays = 32

// Options configures a new Engine.
type Options struct {
	MatchID string
	Rules   config.Rules
	Hook    TurnHook           // nil uses HookFor(Rules)
	Metrics *metrics.Collector // nil uses the global collector
}

// Engine runs one match: the turn machine, card resolution and the enemy loop.
// It is not safe for concurrent use; callers serialise access.
type Engine struct {
	matchID  string
	rules    config.Rules
	machine  *fsm.FSM
	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector
	hook     TurnHook

	player  *entity.Entity
	enemies []*entity.Entity

	// Enemy turn bookkeeping
	queue      []*entity.Entity
	active     *entity.Entity
	enemyPlays int

	turn           int
	round          int
	extraTurn      bool
	extraCards     int
	playsThisCycle int
	result         *RoundResult
	history        []RoundResult
}

// NewEngine wires a match. The player has no strategy; every enemy needs one.
func NewEngine(opts Options, player *entity.Entity, enemies []*entity.Entity, eventLog *events.EventLog, log *logger.Logger) (*Engine, error) {
	if err := opts.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	if player == nil || !player.IsPlayer() {
		return nil, errors.New("failed to create engine: a player entity is required")
	}
	if len(enemies) == 0 {
		return nil, errors.New("failed to create engine: at least one enemy is required")
	}
	for _, en := range enemies {
		if en.Kind != entity.KindEnemy {
			return nil, fmt.Errorf("failed to create engine: %s is not an enemy", en.ID)
		}
	}
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Get()
	}
	if opts.Hook == nil {
		opts.Hook = HookFor(opts.Rules)
	}

	e := &Engine{
		matchID:  opts.MatchID,
		rules:    opts.Rules,
		eventLog: eventLog,
		logger:   log.With("match", opts.MatchID),
		metrics:  opts.Metrics,
		hook:     opts.Hook,
		player:   player,
		enemies:  enemies,
	}
	e.machine = newTurnMachine(e.onEnter)
	return e, nil
}

// Start deals the opening hands and hands the turn to the player.
func (e *Engine) Start(ctx context.Context) error {
	if e.State() != StateStarting {
		return fmt.Errorf("failed to start match: %w", ErrWrongState)
	}
	e.logger.Info("Match starting", "profile", e.rules.Profile, "enemies", len(e.enemies))
	e.deal()
	if err := e.fire(ctx, evDeal); err != nil {
		return err
	}
	e.beginCycle()
	e.Tick(ctx)
	return nil
}

// deal tops every hand up to the opening size, fewer if the pools run dry.
func (e *Engine) deal() {
	for _, ent := range e.entities() {
		missing := e.rules.InitialHand - ent.Pools.Sizes().Hand
		if missing > 0 {
			e.draw(ent, missing)
		}
	}
}

// draw pulls up to n cards for ent and reports each one.
func (e *Engine) draw(ent *entity.Entity, n int) int {
	drawn := 0
	for i := 0; i < n; i++ {
		before := ent.Pools.Sizes()
		c := ent.Pools.Draw()
		if c == nil {
			break
		}
		if before.Deck == 0 && before.Discard > 0 {
			e.emit(events.EventTypeDeckShuffled, ent.ID, "", events.ShufflePayload{Returned: before.Discard})
		}
		e.emit(events.EventTypeCardDrawn, ent.ID, "", events.CardMovePayload{
			InstanceID: c.InstanceID,
			CardID:     c.Def.ID,
			HandIndex:  c.HandIndex,
		})
		drawn++
	}
	return drawn
}

// onEnter runs on every machine transition.
func (e *Engine) onEnter(_ context.Context, from, to TurnState) {
	e.emit(events.EventTypeTurnChanged, events.ActorSystem, "", events.TurnChangedPayload{
		From: string(from),
		To:   string(to),
		Turn: e.turn,
	})
	e.logger.Event(string(events.EventTypeTurnChanged), events.ActorSystem, string(from)+" -> "+string(to)+" turn "+strconv.Itoa(e.turn))
}

// emit appends a presentation event stamped with the match position.
func (e *Engine) emit(t events.EventType, actorID, targetID string, payload interface{}) {
	if e.eventLog == nil {
		return
	}
	e.eventLog.Append(events.GameEvent{
		MatchID:  e.matchID,
		Type:     t,
		ActorID:  actorID,
		TargetID: targetID,
		Payload:  payload,
		Round:    e.round,
		Turn:     e.turn,
	})
}

func (e *Engine) entities() []*entity.Entity {
	all := make([]*entity.Entity, 0, len(e.enemies)+1)
	all = append(all, e.player)
	return append(all, e.enemies...)
}

// Entity finds a participant by id.
func (e *Engine) Entity(id string) *entity.Entity {
	for _, ent := range e.entities() {
		if ent.ID == id {
			return ent
		}
	}
	return nil
}

// MatchID returns the id stamped on every event of this match.
func (e *Engine) MatchID() string { return e.matchID }

// Rules returns the constants the match runs with.
func (e *Engine) Rules() config.Rules { return e.rules }

// Player returns the human side.
func (e *Engine) Player() *entity.Entity { return e.player }

// Enemies returns the AI side in turn order.
func (e *Engine) Enemies() []*entity.Entity {
	out := make([]*entity.Entity, len(e.enemies))
	copy(out, e.enemies)
	return out
}

// Turn is the number of completed player/enemy cycles in this round.
func (e *Engine) Turn() int { return e.turn }

// Round is the zero-based round counter.
func (e *Engine) Round() int { return e.round }

// ActiveEnemy is the enemy currently running its decision loop, if any.
func (e *Engine) ActiveEnemy() *entity.Entity { return e.active }

// ExtraTurnPending reports whether the player will keep the next turn.
func (e *Engine) ExtraTurnPending() bool { return e.extraTurn }

// HandCard is a presentation view of one card in the player's hand.
type HandCard struct {
	InstanceID  string             `json:"instance_id"`
	CardID      int                `json:"card_id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Cost        string             `json:"cost"`
	HandIndex   int                `json:"hand_index"`
	Playable    bool               `json:"playable"`
	Reason      rules.RejectReason `json:"reason,omitempty"`
}

// Snapshot is a read-only view of the whole match.
type Snapshot struct {
	MatchID      string            `json:"match_id"`
	State        TurnState         `json:"state"`
	Turn         int               `json:"turn"`
	Round        int               `json:"round"`
	MaxTime      int               `json:"max_time"`
	Player       entity.Snapshot   `json:"player"`
	Enemies      []entity.Snapshot `json:"enemies"`
	Hand         []HandCard        `json:"hand"`
	ActiveEnemy  string            `json:"active_enemy,omitempty"`
	ExtraTurn    bool              `json:"extra_turn"`
	LastResult   *RoundResult      `json:"last_result,omitempty"`
	RoundHistory []RoundResult     `json:"round_history,omitempty"`
}

// Snapshot copies the current match state.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		MatchID:   e.matchID,
		State:     e.State(),
		Turn:      e.turn,
		Round:     e.round,
		MaxTime:   e.rules.MaxTime,
		Player:    e.player.Snapshot(),
		ExtraTurn: e.extraTurn,
	}
	for _, en := range e.enemies {
		s.Enemies = append(s.Enemies, en.Snapshot())
	}
	for _, c := range e.player.Pools.Hand() {
		s.Hand = append(s.Hand, handCard(c, e.player, e.rules.MaxTime))
	}
	if active := e.ActiveEnemy(); active != nil {
		s.ActiveEnemy = active.ID
	}
	if e.result != nil {
		r := *e.result
		s.LastResult = &r
	}
	s.RoundHistory = append(s.RoundHistory, e.history...)
	return s
}

func handCard(c *card.Instance, owner *entity.Entity, maxTime int) HandCard {
	_, reason := rules.CheckPlay(c, owner, maxTime)
	return HandCard{
		InstanceID:  c.InstanceID,
		CardID:      c.Def.ID,
		Name:        c.Def.Name,
		Description: c.Def.Describe(),
		Cost:        c.Def.CostText(),
		HandIndex:   c.HandIndex,
		Playable:    reason == rules.RejectNone,
		Reason:      reason,
	}
}
