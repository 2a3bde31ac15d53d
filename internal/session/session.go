package session

import (
	"context"
	"sync"

	"github.com/overtimegame/server/internal/domain/rules"
	"github.com/overtimegame/server/internal/engine"
	"github.com/overtimegame/server/internal/infra/storage"
	"github.com/overtimegame/server/internal/platform/logger"
	"github.com/overtimegame/server/internal/scheduler"
)

// Session is one running match. Commands arrive from HTTP and WebSocket
// handlers concurrently, so every engine call happens under mu.
type Session struct {
	mu        sync.Mutex
	id        string
	profileID string
	seed      uint64
	engine    *engine.Engine
	sched     *scheduler.Scheduler
	deps      Deps
	logger    *logger.Logger
}

// ID returns the match id.
func (s *Session) ID() string { return s.id }

// ProfileID returns the profile whose deck the player uses.
func (s *Session) ProfileID() string { return s.profileID }

// Seed returns the seed of the match's random source.
func (s *Session) Seed() uint64 { return s.seed }

// EnemyTurnRunning reports whether paced enemy steps are still pending.
func (s *Session) EnemyTurnRunning() bool { return s.sched.Running() }

// Snapshot copies the match state.
func (s *Session) Snapshot() engine.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Snapshot()
}

// Play plays a card from the player's hand.
func (s *Session) Play(ctx context.Context, instanceID, targetID string) engine.PlayResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.engine.PlayerPlay(ctx, instanceID, targetID)
	s.syncLocked(ctx)
	return res
}

// EndTurn ends the player's turn and runs the enemy turn. With a step delay
// configured the enemy steps are paced by the scheduler and this returns
// immediately; otherwise the enemy turn completes before returning.
func (s *Session) EndTurn(ctx context.Context) bool {
	s.mu.Lock()
	if !s.engine.EndPlayerTurn(ctx) {
		s.mu.Unlock()
		return false
	}
	s.syncLocked(ctx)
	enemyTurn := s.engine.State() == engine.StateEnemyTurn
	s.mu.Unlock()

	if !enemyTurn {
		return true
	}

	if s.sched.Delay() <= 0 {
		s.sched.Run(ctx, s.enemyStep)
		return true
	}

	// The request context ends with the request; the paced run must outlive it.
	runCtx := context.WithoutCancel(ctx)
	if !s.sched.Go(runCtx, s.enemyStep, nil) {
		s.logger.Warn("Enemy turn already running")
	}
	return true
}

func (s *Session) enemyStep(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	more := s.engine.AdvanceEnemy(ctx)
	s.syncLocked(ctx)
	return more
}

// ChooseLunch applies a lunch perk.
func (s *Session) ChooseLunch(ctx context.Context, opt rules.LunchOption) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.engine.ChooseLunch(ctx, opt)
	s.syncLocked(ctx)
	return ok
}

// NextRound opens the next round after RoundOver.
func (s *Session) NextRound(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.engine.NextRound(ctx)
	s.syncLocked(ctx)
	return ok
}

// syncLocked writes the match record and the cached snapshot. Failures are
// logged; the engine stays the source of truth.
func (s *Session) syncLocked(ctx context.Context) {
	if s.deps.Matches == nil && s.deps.Cache == nil {
		return
	}
	snap := s.engine.Snapshot()

	if s.deps.Matches != nil {
		rec := storage.MatchRecord{
			MatchID:  s.id,
			Profile:  string(s.engine.Rules().Profile),
			PlayerID: PlayerID,
			State:    string(snap.State),
			Round:    snap.Round,
			Turn:     snap.Turn,
		}
		if snap.LastResult != nil {
			rec.LastOutcome = string(snap.LastResult.Outcome)
		}
		if err := s.deps.Matches.Upsert(ctx, rec); err != nil {
			s.logger.Warn("Failed to store match record", "error", err)
		}
	}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.SetSnapshot(ctx, snap); err != nil {
			s.logger.Warn("Failed to cache match snapshot", "error", err)
		}
	}
}
