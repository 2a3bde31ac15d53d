// Package simulation plays whole matches with a policy on both sides. It is
// used to balance card values and compare the two rule profiles.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/overtimegame/server/internal/catalog"
	"github.com/overtimegame/server/internal/config"
	"github.com/overtimegame/server/internal/domain/entity"
	"github.com/overtimegame/server/internal/domain/rules"
	"github.com/overtimegame/server/internal/engine"
	"github.com/overtimegame/server/internal/events"
	"github.com/overtimegame/server/internal/platform/logger"
	"github.com/overtimegame/server/internal/platform/metrics"
	"github.com/overtimegame/server/internal/platform/random"
	"github.com/overtimegame/server/internal/session"
)

// maxSteps bounds a single match. A match that needs more is reported as stuck.
const maxSteps = 100000

// ErrStuck is returned when a match does not finish within maxSteps.
var ErrStuck = errors.New("match did not finish")

var lunchMenu = []rules.LunchOption{
	rules.LunchSardineSushi,
	rules.LunchCatnipSandwich,
	rules.LunchTunaSalad,
}

// Config describes a batch of simulated matches.
type Config struct {
	Rules   config.Rules
	Matches int
	Rounds  int    // rounds per match, at least 1
	Seed    uint64 // zero picks a fresh base seed
	Workers int    // zero uses one per CPU
}

// MatchReport is the outcome of one simulated match.
type MatchReport struct {
	Seed        uint64               `json:"seed"`
	Rounds      []engine.RoundResult `json:"rounds"`
	CardsPlayed int                  `json:"cards_played"`
	Rejections  int                  `json:"rejections"`
	LunchBreaks int                  `json:"lunch_breaks"`
}

// Runner plays simulated matches.
type Runner struct {
	catalog *catalog.Catalog
	logger  *logger.Logger
	metrics *metrics.Collector
}

// NewRunner creates a runner. Matches are not logged individually; pass a
// development logger to see the engine's output.
func NewRunner(cat *catalog.Catalog, log *logger.Logger, m *metrics.Collector) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	if m == nil {
		m = metrics.NewCollector()
	}
	return &Runner{catalog: cat, logger: log, metrics: m}
}

// Metrics returns the collector the simulated engines report to.
func (r *Runner) Metrics() *metrics.Collector {
	return r.metrics
}

// PlayMatch plays one match of the given number of rounds. The player uses
// the same policy as the enemies.
func (r *Runner) PlayMatch(ctx context.Context, rl config.Rules, seed uint64, rounds int) (MatchReport, error) {
	if err := ctx.Err(); err != nil {
		return MatchReport{}, err
	}
	if rounds < 1 {
		rounds = 1
	}
	rng := random.New(seed)
	player, enemies, err := session.BuildSides(r.catalog, r.catalog.StarterDeck(), rl, rng)
	if err != nil {
		return MatchReport{}, err
	}
	playerPolicy := session.NewPolicy(rl, rng)

	log := events.NewEventLog(nil)
	eng, err := engine.NewEngine(engine.Options{
		MatchID: fmt.Sprintf("sim-%d", seed),
		Rules:   rl,
		Metrics: r.metrics,
	}, player, enemies, log, r.logger)
	if err != nil {
		return MatchReport{}, err
	}
	if err := eng.Start(ctx); err != nil {
		return MatchReport{}, err
	}

	finished := 0
	for steps := 0; ; steps++ {
		if err := ctx.Err(); err != nil {
			return MatchReport{}, err
		}
		if steps >= maxSteps {
			return MatchReport{}, fmt.Errorf("seed %d: %w", seed, ErrStuck)
		}

		switch eng.State() {
		case engine.StatePlayerTurn:
			c := playerPolicy.Choose(player, leader(enemies))
			if c != nil && eng.PlayCard(ctx, c, player, nil).Accepted {
				continue
			}
			eng.EndPlayerTurn(ctx)
		case engine.StateEnemyTurn:
			eng.RunEnemyTurn(ctx)
		case engine.StateLunchBreak:
			eng.ChooseLunch(ctx, lunchMenu[rng.IntN(len(lunchMenu))])
		case engine.StateRoundOver:
			finished++
			if finished >= rounds {
				return MatchReport{
					Seed:        seed,
					Rounds:      eng.History(),
					CardsPlayed: len(log.GetByType(events.EventTypeCardPlayed)),
					Rejections:  len(log.GetByType(events.EventTypeCardRejected)),
					LunchBreaks: len(log.GetByType(events.EventTypeLunchBreak)),
				}, nil
			}
			eng.NextRound(ctx)
		default:
			return MatchReport{}, fmt.Errorf("seed %d: unexpected state %s", seed, eng.State())
		}
	}
}

// leader is the enemy with the most work, the one the player has to beat.
func leader(enemies []*entity.Entity) *entity.Entity {
	best := enemies[0]
	for _, en := range enemies[1:] {
		if en.WorkDone > best.WorkDone {
			best = en
		}
	}
	return best
}

// Run plays cfg.Matches matches across a worker pool and aggregates them.
// Match i uses seed cfg.Seed+i, so a batch is reproducible.
func (r *Runner) Run(ctx context.Context, cfg Config) (Report, error) {
	if err := cfg.Rules.Validate(); err != nil {
		return Report{}, fmt.Errorf("failed to run simulation: %w", err)
	}
	if cfg.Matches <= 0 {
		return Report{}, errors.New("failed to run simulation: matches must be positive")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, cfg.Matches)
	base := cfg.Seed
	if base == 0 {
		base = random.NewSeed()
	}

	jobs := make(chan int)
	reports := make([]MatchReport, cfg.Matches)
	errs := make([]error, cfg.Matches)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				reports[i], errs[i] = r.PlayMatch(ctx, cfg.Rules, base+uint64(i), cfg.Rounds)
			}
		}()
	}
	for i := 0; i < cfg.Matches; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return Report{}, err
	}

	report := Aggregate(cfg.Rules.Profile, reports)
	r.logger.Info("Simulation finished",
		"profile", cfg.Rules.Profile,
		"matches", report.Matches,
		"rounds", report.Rounds,
		"player_win_rate", report.PlayerWinRate(),
	)
	return report, nil
}
