package simulation

import (
	"fmt"
	"io"
	"sort"

	"github.com/overtimegame/server/internal/ai"
	"github.com/overtimegame/server/internal/domain/rules"
	"github.com/overtimegame/server/internal/engine"
)

// Report aggregates a batch of matches.
type Report struct {
	Profile     ai.Profile                    `json:"profile"`
	Matches     int                           `json:"matches"`
	Rounds      int                           `json:"rounds"`
	PlayerWins  int                           `json:"player_wins"`
	EnemyWins   int                           `json:"enemy_wins"`
	Draws       int                           `json:"draws"`
	Reasons     map[engine.RoundEndReason]int `json:"reasons"`
	CardsPlayed int                           `json:"cards_played"`
	Rejections  int                           `json:"rejections"`
	LunchBreaks int                           `json:"lunch_breaks"`
	TotalTurns  int                           `json:"total_turns"`
	PlayerWork  int                           `json:"player_work"`
	EnemyWork   int                           `json:"enemy_work"`
}

// Aggregate folds match reports into a Report.
func Aggregate(profile ai.Profile, matches []MatchReport) Report {
	rep := Report{
		Profile: profile,
		Matches: len(matches),
		Reasons: make(map[engine.RoundEndReason]int),
	}
	for _, m := range matches {
		rep.CardsPlayed += m.CardsPlayed
		rep.Rejections += m.Rejections
		rep.LunchBreaks += m.LunchBreaks
		for _, rr := range m.Rounds {
			rep.Rounds++
			rep.Reasons[rr.Reason]++
			rep.TotalTurns += rr.Turns
			rep.PlayerWork += rr.PlayerWork
			rep.EnemyWork += rr.EnemyWork
			switch rr.Outcome {
			case rules.OutcomePlayerWin:
				rep.PlayerWins++
			case rules.OutcomeEnemyWin:
				rep.EnemyWins++
			default:
				rep.Draws++
			}
		}
	}
	return rep
}

func (r Report) rate(n int) float64 {
	if r.Rounds == 0 {
		return 0
	}
	return float64(n) / float64(r.Rounds)
}

// PlayerWinRate is the share of rounds the player won.
func (r Report) PlayerWinRate() float64 { return r.rate(r.PlayerWins) }

// EnemyWinRate is the share of rounds an enemy won.
func (r Report) EnemyWinRate() float64 { return r.rate(r.EnemyWins) }

// AvgTurns is the mean number of turns per round.
func (r Report) AvgTurns() float64 { return r.rate(r.TotalTurns) }

// Print writes a human-readable summary.
func (r Report) Print(w io.Writer) {
	fmt.Fprintf(w, "profile %s: %d matches, %d rounds\n", r.Profile, r.Matches, r.Rounds)
	fmt.Fprintf(w, "  player wins %d (%.1f%%), enemy wins %d (%.1f%%), draws %d\n",
		r.PlayerWins, 100*r.PlayerWinRate(), r.EnemyWins, 100*r.EnemyWinRate(), r.Draws)
	fmt.Fprintf(w, "  avg turns %.2f, avg player work %.2f, avg enemy work %.2f\n",
		r.AvgTurns(), r.rate(r.PlayerWork), r.rate(r.EnemyWork))
	fmt.Fprintf(w, "  cards played %d, rejected %d, lunch breaks %d\n", r.CardsPlayed, r.Rejections, r.LunchBreaks)

	reasons := make([]string, 0, len(r.Reasons))
	for reason := range r.Reasons {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(w, "  ended by %s: %d\n", reason, r.Reasons[engine.RoundEndReason(reason)])
	}
}
