// Package storage - reconstructor.go
// Rebuilds match summaries and replays from the persisted event log.
package storage

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/overtimegame/server/internal/events"
)

// Reconstructor rebuilds match state from the event log.
// This is used for:
// 1. The replay endpoint
// 2. Match summaries after a restart
type Reconstructor struct {
	eventRepo EventRepository
}

// NewReconstructor creates a new state reconstructor.
func NewReconstructor(eventRepo EventRepository) *Reconstructor {
	return &Reconstructor{eventRepo: eventRepo}
}

// RoundSummary is one finished round.
type RoundSummary struct {
	Round      int            `json:"round"`
	Outcome    string         `json:"outcome"`
	PlayerWork int            `json:"player_work"`
	EnemyWork  int            `json:"enemy_work"`
	WorkByID   map[string]int `json:"work_by_id"`
	Turns      int            `json:"turns"`
}

// MatchSummary is the aggregate view rebuilt from a match's events.
type MatchSummary struct {
	MatchID      string         `json:"match_id"`
	Events       int            `json:"events"`
	CardsPlayed  map[string]int `json:"cards_played"` // by actor
	Rejections   int            `json:"rejections"`
	PaperPiles   int            `json:"paper_piles"`
	LunchChoices []string       `json:"lunch_choices,omitempty"`
	Rounds       []RoundSummary `json:"rounds"`
}

// ReplayLine is a simplified event for the replay screen.
type ReplayLine struct {
	Timestamp string `json:"timestamp"`
	Round     int    `json:"round"`
	Turn      int    `json:"turn"`
	EventType string `json:"event_type"`
	ActorID   string `json:"actor_id"`
	Summary   string `json:"summary"` // Human-readable description
}

// DecodePayload decodes a stored payload map into one of the typed payloads
// of the events package.
func DecodePayload(payload map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create payload decoder: %w", err)
	}
	if err := dec.Decode(payload); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}

// Summarize rebuilds the summary of a match.
func (r *Reconstructor) Summarize(ctx context.Context, matchID string) (*MatchSummary, error) {
	stored, err := r.eventRepo.GetByMatchID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for match: %w", err)
	}

	sum := &MatchSummary{
		MatchID:     matchID,
		Events:      len(stored),
		CardsPlayed: make(map[string]int),
	}

	for _, e := range stored {
		switch events.EventType(e.EventType) {
		case events.EventTypeCardPlayed:
			sum.CardsPlayed[e.ActorID]++
		case events.EventTypeCardRejected:
			sum.Rejections++
		case events.EventTypePaperPileSpawn:
			var p events.PaperPilePayload
			if err := DecodePayload(e.Payload, &p); err != nil {
				return nil, fmt.Errorf("event %s: %w", e.ID, err)
			}
			sum.PaperPiles += p.Count
		case events.EventTypeLunchChosen:
			var p events.LunchPayload
			if err := DecodePayload(e.Payload, &p); err != nil {
				return nil, fmt.Errorf("event %s: %w", e.ID, err)
			}
			sum.LunchChoices = append(sum.LunchChoices, p.Option)
		case events.EventTypeRoundOver:
			var p events.RoundOverPayload
			if err := DecodePayload(e.Payload, &p); err != nil {
				return nil, fmt.Errorf("event %s: %w", e.ID, err)
			}
			sum.Rounds = append(sum.Rounds, RoundSummary{
				Round:      e.Round,
				Outcome:    p.Outcome,
				PlayerWork: p.PlayerWork,
				EnemyWork:  p.EnemyWork,
				WorkByID:   p.WorkByID,
				Turns:      p.Turns,
			})
		}
	}

	return sum, nil
}

// Replay returns the readable event stream of a match.
func (r *Reconstructor) Replay(ctx context.Context, matchID string) ([]ReplayLine, error) {
	stored, err := r.eventRepo.GetByMatchID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for match: %w", err)
	}

	lines := make([]ReplayLine, 0, len(stored))
	for _, e := range stored {
		lines = append(lines, ReplayLine{
			Timestamp: e.Timestamp.Format("15:04:05.000"),
			Round:     e.Round,
			Turn:      e.Turn,
			EventType: e.EventType,
			ActorID:   e.ActorID,
			Summary:   SummarizeEvent(e),
		})
	}
	return lines, nil
}

// SummarizeEvent creates a human-readable summary.
func SummarizeEvent(e StoredEvent) string {
	switch events.EventType(e.EventType) {
	case events.EventTypeTurnChanged:
		var p events.TurnChangedPayload
		if DecodePayload(e.Payload, &p) == nil {
			return fmt.Sprintf("%s -> %s", p.From, p.To)
		}
	case events.EventTypeCardPlayed:
		var p events.CardPlayedPayload
		if DecodePayload(e.Payload, &p) == nil {
			return fmt.Sprintf("%s played %s (%dh, %d energy, %d work)", e.ActorID, p.CardName, p.TimeCost, p.EnergyCost, p.Work)
		}
	case events.EventTypeCardRejected:
		var p events.CardPlayedPayload
		if DecodePayload(e.Payload, &p) == nil {
			return fmt.Sprintf("%s could not play %s: %s", e.ActorID, p.CardName, p.Reason)
		}
	case events.EventTypeRoundOver:
		var p events.RoundOverPayload
		if DecodePayload(e.Payload, &p) == nil {
			return fmt.Sprintf("Round over: %s (%d vs %d)", p.Outcome, p.PlayerWork, p.EnemyWork)
		}
	case events.EventTypeLunchBreak:
		return "Lunch break."
	case events.EventTypeLunchChosen:
		var p events.LunchPayload
		if DecodePayload(e.Payload, &p) == nil {
			return "Lunch: " + p.Option
		}
	}
	return e.EventType
}
