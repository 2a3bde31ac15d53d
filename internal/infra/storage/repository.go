// Package storage provides the persistence layer for the game server.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/overtimegame/server/internal/domain/deck"
)

// ErrDeckNotFound is returned when no deck has been saved for a profile.
var ErrDeckNotFound = errors.New("player deck not found")

// ErrMatchNotFound is returned when a match record does not exist.
var ErrMatchNotFound = errors.New("match record not found")

// StoredEvent mirrors the domain event structure for persistence.
// Payloads are stored as JSON and come back as generic maps.
type StoredEvent struct {
	ID        string                 `json:"id" db:"id"`
	MatchID   string                 `json:"match_id" db:"match_id"`
	Timestamp time.Time              `json:"timestamp" db:"ts"`
	EventType string                 `json:"event_type" db:"event_type"`
	ActorID   string                 `json:"actor_id" db:"actor_id"`
	TargetID  string                 `json:"target_id" db:"target_id"`
	Payload   map[string]interface{} `json:"payload" db:"payload"`
	Round     int                    `json:"round" db:"round"`
	Turn      int                    `json:"turn" db:"turn"`
}

// EventRepository defines the interface for event persistence.
// The domain uses this interface; the implementation is in infra.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event StoredEvent) error

	// GetByMatchID retrieves all events of a match in append order (for replay).
	GetByMatchID(ctx context.Context, matchID string) ([]StoredEvent, error)

	// GetByActorID retrieves all events performed by an actor.
	GetByActorID(ctx context.Context, matchID, actorID string) ([]StoredEvent, error)

	// GetByRound retrieves all events of one round.
	GetByRound(ctx context.Context, matchID string, round int) ([]StoredEvent, error)

	// GetByEventType retrieves all events of a specific type.
	GetByEventType(ctx context.Context, matchID string, eventType string) ([]StoredEvent, error)
}

// MatchRecord is the last known position of a match, for listings.
type MatchRecord struct {
	MatchID     string    `json:"match_id" db:"match_id"`
	Profile     string    `json:"profile" db:"profile"`
	PlayerID    string    `json:"player_id" db:"player_id"`
	State       string    `json:"state" db:"state"`
	Round       int       `json:"round" db:"round"`
	Turn        int       `json:"turn" db:"turn"`
	LastOutcome string    `json:"last_outcome,omitempty" db:"last_outcome"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// MatchRepository stores match records.
type MatchRepository interface {
	Upsert(ctx context.Context, rec MatchRecord) error
	Get(ctx context.Context, matchID string) (*MatchRecord, error)
	List(ctx context.Context, limit int) ([]MatchRecord, error)
}

// DeckRepository loads and saves the persisted deck composition of a profile.
type DeckRepository interface {
	LoadPlayerDeck(ctx context.Context, profileID string) (deck.PlayerDeck, error)
	SavePlayerDeck(ctx context.Context, profileID string, d deck.PlayerDeck) error
}
