// Package events provides the append-only log of everything that happens in a match.
// The presentation layer consumes it; storage persists it for replays.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a game event.
type EventType string

const (
	EventTypeTurnChanged    EventType = "TURN_CHANGED"
	EventTypeCardDrawn      EventType = "CARD_DRAWN"
	EventTypeCardPlayed     EventType = "CARD_PLAYED"
	EventTypeCardRejected   EventType = "CARD_REJECTED"
	EventTypeCardDiscarded  EventType = "CARD_DISCARDED"
	EventTypeDeckShuffled   EventType = "DECK_SHUFFLED"
	EventTypeEffectApplied  EventType = "EFFECT_APPLIED"
	EventTypePaperPileSpawn EventType = "PAPER_PILE_SPAWN"
	EventTypeLunchBreak     EventType = "LUNCH_BREAK"
	EventTypeLunchChosen    EventType = "LUNCH_CHOSEN"
	EventTypeRoundOver      EventType = "ROUND_OVER"
)

// ActorSystem is the actor id used for events not caused by an entity.
const ActorSystem = "SYSTEM"

// TurnChangedPayload is attached to TURN_CHANGED.
type TurnChangedPayload struct {
	From string `json:"from" mapstructure:"from"`
	To   string `json:"to" mapstructure:"to"`
	Turn int    `json:"turn" mapstructure:"turn"`
}

// CardPlayedPayload is attached to CARD_PLAYED and CARD_REJECTED.
type CardPlayedPayload struct {
	InstanceID string `json:"instance_id" mapstructure:"instance_id"`
	CardID     int    `json:"card_id" mapstructure:"card_id"`
	CardName   string `json:"card_name" mapstructure:"card_name"`
	EnergyCost int    `json:"energy_cost" mapstructure:"energy_cost"`
	TimeCost   int    `json:"time_cost" mapstructure:"time_cost"`
	Work       int    `json:"work" mapstructure:"work"`
	Debuff     int    `json:"debuff,omitempty" mapstructure:"debuff"`
	Reason     string `json:"reason,omitempty" mapstructure:"reason"`
}

// CardMovePayload is attached to CARD_DRAWN and CARD_DISCARDED.
type CardMovePayload struct {
	InstanceID string `json:"instance_id" mapstructure:"instance_id"`
	CardID     int    `json:"card_id" mapstructure:"card_id"`
	HandIndex  int    `json:"hand_index" mapstructure:"hand_index"`
}

// EffectPayload is attached to EFFECT_APPLIED.
type EffectPayload struct {
	Effect string `json:"effect" mapstructure:"effect"`
	Delta  int    `json:"delta" mapstructure:"delta"`
	Total  int    `json:"total" mapstructure:"total"`
}

// ShufflePayload is attached to DECK_SHUFFLED.
type ShufflePayload struct {
	Returned int `json:"returned" mapstructure:"returned"`
}

// PaperPilePayload tells the presentation layer how many piles to spawn.
type PaperPilePayload struct {
	Count int `json:"count" mapstructure:"count"`
}

// LunchPayload is attached to LUNCH_CHOSEN.
type LunchPayload struct {
	Option string `json:"option" mapstructure:"option"`
}

// RoundOverPayload is attached to ROUND_OVER.
type RoundOverPayload struct {
	Outcome    string         `json:"outcome" mapstructure:"outcome"`
	PlayerWork int            `json:"player_work" mapstructure:"player_work"`
	EnemyWork  int            `json:"enemy_work" mapstructure:"enemy_work"`
	WorkByID   map[string]int `json:"work_by_id" mapstructure:"work_by_id"`
	Turns      int            `json:"turns" mapstructure:"turns"`
}

// GameEvent represents an immutable record of an action in a match.
type GameEvent struct {
	ID        string      `json:"id"`
	MatchID   string      `json:"match_id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id"`
	TargetID  string      `json:"target_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Round     int         `json:"round"`
	Turn      int         `json:"turn"`
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// ErrorHandler receives persistence failures. Appends never fail for the caller.
type ErrorHandler func(event GameEvent, err error)

// EventLog is the in-memory append-only log of game events.
type EventLog struct {
	mu        sync.RWMutex
	events    []GameEvent
	persister EventPersister
	onError   ErrorHandler
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	return &EventLog{
		events:    make([]GameEvent, 0),
		persister: persister,
	}
}

// OnPersistError installs a handler for write-through failures.
func (el *EventLog) OnPersistError(h ErrorHandler) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.onError = h
}

// Append adds a new event to the log, filling ID and Timestamp when empty.
// The persister is called synchronously so stored order matches log order.
func (el *EventLog) Append(event GameEvent) GameEvent {
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	el.mu.Lock()
	el.events = append(el.events, event)
	persister, onError := el.persister, el.onError
	el.mu.Unlock()

	if persister != nil {
		if err := persister.Append(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
	return event
}

// GetByActor returns all events performed by a specific actor.
func (el *EventLog) GetByActor(actorID string) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.ActorID == actorID {
			result = append(result, e)
		}
	}
	return result
}

// GetByType returns all events of one type.
func (el *EventLog) GetByType(t EventType) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// GetByMatch returns all events of one match.
func (el *EventLog) GetByMatch(matchID string) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.MatchID == matchID {
			result = append(result, e)
		}
	}
	return result
}

// Since returns a copy of every event at index >= offset.
func (el *EventLog) Since(offset int) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	if offset >= len(el.events) {
		return nil
	}
	if offset < 0 {
		offset = 0
	}
	out := make([]GameEvent, len(el.events)-offset)
	copy(out, el.events[offset:])
	return out
}

// Len is the number of events in the log.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// Replay returns a copy of the full history.
func (el *EventLog) Replay() []GameEvent {
	return el.Since(0)
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
