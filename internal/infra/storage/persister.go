package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/overtimegame/server/internal/events"
	"github.com/overtimegame/server/internal/platform/metrics"
)

// EventWriter adapts an EventRepository to events.EventPersister so the
// in-memory log writes through to the database.
type EventWriter struct {
	repo    EventRepository
	metrics *metrics.Collector
	timeout time.Duration
}

// NewEventWriter creates a write-through persister. A nil collector uses the global one.
func NewEventWriter(repo EventRepository, m *metrics.Collector) *EventWriter {
	if m == nil {
		m = metrics.Get()
	}
	return &EventWriter{repo: repo, metrics: m, timeout: 5 * time.Second}
}

// Append implements events.EventPersister.
func (w *EventWriter) Append(e events.GameEvent) error {
	stored, err := ToStored(e)
	if err != nil {
		w.metrics.RecordEventWrite(0, err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	start := time.Now()
	err = w.repo.Append(ctx, stored)
	w.metrics.RecordEventWrite(time.Since(start), err)
	return err
}

// ToStored flattens a domain event. Typed payloads become generic maps.
func ToStored(e events.GameEvent) (StoredEvent, error) {
	s := StoredEvent{
		ID:        e.ID,
		MatchID:   e.MatchID,
		Timestamp: e.Timestamp,
		EventType: string(e.Type),
		ActorID:   e.ActorID,
		TargetID:  e.TargetID,
		Round:     e.Round,
		Turn:      e.Turn,
	}
	if e.Payload == nil {
		return s, nil
	}
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return s, fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &s.Payload); err != nil {
		return s, fmt.Errorf("failed to flatten payload of %s: %w", e.Type, err)
	}
	return s, nil
}
