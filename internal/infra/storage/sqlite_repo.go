package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const eventColumns = `id, match_id, ts, event_type, actor_id, target_id, payload, round, turn`

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event StoredEvent) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.MatchID, event.Timestamp.UnixNano(), event.EventType, event.ActorID,
		event.TargetID, string(payloadBytes), event.Round, event.Turn,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) getMany(ctx context.Context, where string, args ...interface{}) ([]StoredEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE ` + where + ` ORDER BY seq ASC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var e StoredEvent
		var payloadStr string
		var ts int64
		err := rows.Scan(
			&e.ID, &e.MatchID, &ts, &e.EventType, &e.ActorID,
			&e.TargetID, &payloadStr, &e.Round, &e.Turn,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Timestamp = time.Unix(0, ts)
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload of %s: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLiteEventRepository) GetByMatchID(ctx context.Context, matchID string) ([]StoredEvent, error) {
	return r.getMany(ctx, `match_id = ?`, matchID)
}

func (r *SQLiteEventRepository) GetByActorID(ctx context.Context, matchID, actorID string) ([]StoredEvent, error) {
	return r.getMany(ctx, `match_id = ? AND actor_id = ?`, matchID, actorID)
}

func (r *SQLiteEventRepository) GetByRound(ctx context.Context, matchID string, round int) ([]StoredEvent, error) {
	return r.getMany(ctx, `match_id = ? AND round = ?`, matchID, round)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, matchID string, eventType string) ([]StoredEvent, error) {
	return r.getMany(ctx, `match_id = ? AND event_type = ?`, matchID, eventType)
}

// ---------------------------------------------------------
// SQLiteMatchRepository
// ---------------------------------------------------------

type SQLiteMatchRepository struct {
	db *sql.DB
}

func NewSQLiteMatchRepository(db *sql.DB) *SQLiteMatchRepository {
	return &SQLiteMatchRepository{db: db}
}

func (r *SQLiteMatchRepository) Upsert(ctx context.Context, rec MatchRecord) error {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	query := `
		INSERT INTO matches (match_id, profile, player_id, state, round, turn, last_outcome, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(match_id) DO UPDATE SET
			state=excluded.state,
			round=excluded.round,
			turn=excluded.turn,
			last_outcome=excluded.last_outcome,
			updated_at=excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.MatchID, rec.Profile, rec.PlayerID, rec.State, rec.Round, rec.Turn,
		rec.LastOutcome, rec.CreatedAt.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert match: %w", err)
	}
	return nil
}

func scanMatch(row interface{ Scan(...interface{}) error }) (*MatchRecord, error) {
	var m MatchRecord
	var created, updated int64
	if err := row.Scan(&m.MatchID, &m.Profile, &m.PlayerID, &m.State, &m.Round, &m.Turn, &m.LastOutcome, &created, &updated); err != nil {
		return nil, err
	}
	m.CreatedAt = time.Unix(0, created)
	m.UpdatedAt = time.Unix(0, updated)
	return &m, nil
}

const matchColumns = `match_id, profile, player_id, state, round, turn, last_outcome, created_at, updated_at`

func (r *SQLiteMatchRepository) Get(ctx context.Context, matchID string) (*MatchRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE match_id = ?`, matchID)
	m, err := scanMatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("match %s: %w", matchID, ErrMatchNotFound)
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

func (r *SQLiteMatchRepository) List(ctx context.Context, limit int) ([]MatchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+matchColumns+` FROM matches ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var out []MatchRecord
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}
