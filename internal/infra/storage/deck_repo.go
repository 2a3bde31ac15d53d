package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/overtimegame/server/internal/domain/deck"
)

// DefaultProfile is the profile id used when a caller does not name one.
const DefaultProfile = "default"

func profileOrDefault(profileID string) string {
	if profileID == "" {
		return DefaultProfile
	}
	return profileID
}

// SQLiteDeckRepository keeps decks in the player_decks table as flat JSON.
type SQLiteDeckRepository struct {
	db *sql.DB
}

func NewSQLiteDeckRepository(db *sql.DB) *SQLiteDeckRepository {
	return &SQLiteDeckRepository{db: db}
}

func (r *SQLiteDeckRepository) LoadPlayerDeck(ctx context.Context, profileID string) (deck.PlayerDeck, error) {
	profileID = profileOrDefault(profileID)
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM player_decks WHERE profile_id = ?`, profileID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return deck.PlayerDeck{}, fmt.Errorf("profile %s: %w", profileID, ErrDeckNotFound)
		}
		return deck.PlayerDeck{}, fmt.Errorf("failed to load deck: %w", err)
	}

	var d deck.PlayerDeck
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return deck.PlayerDeck{}, fmt.Errorf("failed to decode deck of %s: %w", profileID, err)
	}
	return d, nil
}

func (r *SQLiteDeckRepository) SavePlayerDeck(ctx context.Context, profileID string, d deck.PlayerDeck) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal deck: %w", err)
	}
	query := `
		INSERT INTO player_decks (profile_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(profile_id) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, profileOrDefault(profileID), string(data), time.Now().UnixNano()); err != nil {
		return fmt.Errorf("failed to save deck: %w", err)
	}
	return nil
}

// FileDeckRepository stores each profile's deck in its own flat JSON file.
// The default profile uses path as is; other profiles get the profile id
// inserted before the extension.
type FileDeckRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileDeckRepository(path string) *FileDeckRepository {
	return &FileDeckRepository{path: path}
}

func (r *FileDeckRepository) fileFor(profileID string) string {
	profileID = profileOrDefault(profileID)
	if profileID == DefaultProfile {
		return r.path
	}
	ext := filepath.Ext(r.path)
	return strings.TrimSuffix(r.path, ext) + "." + filepath.Base(profileID) + ext
}

func (r *FileDeckRepository) LoadPlayerDeck(_ context.Context, profileID string) (deck.PlayerDeck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.fileFor(profileID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return deck.PlayerDeck{}, fmt.Errorf("profile %s: %w", profileOrDefault(profileID), ErrDeckNotFound)
		}
		return deck.PlayerDeck{}, fmt.Errorf("failed to read deck file: %w", err)
	}

	var d deck.PlayerDeck
	if err := json.Unmarshal(data, &d); err != nil {
		return deck.PlayerDeck{}, fmt.Errorf("failed to decode deck file: %w", err)
	}
	return d, nil
}

func (r *FileDeckRepository) SavePlayerDeck(_ context.Context, profileID string, d deck.PlayerDeck) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal deck: %w", err)
	}
	path := r.fileFor(profileID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create deck directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write deck file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace deck file: %w", err)
	}
	return nil
}
