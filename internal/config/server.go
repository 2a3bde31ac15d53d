package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Server is the full runtime configuration of the harness server.
type Server struct {
	Addr           string        `yaml:"addr"`
	DBPath         string        `yaml:"db_path"`
	RedisAddr      string        `yaml:"redis_addr"` // empty disables the snapshot cache
	CatalogPath    string        `yaml:"catalog_path"` // empty uses the built-in catalog
	DeckFile       string        `yaml:"deck_file"`
	EnemyStepDelay time.Duration `yaml:"enemy_step_delay"`
	Seed           uint64        `yaml:"seed"` // zero seeds from the runtime
	Development    bool          `yaml:"development"`
	Rules          Rules         `yaml:"rules"`
	Tuning         Tuning        `yaml:"tuning"`
}

// DefaultServer returns the configuration used when no file is given.
func DefaultServer() Server {
	return Server{
		Addr:           ":8080",
		DBPath:         "data/overtime.db",
		DeckFile:       "data/player_deck_data.json",
		EnemyStepDelay: 600 * time.Millisecond,
		Rules:          SimpleRules(),
		Tuning:         DefaultTuning(),
	}
}

// Load reads a YAML file over the defaults. A missing path returns the defaults.
func Load(path string) (Server, error) {
	cfg := DefaultServer()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg and validates the rules.
func Parse(data []byte, cfg *Server) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Rules.Validate(); err != nil {
		return fmt.Errorf("invalid rules: %w", err)
	}
	return nil
}
