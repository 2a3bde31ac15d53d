package config

import (
	"os"
	"strconv"
	"time"

	"github.com/overtimegame/server/internal/ai"
)

// ApplyEnv overrides cfg with OVERTIME_* environment variables.
// Unset or unparsable variables leave the current value alone.
func ApplyEnv(cfg Server) Server {
	if v := os.Getenv("OVERTIME_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("OVERTIME_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("OVERTIME_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("OVERTIME_CATALOG"); v != "" {
		cfg.CatalogPath = v
	}
	if v := os.Getenv("OVERTIME_DECK_FILE"); v != "" {
		cfg.DeckFile = v
	}
	if v := os.Getenv("OVERTIME_ENEMY_STEP_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.EnemyStepDelay = d
		}
	}
	if v := os.Getenv("OVERTIME_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Seed = seed
		}
	}
	if os.Getenv("OVERTIME_DEV") == "true" {
		cfg.Development = true
		cfg.Tuning = LowResourceTuning()
	}

	// Support preset profiles
	if profile := os.Getenv("OVERTIME_PROFILE"); profile != "" {
		if r, err := RulesFor(ai.Profile(profile)); err == nil {
			cfg.Rules = r
		}
	}
	if val := getEnvInt("OVERTIME_MAX_TIME"); val > 0 {
		cfg.Rules.MaxTime = val
	}
	if val := getEnvInt("OVERTIME_ENEMY_COUNT"); val > 0 {
		cfg.Rules.EnemyCount = val
	}
	return cfg
}

func getEnvInt(key string) int {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	num, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return num
}
