// Package metrics provides observability for the game server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers gameplay and infrastructure counters.
type Collector struct {
	// Scheduler step metrics
	StepCount      int64
	StepLatencySum int64 // nanoseconds
	StepLatencyMax int64
	LastStepTime   time.Time

	// Rules metrics
	CardsPlayed     int64
	PlaysRejected   int64
	EnemyDecisions  int64
	EnemyForfeits   int64
	RoundsFinished  int64
	PlayerWins      int64
	EnemyWins       int64
	Draws           int64
	MatchesActive   int64
	LunchBreaksHeld int64

	// Event metrics
	EventsWritten    int64
	EventWriteLatSum int64
	EventWriteLatMax int64
	EventWriteErrors int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = NewCollector()

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{StartTime: time.Now()}
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

func storeMax(addr *int64, v int64) {
	for {
		cur := atomic.LoadInt64(addr)
		if v <= cur || atomic.CompareAndSwapInt64(addr, cur, v) {
			return
		}
	}
}

// RecordStep records one scheduler step.
func (c *Collector) RecordStep(latency time.Duration) {
	atomic.AddInt64(&c.StepCount, 1)
	atomic.AddInt64(&c.StepLatencySum, int64(latency))
	storeMax(&c.StepLatencyMax, int64(latency))

	c.mu.Lock()
	c.LastStepTime = time.Now()
	c.mu.Unlock()
}

// RecordPlay records an accepted or rejected card play.
func (c *Collector) RecordPlay(accepted bool) {
	if accepted {
		atomic.AddInt64(&c.CardsPlayed, 1)
	} else {
		atomic.AddInt64(&c.PlaysRejected, 1)
	}
}

// RecordEnemyDecision records one policy call. A nil selection counts as a forfeit.
func (c *Collector) RecordEnemyDecision(selected bool) {
	atomic.AddInt64(&c.EnemyDecisions, 1)
	if !selected {
		atomic.AddInt64(&c.EnemyForfeits, 1)
	}
}

// RecordRound records a finished round by outcome name.
func (c *Collector) RecordRound(outcome string) {
	atomic.AddInt64(&c.RoundsFinished, 1)
	switch outcome {
	case "PLAYER_WIN":
		atomic.AddInt64(&c.PlayerWins, 1)
	case "ENEMY_WIN":
		atomic.AddInt64(&c.EnemyWins, 1)
	default:
		atomic.AddInt64(&c.Draws, 1)
	}
}

// RecordLunchBreak records a lunch break.
func (c *Collector) RecordLunchBreak() {
	atomic.AddInt64(&c.LunchBreaksHeld, 1)
}

// RecordMatch records matches opening (+1) and closing (-1).
func (c *Collector) RecordMatch(delta int64) {
	atomic.AddInt64(&c.MatchesActive, delta)
}

// RecordEventWrite records an event write to the database.
func (c *Collector) RecordEventWrite(latency time.Duration, err error) {
	atomic.AddInt64(&c.EventsWritten, 1)
	atomic.AddInt64(&c.EventWriteLatSum, int64(latency))
	storeMax(&c.EventWriteLatMax, int64(latency))

	if err != nil {
		atomic.AddInt64(&c.EventWriteErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	lastStep := c.LastStepTime
	c.mu.RUnlock()

	steps := atomic.LoadInt64(&c.StepCount)
	eventsWritten := atomic.LoadInt64(&c.EventsWritten)

	var stepAvg, eventAvg float64
	if steps > 0 {
		stepAvg = float64(atomic.LoadInt64(&c.StepLatencySum)) / float64(steps) / 1e6 // ms
	}
	if eventsWritten > 0 {
		eventAvg = float64(atomic.LoadInt64(&c.EventWriteLatSum)) / float64(eventsWritten) / 1e6
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"scheduler": map[string]interface{}{
			"steps":          steps,
			"avg_latency_ms": stepAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.StepLatencyMax)) / 1e6,
			"last_step":      lastStep.Format(time.RFC3339),
		},

		"rules": map[string]interface{}{
			"cards_played":    atomic.LoadInt64(&c.CardsPlayed),
			"plays_rejected":  atomic.LoadInt64(&c.PlaysRejected),
			"enemy_decisions": atomic.LoadInt64(&c.EnemyDecisions),
			"enemy_forfeits":  atomic.LoadInt64(&c.EnemyForfeits),
			"rounds_finished": atomic.LoadInt64(&c.RoundsFinished),
			"player_wins":     atomic.LoadInt64(&c.PlayerWins),
			"enemy_wins":      atomic.LoadInt64(&c.EnemyWins),
			"draws":           atomic.LoadInt64(&c.Draws),
			"lunch_breaks":    atomic.LoadInt64(&c.LunchBreaksHeld),
			"matches_active":  atomic.LoadInt64(&c.MatchesActive),
		},

		"events": map[string]interface{}{
			"written":          eventsWritten,
			"avg_write_lat_ms": eventAvg,
			"max_write_lat_ms": float64(atomic.LoadInt64(&c.EventWriteLatMax)) / 1e6,
			"errors":           atomic.LoadInt64(&c.EventWriteErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		_ = json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus text format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		counter := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP overtime_%s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE overtime_%s counter\n", name)
			fmt.Fprintf(w, "overtime_%s %d\n\n", name, v)
		}
		gauge := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP overtime_%s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE overtime_%s gauge\n", name)
			fmt.Fprintf(w, "overtime_%s %d\n\n", name, v)
		}

		counter("scheduler_steps", "Total scheduler steps", atomic.LoadInt64(&c.StepCount))
		fmt.Fprintf(w, "# HELP overtime_scheduler_step_latency_max_ms Maximum step latency\n")
		fmt.Fprintf(w, "# TYPE overtime_scheduler_step_latency_max_ms gauge\n")
		fmt.Fprintf(w, "overtime_scheduler_step_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.StepLatencyMax))/1e6)

		counter("cards_played", "Accepted card plays", atomic.LoadInt64(&c.CardsPlayed))
		counter("plays_rejected", "Rejected card plays", atomic.LoadInt64(&c.PlaysRejected))
		counter("enemy_decisions", "Enemy policy calls", atomic.LoadInt64(&c.EnemyDecisions))
		counter("enemy_forfeits", "Enemy policy calls with no selection", atomic.LoadInt64(&c.EnemyForfeits))

		fmt.Fprintf(w, "# HELP overtime_rounds_total Finished rounds by outcome\n")
		fmt.Fprintf(w, "# TYPE overtime_rounds_total counter\n")
		fmt.Fprintf(w, "overtime_rounds_total{outcome=\"player_win\"} %d\n", atomic.LoadInt64(&c.PlayerWins))
		fmt.Fprintf(w, "overtime_rounds_total{outcome=\"enemy_win\"} %d\n", atomic.LoadInt64(&c.EnemyWins))
		fmt.Fprintf(w, "overtime_rounds_total{outcome=\"draw\"} %d\n\n", atomic.LoadInt64(&c.Draws))

		gauge("matches_active", "Open matches", atomic.LoadInt64(&c.MatchesActive))
		counter("events_written", "Total events written", atomic.LoadInt64(&c.EventsWritten))
		counter("event_write_errors", "Total event write errors", atomic.LoadInt64(&c.EventWriteErrors))
		gauge("ws_connections", "Active WebSocket connections", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP overtime_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE overtime_ws_messages_total counter\n")
		fmt.Fprintf(w, "overtime_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "overtime_ws_messages_total{direction=\"out\"} %d\n", atomic.LoadInt64(&c.WSMessagesOut))
	}
}
