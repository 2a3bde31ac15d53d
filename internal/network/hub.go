package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/overtimegame/server/internal/config"
	"github.com/overtimegame/server/internal/engine"
	"github.com/overtimegame/server/internal/events"
	"github.com/overtimegame/server/internal/platform/logger"
	"github.com/overtimegame/server/internal/platform/metrics"
	"github.com/overtimegame/server/internal/session"
)

// Message kinds sent to clients.
const (
	KindEvent    = "EVENT"
	KindSnapshot = "SNAPSHOT"
	KindResult   = "RESULT"
	KindError    = "ERROR"
)

// ServerMessage is the envelope of everything written to a client.
type ServerMessage struct {
	Kind     string             `json:"kind"`
	MatchID  string             `json:"match_id,omitempty"`
	Event    *events.GameEvent  `json:"event,omitempty"`
	Snapshot *engine.Snapshot   `json:"snapshot,omitempty"`
	Result   *engine.PlayResult `json:"result,omitempty"`
	OK       bool               `json:"ok,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// Hub maintains the set of active clients and broadcasts match events to
// the clients subscribed to that match.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan events.GameEvent
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
	sessions   *session.Manager
	tuning     config.Tuning
	logger     *logger.Logger
	metrics    *metrics.Collector
}

// NewHub initializes a new WebSocket Hub.
func NewHub(sessions *session.Manager, tuning config.Tuning, log *logger.Logger, m *metrics.Collector) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	if m == nil {
		m = metrics.Get()
	}
	return &Hub{
		broadcast:  make(chan events.GameEvent, tuning.BroadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		sessions:   sessions,
		tuning:     tuning,
		logger:     log,
		metrics:    m,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket hub shutting down")
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Info("WebSocket client connected", "match", client.MatchID())
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Info("WebSocket client disconnected", "match", client.MatchID())
			}
			h.mu.Unlock()
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

// drop removes a client. Callers hold mu.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	client.close()
	h.metrics.RecordWSConnection(-1)
}

func (h *Hub) deliver(event events.GameEvent) {
	payload, err := json.Marshal(ServerMessage{Kind: KindEvent, MatchID: event.MatchID, Event: &event})
	if err != nil {
		h.logger.Error("Failed to serialize event for broadcast", "error", err, "type", event.Type)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !client.Follows(event.MatchID) {
			continue
		}
		if !client.trySend(payload) {
			h.logger.Warn("Dropping slow WebSocket client", "match", client.MatchID())
			h.metrics.RecordWSError()
			h.drop(client)
			continue
		}
		h.metrics.RecordWSMessage(false)
	}
}

// BroadcastEvent queues an event for delivery to subscribed clients.
func (h *Hub) BroadcastEvent(ctx context.Context, event events.GameEvent) {
	select {
	case h.broadcast <- event:
	case <-ctx.Done():
	}
}

// ClientCount is the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// StartEventPoller spawns a goroutine that polls the EventLog and pushes new
// events to the Hub. Events already in the log when it starts are skipped.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog, interval time.Duration) {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		offset := eventLog.Len()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fresh := eventLog.Since(offset)
				offset += len(fresh)
				for _, event := range fresh {
					h.BroadcastEvent(ctx, event)
				}
			}
		}
	}()
}
