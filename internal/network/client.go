package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/overtimegame/server/internal/domain/rules"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Command types accepted from clients.
const (
	CmdSnapshot    = "SNAPSHOT"
	CmdPlayCard    = "PLAY_CARD"
	CmdEndTurn     = "END_TURN"
	CmdChooseLunch = "CHOOSE_LUNCH"
	CmdNextRound   = "NEXT_ROUND"
)

var errRateLimited = errors.New("too many messages")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Command is an incoming message from a client.
type Command struct {
	Type       string `json:"type"`
	InstanceID string `json:"instance_id,omitempty"`
	TargetID   string `json:"target_id,omitempty"`
	Option     string `json:"option,omitempty"`
}

// Client is one WebSocket connection following a single match, or every
// match when matchID is empty.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	matchID string

	mu     sync.Mutex
	send   chan []byte
	closed bool

	windowStart time.Time
	windowCount int
}

// NewClient creates a new WebSocket client.
func NewClient(hub *Hub, conn *websocket.Conn, matchID string) *Client {
	size := hub.tuning.ClientSendBuffer
	if size <= 0 {
		size = 16
	}
	return &Client{
		hub:     hub,
		conn:    conn,
		matchID: matchID,
		send:    make(chan []byte, size),
	}
}

// ServeWS upgrades the request and starts the client pumps. The match_id
// query parameter selects the match to follow.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	matchID := r.URL.Query().Get("match_id")
	if matchID != "" {
		if _, err := h.sessions.Get(matchID); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		h.metrics.RecordWSError()
		return
	}
	client := NewClient(h, conn, matchID)
	client.Register()
	go client.WritePump()
	go client.ReadPump(context.Background())
}

// MatchID returns the followed match, empty for all matches.
func (c *Client) MatchID() string { return c.matchID }

// Follows reports whether events of matchID go to this client.
func (c *Client) Follows(matchID string) bool {
	return c.matchID == "" || c.matchID == matchID
}

// Register adds the client to the hub.
func (c *Client) Register() {
	c.hub.register <- c
}

func (c *Client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// allow applies the per-second message limit.
func (c *Client) allow(now time.Time) bool {
	limit := c.hub.tuning.MaxMessagesPerSecond
	if limit <= 0 {
		return true
	}
	if now.Sub(c.windowStart) >= time.Second {
		c.windowStart = now
		c.windowCount = 0
	}
	c.windowCount++
	return c.windowCount <= limit
}

// ReadPump pumps commands from the websocket connection to the match.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket read failed", "error", err)
				c.hub.metrics.RecordWSError()
			}
			return
		}
		c.hub.metrics.RecordWSMessage(true)

		if !c.allow(time.Now()) {
			c.reply(ServerMessage{Kind: KindError, MatchID: c.matchID, Error: errRateLimited.Error()})
			continue
		}

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.reply(ServerMessage{Kind: KindError, MatchID: c.matchID, Error: "malformed command"})
			continue
		}
		c.reply(c.handle(ctx, cmd))
	}
}

// handle runs one command against the followed match.
func (c *Client) handle(ctx context.Context, cmd Command) ServerMessage {
	if c.matchID == "" {
		return ServerMessage{Kind: KindError, Error: "connection does not follow a match"}
	}
	s, err := c.hub.sessions.Get(c.matchID)
	if err != nil {
		return ServerMessage{Kind: KindError, MatchID: c.matchID, Error: err.Error()}
	}

	msg := ServerMessage{Kind: KindResult, MatchID: c.matchID}
	switch cmd.Type {
	case CmdSnapshot:
		msg.Kind = KindSnapshot
		msg.OK = true
	case CmdPlayCard:
		res := s.Play(ctx, cmd.InstanceID, cmd.TargetID)
		msg.Result = &res
		msg.OK = res.Accepted
	case CmdEndTurn:
		msg.OK = s.EndTurn(ctx)
	case CmdChooseLunch:
		msg.OK = s.ChooseLunch(ctx, rules.LunchOption(cmd.Option))
	case CmdNextRound:
		msg.OK = s.NextRound(ctx)
	default:
		c.hub.logger.Warn("Unknown command type", "type", cmd.Type)
		return ServerMessage{Kind: KindError, MatchID: c.matchID, Error: "unknown command " + cmd.Type}
	}
	snap := s.Snapshot()
	msg.Snapshot = &snap
	return msg
}

func (c *Client) reply(msg ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("Failed to serialize reply", "error", err)
		return
	}
	if c.trySend(payload) {
		c.hub.metrics.RecordWSMessage(false)
	}
}

// WritePump pumps messages from the hub to the websocket connection, one
// JSON message per frame.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.metrics.RecordWSError()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
