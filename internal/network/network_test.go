package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overtimegame/server/internal/catalog"
	"github.com/overtimegame/server/internal/config"
	"github.com/overtimegame/server/internal/events"
	"github.com/overtimegame/server/internal/infra/storage"
	"github.com/overtimegame/server/internal/platform/metrics"
	"github.com/overtimegame/server/internal/session"
)

type fixture struct {
	log      *events.EventLog
	manager  *session.Manager
	hub      *Hub
	metrics  *metrics.Collector
	server   *httptest.Server
	matchID  string
	match    *session.Session
}

func newFixture(t *testing.T, tuning config.Tuning) *fixture {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)

	f := &fixture{log: events.NewEventLog(nil), metrics: metrics.NewCollector()}
	f.manager, err = session.NewManager(session.Deps{Catalog: cat, EventLog: f.log, Metrics: f.metrics, Seed: 5})
	require.NoError(t, err)

	s, err := f.manager.NewMatch(context.Background(), "", config.SimpleRules())
	require.NoError(t, err)
	f.match, f.matchID = s, s.ID()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	f.hub = NewHub(f.manager, tuning, nil, f.metrics)
	go f.hub.Run(ctx)
	f.hub.StartEventPoller(ctx, f.log, 5*time.Millisecond)

	f.server = httptest.NewServer(http.HandlerFunc(f.hub.ServeWS))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) dial(t *testing.T, matchID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?match_id=" + matchID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return f.hub.ClientCount() > 0 }, time.Second, 5*time.Millisecond)
	return conn
}

// next reads messages until one of the wanted kind arrives.
func next(t *testing.T, conn *websocket.Conn, kind string) ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg ServerMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Kind == kind {
			return msg
		}
	}
}

func TestCommandsRunAgainstTheMatch(t *testing.T) {
	f := newFixture(t, config.DefaultTuning())
	conn := f.dial(t, f.matchID)

	require.NoError(t, conn.WriteJSON(Command{Type: CmdSnapshot}))
	snap := next(t, conn, KindSnapshot)
	require.NotNil(t, snap.Snapshot)
	require.NotEmpty(t, snap.Snapshot.Hand)

	require.NoError(t, conn.WriteJSON(Command{Type: CmdPlayCard, InstanceID: snap.Snapshot.Hand[0].InstanceID}))
	res := next(t, conn, KindResult)
	require.NotNil(t, res.Result)
	assert.True(t, res.OK)
	assert.True(t, res.Result.Accepted)

	ev := next(t, conn, KindEvent)
	assert.Equal(t, f.matchID, ev.MatchID)
	assert.Positive(t, f.metrics.WSMessagesIn)

	require.NoError(t, conn.WriteJSON(Command{Type: "DANCE"}))
	bad := next(t, conn, KindError)
	assert.Contains(t, bad.Error, "DANCE")
}

func TestEventsOnlyReachFollowers(t *testing.T) {
	f := newFixture(t, config.DefaultTuning())
	conn := f.dial(t, "")

	other, err := f.manager.NewMatch(context.Background(), "", config.SimpleRules())
	require.NoError(t, err)
	other.Play(context.Background(), other.Snapshot().Hand[0].InstanceID, "")

	ev := next(t, conn, KindEvent)
	assert.Equal(t, other.ID(), ev.MatchID)

	// A connection without a match cannot send commands.
	require.NoError(t, conn.WriteJSON(Command{Type: CmdEndTurn}))
	assert.Equal(t, "connection does not follow a match", next(t, conn, KindError).Error)
}

func TestUnknownMatchIsRefused(t *testing.T) {
	f := newFixture(t, config.DefaultTuning())
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?match_id=nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	tuning := config.LowResourceTuning()
	tuning.MaxMessagesPerSecond = 1
	f := newFixture(t, tuning)
	conn := f.dial(t, f.matchID)

	require.NoError(t, conn.WriteJSON(Command{Type: CmdSnapshot}))
	require.NoError(t, conn.WriteJSON(Command{Type: CmdSnapshot}))
	next(t, conn, KindSnapshot)
	assert.Equal(t, errRateLimited.Error(), next(t, conn, KindError).Error)
}

func TestClientAllowWindow(t *testing.T) {
	c := &Client{hub: &Hub{tuning: config.Tuning{MaxMessagesPerSecond: 2}}}
	now := time.Now()
	assert.True(t, c.allow(now))
	assert.True(t, c.allow(now.Add(10*time.Millisecond)))
	assert.False(t, c.allow(now.Add(20*time.Millisecond)))
	assert.True(t, c.allow(now.Add(time.Second+20*time.Millisecond)))
}

func TestReplayHandler(t *testing.T) {
	f := newFixture(t, config.DefaultTuning())
	f.match.Play(context.Background(), f.match.Snapshot().Hand[0].InstanceID, "")

	db, err := storage.InitSQLite(filepath.Join(t.TempDir(), "replay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := storage.NewSQLiteEventRepository(db)
	for _, e := range f.log.GetByMatch(f.matchID) {
		stored, err := storage.ToStored(e)
		require.NoError(t, err)
		require.NoError(t, repo.Append(context.Background(), stored))
	}

	rh := NewReplayHandler(f.log, storage.NewReconstructor(repo), nil)
	mux := http.NewServeMux()
	rh.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/replay?match_id="+f.matchID+"&type=CARD_PLAYED", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ReplayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "memory", resp.Source)
	assert.Equal(t, "type=CARD_PLAYED", resp.FilteredBy)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, session.PlayerID, resp.Events[0].ActorID)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/replay/summary?match_id="+f.matchID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var sum storage.MatchSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 1, sum.CardsPlayed[session.PlayerID])

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/replay?match_id=unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/replay?match_id="+f.matchID+"&round=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
