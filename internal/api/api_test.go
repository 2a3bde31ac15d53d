package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overtimegame/server/internal/catalog"
	"github.com/overtimegame/server/internal/config"
	"github.com/overtimegame/server/internal/domain/deck"
	"github.com/overtimegame/server/internal/engine"
	"github.com/overtimegame/server/internal/events"
	"github.com/overtimegame/server/internal/infra/storage"
	"github.com/overtimegame/server/internal/network"
	"github.com/overtimegame/server/internal/platform/metrics"
	"github.com/overtimegame/server/internal/session"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cat, err := catalog.Default()
	require.NoError(t, err)
	log := events.NewEventLog(nil)
	m := metrics.NewCollector()
	sessions, err := session.NewManager(session.Deps{
		Catalog:  cat,
		EventLog: log,
		Decks:    storage.NewFileDeckRepository(filepath.Join(t.TempDir(), "decks.json")),
		Metrics:  m,
		Seed:     11,
	})
	require.NoError(t, err)
	return NewRouter(Deps{
		Sessions:    sessions,
		Catalog:     cat,
		Replay:      network.NewReplayHandler(log, nil, nil),
		Metrics:     m,
		Development: true,
	})
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type created struct {
	MatchID  string          `json:"match_id"`
	Snapshot engine.Snapshot `json:"snapshot"`
}

func createMatch(t *testing.T, r http.Handler, body interface{}) created {
	t.Helper()
	rec := do(t, r, http.MethodPost, "/api/matches", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out created
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestMatchLifecycle(t *testing.T) {
	r := newRouter(t)
	m := createMatch(t, r, nil)
	require.NotEmpty(t, m.MatchID)
	assert.Equal(t, engine.StatePlayerTurn, m.Snapshot.State)
	require.NotEmpty(t, m.Snapshot.Hand)

	rec := do(t, r, http.MethodGet, "/api/matches/"+m.MatchID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/matches/"+m.MatchID+"/play", PlayRequest{InstanceID: m.Snapshot.Hand[0].InstanceID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, r, http.MethodPost, "/api/matches/"+m.MatchID+"/play", PlayRequest{InstanceID: m.Snapshot.Hand[0].InstanceID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_IN_HAND")

	rec = do(t, r, http.MethodPost, "/api/matches/"+m.MatchID+"/play", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/matches/"+m.MatchID+"/end-turn", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/matches/"+m.MatchID+"/next-round", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/matches/"+m.MatchID+"/lunch", LunchRequest{Option: "Pizza"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/matches/"+m.MatchID+"/lunch", LunchRequest{Option: "TunaSalad"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/matches/"+m.MatchID+"/replay?type=CARD_PLAYED", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var replay network.ReplayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replay))
	assert.NotEmpty(t, replay.Events)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, r, http.MethodGet, "/api/matches/"+m.MatchID+"/summary", nil).Code)

	rec = do(t, r, http.MethodDelete, "/api/matches/"+m.MatchID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, r, http.MethodGet, "/api/matches/"+m.MatchID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateMatchWithRules(t *testing.T) {
	r := newRouter(t)

	m := createMatch(t, r, CreateMatchRequest{RulesProfile: "extended"})
	assert.Len(t, m.Snapshot.Enemies, 2)

	custom := config.SimpleRules()
	custom.EnemyCount = 3
	m = createMatch(t, r, CreateMatchRequest{Rules: &custom})
	assert.Len(t, m.Snapshot.Enemies, 3)

	rec := do(t, r, http.MethodPost, "/api/matches", CreateMatchRequest{RulesProfile: "chaos"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bad := config.SimpleRules()
	bad.MaxTime = 0
	rec = do(t, r, http.MethodPost, "/api/matches", CreateMatchRequest{Rules: &bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/matches", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Matches []string `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Matches, 2)
}

func TestDecksAndCatalog(t *testing.T) {
	r := newRouter(t)

	rec := do(t, r, http.MethodGet, "/api/catalog", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Answer Emails")

	rec = do(t, r, http.MethodGet, "/api/rules/extended", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"enemy_count":2`)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/api/rules/chaos", nil).Code)

	rec = do(t, r, http.MethodGet, "/api/decks/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	locked := deck.PlayerDeck{UnlockedCardIDs: []int{1}, PlayerDeckEntries: []deck.Entry{{CardID: 8, CardCount: 1}}}
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, r, http.MethodPut, "/api/decks/alice", locked).Code)

	mine := deck.PlayerDeck{UnlockedCardIDs: []int{1, 3}, PlayerDeckEntries: []deck.Entry{{CardID: 1, CardCount: 5}, {CardID: 3, CardCount: 1}}}
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/api/decks/alice", mine).Code)

	rec = do(t, r, http.MethodGet, "/api/decks/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got deck.PlayerDeck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, mine, got)
}

func TestMetricsAndHealth(t *testing.T) {
	r := newRouter(t)
	createMatch(t, r, nil)

	rec := do(t, r, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"matches":1`)

	rec = do(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"matches_active":1`)

	rec = do(t, r, http.MethodGet, "/metrics/prometheus", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "overtime_cards_played")
}
