// Package network - replay.go
// Replay endpoints: the readable event history of a match.
package network

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/overtimegame/server/internal/events"
	"github.com/overtimegame/server/internal/infra/storage"
	"github.com/overtimegame/server/internal/platform/logger"
)

// ReplayHandler serves match replays from the in-memory log, falling back to
// the persisted events for matches that are no longer in memory.
type ReplayHandler struct {
	eventLog      *events.EventLog
	reconstructor *storage.Reconstructor
	logger        *logger.Logger
}

// NewReplayHandler creates a replay handler. rec may be nil when no database
// is configured.
func NewReplayHandler(el *events.EventLog, rec *storage.Reconstructor, log *logger.Logger) *ReplayHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &ReplayHandler{eventLog: el, reconstructor: rec, logger: log}
}

// ReplayResponse is the API response for a replay.
type ReplayResponse struct {
	MatchID     string               `json:"match_id"`
	TotalEvents int                  `json:"total_events"`
	FilteredBy  string               `json:"filtered_by,omitempty"`
	GeneratedAt string               `json:"generated_at"`
	Source      string               `json:"source"` // memory or storage
	Events      []storage.ReplayLine `json:"events"`
}

type replayFilter struct {
	round     int
	hasRound  bool
	eventType string
	actorID   string
}

func (f replayFilter) keep(l storage.ReplayLine) bool {
	if f.hasRound && l.Round != f.round {
		return false
	}
	if f.eventType != "" && l.EventType != f.eventType {
		return false
	}
	if f.actorID != "" && l.ActorID != f.actorID {
		return false
	}
	return true
}

func (f replayFilter) String() string {
	desc := ""
	if f.hasRound {
		desc += "round=" + strconv.Itoa(f.round) + " "
	}
	if f.eventType != "" {
		desc += "type=" + f.eventType + " "
	}
	if f.actorID != "" {
		desc += "actor=" + f.actorID + " "
	}
	if desc != "" {
		desc = desc[:len(desc)-1]
	}
	return desc
}

// HandleReplay returns the replay of a match.
// GET ?match_id=XXX&round=N&type=CARD_PLAYED&actor=player
func (rh *ReplayHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	matchID := r.URL.Query().Get("match_id")
	if matchID == "" {
		rh.jsonError(w, "Missing match_id", http.StatusBadRequest)
		return
	}
	rh.ServeReplay(w, r, matchID)
}

// ServeReplay writes the replay of matchID, filtered by the round, type and
// actor query parameters.
func (rh *ReplayHandler) ServeReplay(w http.ResponseWriter, r *http.Request, matchID string) {
	q := r.URL.Query()
	filter := replayFilter{eventType: q.Get("type"), actorID: q.Get("actor")}
	if s := q.Get("round"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			rh.jsonError(w, "Invalid round", http.StatusBadRequest)
			return
		}
		filter.round, filter.hasRound = n, true
	}

	lines, source, err := rh.lines(r, matchID)
	if err != nil {
		rh.logger.Error("Failed to load replay", "match", matchID, "error", err)
		rh.jsonError(w, "Failed to load replay", http.StatusInternalServerError)
		return
	}
	if len(lines) == 0 {
		rh.jsonError(w, "Match not found", http.StatusNotFound)
		return
	}

	kept := make([]storage.ReplayLine, 0, len(lines))
	for _, l := range lines {
		if filter.keep(l) {
			kept = append(kept, l)
		}
	}

	response := ReplayResponse{
		MatchID:     matchID,
		TotalEvents: len(kept),
		FilteredBy:  filter.String(),
		GeneratedAt: time.Now().Format(time.RFC3339),
		Source:      source,
		Events:      kept,
	}
	rh.logger.Event("REPLAY", "VIEWER", "match:"+matchID+" events:"+strconv.Itoa(len(kept)))
	rh.writeJSON(w, http.StatusOK, response)
}

func (rh *ReplayHandler) lines(r *http.Request, matchID string) ([]storage.ReplayLine, string, error) {
	if mem := rh.eventLog.GetByMatch(matchID); len(mem) > 0 {
		lines := make([]storage.ReplayLine, 0, len(mem))
		for _, e := range mem {
			stored, err := storage.ToStored(e)
			if err != nil {
				return nil, "", err
			}
			lines = append(lines, storage.ReplayLine{
				Timestamp: e.Timestamp.Format("15:04:05.000"),
				Round:     e.Round,
				Turn:      e.Turn,
				EventType: string(e.Type),
				ActorID:   e.ActorID,
				Summary:   storage.SummarizeEvent(stored),
			})
		}
		return lines, "memory", nil
	}
	if rh.reconstructor == nil {
		return nil, "", nil
	}
	lines, err := rh.reconstructor.Replay(r.Context(), matchID)
	return lines, "storage", err
}

// HandleSummary returns the aggregate summary rebuilt from persisted events.
// GET ?match_id=XXX
func (rh *ReplayHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	matchID := r.URL.Query().Get("match_id")
	if matchID == "" {
		rh.jsonError(w, "Missing match_id", http.StatusBadRequest)
		return
	}
	rh.ServeSummary(w, r, matchID)
}

// ServeSummary writes the summary of matchID.
func (rh *ReplayHandler) ServeSummary(w http.ResponseWriter, r *http.Request, matchID string) {
	if rh.reconstructor == nil {
		rh.jsonError(w, "No event storage configured", http.StatusServiceUnavailable)
		return
	}
	sum, err := rh.reconstructor.Summarize(r.Context(), matchID)
	if err != nil {
		rh.logger.Error("Failed to summarize match", "match", matchID, "error", err)
		rh.jsonError(w, "Failed to summarize match", http.StatusInternalServerError)
		return
	}
	if sum.Events == 0 {
		rh.jsonError(w, "Match not found", http.StatusNotFound)
		return
	}
	rh.writeJSON(w, http.StatusOK, sum)
}

// RegisterRoutes sets up the replay routes on a plain mux.
func (rh *ReplayHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/replay", rh.HandleReplay)
	mux.HandleFunc("GET /api/replay/summary", rh.HandleSummary)
}

func (rh *ReplayHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rh.logger.Warn("Failed to write response", "error", err)
	}
}

// jsonError sends an error response.
func (rh *ReplayHandler) jsonError(w http.ResponseWriter, message string, status int) {
	rh.writeJSON(w, status, map[string]string{"error": message})
}
