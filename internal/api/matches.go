package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/overtimegame/server/internal/ai"
	"github.com/overtimegame/server/internal/config"
	"github.com/overtimegame/server/internal/domain/rules"
	"github.com/overtimegame/server/internal/session"
)

// CreateMatchRequest starts a match. Rules overrides the preset of
// RulesProfile when present; with neither the server's default rules apply.
type CreateMatchRequest struct {
	ProfileID    string        `json:"profile_id"`
	RulesProfile string        `json:"rules_profile"`
	Rules        *config.Rules `json:"rules,omitempty"`
}

// PlayRequest plays one card from the player's hand.
type PlayRequest struct {
	InstanceID string `json:"instance_id" binding:"required"`
	TargetID   string `json:"target_id"`
}

// LunchRequest picks the lunch perk.
type LunchRequest struct {
	Option string `json:"option" binding:"required"`
}

// lookup resolves the :id path parameter, writing a 404 when it is unknown.
func (h *Handler) lookup(c *gin.Context) (*session.Session, bool) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{keyError: err.Error()})
		return nil, false
	}
	return s, true
}

// ListMatches returns the ids of the open matches.
func (h *Handler) ListMatches(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"matches": h.sessions.List()})
}

// CreateMatch deals a new match and returns its first snapshot.
func (h *Handler) CreateMatch(c *gin.Context) {
	var req CreateMatchRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{keyError: "invalid request"})
			return
		}
	}

	r := h.defaultRules
	switch {
	case req.Rules != nil:
		r = *req.Rules
	case req.RulesProfile != "":
		preset, err := config.RulesFor(ai.Profile(req.RulesProfile))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{keyError: err.Error()})
			return
		}
		r = preset
	}

	s, err := h.sessions.NewMatch(c.Request.Context(), req.ProfileID, r)
	if err != nil {
		h.logger.Warn("Failed to create match", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{keyError: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"match_id": s.ID(), "seed": s.Seed(), "snapshot": s.Snapshot()})
}

// GetMatch returns the current snapshot.
func (h *Handler) GetMatch(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// CloseMatch forgets a match.
func (h *Handler) CloseMatch(c *gin.Context) {
	err := h.sessions.Close(c.Request.Context(), c.Param("id"))
	if errors.Is(err, session.ErrMatchNotFound) {
		c.JSON(http.StatusNotFound, gin.H{keyError: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// PlayCard plays a card. A rejected play answers 409 with the reason.
func (h *Handler) PlayCard(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{keyError: "instance_id is required"})
		return
	}

	res := s.Play(c.Request.Context(), req.InstanceID, req.TargetID)
	status := http.StatusOK
	if !res.Accepted {
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"result": res, "snapshot": s.Snapshot()})
}

// EndTurn ends the player's turn.
func (h *Handler) EndTurn(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	h.respond(c, s, s.EndTurn(c.Request.Context()), "not the player's turn")
}

// ChooseLunch applies the lunch perk.
func (h *Handler) ChooseLunch(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req LunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{keyError: "option is required"})
		return
	}
	opt := rules.LunchOption(req.Option)
	if !opt.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{keyError: "unknown lunch option " + req.Option})
		return
	}
	h.respond(c, s, s.ChooseLunch(c.Request.Context(), opt), "no lunch break in progress")
}

// NextRound opens the next round.
func (h *Handler) NextRound(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	h.respond(c, s, s.NextRound(c.Request.Context()), "round is not over")
}

func (h *Handler) respond(c *gin.Context, s *session.Session, ok bool, conflict string) {
	if !ok {
		c.JSON(http.StatusConflict, gin.H{keyError: conflict, "snapshot": s.Snapshot()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshot": s.Snapshot()})
}
