package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/overtimegame/server/internal/ai"
	"github.com/overtimegame/server/internal/catalog"
	"github.com/overtimegame/server/internal/config"
	"github.com/overtimegame/server/internal/domain/deck"
)

// ListCards returns every card definition.
func (h *Handler) ListCards(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cards": h.catalog.All()})
}

// GetRules returns the preset of a rule profile.
func (h *Handler) GetRules(c *gin.Context) {
	r, err := config.RulesFor(ai.Profile(c.Param("profile")))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{keyError: err.Error()})
		return
	}
	c.JSON(http.StatusOK, r)
}

// GetDeck returns a profile's saved deck, or the starter deck.
func (h *Handler) GetDeck(c *gin.Context) {
	d, err := h.sessions.Deck(c.Request.Context(), c.Param("profile"))
	if err != nil {
		h.logger.Error("Failed to load deck", "profile", c.Param("profile"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{keyError: "failed to load deck"})
		return
	}
	c.JSON(http.StatusOK, d)
}

// SaveDeck validates and stores a profile's deck.
func (h *Handler) SaveDeck(c *gin.Context) {
	var d deck.PlayerDeck
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{keyError: "invalid deck"})
		return
	}
	err := h.sessions.SaveDeck(c.Request.Context(), c.Param("profile"), d)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, d)
	case errors.Is(err, deck.ErrNotUnlocked), errors.Is(err, deck.ErrBadCount), errors.Is(err, catalog.ErrUnknownCard):
		c.JSON(http.StatusUnprocessableEntity, gin.H{keyError: err.Error()})
	default:
		h.logger.Error("Failed to save deck", "profile", c.Param("profile"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{keyError: "failed to save deck"})
	}
}
