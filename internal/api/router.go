// Package api exposes matches, decks and the catalog over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/overtimegame/server/internal/catalog"
	"github.com/overtimegame/server/internal/config"
	"github.com/overtimegame/server/internal/network"
	"github.com/overtimegame/server/internal/platform/logger"
	"github.com/overtimegame/server/internal/platform/metrics"
	"github.com/overtimegame/server/internal/session"
)

const keyError = "error"

// Deps are the collaborators of the router. Hub and Replay are optional.
type Deps struct {
	Sessions    *session.Manager
	Catalog     *catalog.Catalog
	Hub         *network.Hub
	Replay      *network.ReplayHandler
	Metrics     *metrics.Collector
	Logger      *logger.Logger
	Development bool

	// DefaultRules is used when a match request names no rules. Zero
	// selects the simple profile.
	DefaultRules config.Rules
}

// Handler groups the HTTP handlers.
type Handler struct {
	sessions     *session.Manager
	catalog      *catalog.Catalog
	logger       *logger.Logger
	defaultRules config.Rules
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Get()
	}
	if !deps.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	if deps.DefaultRules.Profile == "" {
		deps.DefaultRules = config.SimpleRules()
	}

	h := &Handler{sessions: deps.Sessions, catalog: deps.Catalog, logger: deps.Logger, defaultRules: deps.DefaultRules}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(deps.Logger))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "matches": len(deps.Sessions.List())})
	})
	router.GET("/metrics", gin.WrapF(deps.Metrics.Handler()))
	router.GET("/metrics/prometheus", gin.WrapF(deps.Metrics.PrometheusHandler()))

	api := router.Group("/api")
	{
		api.GET("/catalog", h.ListCards)
		api.GET("/rules/:profile", h.GetRules)

		api.GET("/decks/:profile", h.GetDeck)
		api.PUT("/decks/:profile", h.SaveDeck)

		api.GET("/matches", h.ListMatches)
		api.POST("/matches", h.CreateMatch)
		api.GET("/matches/:id", h.GetMatch)
		api.DELETE("/matches/:id", h.CloseMatch)
		api.POST("/matches/:id/play", h.PlayCard)
		api.POST("/matches/:id/end-turn", h.EndTurn)
		api.POST("/matches/:id/lunch", h.ChooseLunch)
		api.POST("/matches/:id/next-round", h.NextRound)

		if replay := deps.Replay; replay != nil {
			api.GET("/replay", gin.WrapF(replay.HandleReplay))
			api.GET("/replay/summary", gin.WrapF(replay.HandleSummary))
			api.GET("/matches/:id/replay", func(c *gin.Context) {
				replay.ServeReplay(c.Writer, c.Request, c.Param("id"))
			})
			api.GET("/matches/:id/summary", func(c *gin.Context) {
				replay.ServeSummary(c.Writer, c.Request, c.Param("id"))
			})
		}
	}

	if deps.Hub != nil {
		router.GET("/ws", gin.WrapF(deps.Hub.ServeWS))
	}
	return router
}

// requestLogger writes one structured line per request.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
