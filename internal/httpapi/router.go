package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/socialcapitalacademy/coach/internal/config"
	"github.com/socialcapitalacademy/coach/internal/httpapi/handlers"
	"github.com/socialcapitalacademy/coach/internal/httpapi/middleware"
	"github.com/socialcapitalacademy/coach/internal/relay"
	"github.com/socialcapitalacademy/coach/internal/session"
)

func NewRouter(cfg config.Config, relaySvc *relay.Service, store *session.Store) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": 40400, "message": "route not found", "data": nil})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"code": 40500, "message": "method not allowed", "data": nil})
	})

	h := handlers.NewHandler(cfg, relaySvc, store)

	r.GET("/ping", h.Ping)

	api := r.Group("/api")
	// streaming relay: text/plain out, 400 JSON on rejection
	api.POST("/chat", h.RelayChat)

	// session store surface
	api.GET("/sessions", h.ListSessions)
	api.POST("/sessions", h.CreateSession)
	api.POST("/sessions/:session_id/activate", h.ActivateSession)
	api.DELETE("/sessions/:session_id", h.DeleteSession)
	api.GET("/messages", h.ListActiveMessages)
	api.POST("/messages/stream", h.SendMessageStream)
	api.GET("/profile", h.GetProfile)
	api.PUT("/profile", h.PutProfile)
	api.GET("/stats", h.GetStats)

	return r
}
