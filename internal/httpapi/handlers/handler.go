package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/socialcapitalacademy/coach/internal/config"
	"github.com/socialcapitalacademy/coach/internal/relay"
	"github.com/socialcapitalacademy/coach/internal/session"
)

type Handler struct {
	Cfg   config.Config
	Relay *relay.Service
	Store *session.Store
}

func NewHandler(cfg config.Config, relaySvc *relay.Service, store *session.Store) *Handler {
	return &Handler{Cfg: cfg, Relay: relaySvc, Store: store}
}

func (h *Handler) Ping(c *gin.Context) {
	ok(c, gin.H{"pong": true})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

func fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}
