package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/socialcapitalacademy/coach/internal/relay"
	"github.com/socialcapitalacademy/coach/internal/session"
)

// RelayChat is the streaming relay endpoint: transcript plus optional
// profile in, raw assistant text out. Validation happens in full before
// any upstream call.
func (h *Handler) RelayChat(c *gin.Context) {
	var req relay.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chunks, errs := h.Relay.StreamChat(c.Request.Context(), req.Messages, req.StudentProfile)

	flusher, canFlush := c.Writer.(http.Flusher)
	wrote := false
	for chunk := range chunks {
		if !wrote {
			c.Header("Content-Type", "text/plain; charset=utf-8")
			c.Header("Cache-Control", "no-cache")
			c.Status(http.StatusOK)
			wrote = true
		}
		if _, err := c.Writer.WriteString(chunk); err != nil {
			// client went away
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}

	if err := <-errs; err != nil {
		if !wrote {
			// upstream failed before the first byte
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// Mid-stream failure: abort the chunked response. Bytes already
		// sent stand; there is no rollback.
		panic(http.ErrAbortHandler)
	}

	if !wrote {
		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.Header("Cache-Control", "no-cache")
		c.Status(http.StatusOK)
	}
}

type sendMessageReq struct {
	Message string `json:"message" binding:"required"`
}

// SendMessageStream drives a store send and relays chunks to the
// browser as SSE. The store has already applied and persisted each
// chunk by the time its event is written.
func (h *Handler) SendMessageStream(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	chunks, errs, err := h.Store.SendMessage(c.Request.Context(), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrEmptyMessage):
			fail(c, http.StatusBadRequest, 10002, "message text is empty")
		case errors.Is(err, session.ErrBusy):
			fail(c, http.StatusConflict, 40901, "a send is already in flight")
		default:
			fail(c, http.StatusInternalServerError, 50001, "failed to send message")
		}
		return
	}

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, okk := c.Writer.(http.Flusher)
	if !okk {
		fmt.Fprintf(c.Writer, "event: error\ndata: flusher not supported\n\n")
		return
	}

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		if event != "" {
			fmt.Fprintf(c.Writer, "event: %s\n", event)
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", string(b))
		flusher.Flush()
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case ch, okk := <-chunks:
			if !okk {
				if err := <-errs; err != nil {
					writeJSON("error", gin.H{
						"type":    "error",
						"message": err.Error(),
					})
					return
				}
				writeJSON("done", gin.H{
					"type":  "done",
					"stats": h.Store.Stats(),
				})
				return
			}
			writeJSON("chunk", gin.H{
				"type":  "chunk",
				"delta": ch,
			})

		case <-ticker.C:
			writeJSON("ping", gin.H{
				"type": "ping",
				"ts":   time.Now().Unix(),
			})

		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) ListSessions(c *gin.Context) {
	ok(c, gin.H{
		"sessions":           h.Store.Sessions(),
		"current_session_id": h.Store.CurrentSessionID(),
	})
}

// CreateSession starts a fresh conversation; nothing is deleted.
func (h *Handler) CreateSession(c *gin.Context) {
	sess, err := h.Store.ResetToNewSession(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, 50002, "failed to create session")
		return
	}
	ok(c, gin.H{"session": sess})
}

func (h *Handler) ActivateSession(c *gin.Context) {
	id := c.Param("session_id")
	if err := h.Store.SwitchToSession(c.Request.Context(), id); err != nil {
		fail(c, http.StatusInternalServerError, 50003, "failed to switch session")
		return
	}
	ok(c, gin.H{"current_session_id": h.Store.CurrentSessionID()})
}

func (h *Handler) DeleteSession(c *gin.Context) {
	id := c.Param("session_id")
	if err := h.Store.DeleteSession(c.Request.Context(), id); err != nil {
		fail(c, http.StatusInternalServerError, 50004, "failed to delete session")
		return
	}
	ok(c, gin.H{"current_session_id": h.Store.CurrentSessionID()})
}

func (h *Handler) ListActiveMessages(c *gin.Context) {
	ok(c, gin.H{
		"session_id": h.Store.CurrentSessionID(),
		"messages":   h.Store.ActiveMessages(),
	})
}

func (h *Handler) GetProfile(c *gin.Context) {
	ok(c, gin.H{"profile": h.Store.Profile()})
}

func (h *Handler) PutProfile(c *gin.Context) {
	var p session.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	switch p.Confidence {
	case "", "low", "medium", "high":
	default:
		fail(c, http.StatusBadRequest, 10003, "confidence must be low, medium or high")
		return
	}
	if err := h.Store.SetProfile(c.Request.Context(), p); err != nil {
		fail(c, http.StatusInternalServerError, 50005, "failed to save profile")
		return
	}
	ok(c, gin.H{"profile": h.Store.Profile()})
}

func (h *Handler) GetStats(c *gin.Context) {
	ok(c, gin.H{"stats": h.Store.Stats()})
}
