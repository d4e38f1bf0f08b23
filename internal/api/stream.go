package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"agentdocs/internal/apperr"
	"agentdocs/internal/service/chat"
)

// sendMessage answers with JSON until the exchange is accepted and with an event stream afterwards.
func (h *Handler) sendMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if !h.bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	conversationID := c.Param("id")
	x, err := h.chat.Send(ctx, h.actor(c), conversationID, req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		x.Detach()
		h.fail(c, apperr.New(apperr.Unhandled, "streaming not supported"))
		return
	}

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	if header.Get("Access-Control-Allow-Origin") == "" {
		header.Set("Access-Control-Allow-Origin", "*")
	}
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	flusher.Flush()

	for {
		select {
		case ev, ok := <-x.Events:
			if !ok {
				return
			}
			if err := writeEvent(c.Writer, ev); err != nil {
				h.logger.Info("client gone, reply continues in background", "conversation_id", conversationID, "error", err)
				x.Detach()
				return
			}
			flusher.Flush()
			if ev.Terminal() && ev.Err != nil {
				h.logger.Warn("reply failed", "conversation_id", conversationID, "error", ev.Err)
			}
		case <-ctx.Done():
			h.logger.Info("client disconnected, reply continues in background", "conversation_id", conversationID)
			x.Detach()
			return
		}
	}
}

func writeEvent(w io.Writer, ev chat.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
