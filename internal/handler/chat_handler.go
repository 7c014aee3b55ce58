package handler

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"sentinal-assist/internal/services"
	"sentinal-assist/internal/transport/httpdto"
	"sentinal-assist/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ChatHandler proxies prompts to the chat backend.
type ChatHandler struct {
	service *services.ChatService
	logger  *logger.Logger
}

func NewChatHandler(service *services.ChatService, l *logger.Logger) *ChatHandler {
	if l == nil {
		l = logger.NewNop()
	}
	return &ChatHandler{service: service, logger: l}
}

// Chat returns the whole completion as plain text.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req httpdto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, invalidRequest(err))
		return
	}

	reply, err := h.service.ChatOnce(c.Request.Context(), req.Message)
	if err != nil {
		h.logger.WithContext(c.Request.Context()).Errorf("chat completion failed: %s", err)
		writeError(c, err)
		return
	}

	c.String(http.StatusOK, "%s", reply)
}

// Stream relays completion chunks as Server-Sent Events, one event per
// chunk. An upstream failure after the first byte ends the stream with an
// "error" event.
func (h *ChatHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	message := c.Query("message")

	chunks, err := h.service.ChatStream(ctx, message)
	if err != nil {
		h.logger.WithContext(ctx).Errorf("chat stream failed: %s", err)
		writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-chunks
		if !ok {
			return false
		}
		if chunk.Err != nil {
			h.logger.WithContext(ctx).Errorf("chat stream interrupted: %s", chunk.Err)
			_ = writeEvent(w, "error", chunk.Err.Error())
			return false
		}
		return writeEvent(w, "message", chunk.Text) == nil
	})
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// writeEvent frames data as one SSE event. Every line gets its own "data: "
// field so clients reassemble the chunk byte for byte, except that CR and
// CRLF arrive as LF since the format cannot carry a bare CR.
func writeEvent(w io.Writer, event, data string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "event: %s\n", event)
	for _, line := range strings.Split(lineBreaks.Replace(data), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
