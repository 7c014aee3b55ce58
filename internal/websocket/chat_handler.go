// Package websocket serves chat streams over a WebSocket connection, for
// clients that want to send several prompts on one connection.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"sentinal-assist/internal/services"
	"sentinal-assist/internal/transport/httpdto"
	"sentinal-assist/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxPromptBytes = 64 << 10
)

// ChatHandler accepts prompts as text frames and answers each with the
// completion chunks as text frames followed by a {"type":"done"} frame.
type ChatHandler struct {
	service  *services.ChatService
	logger   *logger.Logger
	upgrader websocket.Upgrader

	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewChatHandler(service *services.ChatService, allowedOrigins []string, l *logger.Logger) *ChatHandler {
	if l == nil {
		l = logger.NewNop()
	}
	return &ChatHandler{
		service: service,
		logger:  l,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
	}
}

func (h *ChatHandler) Connect(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already answered with an HTTP error
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	prompts := make(chan string)
	go h.readLoop(ctx, cancel, conn, prompts)

	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writePing(conn); err != nil {
				return
			}
		case prompt := <-prompts:
			if err := h.relay(ctx, conn, ticker, prompt); err != nil {
				return
			}
		}
	}
}

// readLoop is the only reader of conn. It cancels the connection context
// when the peer goes away. It does not read while a prompt waits for the
// relay, so the deadline is armed again before every read.
func (h *ChatHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, prompts chan<- string) {
	defer cancel()

	conn.SetReadLimit(maxPromptBytes)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		select {
		case prompts <- string(data):
		case <-ctx.Done():
			return
		}
	}
}

// relay streams one completion. It returns an error only when the
// connection can no longer be written to.
func (h *ChatHandler) relay(ctx context.Context, conn *websocket.Conn, ticker *time.Ticker, prompt string) error {
	chunks, err := h.service.ChatStream(ctx, prompt)
	if err != nil {
		h.logger.WithContext(ctx).Errorf("chat stream failed: %s", err)
		return writeFrame(conn, httpdto.StreamFrame{Type: httpdto.FrameError, Error: err.Error()})
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := writePing(conn); err != nil {
				return err
			}
		case chunk, ok := <-chunks:
			if !ok {
				return writeFrame(conn, httpdto.StreamFrame{Type: httpdto.FrameDone})
			}
			if chunk.Err != nil {
				h.logger.WithContext(ctx).Errorf("chat stream interrupted: %s", chunk.Err)
				return writeFrame(conn, httpdto.StreamFrame{Type: httpdto.FrameError, Error: chunk.Err.Error()})
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(chunk.Text)); err != nil {
				return err
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, frame httpdto.StreamFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func writePing(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.PingMessage, nil)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
