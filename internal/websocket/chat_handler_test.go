package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sentinal-assist/internal/llm"
	"sentinal-assist/internal/services"
	"sentinal-assist/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type scriptedClient struct {
	chunks []llm.Chunk
	err    error
}

func (s scriptedClient) Complete(context.Context, string) (string, error) { return "", nil }

func (s scriptedClient) Stream(_ context.Context, prompt string) (<-chan llm.Chunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(chan llm.Chunk, len(s.chunks)+1)
	out <- llm.Chunk{Text: "[" + prompt + "]"}
	for _, c := range s.chunks {
		out <- c
	}
	close(out)
	return out, nil
}

// slowClient answers every prompt with one chunk after delay.
type slowClient struct {
	delay time.Duration
}

func (s slowClient) Complete(context.Context, string) (string, error) { return "", nil }

func (s slowClient) Stream(ctx context.Context, prompt string) (<-chan llm.Chunk, error) {
	out := make(chan llm.Chunk, 1)
	go func() {
		defer close(out)
		select {
		case <-time.After(s.delay):
			out <- llm.Chunk{Text: prompt}
		case <-ctx.Done():
		}
	}()
	return out, nil
}

func dial(t *testing.T, client services.ChatClient) *websocket.Conn {
	t.Helper()
	return dialHandler(t, NewChatHandler(services.NewChatService(client), []string{"*"}, nil))
}

func dialHandler(t *testing.T, h *ChatHandler) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/chat/ws", h.Connect)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return string(data)
}

func readFrame(t *testing.T, conn *websocket.Conn) httpdto.StreamFrame {
	t.Helper()
	var f httpdto.StreamFrame
	if err := json.Unmarshal([]byte(readText(t, conn)), &f); err != nil {
		t.Fatalf("expected control frame: %v", err)
	}
	return f
}

func TestChatHandler_StreamsChunksThenDone(t *testing.T) {
	conn := dial(t, scriptedClient{chunks: []llm.Chunk{{Text: "one "}, {Text: "two"}}})

	for _, prompt := range []string{"first", "second"} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(prompt)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if got := readText(t, conn); got != "["+prompt+"]" {
			t.Errorf("expected echo of prompt, got %q", got)
		}
		if got := readText(t, conn); got != "one " {
			t.Errorf("unexpected chunk %q", got)
		}
		if got := readText(t, conn); got != "two" {
			t.Errorf("unexpected chunk %q", got)
		}
		if f := readFrame(t, conn); f.Type != httpdto.FrameDone {
			t.Errorf("expected done frame, got %+v", f)
		}
	}
}

func TestChatHandler_MidStreamError(t *testing.T) {
	conn := dial(t, scriptedClient{chunks: []llm.Chunk{{Err: errors.New("connection reset")}}})

	_ = conn.WriteMessage(websocket.TextMessage, []byte("hi"))
	_ = readText(t, conn)
	f := readFrame(t, conn)
	if f.Type != httpdto.FrameError || f.Error != "connection reset" {
		t.Errorf("expected error frame, got %+v", f)
	}
}

func TestChatHandler_UpstreamRejects(t *testing.T) {
	conn := dial(t, scriptedClient{err: &llm.AuthError{Message: "bad key"}})

	_ = conn.WriteMessage(websocket.TextMessage, []byte("hi"))
	f := readFrame(t, conn)
	if f.Type != httpdto.FrameError || !strings.Contains(f.Error, "bad key") {
		t.Errorf("expected error frame, got %+v", f)
	}

	// the connection stays usable
	if err := conn.WriteMessage(websocket.TextMessage, []byte("again")); err != nil {
		t.Fatalf("write after error failed: %v", err)
	}
	if f := readFrame(t, conn); f.Type != httpdto.FrameError {
		t.Errorf("expected second error frame, got %+v", f)
	}
}

func TestChatHandler_QueuedPromptOutlivesPongWait(t *testing.T) {
	h := NewChatHandler(services.NewChatService(slowClient{delay: 400 * time.Millisecond}), []string{"*"}, nil)
	h.pongWait = 150 * time.Millisecond
	h.pingPeriod = 50 * time.Millisecond
	conn := dialHandler(t, h)

	// the second prompt is read while the first is still streaming
	for _, prompt := range []string{"first", "second"} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(prompt)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	for _, prompt := range []string{"first", "second"} {
		if got := readText(t, conn); got != prompt {
			t.Fatalf("expected %q, got %q", prompt, got)
		}
		if f := readFrame(t, conn); f.Type != httpdto.FrameDone {
			t.Fatalf("expected done frame after %q, got %+v", prompt, f)
		}
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:5173"})

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	if !check(req) {
		t.Error("requests without Origin should pass")
	}
	req.Header.Set("Origin", "http://localhost:5173")
	if !check(req) {
		t.Error("listed origin rejected")
	}
	req.Header.Set("Origin", "https://evil.example")
	if check(req) {
		t.Error("unlisted origin accepted")
	}
}
