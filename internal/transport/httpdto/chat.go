package httpdto

// ChatRequest is used for POST /api/chat
type ChatRequest struct {
	Message string `json:"message"`
}

// StreamFrame is a control frame on the chat WebSocket. Text chunks are sent
// as raw text frames.
type StreamFrame struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

const (
	FrameDone  = "done"
	FrameError = "error"
)
