package services

import (
	"context"
	"fmt"
	"time"

	"sentinal-assist/internal/llm"
	sentinal_errors "sentinal-assist/pkg/errors"
)

const (
	ChatModeOnce   = "once"
	ChatModeStream = "stream"
)

// ChatClient is the completion backend the chat endpoints forward to.
type ChatClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string) (<-chan llm.Chunk, error)
}

// ChatMetrics receives one observation per chat call. For streams, d is the
// time until the stream opened and err is the first failure seen before the
// stream ended, if any.
type ChatMetrics interface {
	RecordChatRequest(mode string, d time.Duration, err error)
}

type nopChatMetrics struct{}

func (nopChatMetrics) RecordChatRequest(string, time.Duration, error) {}

type ChatService struct {
	client  ChatClient
	metrics ChatMetrics
}

func NewChatService(client ChatClient) *ChatService {
	return &ChatService{client: client, metrics: nopChatMetrics{}}
}

// WithMetrics sets the recorder for chat calls and returns s.
func (s *ChatService) WithMetrics(m ChatMetrics) *ChatService {
	if m != nil {
		s.metrics = m
	}
	return s
}

// ChatOnce returns the full completion for message. Client errors are
// wrapped with ErrUpstream; the typed llm errors stay reachable via errors.As.
func (s *ChatService) ChatOnce(ctx context.Context, message string) (string, error) {
	start := time.Now()
	reply, err := s.client.Complete(ctx, message)
	if err != nil {
		err = upstream(err)
	}
	s.metrics.RecordChatRequest(ChatModeOnce, time.Since(start), err)
	return reply, err
}

// ChatStream relays the client's chunks unmodified as they arrive. The
// returned channel closes after the upstream one does or ctx is done.
func (s *ChatService) ChatStream(ctx context.Context, message string) (<-chan llm.Chunk, error) {
	start := time.Now()
	upstreamChunks, err := s.client.Stream(ctx, message)
	opened := time.Since(start)
	if err != nil {
		err = upstream(err)
		s.metrics.RecordChatRequest(ChatModeStream, opened, err)
		return nil, err
	}

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		var streamErr error
		defer func() { s.metrics.RecordChatRequest(ChatModeStream, opened, streamErr) }()

		for chunk := range upstreamChunks {
			if chunk.Err != nil {
				streamErr = chunk.Err
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				streamErr = ctx.Err()
				return
			}
		}
	}()
	return out, nil
}

func upstream(err error) error {
	return fmt.Errorf("%w: %w", sentinal_errors.ErrUpstream, err)
}
