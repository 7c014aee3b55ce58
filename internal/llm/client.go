// Package llm talks to an OpenAI-compatible chat completion endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	// Timeout bounds a non-streaming call. Streams are bounded only by the
	// caller's context.
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	return NewClientWithHTTP(cfg, &http.Client{})
}

// NewClientWithHTTP lets callers supply the transport (tests, proxies).
func NewClientWithHTTP(cfg Config, httpClient *http.Client) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: httpClient}
}

// Complete sends prompt as a single user message and returns the first
// choice's content.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	resp, err := c.do(ctx, c.newRequest(prompt, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", &APIError{StatusCode: resp.StatusCode, Message: "no choices in response"}
	}
	return out.Choices[0].Message.Content, nil
}

// Stream sends prompt with streaming enabled. The returned channel yields
// content deltas in arrival order and is closed when the upstream stream
// ends, fails, or ctx is cancelled.
func (c *Client) Stream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	resp, err := c.do(ctx, c.newRequest(prompt, true))
	if err != nil {
		return nil, err
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		reader := newStreamReader(resp.Body)
		defer reader.Close()

		for {
			text, err := reader.Read(ctx)
			if err == io.EOF {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case out <- Chunk{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			if text == "" {
				continue
			}
			select {
			case out <- Chunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) newRequest(prompt string, stream bool) chatRequest {
	return chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: RoleUser, Content: prompt}},
		Temperature: c.cfg.Temperature,
		Stream:      stream,
	}
}

func (c *Client) do(ctx context.Context, body chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	return nil, parseErrorResponse(resp)
}

func parseErrorResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	msg := strings.TrimSpace(string(raw))
	var parsed errorResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Message: msg}
	case http.StatusTooManyRequests:
		var retryAfter time.Duration
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			retryAfter = time.Duration(secs) * time.Second
		}
		return &RateLimitError{RetryAfter: retryAfter, Message: msg}
	default:
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
}
