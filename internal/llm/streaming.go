package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// streamReader reads Server-Sent Events from a chat completion stream.
type streamReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	closed  bool
}

func newStreamReader(body io.ReadCloser) *streamReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &streamReader{body: body, scanner: scanner}
}

// Read returns the content of the next data event. Events with no content
// (role announcements, finish markers) yield "". Returns io.EOF once the
// stream ends normally.
func (s *streamReader) Read(ctx context.Context) (string, error) {
	if s.closed {
		return "", io.EOF
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return "", &StreamError{Message: "failed to read stream", Cause: err}
			}
			return "", io.EOF
		}

		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			// blank separators, comments, event names
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return "", io.EOF
		}

		var chunk chatStreamResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return "", &StreamError{Message: fmt.Sprintf("failed to parse chunk %q", data), Cause: err}
		}

		var b strings.Builder
		for _, choice := range chunk.Choices {
			b.WriteString(choice.Delta.Content)
		}
		return b.String(), nil
	}
}

func (s *streamReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
