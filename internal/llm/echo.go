package llm

import (
	"context"
	"strings"
)

// EchoClient answers every prompt with the prompt itself. It needs no
// credentials and is meant for local development.
type EchoClient struct{}

func (EchoClient) Complete(_ context.Context, prompt string) (string, error) {
	return prompt, nil
}

// Stream emits the prompt word by word, keeping the separating spaces.
func (EchoClient) Stream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	words := strings.SplitAfter(prompt, " ")
	out := make(chan Chunk)
	go func() {
		defer close(out)
		for _, w := range words {
			if w == "" {
				continue
			}
			select {
			case out <- Chunk{Text: w}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
