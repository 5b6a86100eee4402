package ai

import "context"

// StreamProvider is implemented by providers that can deliver the
// assistant reply incrementally. Both returned channels are closed when
// the stream ends, and at most one error is sent.
type StreamProvider interface {
	StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}
