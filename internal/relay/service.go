// Package relay forwards a validated chat transcript to the model
// provider and streams the reply back. It holds no state across
// requests.
package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/socialcapitalacademy/coach/internal/ai"
	"github.com/socialcapitalacademy/coach/internal/prompt"
	"github.com/socialcapitalacademy/coach/internal/session"
)

// ChatRequest is the relay request body.
type ChatRequest struct {
	Messages       []ai.Message     `json:"messages"`
	StudentProfile *session.Profile `json:"studentProfile,omitempty"`
}

// Validate is total: it checks every message before any upstream call
// is attempted.
func (r *ChatRequest) Validate() error {
	if r.Messages == nil {
		return errors.New("messages is required")
	}
	for i, m := range r.Messages {
		switch m.Role {
		case "user", "assistant", "system":
		default:
			return fmt.Errorf("messages[%d]: unknown role %q", i, m.Role)
		}
		if m.Content == "" {
			return fmt.Errorf("messages[%d]: content is required", i)
		}
	}
	return nil
}

type Service struct {
	registry *ai.Registry
	provider string
	model    string
}

func NewService(registry *ai.Registry, provider, model string) *Service {
	return &Service{registry: registry, provider: provider, model: model}
}

// StreamChat prepends the composed system message to the supplied
// transcript, in that exact order, and streams the provider reply.
// Both channels are closed when streaming ends.
func (s *Service) StreamChat(ctx context.Context, messages []ai.Message, profile *session.Profile) (<-chan string, <-chan error) {
	sys, err := prompt.Compose(profile)
	if err != nil {
		return failStream(err)
	}

	provider, err := s.registry.Get(ctx, s.provider, s.model)
	if err != nil {
		return failStream(err)
	}
	sp, ok := provider.(ai.StreamProvider)
	if !ok {
		return failStream(fmt.Errorf("relay: provider %q does not support streaming", s.provider))
	}

	msgs := make([]ai.Message, 0, len(messages)+1)
	msgs = append(msgs, ai.Message{Role: "system", Content: sys})
	msgs = append(msgs, messages...)

	return sp.StreamChat(ctx, msgs)
}

func failStream(err error) (<-chan string, <-chan error) {
	chunks := make(chan string)
	close(chunks)
	errs := make(chan error, 1)
	errs <- err
	close(errs)
	return chunks, errs
}
