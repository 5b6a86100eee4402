package ai

import "context"

// SamplingTemperature is fixed for all coaching completions.
const SamplingTemperature = 0.7

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
