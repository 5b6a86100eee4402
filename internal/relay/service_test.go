package relay

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/socialcapitalacademy/coach/internal/ai"
	"github.com/socialcapitalacademy/coach/internal/session"
)

type recordingProvider struct {
	mu     sync.Mutex
	last   []ai.Message
	chunks []string
	calls  int
}

func (p *recordingProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	_ = ctx
	p.record(messages)
	return strings.Join(p.chunks, ""), nil
}

func (p *recordingProvider) StreamChat(ctx context.Context, messages []ai.Message) (<-chan string, <-chan error) {
	_ = ctx
	p.record(messages)
	chunks := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		for _, c := range p.chunks {
			chunks <- c
		}
	}()
	return chunks, errs
}

func (p *recordingProvider) record(messages []ai.Message) {
	p.mu.Lock()
	p.calls++
	p.last = append([]ai.Message(nil), messages...)
	p.mu.Unlock()
}

func newTestService(provider ai.Provider) *Service {
	reg := ai.NewRegistry()
	reg.Register("fake", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		_ = model
		return provider, nil
	})
	return NewService(reg, "fake", "")
}

func collect(t *testing.T, chunks <-chan string, errs <-chan error) (string, error) {
	t.Helper()
	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
	}
	return b.String(), <-errs
}

func TestStreamChat_SystemMessageFirst(t *testing.T) {
	provider := &recordingProvider{chunks: []string{"ok"}}
	svc := newTestService(provider)

	in := []ai.Message{
		{Role: "user", Content: "a"},
		{Role: "assistant", Content: "b"},
		{Role: "user", Content: "c"},
	}
	chunks, errs := svc.StreamChat(context.Background(), in, nil)
	if _, err := collect(t, chunks, errs); err != nil {
		t.Fatalf("stream: %v", err)
	}

	if len(provider.last) != len(in)+1 {
		t.Fatalf("expected %d messages, got %d", len(in)+1, len(provider.last))
	}
	if provider.last[0].Role != "system" {
		t.Fatalf("first message role = %q, want system", provider.last[0].Role)
	}
	if !strings.Contains(provider.last[0].Content, "SCA Coach") {
		t.Fatalf("system message missing coaching prompt")
	}
	for i, m := range in {
		if provider.last[i+1] != m {
			t.Fatalf("message %d reordered: got %+v want %+v", i, provider.last[i+1], m)
		}
	}
}

func TestStreamChat_ProfileRenderedIntoSystemMessage(t *testing.T) {
	provider := &recordingProvider{chunks: []string{"ok"}}
	svc := newTestService(provider)

	firstGen := true
	profile := &session.Profile{
		FirstGen:   &firstGen,
		Interests:  []string{"software engineering"},
		Confidence: "low",
	}
	chunks, errs := svc.StreamChat(context.Background(), []ai.Message{{Role: "user", Content: "hi"}}, profile)
	if _, err := collect(t, chunks, errs); err != nil {
		t.Fatalf("stream: %v", err)
	}

	sys := provider.last[0].Content
	for _, want := range []string{
		"STUDENT CONTEXT",
		`"firstGen": true`,
		`"confidence": "low"`,
		"software engineering",
	} {
		if !strings.Contains(sys, want) {
			t.Fatalf("system message missing %q", want)
		}
	}
	// Unset fields stay absent.
	if strings.Contains(sys, "identityNotes") {
		t.Fatalf("unset identityNotes rendered into system message")
	}
}

func TestStreamChat_NoProfileNoContext(t *testing.T) {
	provider := &recordingProvider{chunks: []string{"ok"}}
	svc := newTestService(provider)

	chunks, errs := svc.StreamChat(context.Background(), []ai.Message{{Role: "user", Content: "hi"}}, nil)
	if _, err := collect(t, chunks, errs); err != nil {
		t.Fatalf("stream: %v", err)
	}
	if strings.Contains(provider.last[0].Content, "STUDENT CONTEXT") {
		t.Fatalf("system message carries context block with no profile set")
	}
}

func TestStreamChat_UnknownProvider(t *testing.T) {
	svc := NewService(ai.NewRegistry(), "missing", "")

	chunks, errs := svc.StreamChat(context.Background(), []ai.Message{{Role: "user", Content: "hi"}}, nil)
	got, err := collect(t, chunks, errs)
	if err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	if got != "" {
		t.Fatalf("unexpected chunks %q", got)
	}
}

func TestChatRequestValidate(t *testing.T) {
	for _, tc := range []struct {
		name    string
		req     ChatRequest
		wantErr bool
	}{
		{"valid", ChatRequest{Messages: []ai.Message{
			{Role: "system", Content: "s"},
			{Role: "user", Content: "u"},
			{Role: "assistant", Content: "a"},
		}}, false},
		{"missing messages", ChatRequest{}, true},
		{"empty transcript", ChatRequest{Messages: []ai.Message{}}, false},
		{"unknown role", ChatRequest{Messages: []ai.Message{
			{Role: "bogus", Content: "x"},
		}}, true},
		{"empty content", ChatRequest{Messages: []ai.Message{
			{Role: "user", Content: ""},
		}}, true},
		{"bad message after good", ChatRequest{Messages: []ai.Message{
			{Role: "user", Content: "fine"},
			{Role: "hacker", Content: "x"},
		}}, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
