package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func collectStream(t *testing.T, chunks <-chan string, errs <-chan error) ([]string, error) {
	t.Helper()
	var got []string
	for c := range chunks {
		got = append(got, c)
	}
	return got, <-errs
}

func TestOpenAIStreamChat(t *testing.T) {
	var gotReq openAIChatReq
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, delta := range []string{"He", "llo"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", delta)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer ts.Close()

	p := NewOpenAIProvider(ts.URL, "test-key", "gpt-4o-mini")
	chunks, errs := p.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}})

	got, err := collectStream(t, chunks, errs)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if strings.Join(got, "") != "Hello" {
		t.Fatalf("chunks = %v", got)
	}

	if !gotReq.Stream {
		t.Fatalf("stream flag not set")
	}
	if gotReq.Temperature != SamplingTemperature {
		t.Fatalf("temperature = %v, want %v", gotReq.Temperature, SamplingTemperature)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Fatalf("model = %q", gotReq.Model)
	}
}

func TestOpenAIStreamChat_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer ts.Close()

	p := NewOpenAIProvider(ts.URL, "test-key", "")
	chunks, errs := p.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}})

	got, err := collectStream(t, chunks, errs)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("error does not carry upstream body: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("unexpected chunks %v", got)
	}
}

func TestOpenAIStreamChat_InlineError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"context length exceeded\"}}\n\n")
	}))
	defer ts.Close()

	p := NewOpenAIProvider(ts.URL, "test-key", "")
	chunks, errs := p.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}})

	if _, err := collectStream(t, chunks, errs); err == nil || !strings.Contains(err.Error(), "context length") {
		t.Fatalf("inline error not surfaced: %v", err)
	}
}

func TestOpenAIStreamChat_CancelStopsStream(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for {
			if _, err := fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := NewOpenAIProvider(ts.URL, "test-key", "")
	chunks, errs := p.StreamChat(ctx, []Message{{Role: "user", Content: "hi"}})

	<-chunks
	cancel()
	// Nobody drains chunks; the goroutine must still exit.
	closed := make(chan struct{})
	go func() {
		for range errs {
		}
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("stream goroutine did not exit after cancel")
	}
}

func TestOpenAIStreamChat_RequiresAPIKey(t *testing.T) {
	p := NewOpenAIProvider("http://unused", " ", "")
	chunks, errs := p.StreamChat(context.Background(), nil)
	if _, err := collectStream(t, chunks, errs); err == nil {
		t.Fatalf("expected api key error")
	}
}

func TestOpenAIChat(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hello"}},
			},
		})
	}))
	defer ts.Close()

	p := NewOpenAIProvider(ts.URL, "test-key", "")
	got, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got != "hello" {
		t.Fatalf("content = %q", got)
	}
}

func TestOpenAIDefaults(t *testing.T) {
	p := NewOpenAIProvider("", "k", "")
	if p.BaseURL != "https://api.openai.com/v1" {
		t.Fatalf("base url = %q", p.BaseURL)
	}
	if p.Model != "gpt-4o-mini" {
		t.Fatalf("model = %q", p.Model)
	}
}
