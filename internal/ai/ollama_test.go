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

func TestOllamaStreamChat(t *testing.T) {
	var gotReq ollamaChatReq
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}

		flusher := w.(http.Flusher)
		for _, line := range []string{
			`{"message":{"role":"assistant","content":"Hel"},"done":false}`,
			`{"message":{"role":"assistant","content":"lo"},"done":false}`,
			`{"message":{"role":"assistant","content":""},"done":true}`,
		} {
			fmt.Fprintln(w, line)
			flusher.Flush()
		}
	}))
	defer ts.Close()

	p := NewOllamaProvider(ts.URL, "llama3:latest")
	chunks, errs := p.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}})

	got, err := collectStream(t, chunks, errs)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if strings.Join(got, "") != "Hello" {
		t.Fatalf("chunks = %v", got)
	}
	if gotReq.Options.Temperature != SamplingTemperature {
		t.Fatalf("temperature = %v", gotReq.Options.Temperature)
	}
	if !gotReq.Stream {
		t.Fatalf("stream flag not set")
	}
}

func TestOllamaStreamChat_InlineError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"error":"model not found"}`)
	}))
	defer ts.Close()

	p := NewOllamaProvider(ts.URL, "missing")
	chunks, errs := p.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}})

	if _, err := collectStream(t, chunks, errs); err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("inline error not surfaced: %v", err)
	}
}

func TestOllamaStreamChat_CancelStopsStream(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for {
			if _, err := fmt.Fprintln(w, `{"message":{"role":"assistant","content":"x"},"done":false}`); err != nil {
				return
			}
			flusher.Flush()
		}
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := NewOllamaProvider(ts.URL, "llama3:latest")
	chunks, errs := p.StreamChat(ctx, []Message{{Role: "user", Content: "hi"}})

	<-chunks
	cancel()
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

func TestOllamaChat(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"hello"},"done":true}`)
	}))
	defer ts.Close()

	p := NewOllamaProvider(ts.URL, "")
	got, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got != "hello" {
		t.Fatalf("content = %q", got)
	}
}
