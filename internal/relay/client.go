package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/socialcapitalacademy/coach/internal/ai"
	"github.com/socialcapitalacademy/coach/internal/session"
)

// Client speaks the relay wire contract over HTTP, so a session store
// can target a relay running elsewhere. It satisfies session.Relay.
type Client struct {
	BaseURL string
	Client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		// No client timeout; streams outlive any sane fixed deadline
		// and ctx controls cancellation.
		Client: &http.Client{},
	}
}

// StreamChat posts the transcript and forwards the raw text stream as
// chunks in arrival order. Both channels are closed when the stream
// ends.
func (c *Client) StreamChat(ctx context.Context, messages []ai.Message, profile *session.Profile) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		b, err := json.Marshal(ChatRequest{Messages: messages, StudentProfile: profile})
		if err != nil {
			errs <- err
			return
		}

		url := strings.TrimRight(c.BaseURL, "/") + "/api/chat"
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			errs <- err
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.Client.Do(req)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			var body struct {
				Error string `json:"error"`
			}
			_ = json.NewDecoder(io.LimitReader(resp.Body, 4*1024)).Decode(&body)
			if body.Error == "" {
				body.Error = fmt.Sprintf("status %d", resp.StatusCode)
			}
			errs <- fmt.Errorf("relay: %s", body.Error)
			return
		}

		buf := make([]byte, 4096)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				select {
				case chunks <- string(buf[:n]):
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				errs <- err
				return
			}
		}
	}()

	return chunks, errs
}
