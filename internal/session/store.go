// Package session owns chat sessions, messages, the student profile and
// usage stats, and persists all of them through the blob port after
// every mutation.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/socialcapitalacademy/coach/internal/ai"
	"github.com/socialcapitalacademy/coach/internal/blob"
	"github.com/socialcapitalacademy/coach/internal/common"
)

var (
	// ErrBusy rejects a second send while one is in flight.
	ErrBusy = errors.New("session: a send is already in flight")
	// ErrEmptyMessage marks a send whose text is blank after trimming.
	// The store performs no mutation in that case.
	ErrEmptyMessage = errors.New("session: message text is empty")
)

// Relay delivers a transcript plus profile to the model and streams the
// assistant reply back as decoded text chunks.
type Relay interface {
	StreamChat(ctx context.Context, messages []ai.Message, profile *Profile) (<-chan string, <-chan error)
}

type Options struct {
	// ContextWindow caps how many of the most recent messages are sent
	// upstream per turn. <=0 or >100 falls back to 20.
	ContextWindow int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type Store struct {
	mu     sync.Mutex
	blobs  blob.Store
	relay  Relay
	window int
	now    func() time.Time

	sessions  []*Session
	currentID string
	profile   Profile
	stats     UserStats
	busy      bool

	subMu   sync.Mutex
	subSeq  int
	subs    map[int]func()
}

// sessionsBlob is the persisted shape of the session collection. A bare
// JSON array (the older layout, sessions only) is accepted on load.
type sessionsBlob struct {
	Sessions         []*Session `json:"sessions"`
	CurrentSessionID string     `json:"currentSessionId"`
}

// Open loads the store from durable storage. Missing or unparseable
// blobs fall back to defaults; an empty session collection gets one
// fresh active session installed before Open returns, so mutations
// never race the initial load.
func Open(ctx context.Context, blobs blob.Store, relay Relay, opts Options) (*Store, error) {
	window := opts.ContextWindow
	if window <= 0 || window > 100 {
		window = 20
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Store{
		blobs:  blobs,
		relay:  relay,
		window: window,
		now:    now,
		subs:   make(map[int]func()),
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	if raw, ok, err := s.blobs.Load(ctx, KeyStats); err != nil {
		return err
	} else if ok {
		var st UserStats
		if json.Unmarshal(raw, &st) == nil {
			s.stats = st
		}
	}

	if raw, ok, err := s.blobs.Load(ctx, KeyProfile); err != nil {
		return err
	} else if ok {
		var p Profile
		if json.Unmarshal(raw, &p) == nil {
			s.profile = p
		}
	}

	raw, ok, err := s.blobs.Load(ctx, KeySessions)
	if err != nil {
		return err
	}
	if ok {
		var env sessionsBlob
		if json.Unmarshal(raw, &env) == nil && len(env.Sessions) > 0 {
			s.sessions = env.Sessions
			s.currentID = env.CurrentSessionID
		} else {
			var plain []*Session
			if json.Unmarshal(raw, &plain) == nil {
				s.sessions = plain
			}
		}
	}

	if len(s.sessions) == 0 {
		fresh, err := s.allocSession()
		if err != nil {
			return err
		}
		s.sessions = []*Session{fresh}
		s.currentID = fresh.ID
		return s.saveSessionsLocked(ctx)
	}
	if s.findLocked(s.currentID) == nil {
		s.currentID = s.mostRecentLocked().ID
	}
	return nil
}

// NewSession allocates a session record without inserting it.
func (s *Store) NewSession() (*Session, error) {
	return s.allocSession()
}

func (s *Store) allocSession() (*Session, error) {
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	now := s.now().UnixMilli()
	return &Session{
		ID:           id,
		Title:        defaultTitle,
		Messages:     []Message{},
		CreatedAt:    now,
		LastActivity: now,
	}, nil
}

// SendMessage appends the user message to the active session (creating
// one if none exists), invokes the relay with the recent history plus
// the current profile, and applies streamed chunks to a placeholder
// assistant message in arrival order. At most one send may be in flight
// per store.
func (s *Store) SendMessage(ctx context.Context, text string) (<-chan string, <-chan error, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, nil, ErrBusy
	}

	sess := s.findLocked(s.currentID)
	if sess == nil {
		fresh, err := s.allocSession()
		if err != nil {
			s.mu.Unlock()
			return nil, nil, err
		}
		s.sessions = append(s.sessions, fresh)
		s.currentID = fresh.ID
		sess = fresh
	}

	now := s.now().UnixMilli()
	sess.Messages = append(sess.Messages, Message{
		ID:        common.NewMessageID(),
		Role:      RoleUser,
		Content:   text,
		CreatedAt: now,
	})
	sess.LastActivity = now
	if len(sess.Messages) == 1 {
		sess.Title = deriveTitle(text)
	}

	// History excludes the placeholder about to be appended.
	history := providerWindow(sess.Messages, s.window)

	placeholder := Message{
		ID:        common.NewMessageID(),
		Role:      RoleAssistant,
		CreatedAt: now,
	}
	sess.Messages = append(sess.Messages, placeholder)

	// The send targets a captured session/message pair; if the session
	// is deleted before completion, chunk application is dropped.
	sid, mid := sess.ID, placeholder.ID
	profile := s.profile.clone()
	s.busy = true

	if err := s.saveSessionsLocked(ctx); err != nil {
		s.busy = false
		s.mu.Unlock()
		return nil, nil, err
	}
	s.mu.Unlock()
	s.notify()

	out := make(chan string, 16)
	errsOut := make(chan error, 1)

	// Chunks persist under a detached context: a consumer that walks
	// away mid-stream must not lose the partial reply or wedge the
	// store.
	persistCtx := context.WithoutCancel(ctx)

	go func() {
		defer close(out)
		defer close(errsOut)
		defer func() {
			s.mu.Lock()
			s.busy = false
			s.mu.Unlock()
		}()

		chunks, errs := s.relay.StreamChat(ctx, history, &profile)
		forwarding := true
		for c := range chunks {
			if err := s.applyChunk(persistCtx, sid, mid, c); err != nil {
				errsOut <- err
				// The relay keeps streaming; empty its channel so its
				// goroutine can exit.
				go func() {
					for range chunks {
					}
				}()
				return
			}
			if forwarding {
				select {
				case out <- c:
				case <-ctx.Done():
					// Consumer abandoned the stream. Keep applying
					// chunks so the session transcript stays complete.
					forwarding = false
				}
			}
		}

		select {
		case err := <-errs:
			if err != nil {
				errsOut <- err
				return
			}
		default:
		}

		if err := s.finishTurn(persistCtx); err != nil {
			errsOut <- err
		}
	}()

	return out, errsOut, nil
}

func (s *Store) applyChunk(ctx context.Context, sessionID, messageID, delta string) error {
	s.mu.Lock()
	sess := s.findLocked(sessionID)
	if sess == nil {
		s.mu.Unlock()
		return nil
	}
	for i := range sess.Messages {
		if sess.Messages[i].ID == messageID {
			sess.Messages[i].Content += delta
			break
		}
	}
	sess.LastActivity = s.now().UnixMilli()
	err := s.saveSessionsLocked(ctx)
	s.mu.Unlock()
	s.notify()
	return err
}

func (s *Store) finishTurn(ctx context.Context) error {
	s.mu.Lock()
	s.stats.TotalConversations++
	s.stats.LastActivity = s.now().UnixMilli()
	err := s.saveStatsLocked(ctx)
	s.mu.Unlock()
	s.notify()
	return err
}

// SwitchToSession activates the session with the given id; unknown ids
// are a no-op.
func (s *Store) SwitchToSession(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.findLocked(id) == nil {
		s.mu.Unlock()
		return nil
	}
	s.currentID = id
	err := s.saveSessionsLocked(ctx)
	s.mu.Unlock()
	s.notify()
	return err
}

// DeleteSession removes the session with the given id. Deleting the
// active session activates the most recently active remainder, or a
// fresh session when none remain.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := -1
	for i, sess := range s.sessions {
		if sess.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)

	if s.currentID == id {
		if len(s.sessions) > 0 {
			s.currentID = s.mostRecentLocked().ID
		} else {
			fresh, err := s.allocSession()
			if err != nil {
				s.mu.Unlock()
				return err
			}
			s.sessions = append(s.sessions, fresh)
			s.currentID = fresh.ID
		}
	}

	err := s.saveSessionsLocked(ctx)
	s.mu.Unlock()
	s.notify()
	return err
}

// ResetToNewSession starts a fresh conversation without deleting any
// existing session.
func (s *Store) ResetToNewSession(ctx context.Context) (Session, error) {
	s.mu.Lock()
	fresh, err := s.allocSession()
	if err != nil {
		s.mu.Unlock()
		return Session{}, err
	}
	s.sessions = append(s.sessions, fresh)
	s.currentID = fresh.ID
	err = s.saveSessionsLocked(ctx)
	out := fresh.clone()
	s.mu.Unlock()
	s.notify()
	return out, err
}

func (s *Store) SetProfile(ctx context.Context, p Profile) error {
	s.mu.Lock()
	s.profile = p.clone()
	err := s.saveProfileLocked(ctx)
	s.mu.Unlock()
	s.notify()
	return err
}

// Subscribe registers a change callback invoked after every mutation.
// The returned function unsubscribes.
func (s *Store) Subscribe(fn func()) func() {
	s.subMu.Lock()
	s.subSeq++
	id := s.subSeq
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Read accessors return copies; callers never share store internals.

func (s *Store) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.clone())
	}
	return out
}

func (s *Store) CurrentSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// ActiveMessages is the transcript of the active session.
func (s *Store) ActiveMessages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findLocked(s.currentID)
	if sess == nil {
		return nil
	}
	return append([]Message(nil), sess.Messages...)
}

func (s *Store) Profile() Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.clone()
}

func (s *Store) Stats() UserStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Store) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Store) findLocked(id string) *Session {
	if id == "" {
		return nil
	}
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}

func (s *Store) mostRecentLocked() *Session {
	best := s.sessions[0]
	for _, sess := range s.sessions[1:] {
		if sess.LastActivity > best.LastActivity {
			best = sess
		}
	}
	return best
}

func providerWindow(msgs []Message, window int) []ai.Message {
	if len(msgs) > window {
		msgs = msgs[len(msgs)-window:]
	}
	out := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ai.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

func (s *Store) saveSessionsLocked(ctx context.Context) error {
	b, err := json.Marshal(sessionsBlob{Sessions: s.sessions, CurrentSessionID: s.currentID})
	if err != nil {
		return err
	}
	return s.blobs.Save(ctx, KeySessions, b)
}

func (s *Store) saveProfileLocked(ctx context.Context) error {
	b, err := json.Marshal(s.profile)
	if err != nil {
		return err
	}
	return s.blobs.Save(ctx, KeyProfile, b)
}

func (s *Store) saveStatsLocked(ctx context.Context) error {
	b, err := json.Marshal(s.stats)
	if err != nil {
		return err
	}
	return s.blobs.Save(ctx, KeyStats, b)
}
