package session

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Durable blob keys. Field names and key names match the web client's
// storage layout so existing blobs load unchanged.
const (
	KeyStats    = "sca_stats"
	KeyProfile  = "sca_profile"
	KeySessions = "sca_sessions"
)

const (
	defaultTitle   = "New Conversation"
	titleRuneLimit = 30
)

// Message timestamps are Unix milliseconds.
type Message struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"createdAt"`
}

type Session struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Messages     []Message `json:"messages"`
	CreatedAt    int64     `json:"createdAt"`
	LastActivity int64     `json:"lastActivity"`
}

func (sess *Session) clone() Session {
	c := *sess
	c.Messages = append([]Message(nil), sess.Messages...)
	return c
}

// Profile carries the optional personalization attributes rendered into
// the system prompt. Unset fields must stay absent from the JSON form.
type Profile struct {
	FirstGen      *bool    `json:"firstGen,omitempty"`
	IdentityNotes string   `json:"identityNotes,omitempty"`
	Interests     []string `json:"interests,omitempty"`
	Confidence    string   `json:"confidence,omitempty"` // low | medium | high
}

func (p Profile) clone() Profile {
	c := p
	if p.FirstGen != nil {
		v := *p.FirstGen
		c.FirstGen = &v
	}
	if p.Interests != nil {
		c.Interests = append([]string(nil), p.Interests...)
	}
	return c
}

type UserStats struct {
	TotalConversations int   `json:"totalConversations"`
	GoalsSet           int   `json:"goalsSet"`
	LastActivity       int64 `json:"lastActivity"`
}

func deriveTitle(text string) string {
	r := []rune(text)
	if len(r) > titleRuneLimit {
		return string(r[:titleRuneLimit]) + "..."
	}
	return text
}
