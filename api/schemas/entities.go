package schemas

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// -- Session State --

// Cookie mirrors the fields the browser needs to restore an authenticated
// context. The shape matches CDP cookie parameters so injection is lossless.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// SessionState is the opaque credential bundle persisted per platform
// identity. It is owned by the session store; the browser manager only ever
// replaces it wholesale after a successful login.
type SessionState struct {
	PlatformID  string            `json:"platform_id"`
	Cookies     []Cookie          `json:"cookies"`
	Tokens      map[string]string `json:"tokens,omitempty"`
	ValidatedAt time.Time         `json:"validated_at"`
}

// Clone returns a deep copy. State crosses the store/manager boundary by
// value only, never by shared reference.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	out := &SessionState{
		PlatformID:  s.PlatformID,
		ValidatedAt: s.ValidatedAt,
	}
	if s.Cookies != nil {
		out.Cookies = make([]Cookie, len(s.Cookies))
		copy(out.Cookies, s.Cookies)
	}
	if s.Tokens != nil {
		out.Tokens = make(map[string]string, len(s.Tokens))
		for k, v := range s.Tokens {
			out.Tokens[k] = v
		}
	}
	return out
}

// -- Read Entities --

// FeedItem is one normalized entry from a platform feed. Every field is a
// detached copy; nothing points back into browser-owned memory.
type FeedItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	AuthorRef   string    `json:"author_ref,omitempty"`
	Excerpt     string    `json:"excerpt,omitempty"`
	MediaRefs   []string  `json:"media_refs,omitempty"`
	AccessToken string    `json:"access_token,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// SearchResult has the same normalized shape as a feed item; the two are
// distinct types because callers treat them as separate result streams.
type SearchResult struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	AuthorRef   string    `json:"author_ref,omitempty"`
	Excerpt     string    `json:"excerpt,omitempty"`
	MediaRefs   []string  `json:"media_refs,omitempty"`
	AccessToken string    `json:"access_token,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// Mention is one entry from the notifications surface where another user
// referenced this identity in a post or comment.
type Mention struct {
	ID        string `json:"id"`
	Type      string `json:"type,omitempty"`
	Body      string `json:"body,omitempty"`
	AuthorRef string `json:"author_ref,omitempty"`
	NoteID    string `json:"note_id,omitempty"`
}

// UserProfile is a user's public profile with their recent notes.
type UserProfile struct {
	UserID    string     `json:"user_id"`
	Nickname  string     `json:"nickname"`
	Bio       string     `json:"bio,omitempty"`
	Followers int        `json:"followers,omitempty"`
	Following int        `json:"following,omitempty"`
	Likes     int        `json:"likes,omitempty"`
	Notes     []FeedItem `json:"notes,omitempty"`
}

// Comment is a node in a post's comment tree. Replies nest exactly one level
// deep, matching the platform's own comment/reply model.
type Comment struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	AuthorRef string    `json:"author_ref,omitempty"`
	Likes     int       `json:"likes,omitempty"`
	Replies   []Comment `json:"replies,omitempty"`
}

// PostDetail is the full detail view of a single post including its comment
// tree.
type PostDetail struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	AuthorRef   string    `json:"author_ref,omitempty"`
	AuthorID    string    `json:"author_id,omitempty"`
	Likes       int       `json:"likes,omitempty"`
	MediaRefs   []string  `json:"media_refs,omitempty"`
	AccessToken string    `json:"access_token,omitempty"`
	Comments    []Comment `json:"comments,omitempty"`
}

// -- Write Entities --

// supportedMediaExtensions lists the upload types the publish composer
// accepts.
var supportedMediaExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
	".mp4":  true,
	".mov":  true,
}

// PublishContent is the write-only input for a publish workflow. It is
// validated before any browser interaction happens and never persisted.
type PublishContent struct {
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	MediaPaths []string `json:"media_paths,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// Validate checks the content before a workflow is allowed to start: the body
// must be non-empty and every media path must exist on disk with a supported
// extension.
func (p *PublishContent) Validate() error {
	if strings.TrimSpace(p.Body) == "" {
		return fmt.Errorf("publish content: body must not be empty")
	}
	for _, mp := range p.MediaPaths {
		info, err := os.Stat(mp)
		if err != nil {
			return fmt.Errorf("publish content: media path %q: %w", mp, err)
		}
		if info.IsDir() {
			return fmt.Errorf("publish content: media path %q is a directory", mp)
		}
		ext := strings.ToLower(filepath.Ext(mp))
		if !supportedMediaExtensions[ext] {
			return fmt.Errorf("publish content: unsupported media type %q for %q", ext, mp)
		}
	}
	return nil
}
