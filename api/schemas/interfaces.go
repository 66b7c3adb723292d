package schemas

import (
	"context"
	"time"
)

// -- Platform Capability Surface --

// Platform is the unified capability set every platform adapter implements.
// Reads are served by structural extraction; writes run as paced workflows.
// All methods are safe for concurrent use: calls against one platform
// identity are serialized internally in arrival order.
type Platform interface {
	// Login drives the interactive login workflow. It suspends while a human
	// completes the login surface (QR scan or credentials) and only persists
	// session state once the post-login marker is observed.
	Login(ctx context.Context) error

	// CheckLogin is a read-only probe of an authenticated-only surface. It
	// never mutates session state.
	CheckLogin(ctx context.Context) (bool, error)

	GetFeeds(ctx context.Context, limit int) ([]FeedItem, error)
	Search(ctx context.Context, keyword string, limit int) ([]SearchResult, error)

	// GetPostDetail fetches a single post with its comment tree. The token is
	// the opaque access token the platform attaches to feed/search entries.
	GetPostDetail(ctx context.Context, id, token string) (*PostDetail, error)

	// GetMentions reads the notification surface for entries where another
	// user referenced this identity.
	GetMentions(ctx context.Context, limit int) ([]Mention, error)

	// GetUserProfile fetches a user's public profile with their recent notes.
	// The token is the same access token feed and search entries carry.
	GetUserProfile(ctx context.Context, userID, token string) (*UserProfile, error)

	// Publish runs the compose workflow and returns the new post ID once the
	// platform confirms submission.
	Publish(ctx context.Context, content PublishContent) (string, error)

	Comment(ctx context.Context, postID, body, token string) error
	Reply(ctx context.Context, postID, commentID, body, token string) error
}

// -- Rendering Engine Capability --

// Page is the narrow surface the extractor and workflow engine consume from
// the managed browser page. Production hands out a CDP-backed implementation;
// tests substitute fakes, mirroring the executor-interface strategy used
// throughout the codebase.
type Page interface {
	// Navigate loads the URL and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until the selector matches a visible element or the
	// timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// Exists reports whether the selector currently matches any element. It
	// does not wait.
	Exists(ctx context.Context, selector string) (bool, error)

	// Evaluate runs the JavaScript expression and unmarshals its JSON result
	// into out. A nil out discards the result.
	Evaluate(ctx context.Context, expr string, out any) error

	// Text returns the inner text of the first element matching selector.
	Text(ctx context.Context, selector string) (string, error)

	// Attribute returns the named attribute of the first matching element and
	// whether it was present.
	Attribute(ctx context.Context, selector, name string) (string, bool, error)

	// HTML returns the serialized document for offline traversal.
	HTML(ctx context.Context) (string, error)

	// Location returns the current page URL.
	Location(ctx context.Context) (string, error)

	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	SetFiles(ctx context.Context, selector string, paths []string) error
}
