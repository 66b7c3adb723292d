// internal/extract/extract.go
// Package extract derives structured entities from a rendered page. It
// prefers the serialized state blob platforms embed for hydration, because
// that survives markup churn, and falls back to DOM traversal when the blob
// is absent or malformed. Extraction never mutates page state.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/quill-cli/api/schemas"
	"github.com/xkilldash9x/quill-cli/internal/config"
)

// Profile is the per-platform extraction table: URL builders, readiness
// markers, the expression that serializes the embedded state blob, and the
// decoders for both sources. The extraction algorithm itself is platform
// agnostic.
type Profile struct {
	FeedURL     string
	SearchURL   func(keyword string) string
	DetailURL   func(id, token string) string
	MentionsURL string
	ProfileURL  func(userID, token string) string

	FeedMarker     string
	SearchMarker   string
	DetailMarker   string
	MentionsMarker string
	ProfileMarker  string

	// NotFoundMarker, when present on a detail page, means the post does not
	// exist or is not accessible to this identity.
	NotFoundMarker string

	// StateExpr evaluates in the page to the serialized embedded state, or
	// to an empty string when the page carries none.
	StateExpr string

	DecodeFeeds    func(raw []byte) ([]schemas.FeedItem, error)
	DecodeSearch   func(raw []byte) ([]schemas.SearchResult, error)
	DecodeDetail   func(raw []byte, id string) (*schemas.PostDetail, error)
	DecodeMentions func(raw []byte) ([]schemas.Mention, error)
	DecodeProfile  func(raw []byte, userID string) (*schemas.UserProfile, error)

	FeedsFromDOM  func(doc *html.Node) ([]schemas.FeedItem, error)
	SearchFromDOM func(doc *html.Node) ([]schemas.SearchResult, error)
	DetailFromDOM func(doc *html.Node, id string) (*schemas.PostDetail, error)
}

// Extractor runs the read pipeline over an acquired page.
type Extractor struct {
	cfg     config.ExtractConfig
	profile Profile
	logger  *zap.Logger
}

func New(cfg config.ExtractConfig, profile Profile, logger *zap.Logger) *Extractor {
	return &Extractor{cfg: cfg, profile: profile, logger: logger.Named("extractor")}
}

// Feeds extracts up to limit feed items from the platform's discovery surface.
func (e *Extractor) Feeds(ctx context.Context, page schemas.Page, limit int) ([]schemas.FeedItem, error) {
	if err := e.ensurePage(ctx, page, e.profile.FeedURL, e.profile.FeedMarker); err != nil {
		return nil, err
	}

	items, stateErr := decodeState(ctx, page, e.profile.StateExpr, e.profile.DecodeFeeds)
	if stateErr != nil {
		e.logger.Debug("Embedded state unusable for feeds, falling back to DOM.", zap.Error(stateErr))
		var domErr error
		items, domErr = decodeDOM(ctx, page, e.profile.FeedsFromDOM)
		if domErr != nil {
			return nil, fmt.Errorf("%w: feeds: state: %v; dom: %v", schemas.ErrExtractionFailed, stateErr, domErr)
		}
	}
	return clampFeeds(items, limit), nil
}

// Search extracts up to limit results for keyword.
func (e *Extractor) Search(ctx context.Context, page schemas.Page, keyword string, limit int) ([]schemas.SearchResult, error) {
	if err := e.ensurePage(ctx, page, e.profile.SearchURL(keyword), e.profile.SearchMarker); err != nil {
		return nil, err
	}

	results, stateErr := decodeState(ctx, page, e.profile.StateExpr, e.profile.DecodeSearch)
	if stateErr != nil {
		e.logger.Debug("Embedded state unusable for search, falling back to DOM.", zap.Error(stateErr))
		var domErr error
		results, domErr = decodeDOM(ctx, page, e.profile.SearchFromDOM)
		if domErr != nil {
			return nil, fmt.Errorf("%w: search %q: state: %v; dom: %v", schemas.ErrExtractionFailed, keyword, stateErr, domErr)
		}
	}
	return clampResults(results, limit), nil
}

// PostDetail extracts one post with its comment tree. The token is the
// opaque access credential the platform attaches to detail links.
func (e *Extractor) PostDetail(ctx context.Context, page schemas.Page, id, token string) (*schemas.PostDetail, error) {
	if err := e.ensurePage(ctx, page, e.profile.DetailURL(id, token), e.profile.DetailMarker); err != nil {
		// A missing detail marker usually means the post is gone; check the
		// dedicated marker before reporting a timeout.
		if errors.Is(err, schemas.ErrExtractionTimeout) && e.missing(ctx, page) {
			return nil, fmt.Errorf("%w: post %s", schemas.ErrNotFound, id)
		}
		return nil, err
	}
	if e.missing(ctx, page) {
		return nil, fmt.Errorf("%w: post %s", schemas.ErrNotFound, id)
	}

	detail, stateErr := decodeState(ctx, page, e.profile.StateExpr, func(raw []byte) (*schemas.PostDetail, error) {
		return e.profile.DecodeDetail(raw, id)
	})
	if stateErr != nil {
		e.logger.Debug("Embedded state unusable for detail, falling back to DOM.", zap.Error(stateErr))
		var domErr error
		detail, domErr = decodeDOM(ctx, page, func(doc *html.Node) (*schemas.PostDetail, error) {
			return e.profile.DetailFromDOM(doc, id)
		})
		if domErr != nil {
			if errors.Is(stateErr, schemas.ErrNotFound) || errors.Is(domErr, schemas.ErrNotFound) {
				return nil, fmt.Errorf("%w: post %s", schemas.ErrNotFound, id)
			}
			return nil, fmt.Errorf("%w: detail %s: state: %v; dom: %v", schemas.ErrExtractionFailed, id, stateErr, domErr)
		}
	}

	if e.cfg.MaxComments > 0 && len(detail.Comments) > e.cfg.MaxComments {
		detail.Comments = detail.Comments[:e.cfg.MaxComments]
	}
	return detail, nil
}

// Mentions extracts up to limit notification entries that reference this
// identity. The notification surface renders from the hydration state alone,
// so there is no DOM path to fall back to.
func (e *Extractor) Mentions(ctx context.Context, page schemas.Page, limit int) ([]schemas.Mention, error) {
	if err := e.ensurePage(ctx, page, e.profile.MentionsURL, e.profile.MentionsMarker); err != nil {
		return nil, err
	}

	items, err := decodeState(ctx, page, e.profile.StateExpr, e.profile.DecodeMentions)
	if err != nil {
		return nil, fmt.Errorf("%w: mentions: %v", schemas.ErrExtractionFailed, err)
	}
	return clampMentions(items, limit), nil
}

// UserProfile extracts a user's public profile with their recent notes. Like
// Mentions this is a state-only read.
func (e *Extractor) UserProfile(ctx context.Context, page schemas.Page, userID, token string) (*schemas.UserProfile, error) {
	if err := e.ensurePage(ctx, page, e.profile.ProfileURL(userID, token), e.profile.ProfileMarker); err != nil {
		if errors.Is(err, schemas.ErrExtractionTimeout) && e.missing(ctx, page) {
			return nil, fmt.Errorf("%w: user %s", schemas.ErrNotFound, userID)
		}
		return nil, err
	}

	profile, err := decodeState(ctx, page, e.profile.StateExpr, func(raw []byte) (*schemas.UserProfile, error) {
		return e.profile.DecodeProfile(raw, userID)
	})
	if err != nil {
		if errors.Is(err, schemas.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s", schemas.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("%w: profile %s: %v", schemas.ErrExtractionFailed, userID, err)
	}
	return profile, nil
}

// ensurePage navigates to target unless the page is already there, then
// waits for the readiness marker.
func (e *Extractor) ensurePage(ctx context.Context, page schemas.Page, target, marker string) error {
	current, err := page.Location(ctx)
	if err != nil || !sameDocument(current, target) {
		if err := page.Navigate(ctx, target); err != nil {
			return fmt.Errorf("%w: navigate %s: %v", schemas.ErrExtractionFailed, target, err)
		}
	}

	if err := page.WaitVisible(ctx, marker, e.cfg.WaitTimeout); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: marker %q never appeared on %s", schemas.ErrExtractionTimeout, marker, target)
		}
		return fmt.Errorf("%w: wait %q: %v", schemas.ErrExtractionFailed, marker, err)
	}
	return nil
}

func (e *Extractor) missing(ctx context.Context, page schemas.Page) bool {
	if e.profile.NotFoundMarker == "" {
		return false
	}
	present, err := page.Exists(ctx, e.profile.NotFoundMarker)
	return err == nil && present
}

// decodeState pulls the embedded state blob and runs the typed decoder.
func decodeState[T any](ctx context.Context, page schemas.Page, expr string, decode func([]byte) (T, error)) (T, error) {
	var zero T
	if expr == "" || decode == nil {
		return zero, errors.New("no embedded state source configured")
	}

	var raw string
	if err := page.Evaluate(ctx, expr, &raw); err != nil {
		return zero, fmt.Errorf("evaluate state expression: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return zero, errors.New("page carries no embedded state")
	}
	return decode([]byte(raw))
}

// decodeDOM snapshots the page markup and runs the typed DOM decoder.
func decodeDOM[T any](ctx context.Context, page schemas.Page, decode func(*html.Node) (T, error)) (T, error) {
	var zero T
	if decode == nil {
		return zero, errors.New("no DOM fallback configured")
	}

	markup, err := page.HTML(ctx)
	if err != nil {
		return zero, fmt.Errorf("snapshot page markup: %w", err)
	}
	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return zero, fmt.Errorf("parse page markup: %w", err)
	}
	return decode(doc)
}

// sameDocument compares URLs ignoring fragments, so an in-page anchor jump
// does not force a reload.
func sameDocument(current, target string) bool {
	trim := func(u string) string {
		if i := strings.IndexByte(u, '#'); i >= 0 {
			u = u[:i]
		}
		return strings.TrimSuffix(u, "/")
	}
	return trim(current) == trim(target)
}

// clampFeeds dedupes by id preserving first occurrence, then truncates.
func clampFeeds(items []schemas.FeedItem, limit int) []schemas.FeedItem {
	out := make([]schemas.FeedItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		it.Title = strings.TrimSpace(it.Title)
		it.Excerpt = strings.TrimSpace(it.Excerpt)
		out = append(out, it)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func clampMentions(items []schemas.Mention, limit int) []schemas.Mention {
	out := make([]schemas.Mention, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, m := range items {
		if m.ID == "" {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		m.Body = strings.TrimSpace(m.Body)
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func clampResults(results []schemas.SearchResult, limit int) []schemas.SearchResult {
	out := make([]schemas.SearchResult, 0, len(results))
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		if r.ID == "" {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		r.Title = strings.TrimSpace(r.Title)
		r.Excerpt = strings.TrimSpace(r.Excerpt)
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
