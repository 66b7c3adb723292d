// internal/platform/xiaohongshu/adapter.go
// Package xiaohongshu adapts the shared extraction and workflow machinery to
// xiaohongshu's web surfaces. Reads come from the hydration state with DOM
// fallback; writes run as paced workflows with read-back verification.
package xiaohongshu

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/quill-cli/api/schemas"
	"github.com/xkilldash9x/quill-cli/internal/config"
	"github.com/xkilldash9x/quill-cli/internal/extract"
	"github.com/xkilldash9x/quill-cli/internal/store"
	"github.com/xkilldash9x/quill-cli/internal/workflow"
)

// SessionManager is the slice of the browser manager the adapter consumes.
// Production passes *browser.Manager; tests substitute fakes.
type SessionManager interface {
	Acquire(ctx context.Context) (schemas.Page, func(), error)
	ApplyState(ctx context.Context, state *schemas.SessionState) error
	CurrentState(ctx context.Context) (*schemas.SessionState, error)
}

// Adapter implements schemas.Platform for xiaohongshu.
type Adapter struct {
	cfg    *config.Config
	mgr    SessionManager
	store  store.Store
	ex     *extract.Extractor
	eng    *workflow.Engine
	logger *zap.Logger

	restoreOnce sync.Once
}

var _ schemas.Platform = (*Adapter)(nil)

func New(cfg *config.Config, mgr SessionManager, st store.Store, logger *zap.Logger) *Adapter {
	log := logger.Named(PlatformID)
	return &Adapter{
		cfg:    cfg,
		mgr:    mgr,
		store:  st,
		ex:     extract.New(cfg.Extract, extractProfile(), log),
		eng:    workflow.NewEngine(cfg.Pacing, loginWalled, log),
		logger: log,
	}
}

// loginWalled reports whether the page is overlaid with the login dialog.
func loginWalled(ctx context.Context, page schemas.Page) (bool, error) {
	walled, err := page.Exists(ctx, selLoginWall)
	if err != nil {
		return false, err
	}
	if !walled {
		return false, nil
	}
	loggedIn, err := page.Exists(ctx, selLoggedIn)
	return !loggedIn, err
}

// restoreSession injects persisted cookies once per adapter lifetime. Missing
// or corrupt state is not an error; it just means login is needed.
func (a *Adapter) restoreSession(ctx context.Context) {
	a.restoreOnce.Do(func() {
		state, err := a.store.Load(ctx, PlatformID)
		if err != nil {
			if errors.Is(err, schemas.ErrNotFound) || errors.Is(err, schemas.ErrCorruptState) {
				a.logger.Info("No usable persisted session; starting unauthenticated.")
			} else {
				a.logger.Warn("Session store read failed; starting unauthenticated.", zap.Error(err))
			}
			return
		}
		if err := a.mgr.ApplyState(ctx, state); err != nil {
			a.logger.Warn("Failed to apply persisted session state.", zap.Error(err))
			return
		}
		a.logger.Info("Persisted session restored.", zap.Time("validated_at", state.ValidatedAt))
	})
}

// Login navigates to the login surface and suspends until a human completes
// it (QR scan) or the wait times out. Session state is persisted only after
// the post-login marker is observed.
func (a *Adapter) Login(ctx context.Context) error {
	a.restoreSession(ctx)

	alreadyIn, err := a.loginSurface(ctx)
	if err != nil {
		return err
	}
	if !alreadyIn {
		a.logger.Info("Waiting for human to complete login.",
			zap.Duration("timeout", a.cfg.Pacing.LoginWaitTimeout))
		if err := a.awaitLogin(ctx); err != nil {
			return fmt.Errorf("%w: %v", schemas.ErrAuthenticationRequired, err)
		}
	}

	state, err := a.mgr.CurrentState(ctx)
	if err != nil {
		return fmt.Errorf("snapshot session after login: %w", err)
	}
	if err := a.store.Save(ctx, PlatformID, state); err != nil {
		return fmt.Errorf("persist session after login: %w", err)
	}
	a.logger.Info("Login complete; session persisted.", zap.Int("cookies", len(state.Cookies)))
	return nil
}

// loginSurface opens the explore page and reports whether the session is
// already authenticated. When it is not, it waits for the QR code to render
// so the human has something to scan.
func (a *Adapter) loginSurface(ctx context.Context) (alreadyIn bool, err error) {
	page, release, err := a.mgr.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer release()

	if err := page.Navigate(ctx, exploreURL); err != nil {
		return false, fmt.Errorf("open login surface: %w", err)
	}
	if in, err := page.Exists(ctx, selLoggedIn); err == nil && in {
		return true, nil
	}
	if err := page.WaitVisible(ctx, selLoginQR, a.cfg.Extract.WaitTimeout); err != nil {
		a.logger.Warn("QR code did not render; waiting on the login marker anyway.", zap.Error(err))
		return false, nil
	}
	if src, ok, err := page.Attribute(ctx, selLoginQR, "src"); err == nil && ok && src != "" {
		a.logger.Info("Scan the login QR code to continue.", zap.String("qr_src", src))
	}
	return false, nil
}

func (a *Adapter) awaitLogin(ctx context.Context) error {
	page, release, err := a.mgr.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return a.eng.AwaitMarker(ctx, page, selLoggedIn, a.cfg.Pacing.LoginWaitTimeout)
}

// CheckLogin probes the authenticated-only sidebar marker. It never mutates
// session state.
func (a *Adapter) CheckLogin(ctx context.Context) (bool, error) {
	a.restoreSession(ctx)

	page, release, err := a.mgr.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer release()

	loc, err := page.Location(ctx)
	if err != nil || !strings.HasPrefix(loc, baseURL) {
		if err := page.Navigate(ctx, exploreURL); err != nil {
			return false, fmt.Errorf("open probe surface: %w", err)
		}
	}
	return page.Exists(ctx, selLoggedIn)
}

func (a *Adapter) GetFeeds(ctx context.Context, limit int) ([]schemas.FeedItem, error) {
	a.restoreSession(ctx)

	page, release, err := a.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return a.ex.Feeds(ctx, page, limit)
}

func (a *Adapter) Search(ctx context.Context, keyword string, limit int) ([]schemas.SearchResult, error) {
	a.restoreSession(ctx)

	page, release, err := a.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return a.ex.Search(ctx, page, keyword, limit)
}

func (a *Adapter) GetPostDetail(ctx context.Context, id, token string) (*schemas.PostDetail, error) {
	a.restoreSession(ctx)

	page, release, err := a.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return a.ex.PostDetail(ctx, page, id, token)
}

// GetMentions reads the notification surface. For an unauthenticated session
// the platform serves an empty notification map, which surfaces as an
// extraction failure rather than an auth error.
func (a *Adapter) GetMentions(ctx context.Context, limit int) ([]schemas.Mention, error) {
	a.restoreSession(ctx)

	page, release, err := a.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return a.ex.Mentions(ctx, page, limit)
}

func (a *Adapter) GetUserProfile(ctx context.Context, userID, token string) (*schemas.UserProfile, error) {
	a.restoreSession(ctx)

	page, release, err := a.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return a.ex.UserProfile(ctx, page, userID, token)
}

// Publish runs the creator-studio workflow and returns the new post ID once
// the platform's confirmation page exposes it.
func (a *Adapter) Publish(ctx context.Context, content schemas.PublishContent) (string, error) {
	content = normalizeContent(content)
	if err := content.Validate(); err != nil {
		return "", err
	}
	if err := a.requireLogin(ctx); err != nil {
		return "", err
	}

	page, release, err := a.mgr.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	if _, err := a.eng.Run(ctx, page, publishWorkflow(content, a.cfg.Extract)); err != nil {
		return "", err
	}

	// The confirmation surface links the freshly published note.
	href, ok, err := page.Attribute(ctx, selPublishedLink, "href")
	if err != nil || !ok {
		a.logger.Warn("Publish confirmed but no note link found.", zap.Error(err))
		return "", fmt.Errorf("%w: publish confirmed but note id not observable", schemas.ErrExtractionFailed)
	}
	id, _ := splitExploreHref(href)
	if id == "" {
		return "", fmt.Errorf("%w: unrecognized note link %q", schemas.ErrExtractionFailed, href)
	}
	a.logger.Info("Note published.", zap.String("note_id", id))
	return id, nil
}

// Comment posts a top-level comment and read-back-verifies it is present
// afterward.
func (a *Adapter) Comment(ctx context.Context, postID, body, token string) error {
	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	body = truncateRunes(strings.TrimSpace(body), maxCommentRunes)
	if body == "" {
		return fmt.Errorf("comment body must not be empty")
	}

	page, release, err := a.mgr.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	wf := commentWorkflow("comment", detailURL(postID, token), body, a.cfg.Extract)
	wf.Post = a.readbackCheck(body)
	_, err = a.eng.Run(ctx, page, wf)
	return err
}

// Reply answers a specific comment. When the comment's reply affordance is
// not present in the rendered tree, it degrades to a top-level comment, the
// same behavior the platform UI exhibits for collapsed threads.
func (a *Adapter) Reply(ctx context.Context, postID, commentID, body, token string) error {
	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	body = truncateRunes(strings.TrimSpace(body), maxCommentRunes)
	if body == "" {
		return fmt.Errorf("reply body must not be empty")
	}

	page, release, err := a.mgr.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := page.Navigate(ctx, detailURL(postID, token)); err != nil {
		return fmt.Errorf("open note %s: %w", postID, err)
	}
	hasTrigger, err := page.Exists(ctx, replyTrigger(commentID))
	if err != nil {
		return fmt.Errorf("probe reply trigger: %w", err)
	}

	// The note is already open; both workflows operate on it in place.
	var wf workflow.Workflow
	if hasTrigger {
		wf = replyWorkflow(commentID, body, a.cfg.Extract)
	} else {
		a.logger.Warn("Reply trigger not found; posting as top-level comment.",
			zap.String("comment_id", commentID))
		wf = commentWorkflow("reply_as_comment", "", body, a.cfg.Extract)
	}
	wf.Post = a.readbackCheck(body)
	_, err = a.eng.Run(ctx, page, wf)
	return err
}

// requireLogin gates write operations on a successful login probe.
func (a *Adapter) requireLogin(ctx context.Context) error {
	loggedIn, err := a.CheckLogin(ctx)
	if err != nil {
		return fmt.Errorf("login probe: %w", err)
	}
	if !loggedIn {
		return schemas.ErrAuthenticationRequired
	}
	return nil
}

// readbackCheck verifies the submitted text is observably present in the
// comment area within the configured window. Submission acknowledgment alone
// is not trusted.
func (a *Adapter) readbackCheck(body string) func(ctx context.Context, page schemas.Page) error {
	expr := fmt.Sprintf(
		`Array.from(document.querySelectorAll("[class*='comment']")).some(n => n.textContent.includes(%s))`,
		strconv.Quote(body))
	return func(ctx context.Context, page schemas.Page) error {
		deadline := time.Now().Add(a.cfg.Pacing.ReadbackWindow)
		for {
			var present bool
			if err := page.Evaluate(ctx, expr, &present); err == nil && present {
				return nil
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("submitted text not observable within %s", a.cfg.Pacing.ReadbackWindow)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(a.cfg.Pacing.PollInterval):
			}
		}
	}
}
