// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/quill-cli/api/schemas"
	"github.com/xkilldash9x/quill-cli/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// Manager owns one browser process and one logical page context for a single
// platform identity. All operations against that identity flow through
// Acquire, which hands the page out to exactly one caller at a time; waiting
// callers are queued in arrival order. The platform treats concurrent
// sessions from one identity as a policy violation, so there is never a
// second page context.
type Manager struct {
	cfg        *config.Config
	platformID string
	logger     *zap.Logger

	mu            sync.Mutex
	started       bool
	fatal         bool
	startFailures int
	page          schemas.Page
	cleanup       func()

	// sem serializes page access. semaphore.Weighted queues waiters FIFO,
	// which gives the arrival-order execution guarantee.
	sem   *semaphore.Weighted
	steps atomic.Uint64

	// launch is replaced in tests to avoid spawning a real browser.
	launch func(ctx context.Context) (schemas.Page, func(), error)
}

// NewManager creates a manager. Browser startup is deferred until the first
// Acquire or an explicit Start.
func NewManager(cfg *config.Config, platformID string, logger *zap.Logger) *Manager {
	m := &Manager{
		cfg:        cfg,
		platformID: platformID,
		logger:     logger.Named("browser_manager").With(zap.String("platform_id", platformID)),
		sem:        semaphore.NewWeighted(1),
	}
	m.launch = m.launchBrowser
	m.logger.Info("Browser manager created (startup deferred).")
	return m
}

// Start launches the browser if it is not already running.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureStartedLocked(ctx)
}

func (m *Manager) ensureStartedLocked(ctx context.Context) error {
	if m.started {
		return nil
	}
	if m.fatal {
		return fmt.Errorf("browser session failed twice consecutively, refusing to retry: %w", schemas.ErrSessionUnavailable)
	}

	page, cleanup, err := m.launch(ctx)
	if err != nil {
		m.startFailures++
		if m.startFailures >= 2 {
			m.fatal = true
			m.logger.Error("Second consecutive browser start failure; session is now fatal.", zap.Error(err))
		} else {
			m.logger.Warn("Browser start failed.", zap.Error(err))
		}
		return fmt.Errorf("start browser session: %w: %w", schemas.ErrSessionUnavailable, err)
	}

	m.startFailures = 0
	m.page = page
	m.cleanup = cleanup
	m.started = true
	m.logger.Info("Browser session started.")
	return nil
}

// launchBrowser spawns the browser process and creates the page target.
func (m *Manager) launchBrowser(ctx context.Context) (schemas.Page, func(), error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.cfg.Browser.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("lang", m.cfg.Browser.Locale),
		chromedp.UserAgent(m.cfg.Browser.UserAgent),
	)
	if w, h := m.cfg.Browser.Viewport["width"], m.cfg.Browser.Viewport["height"]; w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}
	if m.cfg.Browser.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(m.cfg.Browser.UserDataDir))
	}
	for _, arg := range m.cfg.Browser.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	// The allocator lives on a background context: the browser lifetime is
	// bound to the manager, not to whichever operation happened to start it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	pageCtx, pageCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		m.logger.Sugar().Debugf(format, args...)
	}))

	cleanup := func() {
		pageCancel()
		allocCancel()
	}

	// Force the process to start now so failures surface here, not on the
	// first operation.
	startCtx, cancel := context.WithTimeout(pageCtx, m.cfg.Network.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("launch browser process: %w", err)
	}

	return newCDPPage(pageCtx, m.cfg.Network, m.logger), cleanup, nil
}

// Acquire hands out the page to exactly one caller. The returned release
// function must be called when the operation finishes; it is safe to call
// more than once. Callers queued behind an in-flight operation are admitted
// in FIFO order, or fail when their context is canceled while waiting.
func (m *Manager) Acquire(ctx context.Context) (schemas.Page, func(), error) {
	m.mu.Lock()
	err := m.ensureStartedLocked(ctx)
	m.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("acquire browser session: %w", err)
	}

	// The page is re-read after the wait: a shutdown may have destroyed it
	// while this caller was queued.
	m.mu.Lock()
	page := m.page
	started := m.started
	m.mu.Unlock()
	if !started {
		m.sem.Release(1)
		return nil, nil, fmt.Errorf("acquire browser session: session closed while waiting: %w", schemas.ErrSessionUnavailable)
	}

	var once sync.Once
	release := func() {
		once.Do(func() { m.sem.Release(1) })
	}
	return &countedPage{inner: page, steps: &m.steps}, release, nil
}

// ApplyState injects stored cookies into the browser context. Call before
// the first authenticated navigation.
func (m *Manager) ApplyState(ctx context.Context, state *schemas.SessionState) error {
	if state == nil {
		return nil
	}

	page, release, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	jar, ok := pageCookieJar(page)
	if !ok {
		return fmt.Errorf("apply session state: page does not support cookie injection")
	}
	if err := jar.ApplyCookies(ctx, state.Cookies); err != nil {
		return fmt.Errorf("apply session state: %w", err)
	}
	m.logger.Info("Session state applied.", zap.Int("cookies", len(state.Cookies)))
	return nil
}

// CurrentState snapshots the live cookie set for persistence after a
// successful login. The returned state is fully detached.
func (m *Manager) CurrentState(ctx context.Context) (*schemas.SessionState, error) {
	page, release, err := m.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	jar, ok := pageCookieJar(page)
	if !ok {
		return nil, fmt.Errorf("current session state: page does not support cookie extraction")
	}
	cookies, err := jar.SnapshotCookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("current session state: %w", err)
	}

	return &schemas.SessionState{
		PlatformID:  m.platformID,
		Cookies:     cookies,
		ValidatedAt: time.Now().UTC(),
	}, nil
}

// IsAlive probes the page with a trivial evaluation, without navigating. The
// probe takes its turn on the page like any operation; a busy page is itself
// proof of life, so a held semaphore short-circuits to true instead of
// interleaving with the holder's step stream.
func (m *Manager) IsAlive(ctx context.Context) bool {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return false
	}

	if !m.sem.TryAcquire(1) {
		return true
	}
	defer m.sem.Release(1)

	m.mu.Lock()
	page := m.page
	started = m.started
	m.mu.Unlock()
	if !started {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var readyState string
	if err := page.Evaluate(probeCtx, "document.readyState", &readyState); err != nil {
		m.logger.Warn("Liveness probe failed.", zap.Error(err))
		return false
	}
	return readyState != ""
}

// StepCount returns the monotonic count of page interactions performed
// through this manager. Operations hold the page exclusively, so the counter
// ranges observed by two operations never interleave.
func (m *Manager) StepCount() uint64 {
	return m.steps.Load()
}

// Shutdown waits for the in-flight operation (bounded by ctx) and releases
// the browser process deterministically.
func (m *Manager) Shutdown(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, shutdownGracePeriod)
	defer cancel()

	// Draining the semaphore guarantees no operation holds the page when the
	// process goes away.
	if err := m.sem.Acquire(waitCtx, 1); err != nil {
		m.logger.Warn("Timeout waiting for in-flight operation; shutting down anyway.", zap.Error(err))
	} else {
		defer m.sem.Release(1)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil
	}
	if m.cleanup != nil {
		m.cleanup()
	}
	m.page = nil
	m.cleanup = nil
	m.started = false
	m.logger.Info("Browser session shut down.")
	return nil
}

// pageCookieJar unwraps the counting decorator to reach the cookie-capable
// page underneath.
func pageCookieJar(page schemas.Page) (CookieJar, bool) {
	if cp, ok := page.(*countedPage); ok {
		page = cp.inner
	}
	jar, ok := page.(CookieJar)
	return jar, ok
}
