// internal/browser/page.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/quill-cli/api/schemas"
	"github.com/xkilldash9x/quill-cli/internal/config"
)

// CookieJar is implemented by pages that can inject and snapshot browser
// cookies. The manager uses it to apply and extract session state; test
// fakes implement it without a real browser.
type CookieJar interface {
	ApplyCookies(ctx context.Context, cookies []schemas.Cookie) error
	SnapshotCookies(ctx context.Context) ([]schemas.Cookie, error)
}

// cdpPage implements schemas.Page (and CookieJar) over a chromedp target.
// Its embedded context is the long-lived page context; every call combines
// it with the caller's operational context.
type cdpPage struct {
	ctx    context.Context
	netCfg config.NetworkConfig
	logger *zap.Logger
}

var (
	_ schemas.Page = (*cdpPage)(nil)
	_ CookieJar    = (*cdpPage)(nil)
)

func newCDPPage(pageCtx context.Context, netCfg config.NetworkConfig, logger *zap.Logger) *cdpPage {
	return &cdpPage{
		ctx:    pageCtx,
		netCfg: netCfg,
		logger: logger.Named("page"),
	}
}

// run executes chromedp actions against the page target, bounded by the
// caller's context and an optional timeout.
func (p *cdpPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()

	if timeout > 0 {
		var tcancel context.CancelFunc
		opCtx, tcancel = context.WithTimeout(opCtx, timeout)
		defer tcancel()
	}

	return chromedp.Run(opCtx, actions...)
}

// Navigate loads the URL, waits for the document body, then lets the page
// settle for the configured post-load period so late-arriving content and
// the embedded state blob have a chance to land.
func (p *cdpPage) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("Navigating", zap.String("url", url))

	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if p.netCfg.PostLoadWait > 0 {
		actions = append(actions, chromedp.Sleep(p.netCfg.PostLoadWait))
	}

	if err := p.run(ctx, p.netCfg.NavigationTimeout, actions...); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (p *cdpPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Exists checks for a selector match without waiting.
func (p *cdpPage) Exists(ctx context.Context, selector string) (bool, error) {
	var present bool
	expr := fmt.Sprintf("document.querySelector(%q) !== null", selector)
	if err := p.run(ctx, 10*time.Second, chromedp.Evaluate(expr, &present)); err != nil {
		return false, fmt.Errorf("query selector %q: %w", selector, err)
	}
	return present, nil
}

func (p *cdpPage) Evaluate(ctx context.Context, expr string, out any) error {
	return p.run(ctx, 0, chromedp.Evaluate(expr, out))
}

func (p *cdpPage) Text(ctx context.Context, selector string) (string, error) {
	var text string
	if err := p.run(ctx, 10*time.Second, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read text of %q: %w", selector, err)
	}
	return text, nil
}

func (p *cdpPage) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	var value string
	var ok bool
	if err := p.run(ctx, 10*time.Second, chromedp.AttributeValue(selector, name, &value, &ok, chromedp.ByQuery)); err != nil {
		return "", false, fmt.Errorf("read attribute %q of %q: %w", name, selector, err)
	}
	return value, ok, nil
}

func (p *cdpPage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, 15*time.Second, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("serialize document: %w", err)
	}
	return html, nil
}

func (p *cdpPage) Location(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, 10*time.Second, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

func (p *cdpPage) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx, 15*time.Second, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

// Type focuses the element, then dispatches real key events rather than
// setting the value attribute, so the page's input handlers fire the same
// way they would for a person.
func (p *cdpPage) Type(ctx context.Context, selector, text string) error {
	err := p.run(ctx, 30*time.Second,
		chromedp.Click(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("type into %q: %w", selector, err)
	}
	return nil
}

func (p *cdpPage) SetFiles(ctx context.Context, selector string, paths []string) error {
	if err := p.run(ctx, 30*time.Second, chromedp.SetUploadFiles(selector, paths, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("attach files to %q: %w", selector, err)
	}
	return nil
}

// ApplyCookies injects the stored cookie set into the browser context.
// Must run before the first authenticated navigation.
func (p *cdpPage) ApplyCookies(ctx context.Context, cookies []schemas.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}

	return p.run(ctx, 15*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			param := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure)
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				param = param.WithExpires(&expires)
			}
			if c.SameSite != "" {
				param = param.WithSameSite(network.CookieSameSite(c.SameSite))
			}
			if err := param.Do(ctx); err != nil {
				return fmt.Errorf("set cookie %q: %w", c.Name, err)
			}
		}
		return nil
	}))
}

// SnapshotCookies extracts the live cookie set as detached copies.
func (p *cdpPage) SnapshotCookies(ctx context.Context) ([]schemas.Cookie, error) {
	var out []schemas.Cookie
	err := p.run(ctx, 15*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		out = make([]schemas.Cookie, 0, len(cookies))
		for _, c := range cookies {
			out = append(out, schemas.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
				SameSite: string(c.SameSite),
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("snapshot cookies: %w", err)
	}
	return out, nil
}
