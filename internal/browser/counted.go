// internal/browser/counted.go
package browser

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/xkilldash9x/quill-cli/api/schemas"
)

// countedPage wraps a page and bumps the manager's step counter on every
// interaction. Passive waits are counted too: they are observable progress
// of the operation holding the page.
type countedPage struct {
	inner schemas.Page
	steps *atomic.Uint64
}

var _ schemas.Page = (*countedPage)(nil)

func (c *countedPage) Navigate(ctx context.Context, url string) error {
	c.steps.Add(1)
	return c.inner.Navigate(ctx, url)
}

func (c *countedPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	c.steps.Add(1)
	return c.inner.WaitVisible(ctx, selector, timeout)
}

func (c *countedPage) Exists(ctx context.Context, selector string) (bool, error) {
	c.steps.Add(1)
	return c.inner.Exists(ctx, selector)
}

func (c *countedPage) Evaluate(ctx context.Context, expr string, out any) error {
	c.steps.Add(1)
	return c.inner.Evaluate(ctx, expr, out)
}

func (c *countedPage) Text(ctx context.Context, selector string) (string, error) {
	c.steps.Add(1)
	return c.inner.Text(ctx, selector)
}

func (c *countedPage) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	c.steps.Add(1)
	return c.inner.Attribute(ctx, selector, name)
}

func (c *countedPage) HTML(ctx context.Context) (string, error) {
	c.steps.Add(1)
	return c.inner.HTML(ctx)
}

func (c *countedPage) Location(ctx context.Context) (string, error) {
	c.steps.Add(1)
	return c.inner.Location(ctx)
}

func (c *countedPage) Click(ctx context.Context, selector string) error {
	c.steps.Add(1)
	return c.inner.Click(ctx, selector)
}

func (c *countedPage) Type(ctx context.Context, selector, text string) error {
	c.steps.Add(1)
	return c.inner.Type(ctx, selector, text)
}

func (c *countedPage) SetFiles(ctx context.Context, selector string, paths []string) error {
	c.steps.Add(1)
	return c.inner.SetFiles(ctx, selector, paths)
}
