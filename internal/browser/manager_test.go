// internal/browser/manager_test.go
package browser

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/quill-cli/api/schemas"
	"github.com/xkilldash9x/quill-cli/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakePage is an in-memory schemas.Page that also satisfies CookieJar.
type fakePage struct {
	mu      sync.Mutex
	calls   []string
	cookies []schemas.Cookie
}

func (f *fakePage) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakePage) Navigate(_ context.Context, url string) error {
	f.record("navigate:" + url)
	return nil
}

func (f *fakePage) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	f.record("wait:" + selector)
	return nil
}

func (f *fakePage) Exists(_ context.Context, selector string) (bool, error) {
	f.record("exists:" + selector)
	return true, nil
}

func (f *fakePage) Evaluate(_ context.Context, expr string, out any) error {
	f.record("eval:" + expr)
	if s, ok := out.(*string); ok && expr == "document.readyState" {
		*s = "complete"
	}
	return nil
}

func (f *fakePage) Text(_ context.Context, selector string) (string, error) {
	f.record("text:" + selector)
	return "", nil
}

func (f *fakePage) Attribute(_ context.Context, selector, name string) (string, bool, error) {
	f.record("attr:" + selector + ":" + name)
	return "", false, nil
}

func (f *fakePage) HTML(_ context.Context) (string, error) {
	f.record("html")
	return "<html></html>", nil
}

func (f *fakePage) Location(_ context.Context) (string, error) {
	f.record("location")
	return "about:blank", nil
}

func (f *fakePage) Click(_ context.Context, selector string) error {
	f.record("click:" + selector)
	return nil
}

func (f *fakePage) Type(_ context.Context, selector, text string) error {
	f.record("type:" + selector)
	return nil
}

func (f *fakePage) SetFiles(_ context.Context, selector string, _ []string) error {
	f.record("files:" + selector)
	return nil
}

func (f *fakePage) ApplyCookies(_ context.Context, cookies []schemas.Cookie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookies = append(f.cookies, cookies...)
	return nil
}

func (f *fakePage) SnapshotCookies(_ context.Context) ([]schemas.Cookie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schemas.Cookie(nil), f.cookies...), nil
}

func newTestManager(t *testing.T) (*Manager, *fakePage, *atomic.Int32) {
	t.Helper()
	page := &fakePage{}
	var launches atomic.Int32

	m := NewManager(config.NewDefaultConfig(), "xiaohongshu", zap.NewNop())
	m.launch = func(ctx context.Context) (schemas.Page, func(), error) {
		launches.Add(1)
		return page, func() {}, nil
	}
	return m, page, &launches
}

func TestManagerStartIsLazyAndIdempotent(t *testing.T) {
	m, _, launches := newTestManager(t)
	assert.Zero(t, launches.Load(), "browser must not launch before first use")

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.Start(ctx))
	assert.Equal(t, int32(1), launches.Load())

	require.NoError(t, m.Shutdown(ctx))
}

func TestManagerAcquireLaunchesOnDemand(t *testing.T) {
	m, _, launches := newTestManager(t)
	ctx := context.Background()

	page, release, err := m.Acquire(ctx)
	require.NoError(t, err)
	defer release()

	assert.Equal(t, int32(1), launches.Load())
	require.NoError(t, page.Navigate(ctx, "https://example.com"))
	assert.Equal(t, uint64(1), m.StepCount())

	release()
	require.NoError(t, m.Shutdown(ctx))
}

func TestManagerTwoStartFailuresAreFatal(t *testing.T) {
	m := NewManager(config.NewDefaultConfig(), "xiaohongshu", zap.NewNop())
	var launches atomic.Int32
	m.launch = func(ctx context.Context) (schemas.Page, func(), error) {
		launches.Add(1)
		return nil, nil, errors.New("chrome exited immediately")
	}

	ctx := context.Background()
	_, _, err := m.Acquire(ctx)
	require.ErrorIs(t, err, schemas.ErrSessionUnavailable)
	_, _, err = m.Acquire(ctx)
	require.ErrorIs(t, err, schemas.ErrSessionUnavailable)
	assert.Equal(t, int32(2), launches.Load())

	// After two consecutive failures the manager refuses to retry.
	_, _, err = m.Acquire(ctx)
	require.ErrorIs(t, err, schemas.ErrSessionUnavailable)
	assert.Equal(t, int32(2), launches.Load(), "fatal manager must not attempt another launch")
}

func TestManagerStartFailureThenSuccessResets(t *testing.T) {
	page := &fakePage{}
	m := NewManager(config.NewDefaultConfig(), "xiaohongshu", zap.NewNop())
	var launches atomic.Int32
	m.launch = func(ctx context.Context) (schemas.Page, func(), error) {
		if launches.Add(1) == 1 {
			return nil, nil, errors.New("transient launch failure")
		}
		return page, func() {}, nil
	}

	ctx := context.Background()
	_, _, err := m.Acquire(ctx)
	require.ErrorIs(t, err, schemas.ErrSessionUnavailable)

	_, release, err := m.Acquire(ctx)
	require.NoError(t, err, "a single failure must not latch the session")
	release()
	require.NoError(t, m.Shutdown(ctx))
}

func TestManagerSerializesOperations(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	const workers = 4
	const stepsPerWorker = 25

	type window struct{ first, last uint64 }
	windows := make([]window, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			page, release, err := m.Acquire(ctx)
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			first := m.StepCount() + 1
			for s := 0; s < stepsPerWorker; s++ {
				_ = page.Navigate(ctx, "https://example.com")
				time.Sleep(time.Millisecond)
			}
			windows[slot] = window{first: first, last: m.StepCount()}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, uint64(workers*stepsPerWorker), m.StepCount())

	// Exclusive page ownership means each operation observed a contiguous,
	// non-overlapping counter range.
	for i := 0; i < workers; i++ {
		assert.Equal(t, uint64(stepsPerWorker), windows[i].last-windows[i].first+1,
			"operation %d interleaved with another", i)
		for j := i + 1; j < workers; j++ {
			overlap := windows[i].first <= windows[j].last && windows[j].first <= windows[i].last
			assert.False(t, overlap, "operations %d and %d overlapped", i, j)
		}
	}

	require.NoError(t, m.Shutdown(ctx))
}

func TestManagerAcquireHonorsContextWhileQueued(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	_, release, err := m.Acquire(ctx)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, _, err = m.Acquire(waitCtx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	require.NoError(t, m.Shutdown(ctx))
}

func TestManagerReleaseIsIdempotent(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	_, release, err := m.Acquire(ctx)
	require.NoError(t, err)
	release()
	release()

	_, release2, err := m.Acquire(ctx)
	require.NoError(t, err)
	release2()
	require.NoError(t, m.Shutdown(ctx))
}

func TestManagerSessionStateRoundTrip(t *testing.T) {
	m, page, _ := newTestManager(t)
	ctx := context.Background()

	seed := &schemas.SessionState{
		PlatformID: "xiaohongshu",
		Cookies: []schemas.Cookie{
			{Name: "web_session", Value: "abc123", Domain: ".xiaohongshu.com", Path: "/"},
		},
	}
	require.NoError(t, m.ApplyState(ctx, seed))
	assert.Len(t, page.cookies, 1)

	state, err := m.CurrentState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "xiaohongshu", state.PlatformID)
	require.Len(t, state.Cookies, 1)
	assert.Equal(t, "web_session", state.Cookies[0].Name)
	assert.WithinDuration(t, time.Now(), state.ValidatedAt, 5*time.Second)

	require.NoError(t, m.Shutdown(ctx))
}

func TestManagerApplyNilStateIsNoop(t *testing.T) {
	m, _, launches := newTestManager(t)
	require.NoError(t, m.ApplyState(context.Background(), nil))
	assert.Zero(t, launches.Load())
}

func TestManagerIsAlive(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	assert.False(t, m.IsAlive(ctx), "not alive before start")
	require.NoError(t, m.Start(ctx))
	assert.True(t, m.IsAlive(ctx))

	require.NoError(t, m.Shutdown(ctx))
	assert.False(t, m.IsAlive(ctx), "not alive after shutdown")
}

func TestManagerQueuedAcquireFailsAfterForcedShutdown(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	_, release, err := m.Acquire(ctx)
	require.NoError(t, err)

	// A second caller passes the started check, then queues behind the holder.
	queued := make(chan error, 1)
	go func() {
		_, _, err := m.Acquire(ctx)
		queued <- err
	}()
	time.Sleep(10 * time.Millisecond)

	// A shutdown that gives up on the holder destroys the page anyway.
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	require.NoError(t, m.Shutdown(shutdownCtx))
	cancel()

	release()
	require.ErrorIs(t, <-queued, schemas.ErrSessionUnavailable,
		"a caller admitted after shutdown must not receive the destroyed page")
}

func TestManagerIsAliveDoesNotTouchHeldPage(t *testing.T) {
	m, page, _ := newTestManager(t)
	ctx := context.Background()

	_, release, err := m.Acquire(ctx)
	require.NoError(t, err)

	assert.True(t, m.IsAlive(ctx), "an operation holding the page is proof of life")

	page.mu.Lock()
	probes := 0
	for _, c := range page.calls {
		if c == "eval:document.readyState" {
			probes++
		}
	}
	page.mu.Unlock()
	assert.Zero(t, probes, "the probe must not run under another operation")

	release()
	assert.True(t, m.IsAlive(ctx), "an idle page is probed directly")
	require.NoError(t, m.Shutdown(ctx))
}

func TestManagerShutdownReleasesProcess(t *testing.T) {
	m, _, _ := newTestManager(t)
	var cleaned atomic.Bool
	page := &fakePage{}
	m.launch = func(ctx context.Context) (schemas.Page, func(), error) {
		return page, func() { cleaned.Store(true) }, nil
	}

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.Shutdown(ctx))
	assert.True(t, cleaned.Load())

	// Shutdown of a stopped manager is a no-op.
	require.NoError(t, m.Shutdown(ctx))
}
