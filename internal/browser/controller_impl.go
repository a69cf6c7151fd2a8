package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/nickborgers/monorepo/scholar-citations/internal/config"
)

// Lifecycle event names that count as network quiescence
var quietLifecycleEvents = map[string]bool{
	"networkAlmostIdle": true,
	"networkIdle":       true,
}

// ControllerImpl is the concrete implementation of the browser controller
type ControllerImpl struct {
	config        *config.BrowserConfig
	allocatorOpts []chromedp.ExecAllocatorOption
}

// NewControllerImpl creates a new browser controller with chromedp
func NewControllerImpl(cfg *config.BrowserConfig) (*ControllerImpl, error) {
	if cfg == nil {
		return nil, errors.New("browser config is required")
	}

	// Allocator options are shared, but every Open gets its own allocator
	// so sessions never share cookies, cache or a renderer process
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox, // Required for Docker
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		chromedp.Flag("log-level", "3"), // Suppress Chrome warnings
	}

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}

	if cfg.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	return &ControllerImpl{
		config:        cfg,
		allocatorOpts: opts,
	}, nil
}

// Open starts a fresh browser and returns a session bound to its first tab
func (c *ControllerImpl) Open(ctx context.Context) (Session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocatorOpts...)
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)

	// Running with no actions starts the browser, so startup failures surface here
	// and the browser's lifetime is tied to taskCtx rather than a step deadline
	if err := chromedp.Run(taskCtx); err != nil {
		cancelTask()
		cancelAlloc()
		return nil, fmt.Errorf("%w: %v", ErrChromeStartupFailure, err)
	}

	return &chromeSession{
		ctx:         taskCtx,
		cancelTask:  cancelTask,
		cancelAlloc: cancelAlloc,
	}, nil
}

// chromeSession is a Session backed by one chromedp browser
type chromeSession struct {
	ctx         context.Context
	cancelTask  context.CancelFunc
	cancelAlloc context.CancelFunc
	closeOnce   sync.Once
}

// Navigate loads url and waits for the main frame of that navigation to reach
// networkAlmostIdle
func (s *chromeSession) Navigate(url string) error {
	ctx, cancel := context.WithTimeout(s.ctx, NavigationTimeout)
	defer cancel()

	watcher := newQuietWatcher()
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok {
			watcher.observe(e)
		}
	})

	err := chromedp.Run(ctx,
		page.SetLifecycleEventsEnabled(true),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameID, loaderID, errorText, err := page.Navigate(url).Do(ctx)
			switch {
			case err != nil:
				return err
			case errorText != "":
				return fmt.Errorf("page load error %s", errorText)
			}
			watcher.expect(frameID, loaderID)
			return nil
		}),
	)
	if err != nil {
		return classifyNavigationError(err)
	}

	select {
	case <-watcher.quiet:
		return nil
	case <-ctx.Done():
		return classifyNavigationError(ctx.Err())
	}
}

type frameLoader struct {
	frame  cdp.FrameID
	loader cdp.LoaderID
}

// quietWatcher releases quiet once the expected frame and loader report a
// quiet lifecycle event. Events for other documents, such as the replayed
// state of the initial about:blank tab or an iframe, are ignored. Events may
// arrive before the navigation returns its loader ID, so they are remembered.
type quietWatcher struct {
	mu       sync.Mutex
	seen     map[frameLoader]bool
	target   *frameLoader
	quiet    chan struct{}
	released bool
}

func newQuietWatcher() *quietWatcher {
	return &quietWatcher{
		seen:  make(map[frameLoader]bool),
		quiet: make(chan struct{}),
	}
}

func (w *quietWatcher) observe(e *page.EventLifecycleEvent) {
	if !quietLifecycleEvents[e.Name] {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	key := frameLoader{frame: e.FrameID, loader: e.LoaderID}
	if w.target == nil {
		w.seen[key] = true
		return
	}
	if key == *w.target {
		w.release()
	}
}

func (w *quietWatcher) expect(frameID cdp.FrameID, loaderID cdp.LoaderID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.target = &frameLoader{frame: frameID, loader: loaderID}
	// Same-document navigations load nothing new
	if loaderID == "" || w.seen[*w.target] {
		w.release()
	}
	w.seen = nil
}

// release must be called with mu held
func (w *quietWatcher) release() {
	if !w.released {
		w.released = true
		close(w.quiet)
	}
}

// WaitFor blocks until selector matches an element or WaitTimeout elapses
func (s *chromeSession) WaitFor(selector string) error {
	ctx, cancel := context.WithTimeout(s.ctx, WaitTimeout)
	defer cancel()

	if err := chromedp.Run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s after %v", ErrElementNotFound, selector, WaitTimeout)
		}
		return fmt.Errorf("waiting for %s: %w", selector, err)
	}
	return nil
}

// Query returns the outer HTML of the first element matching selector
func (s *chromeSession) Query(selector string) (string, error) {
	ctx, cancel := context.WithTimeout(s.ctx, QueryTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML(selector, &html, chromedp.ByQuery)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s after %v", ErrElementNotFound, selector, QueryTimeout)
		}
		return "", fmt.Errorf("querying %s: %w", selector, err)
	}
	return html, nil
}

// Close shuts down the tab, the browser process and the allocator
func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.cancelTask()
		s.cancelAlloc()
	})
	return nil
}

// classifyNavigationError maps a chromedp navigation failure onto the error taxonomy
func classifyNavigationError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || categorizeError(err) == "timeout" {
		return fmt.Errorf("%w after %v: %v", ErrNavigationTimeout, NavigationTimeout, err)
	}
	return fmt.Errorf("%w (%s): %v", ErrNavigation, categorizeError(err), err)
}

// categorizeError determines the error type
func categorizeError(err error) string {
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "context deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "err_timed_out"):
		return "timeout"
	case strings.Contains(errStr, "err_name_not_resolved"):
		return "dns"
	case strings.Contains(errStr, "dns"):
		return "dns"
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "err_connection_refused"):
		return "connection_refused"
	case strings.Contains(errStr, "err_cert"), strings.Contains(errStr, "err_ssl"):
		return "tls"
	case strings.Contains(errStr, "tls"):
		return "tls"
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "no such host"):
		return "dns"
	default:
		return "unknown"
	}
}

// ErrorCategory returns a short label for err suitable for logs and metrics
func ErrorCategory(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrChromeStartupFailure):
		return "startup"
	case errors.Is(err, ErrNavigationTimeout):
		return "timeout"
	case errors.Is(err, ErrElementNotFound):
		return "element_not_found"
	default:
		return categorizeError(err)
	}
}
