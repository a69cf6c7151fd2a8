package browser

import (
	"context"
	"errors"
	"time"

	"github.com/nickborgers/monorepo/scholar-citations/internal/config"
)

const (
	// NavigationTimeout bounds page load including network quiescence
	NavigationTimeout = 60 * time.Second

	// WaitTimeout bounds waiting for an element to appear in the DOM
	WaitTimeout = 15 * time.Second

	// QueryTimeout bounds a single read-only DOM query
	QueryTimeout = 15 * time.Second
)

var (
	// ErrChromeStartupFailure indicates Chrome failed to start
	ErrChromeStartupFailure = errors.New("chrome failed to start")

	// ErrNavigationTimeout indicates the page did not settle before NavigationTimeout
	ErrNavigationTimeout = errors.New("navigation timed out")

	// ErrNavigation indicates an engine-level load failure (DNS, TLS, HTTP)
	ErrNavigation = errors.New("navigation failed")

	// ErrElementNotFound indicates the awaited element never appeared
	ErrElementNotFound = errors.New("element not found")
)

// Controller opens isolated browsing sessions
type Controller interface {
	Open(ctx context.Context) (Session, error)
}

// Session is one isolated browsing context. Close must be called exactly once
// on every path after a successful Open.
type Session interface {
	// Navigate loads url and waits for the network to go quiet
	Navigate(url string) error

	// WaitFor blocks until an element matching selector exists
	WaitFor(selector string) error

	// Query returns the outer HTML of the first element matching selector
	Query(selector string) (string, error)

	// Close releases the browser and all of its resources
	Close() error
}

// NewController creates a new browser controller
func NewController(cfg *config.BrowserConfig) (Controller, error) {
	return NewControllerImpl(cfg)
}
