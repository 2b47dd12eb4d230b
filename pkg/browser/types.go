package browser

import (
	"time"

	"github.com/playwright-community/playwright-go"
)

// Session is one isolated browser instance used to run a single automation
// task. Sessions are not safe for concurrent use; each task gets its own.
type Session struct {
	// ID uniquely identifies the session.
	ID string

	// Browser is the Playwright browser instance.
	Browser playwright.Browser

	// Context is the isolated browser context.
	Context playwright.BrowserContext

	// Page is the active page.
	Page playwright.Page

	// Headless indicates whether the browser runs without a visible window.
	Headless bool

	// CreatedAt is when the session was opened.
	CreatedAt time.Time

	// LastUsedAt is when the session last performed an operation.
	LastUsedAt time.Time
}

// Options configures the manager's browser sessions.
type Options struct {
	// Headless controls whether browsers run without a visible window.
	Headless bool

	// MaxSessions bounds how many sessions may be open at once. Should match
	// the executor's concurrency bound.
	MaxSessions int

	// IdleTimeout is how long an unused session survives before the cleanup
	// pass closes it.
	IdleTimeout time.Duration

	// Viewport sets the page dimensions.
	Viewport Viewport

	// OperationTimeout is the default timeout for page operations, in
	// milliseconds (Playwright convention).
	OperationTimeout float64
}

// Viewport represents browser page dimensions.
type Viewport struct {
	Width  int
	Height int
}

// CleanedPage is page content reduced to what an LLM needs for planning the
// next action: semantic structure with targeting attributes, scripts and
// styling stripped.
type CleanedPage struct {
	URL         string
	Title       string
	Description string
	HTML        string
	Truncated   bool
}

// Defaults for session management and page operations.
const (
	DefaultMaxSessions      = 4
	DefaultIdleTimeout      = 5 * time.Minute
	DefaultViewportWidth    = 1280
	DefaultViewportHeight   = 720
	DefaultOperationTimeout = 30000.0 // milliseconds
	DefaultContentLength    = 12000   // characters of cleaned HTML
)
