// Package browser manages the pool of Playwright-driven browser sessions the
// automation agent runs tasks in. The Playwright runtime is bootstrapped
// lazily on the first session so the server starts fast and stays healthy
// even when no automation has run yet.
package browser

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
)

// Manager owns the Playwright runtime and all open sessions.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	playwright *playwright.Playwright
	opts       Options
	started    bool
}

// NewManager creates a session manager. The Playwright runtime is not
// started until the first session is requested.
func NewManager(opts Options) *Manager {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Viewport.Width <= 0 || opts.Viewport.Height <= 0 {
		opts.Viewport = Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = DefaultOperationTimeout
	}
	return &Manager{
		sessions: make(map[string]*Session),
		opts:     opts,
	}
}

// ensureStarted installs and runs Playwright once. Must be called with m.mu
// held.
func (m *Manager) ensureStarted() error {
	if m.started {
		return nil
	}

	// Discard driver output so it cannot pollute the server's stdio.
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.started = true
	return nil
}

// Ready reports whether the Playwright runtime has been bootstrapped.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// NewSession launches a fresh browser, context, and page for one task.
func (m *Manager) NewSession() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.opts.MaxSessions {
		return nil, fmt.Errorf("maximum number of sessions (%d) reached", m.opts.MaxSessions)
	}

	if err := m.ensureStarted(); err != nil {
		return nil, err
	}

	browser, err := m.playwright.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.opts.Headless),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  m.opts.Viewport.Width,
			Height: m.opts.Viewport.Height,
		},
	})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(m.opts.OperationTimeout)

	now := time.Now()
	session := &Session{
		ID:         uuid.New().String(),
		Browser:    browser,
		Context:    context,
		Page:       page,
		Headless:   m.opts.Headless,
		CreatedAt:  now,
		LastUsedAt: now,
	}
	m.sessions[session.ID] = session
	return session, nil
}

// CloseSession closes a session's browser resources and removes it from the
// pool. Unknown ids are a no-op so task cleanup paths can call it blindly.
func (m *Manager) CloseSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return
	}
	closeSessionResources(session)
	delete(m.sessions, id)
}

// SessionCount returns the number of open sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CleanupIdle closes sessions unused for longer than the idle timeout and
// returns how many were closed.
func (m *Manager) CleanupIdle() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	closed := 0
	for id, session := range m.sessions {
		if now.Sub(session.LastUsedAt) > m.opts.IdleTimeout {
			closeSessionResources(session)
			delete(m.sessions, id)
			closed++
		}
	}
	return closed
}

// Shutdown closes every session and stops the Playwright runtime.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, session := range m.sessions {
		closeSessionResources(session)
		delete(m.sessions, id)
	}

	if m.started && m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		m.started = false
	}
	return nil
}

func closeSessionResources(s *Session) {
	// Best-effort teardown; a half-dead browser must not abort cleanup.
	_ = s.Page.Close()
	_ = s.Context.Close()
	_ = s.Browser.Close()
}
