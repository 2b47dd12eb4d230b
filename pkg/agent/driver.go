package agent

import (
	"github.com/aiassistantthx/browser-ai-backend/pkg/browser"
)

// Page is the surface the agent drives. It is satisfied by a live browser
// session and by fakes in tests.
type Page interface {
	Navigate(url string) error
	Click(selector string) error
	Fill(selector, value string) error
	WaitFor(selector string) error
	URL() string
	CleanContent(maxLength int) (*browser.CleanedPage, error)
	Close() error
}

// Driver opens a fresh page for each task run.
type Driver interface {
	NewPage() (Page, error)
}

// managerDriver adapts the browser session manager to the Driver interface.
type managerDriver struct {
	manager *browser.Manager
}

// NewBrowserDriver wraps a session manager so the agent can open pages
// through it.
func NewBrowserDriver(m *browser.Manager) Driver {
	return &managerDriver{manager: m}
}

func (d *managerDriver) NewPage() (Page, error) {
	session, err := d.manager.NewSession()
	if err != nil {
		return nil, err
	}
	return &sessionPage{session: session, manager: d.manager}, nil
}

// sessionPage binds a session to its manager so Close releases the pooled
// browser resources.
type sessionPage struct {
	session *browser.Session
	manager *browser.Manager
}

func (p *sessionPage) Navigate(url string) error        { return p.session.Navigate(url) }
func (p *sessionPage) Click(selector string) error      { return p.session.Click(selector) }
func (p *sessionPage) Fill(selector, value string) error { return p.session.Fill(selector, value) }
func (p *sessionPage) WaitFor(selector string) error    { return p.session.WaitFor(selector) }
func (p *sessionPage) URL() string                      { return p.session.URL() }

func (p *sessionPage) CleanContent(maxLength int) (*browser.CleanedPage, error) {
	return p.session.CleanContent(maxLength)
}

func (p *sessionPage) Close() error {
	p.manager.CloseSession(p.session.ID)
	return nil
}
