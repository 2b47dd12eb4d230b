package browser

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// touch updates the LastUsedAt timestamp.
func (s *Session) touch() {
	s.LastUsedAt = time.Now()
}

// Navigate loads the given URL and waits for the DOM to be ready.
func (s *Session) Navigate(url string) error {
	s.touch()

	waitUntil := playwright.WaitUntilStateDomcontentloaded
	_, err := s.Page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntil,
	})
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Click clicks the first element matching the selector.
func (s *Session) Click(selector string) error {
	s.touch()

	if err := s.Page.Click(selector); err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}
	return nil
}

// Fill types the value into the input matching the selector.
func (s *Session) Fill(selector, value string) error {
	s.touch()

	if err := s.Page.Fill(selector, value); err != nil {
		return fmt.Errorf("fill of %q failed: %w", selector, err)
	}
	return nil
}

// WaitFor waits for an element matching the selector to become visible.
func (s *Session) WaitFor(selector string) error {
	s.touch()

	state := playwright.WaitForSelectorStateVisible
	_, err := s.Page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State: state,
	})
	if err != nil {
		return fmt.Errorf("wait for %q failed: %w", selector, err)
	}
	return nil
}

// URL returns the page's current URL.
func (s *Session) URL() string {
	return s.Page.URL()
}

// CleanContent returns the current page reduced to cleaned semantic HTML,
// truncated to maxLength characters (DefaultContentLength when <= 0).
func (s *Session) CleanContent(maxLength int) (*CleanedPage, error) {
	s.touch()

	if maxLength <= 0 {
		maxLength = DefaultContentLength
	}

	raw, err := s.Page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}

	cleaned, err := cleanHTML(raw, maxLength)
	if err != nil {
		return nil, err
	}
	cleaned.URL = s.Page.URL()
	return cleaned, nil
}
