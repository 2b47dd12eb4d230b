package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action names the agent is allowed to emit.
const (
	ActionNavigate = "navigate"
	ActionClick    = "click"
	ActionFill     = "fill"
	ActionWait     = "wait"
	ActionDone     = "done"
)

// Action is one step the model decided to take, parsed from its JSON reply.
type Action struct {
	// Action is one of navigate, click, fill, wait, done.
	Action string `json:"action"`

	// URL is the target for navigate.
	URL string `json:"url,omitempty"`

	// Selector is the CSS selector for click, fill, and wait.
	Selector string `json:"selector,omitempty"`

	// Value is the text to type for fill.
	Value string `json:"value,omitempty"`

	// Answer is the final answer for done.
	Answer string `json:"answer,omitempty"`

	// Reason is the model's short rationale for the step.
	Reason string `json:"reason,omitempty"`
}

// String renders the action compactly for step history and logs.
func (a *Action) String() string {
	switch a.Action {
	case ActionNavigate:
		return fmt.Sprintf("navigate(%s)", a.URL)
	case ActionClick:
		return fmt.Sprintf("click(%s)", a.Selector)
	case ActionFill:
		return fmt.Sprintf("fill(%s, %q)", a.Selector, a.Value)
	case ActionWait:
		return fmt.Sprintf("wait(%s)", a.Selector)
	case ActionDone:
		return "done"
	default:
		return a.Action
	}
}

// parseAction extracts the action JSON from a model reply. Models routinely
// wrap JSON in markdown fences or prose, so the parser scans for the first
// balanced JSON object rather than requiring a bare document.
func parseAction(reply string) (*Action, error) {
	payload := extractJSON(reply)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object found in model reply")
	}

	var action Action
	if err := json.Unmarshal([]byte(payload), &action); err != nil {
		return nil, fmt.Errorf("failed to parse action JSON: %w", err)
	}

	if err := validateAction(&action); err != nil {
		return nil, err
	}
	return &action, nil
}

// validateAction checks the action carries the fields its kind requires.
func validateAction(a *Action) error {
	switch a.Action {
	case ActionNavigate:
		if a.URL == "" {
			return fmt.Errorf("navigate action missing url")
		}
	case ActionClick, ActionWait:
		if a.Selector == "" {
			return fmt.Errorf("%s action missing selector", a.Action)
		}
	case ActionFill:
		if a.Selector == "" {
			return fmt.Errorf("fill action missing selector")
		}
	case ActionDone:
		if a.Answer == "" {
			return fmt.Errorf("done action missing answer")
		}
	case "":
		return fmt.Errorf("model reply missing action field")
	default:
		return fmt.Errorf("unknown action %q", a.Action)
	}
	return nil
}

// extractJSON returns the first balanced top-level JSON object in s, or ""
// when none exists. Braces inside JSON strings are skipped.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
