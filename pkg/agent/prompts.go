package agent

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/aiassistantthx/browser-ai-backend/pkg/browser"
)

const systemPrompt = `You are a browser automation agent. You control a real
browser and must complete the user's task by issuing one action at a time.

You will be shown the current page (URL, title, cleaned HTML) and the steps
already taken. Reply with a single JSON object and nothing else:

{"action": "navigate", "url": "<absolute url>", "reason": "<short>"}
{"action": "click", "selector": "<css selector>", "reason": "<short>"}
{"action": "fill", "selector": "<css selector>", "value": "<text>", "reason": "<short>"}
{"action": "wait", "selector": "<css selector>", "reason": "<short>"}
{"action": "done", "answer": "<final answer for the user>"}

Rules:
- Use selectors that exist in the HTML you were shown (prefer id, name,
  aria-label, data-* attributes).
- Issue "done" as soon as the task is complete; put everything the user asked
  for in the answer.
- If a previous step failed, the error is included; choose a different
  approach instead of repeating it.`

// defaultEncoding backs token counting when the model has no registered
// tiktoken mapping (local or proxy models).
const defaultEncoding = "cl100k_base"

// Tokenizer counts prompt tokens so page content can be budgeted before a
// request is sent.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenizer resolves the tokenizer for a model, trying the cl100k_base
// encoding for unknown models. When no encoding can be loaded (tiktoken
// fetches BPE data on first use and may be offline) the tokenizer falls
// back to a characters/4 approximation, which is good enough for budgeting.
func NewTokenizer(model string) *Tokenizer {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, _ = tiktoken.GetEncoding(defaultEncoding)
	}
	return &Tokenizer{encoding: encoding}
}

// CountTokens returns the token count of the text.
func (t *Tokenizer) CountTokens(text string) int {
	if t.encoding == nil {
		return len(text) / 4
	}
	return len(t.encoding.Encode(text, nil, nil))
}

// stepRecord is one executed action and its outcome, fed back to the model.
type stepRecord struct {
	action *Action
	err    error
}

func (r stepRecord) String() string {
	if r.err != nil {
		return fmt.Sprintf("%s -> failed: %v", r.action, r.err)
	}
	return fmt.Sprintf("%s -> ok", r.action)
}

// buildUserPrompt assembles the per-step prompt: task, step history, and the
// current page state.
func buildUserPrompt(task string, page *browser.CleanedPage, history []stepRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Task: %s\n\n", task)

	if len(history) > 0 {
		b.WriteString("Steps taken so far:\n")
		for i, record := range history {
			fmt.Fprintf(&b, "%d. %s\n", i+1, record)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Current page:\nURL: %s\nTitle: %s\n", page.URL, page.Title)
	if page.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", page.Description)
	}
	if page.Truncated {
		b.WriteString("(page content truncated)\n")
	}
	fmt.Fprintf(&b, "\nHTML:\n%s\n", page.HTML)

	b.WriteString("\nReply with the next action as a single JSON object.")
	return b.String()
}
