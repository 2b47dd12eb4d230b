// Package agent runs a natural-language browser task: it interprets the
// instruction with an LLM provider and drives a browser page one action at a
// time (navigate, click, fill, wait) until the model reports the task done.
package agent

import (
	"context"
	"fmt"

	"github.com/aiassistantthx/browser-ai-backend/pkg/browser"
	"github.com/aiassistantthx/browser-ai-backend/pkg/llm"
	"github.com/aiassistantthx/browser-ai-backend/pkg/logging"
	"github.com/aiassistantthx/browser-ai-backend/pkg/types"
)

// Defaults for the action loop.
const (
	DefaultMaxSteps        = 20
	DefaultMaxContentChars = browser.DefaultContentLength

	// maxPromptTokens caps a single request. When the assembled prompt is
	// over budget the page content is halved until it fits.
	maxPromptTokens = 24000
)

// Agent plans and executes browser actions for one instruction at a time.
// An Agent is safe for concurrent Run calls; each run opens its own page.
type Agent struct {
	provider  llm.Provider
	driver    Driver
	tokenizer *Tokenizer
	log       *logging.Logger

	maxSteps        int
	maxContentChars int
}

// Option configures the agent.
type Option func(*Agent)

// WithMaxSteps bounds how many actions a single run may take.
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

// WithMaxContentChars bounds the cleaned page content included per step.
func WithMaxContentChars(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxContentChars = n
		}
	}
}

// New creates an agent backed by the given LLM provider and browser driver.
func New(provider llm.Provider, driver Driver, opts ...Option) (*Agent, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if driver == nil {
		return nil, fmt.Errorf("driver is required")
	}

	log, _ := logging.NewLogger("agent")

	a := &Agent{
		provider:        provider,
		driver:          driver,
		tokenizer:       NewTokenizer(provider.GetModel()),
		log:             log,
		maxSteps:        DefaultMaxSteps,
		maxContentChars: DefaultMaxContentChars,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run executes the instruction against a fresh page and returns the final
// answer text. It satisfies the executor's automation function signature.
// LLM and browser failures surface as automation errors; only internal bugs
// are reported as internal errors.
func (a *Agent) Run(ctx context.Context, instruction types.Instruction) (string, error) {
	page, err := a.driver.NewPage()
	if err != nil {
		return "", types.NewTaskError(types.FailureAutomation, "failed to open browser page: %v", err)
	}
	defer page.Close()

	if instruction.URL != "" {
		if err := page.Navigate(instruction.URL); err != nil {
			return "", types.NewTaskError(types.FailureAutomation, "initial navigation failed: %v", err)
		}
	}

	var history []stepRecord
	for step := 1; step <= a.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		action, err := a.nextAction(ctx, instruction.Task, page, history)
		if err != nil {
			return "", err
		}
		a.log.Debugf("step %d: %s", step, action)

		if action.Action == ActionDone {
			return action.Answer, nil
		}

		execErr := a.execute(page, action)
		if execErr != nil {
			a.log.Warnf("step %d failed: %v", step, execErr)
		}
		history = append(history, stepRecord{action: action, err: execErr})
	}

	return "", types.NewTaskError(types.FailureAutomation,
		"task not completed within %d steps", a.maxSteps)
}

// nextAction captures the page state, assembles the prompt within the token
// budget, and asks the model for the next step.
func (a *Agent) nextAction(ctx context.Context, task string, page Page, history []stepRecord) (*Action, error) {
	prompt, err := a.buildBudgetedPrompt(task, page, history)
	if err != nil {
		return nil, err
	}

	reply, err := a.provider.Complete(ctx, []*llm.Message{
		llm.NewSystemMessage(systemPrompt),
		llm.NewUserMessage(prompt),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, types.NewTaskError(types.FailureAutomation, "completion failed: %v", err)
	}

	action, err := parseAction(reply.Content)
	if err != nil {
		return nil, types.NewTaskError(types.FailureAutomation, "unusable model reply: %v", err)
	}
	return action, nil
}

// buildBudgetedPrompt extracts cleaned page content and shrinks it until the
// full prompt fits the token budget.
func (a *Agent) buildBudgetedPrompt(task string, page Page, history []stepRecord) (string, error) {
	contentChars := a.maxContentChars
	for {
		cleaned, err := page.CleanContent(contentChars)
		if err != nil {
			return "", types.NewTaskError(types.FailureAutomation, "failed to read page: %v", err)
		}

		prompt := buildUserPrompt(task, cleaned, history)
		tokens := a.tokenizer.CountTokens(prompt) + a.tokenizer.CountTokens(systemPrompt)
		if tokens <= maxPromptTokens || contentChars <= 1000 {
			if tokens > maxPromptTokens {
				a.log.Warnf("prompt still %d tokens at minimum content size", tokens)
			}
			return prompt, nil
		}
		contentChars /= 2
	}
}

// execute performs a single browser action. Errors are returned for the
// model to react to on the next step, not treated as fatal.
func (a *Agent) execute(page Page, action *Action) error {
	switch action.Action {
	case ActionNavigate:
		return page.Navigate(action.URL)
	case ActionClick:
		return page.Click(action.Selector)
	case ActionFill:
		return page.Fill(action.Selector, action.Value)
	case ActionWait:
		return page.WaitFor(action.Selector)
	default:
		return fmt.Errorf("unknown action %q", action.Action)
	}
}
