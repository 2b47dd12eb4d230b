package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiassistantthx/browser-ai-backend/pkg/llm"
)

func TestNewProvider(t *testing.T) {
	t.Run("requires api key", func(t *testing.T) {
		os.Unsetenv("OPENAI_API_KEY")
		_, err := NewProvider("")
		assert.Error(t, err)
	})

	t.Run("applies options", func(t *testing.T) {
		p, err := NewProvider("sk-test",
			WithModel("gpt-4o-mini"),
			WithBaseURL("http://localhost:9999/v1"),
		)
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", p.GetModel())
		assert.Equal(t, "http://localhost:9999/v1", p.GetBaseURL())
	})

	t.Run("env base url fallback", func(t *testing.T) {
		t.Setenv("OPENAI_BASE_URL", "http://proxy:8080/v1")
		p, err := NewProvider("sk-test")
		require.NoError(t, err)
		assert.Equal(t, "http://proxy:8080/v1", p.GetBaseURL())
	})
}

// sseServer replies with a canned SSE stream for any chat completion request.
func sseServer(t *testing.T, deltas []string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\",\"content\":\"\"}}]}\n\n")
		for _, d := range deltas {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", d)
		}
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestProvider_Complete(t *testing.T) {
	server := sseServer(t, []string{"Hello", ", ", "world"})
	defer server.Close()

	p, err := NewProvider("sk-test", WithBaseURL(server.URL))
	require.NoError(t, err)

	msg, err := p.Complete(context.Background(), []*llm.Message{
		llm.NewUserMessage("say hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, llm.RoleAssistant, msg.Role)
	assert.Equal(t, "Hello, world", msg.Content)
}

func TestProvider_StreamCompletion(t *testing.T) {
	server := sseServer(t, []string{"a", "b"})
	defer server.Close()

	p, err := NewProvider("sk-test", WithBaseURL(server.URL))
	require.NoError(t, err)

	stream, err := p.StreamCompletion(context.Background(), []*llm.Message{
		llm.NewSystemMessage("sys"),
		llm.NewUserMessage("go"),
	})
	require.NoError(t, err)

	var content string
	finished := false
	for chunk := range stream {
		require.NoError(t, chunk.Error)
		content += chunk.Content
		if chunk.Finished {
			finished = true
		}
	}
	assert.Equal(t, "ab", content)
	assert.True(t, finished)
}

func TestProvider_CompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	p, err := NewProvider("sk-test", WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), []*llm.Message{llm.NewUserMessage("hi")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
