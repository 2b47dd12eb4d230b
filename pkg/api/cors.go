package api

import (
	"net/http"

	"github.com/gobwas/glob"
)

// originMatcher matches request origins against configured glob patterns,
// e.g. "chrome-extension://*" or "https://*.example.com".
type originMatcher struct {
	patterns []glob.Glob
	allowAll bool
}

// newOriginMatcher compiles the allowed-origin patterns. Invalid patterns
// are rejected at startup rather than silently never matching.
func newOriginMatcher(origins []string) (*originMatcher, error) {
	m := &originMatcher{}
	for _, origin := range origins {
		if origin == "*" {
			m.allowAll = true
			continue
		}
		g, err := glob.Compile(origin)
		if err != nil {
			return nil, err
		}
		m.patterns = append(m.patterns, g)
	}
	return m, nil
}

func (m *originMatcher) matches(origin string) bool {
	if m.allowAll {
		return true
	}
	for _, g := range m.patterns {
		if g.Match(origin) {
			return true
		}
	}
	return false
}

// corsMiddleware adds CORS headers for allowed origins and answers preflight
// requests. Disallowed origins pass through without CORS headers; the
// browser enforces the block.
func corsMiddleware(m *originMatcher, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && m.matches(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
