package api

import (
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/aiassistantthx/browser-ai-backend/pkg/hub"
)

// websocketHandler streams task events to the client as JSON frames. An
// optional ?task_id= query parameter narrows the stream to one task;
// otherwise every task's events are delivered. The stream is lossy under
// sustained backpressure (oldest events dropped); clients re-sync with
// GET /tasks/{id}.
func (s *Server) websocketHandler() http.Handler {
	return websocket.Server{
		// Accept any origin here; CORS-style origin filtering already ran in
		// the middleware and extensions send non-http origins.
		Handshake: func(config *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			s.serveEvents(conn)
		},
	}
}

func (s *Server) serveEvents(conn *websocket.Conn) {
	defer conn.Close()

	filter := hub.Filter{TaskID: conn.Request().URL.Query().Get("task_id")}
	sub, err := s.orch.Subscribe(filter)
	if err != nil {
		return
	}
	defer s.orch.Unsubscribe(sub)

	// Reader goroutine: the client never sends application frames, so any
	// read completion means the connection is gone.
	done := make(chan struct{})
	go func() {
		defer close(done)
		var discard string
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := websocket.JSON.Send(conn, ev); err != nil {
				if s.log != nil {
					s.log.Debugf("websocket send failed: %v", err)
				}
				return
			}
		}
	}
}
