package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aiassistantthx/browser-ai-backend/pkg/hub"
	"github.com/aiassistantthx/browser-ai-backend/pkg/types"
)

// submitRequest is the task submission payload.
type submitRequest struct {
	URL  string `json:"url"`
	Task string `json:"task"`
}

// browseResponse is the synchronous /browse reply.
type browseResponse struct {
	TaskID string           `json:"task_id"`
	Status types.TaskStatus `json:"status"`
	Result string           `json:"result,omitempty"`
	Error  *types.TaskError `json:"error,omitempty"`
}

// healthResponse is the /health reply.
type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeSubmit parses and validates a submission payload.
func decodeSubmit(r *http.Request) (types.Instruction, error) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return types.Instruction{}, errors.New("invalid JSON body")
	}
	if req.Task == "" {
		return types.Instruction{}, errors.New("task must not be empty")
	}
	return types.Instruction{URL: req.URL, Task: req.Task}, nil
}

// handleSubmit accepts a task and returns its pending snapshot immediately.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	instruction, err := decodeSubmit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.orch.Submit(r.Context(), instruction)
	writeJSON(w, http.StatusAccepted, snap)
}

// handleGet returns the current snapshot of one task.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := s.orch.Query(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleList returns all tracked tasks, newest first.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": s.orch.List(),
	})
}

// handleCancel requests cancellation. Cancelling a terminal task returns its
// unchanged snapshot; only unknown ids are an error.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	snap, err := s.orch.Cancel(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleHealth reports service liveness and automation-stack readiness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "healthy",
		Service:   ServiceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if s.ready != nil && !s.ready() {
		resp.Status = "degraded"
		resp.Message = "browser automation not initialized"
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleBrowse submits a task and blocks until it reaches a terminal state.
// Kept for clients built against the original synchronous API; new clients
// should POST /tasks and subscribe to /ws.
func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	instruction, err := decodeSubmit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.orch.Submit(r.Context(), instruction)

	sub, err := s.orch.Subscribe(hub.Filter{TaskID: snap.ID})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}
	defer s.orch.Unsubscribe(sub)

	// The terminal event may have fired before the subscription existed;
	// check the store once after subscribing.
	if current, err := s.orch.Query(snap.ID); err == nil && current.Status.IsTerminal() {
		writeBrowseResult(w, current)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			// Client gave up; the task keeps running and stays queryable.
			return
		case ev, ok := <-sub.Events():
			if !ok {
				writeError(w, http.StatusServiceUnavailable, "event stream closed")
				return
			}
			if !ev.IsTerminal() {
				continue
			}
			current, err := s.orch.Query(snap.ID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeBrowseResult(w, current)
			return
		}
	}
}

func writeBrowseResult(w http.ResponseWriter, t types.Task) {
	writeJSON(w, http.StatusOK, browseResponse{
		TaskID: t.ID,
		Status: t.Status,
		Result: t.Result,
		Error:  t.Error,
	})
}
