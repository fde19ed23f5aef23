package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"stealthcompany.com/wardbook/internal/dal"
	"stealthcompany.com/wardbook/internal/model"
)

// CreateTaskHandler handles POST /patients/{mrn}/tasks
func (s *Server) CreateTaskHandler(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.svc.Tasks.Create(r.Context(), mux.Vars(r)["mrn"], dal.NewTask{
		Title:      req.Title,
		Details:    req.Details,
		AssigneeID: req.AssigneeID,
		Points:     req.Points,
		DueAt:      req.DueAt,
	}, ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, "Task created", "task", t)
}

// ListTasksHandler handles GET /patients/{mrn}/tasks?status=
func (s *Server) ListTasksHandler(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := model.TaskStatus(r.URL.Query().Get("status"))
	out, err := s.svc.Tasks.List(r.Context(), mux.Vars(r)["mrn"], status, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondPage(w, r, "tasks", out)
}

// GetTaskHandler handles GET /patients/{mrn}/tasks/{taskId}
func (s *Server) GetTaskHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	t, err := s.svc.Tasks.Get(r.Context(), vars["mrn"], vars["taskId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "", "task", t)
}

// PatchTaskHandler handles PATCH /patients/{mrn}/tasks/{taskId}
func (s *Server) PatchTaskHandler(w http.ResponseWriter, r *http.Request) {
	var req patchTaskRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	t, err := s.svc.Tasks.Patch(r.Context(), vars["mrn"], vars["taskId"], dal.TaskPatch{
		Title:      req.Title,
		Details:    req.Details,
		AssigneeID: req.AssigneeID,
		Points:     req.Points,
		DueAt:      req.DueAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Task updated", "task", t)
}

// CompleteTaskHandler handles POST /patients/{mrn}/tasks/{taskId}/complete
func (s *Server) CompleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	t, err := s.svc.Tasks.Complete(r.Context(), vars["mrn"], vars["taskId"], ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Task completed", "task", t)
}

// CancelTaskHandler handles DELETE /patients/{mrn}/tasks/{taskId}
func (s *Server) CancelTaskHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	t, err := s.svc.Tasks.Cancel(r.Context(), vars["mrn"], vars["taskId"], ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Task cancelled", "task", t)
}
