package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"stealthcompany.com/wardbook/internal/dal"
	"stealthcompany.com/wardbook/pkg/apperrors"
)

// CreateNoteHandler handles POST /patients/{mrn}/notes
func (s *Server) CreateNoteHandler(w http.ResponseWriter, r *http.Request) {
	var req createNoteRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.svc.Notes.Create(r.Context(), mux.Vars(r)["mrn"], dal.NewNote{
		Content:    req.Content,
		Category:   req.Category,
		AuthorName: req.AuthorName,
		Files:      req.Files,
	}, ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, "Note created", "note", s.renderNote(n))
}

// ListNotesHandler handles GET /patients/{mrn}/notes?includeDeleted=&order=asc|desc
func (s *Server) ListNotesHandler(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	includeDeleted, err := boolParam(r, "includeDeleted")
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts := dal.NoteListOptions{IncludeDeleted: includeDeleted}
	switch r.URL.Query().Get("order") {
	case "", "desc":
	case "asc":
		opts.Ascending = true
	default:
		writeError(w, r, apperrors.Validation("invalid_order", "order must be asc or desc"))
		return
	}

	out, err := s.svc.Notes.List(r.Context(), mux.Vars(r)["mrn"], opts, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for _, n := range out.Items {
		s.renderNote(n)
	}
	respondPage(w, r, "notes", out)
}

// GetNoteHandler handles GET /patients/{mrn}/notes/{noteId}
func (s *Server) GetNoteHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	n, err := s.svc.Notes.Get(r.Context(), vars["mrn"], vars["noteId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "", "note", s.renderNote(n))
}

// PatchNoteHandler handles PATCH /patients/{mrn}/notes/{noteId}
func (s *Server) PatchNoteHandler(w http.ResponseWriter, r *http.Request) {
	var req patchNoteRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	n, err := s.svc.Notes.Patch(r.Context(), vars["mrn"], vars["noteId"], dal.NotePatch{
		Content:  req.Content,
		Category: req.Category,
	}, ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Note updated", "note", s.renderNote(n))
}

// DeleteNoteHandler handles DELETE /patients/{mrn}/notes/{noteId}; notes are only marked deleted
func (s *Server) DeleteNoteHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	n, err := s.svc.Notes.SoftDelete(r.Context(), vars["mrn"], vars["noteId"], ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Note deleted", "note", s.renderNote(n))
}

// NoteFilesHandler handles POST /patients/{mrn}/notes/{noteId}/files/{attach|detach}
func (s *Server) NoteFilesHandler(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	mutate := s.svc.Notes.AttachFile
	if vars["action"] == "detach" {
		mutate = s.svc.Notes.DetachFile
	}
	n, err := mutate(r.Context(), vars["mrn"], vars["noteId"], req.Key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Note files updated", "note", s.renderNote(n))
}
