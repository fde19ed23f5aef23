package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"stealthcompany.com/wardbook/internal/dal"
	"stealthcompany.com/wardbook/internal/model"
)

// GetDocumentsHandler handles GET /patients/{mrn}/documents. A patient without
// a stored bundle gets an empty one that is not persisted.
func (s *Server) GetDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Documents.Get(r.Context(), mux.Vars(r)["mrn"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "", "documents", s.renderBundle(b))
}

// InitDocumentsHandler handles POST /patients/{mrn}/documents/init
func (s *Server) InitDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	b, created, err := s.svc.Documents.Init(r.Context(), mux.Vars(r)["mrn"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !created {
		respond(w, r, http.StatusOK, "Document bundle already exists", "documents", s.renderBundle(b))
		return
	}
	respond(w, r, http.StatusCreated, "Document bundle created", "documents", s.renderBundle(b))
}

// AttachDocumentHandler handles POST /patients/{mrn}/documents/attach
func (s *Server) AttachDocumentHandler(w http.ResponseWriter, r *http.Request) {
	var req attachDocumentRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.svc.Documents.Attach(r.Context(), mux.Vars(r)["mrn"], dal.AttachInput{
		Category: model.Category(req.Category),
		Attachment: model.Attachment{
			Key:        req.Key,
			Caption:    req.Caption,
			MimeType:   req.MimeType,
			Size:       req.Size,
			UploadedBy: req.UploadedBy,
		},
		ReplaceOldest: req.ReplaceOldest,
	}, ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Document attached", "documents", s.renderBundle(b))
}

// DetachDocumentHandler handles POST /patients/{mrn}/documents/detach
func (s *Server) DetachDocumentHandler(w http.ResponseWriter, r *http.Request) {
	var req detachDocumentRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.svc.Documents.Detach(r.Context(), mux.Vars(r)["mrn"], model.Category(req.Category), req.Key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Document detached", "documents", s.renderBundle(b))
}
