package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"stealthcompany.com/wardbook/internal/dal"
)

// CreateMedicationHandler handles POST /patients/{mrn}/meds
func (s *Server) CreateMedicationHandler(w http.ResponseWriter, r *http.Request) {
	var req createMedicationRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in := dal.NewMedication{
		Name:         req.Name,
		Dose:         req.Dose,
		Route:        req.Route,
		Frequency:    req.Frequency,
		End:          req.End,
		Instructions: req.Instructions,
		Files:        req.Files,
	}
	if req.Start != nil {
		in.Start = *req.Start
	}

	m, err := s.svc.Medications.Create(r.Context(), mux.Vars(r)["mrn"], in, ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, "Medication created", "medication", s.renderMedication(m))
}

// ListMedicationsHandler handles GET /patients/{mrn}/meds?activeOnly=
func (s *Server) ListMedicationsHandler(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	activeOnly, err := boolParam(r, "activeOnly")
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.svc.Medications.List(r.Context(), mux.Vars(r)["mrn"], activeOnly, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for _, m := range out.Items {
		s.renderMedication(m)
	}
	respondPage(w, r, "medications", out)
}

// GetMedicationHandler handles GET /patients/{mrn}/meds/{medId}
func (s *Server) GetMedicationHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	m, err := s.svc.Medications.Get(r.Context(), vars["mrn"], vars["medId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "", "medication", s.renderMedication(m))
}

// PatchMedicationHandler handles PATCH /patients/{mrn}/meds/{medId}
func (s *Server) PatchMedicationHandler(w http.ResponseWriter, r *http.Request) {
	var req patchMedicationRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	m, err := s.svc.Medications.Patch(r.Context(), vars["mrn"], vars["medId"], dal.MedicationPatch{
		Name:         req.Name,
		Dose:         req.Dose,
		Route:        req.Route,
		Frequency:    req.Frequency,
		Start:        req.Start,
		End:          req.End,
		Instructions: req.Instructions,
	}, ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Medication updated", "medication", s.renderMedication(m))
}

// StopMedicationHandler handles DELETE /patients/{mrn}/meds/{medId}. The
// medication stays on record with its end date set.
func (s *Server) StopMedicationHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	m, err := s.svc.Medications.Stop(r.Context(), vars["mrn"], vars["medId"], ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Medication stopped", "medication", s.renderMedication(m))
}

// MedicationFilesHandler handles POST /patients/{mrn}/meds/{medId}/files/{attach|detach}
func (s *Server) MedicationFilesHandler(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	mutate := s.svc.Medications.AttachFile
	if vars["action"] == "detach" {
		mutate = s.svc.Medications.DetachFile
	}
	m, err := mutate(r.Context(), vars["mrn"], vars["medId"], req.Key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Medication files updated", "medication", s.renderMedication(m))
}
