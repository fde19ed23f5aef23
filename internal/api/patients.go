package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"stealthcompany.com/wardbook/internal/dal"
	"stealthcompany.com/wardbook/internal/model"
)

// CreatePatientHandler handles POST /patients
func (s *Server) CreatePatientHandler(w http.ResponseWriter, r *http.Request) {
	var req createPatientRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.Patients.Create(r.Context(), dal.NewPatient{
		MRN:              req.MRN,
		Name:             req.Name,
		DateOfBirth:      req.DateOfBirth,
		Sex:              req.Sex,
		Phone:            req.Phone,
		Bed:              req.Bed,
		Department:       req.Department,
		Status:           model.PatientStatus(req.Status),
		CurrentState:     model.Stage(req.CurrentState),
		Diagnosis:        req.Diagnosis,
		Comorbidities:    req.Comorbidities,
		AssignedDoctorID: req.AssignedDoctorID,
	}, ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, "Patient created", "patient", p)
}

// ListPatientsHandler handles GET /patients?department=&status=
func (s *Server) ListPatientsHandler(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	out, err := s.svc.Patients.List(r.Context(), dal.PatientFilter{
		Department: q.Get("department"),
		Status:     model.PatientStatus(q.Get("status")),
	}, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondPage(w, r, "patients", out)
}

// GetPatientHandler handles GET /patients/{mrn}
func (s *Server) GetPatientHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Patients.Get(r.Context(), mux.Vars(r)["mrn"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "", "patient", p)
}

// PatchPatientHandler handles PUT and PATCH /patients/{mrn}
func (s *Server) PatchPatientHandler(w http.ResponseWriter, r *http.Request) {
	var req patchPatientRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch := dal.PatientPatch{
		Name:             req.Name,
		DateOfBirth:      req.DateOfBirth,
		Sex:              req.Sex,
		Phone:            req.Phone,
		Bed:              req.Bed,
		Department:       req.Department,
		Diagnosis:        req.Diagnosis,
		Comorbidities:    req.Comorbidities,
		AssignedDoctorID: req.AssignedDoctorID,
	}
	if req.Status != nil {
		status := model.PatientStatus(*req.Status)
		patch.Status = &status
	}
	if req.CurrentState != nil {
		state := model.Stage(*req.CurrentState)
		patch.CurrentState = &state
	}

	p, err := s.svc.Patients.Patch(r.Context(), mux.Vars(r)["mrn"], patch, ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Patient updated", "patient", p)
}

// DeletePatientHandler handles DELETE /patients/{mrn}; the record is kept as INACTIVE
func (s *Server) DeletePatientHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Patients.SoftDelete(r.Context(), mux.Vars(r)["mrn"], ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Patient deactivated", "patient", p)
}

// TransitionPatientHandler handles POST /patients/{mrn}/state
func (s *Server) TransitionPatientHandler(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.Patients.Transition(r.Context(), mux.Vars(r)["mrn"], model.Stage(req.State), ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Patient state recorded", "patient", p)
}
