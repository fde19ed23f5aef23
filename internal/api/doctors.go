package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"stealthcompany.com/wardbook/internal/dal"
	"stealthcompany.com/wardbook/internal/model"
	"stealthcompany.com/wardbook/pkg/apperrors"
)

// defaultLeaderboardSize applies when the caller gives no limit
const defaultLeaderboardSize = 10

// CreateDoctorHandler handles POST /doctors
func (s *Server) CreateDoctorHandler(w http.ResponseWriter, r *http.Request) {
	var req createDoctorRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.svc.Doctors.Create(r.Context(), dal.NewDoctor{
		ID:         req.ID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Department: req.Department,
		Role:       model.Role(req.Role),
	}, ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, "Doctor created", "doctor", d)
}

// ListDoctorsHandler handles GET /doctors?department=&role=&includeInactive=
func (s *Server) ListDoctorsHandler(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	includeInactive, err := boolParam(r, "includeInactive")
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	out, err := s.svc.Doctors.List(r.Context(), dal.DoctorFilter{
		Department:      q.Get("department"),
		Role:            model.Role(q.Get("role")),
		IncludeInactive: includeInactive,
	}, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondPage(w, r, "doctors", out)
}

// GetDoctorHandler handles GET /doctors/{doctorId}
func (s *Server) GetDoctorHandler(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Doctors.Get(r.Context(), mux.Vars(r)["doctorId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "", "doctor", d)
}

// PatchDoctorHandler handles PATCH /doctors/{doctorId}
func (s *Server) PatchDoctorHandler(w http.ResponseWriter, r *http.Request) {
	var req patchDoctorRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch := dal.DoctorPatch{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Department: req.Department,
		Active:     req.Active,
	}
	if req.Role != nil {
		role := model.Role(*req.Role)
		patch.Role = &role
	}

	d, err := s.svc.Doctors.Patch(r.Context(), mux.Vars(r)["doctorId"], patch, ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Doctor updated", "doctor", d)
}

// DeleteDoctorHandler handles DELETE /doctors/{doctorId}. The doctor is
// deactivated and drops out of the department listings.
func (s *Server) DeleteDoctorHandler(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Doctors.SoftDelete(r.Context(), mux.Vars(r)["doctorId"], ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Doctor deactivated", "doctor", d)
}

// AwardPointsHandler handles POST /doctors/{doctorId}/points
func (s *Server) AwardPointsHandler(w http.ResponseWriter, r *http.Request) {
	var req pointsRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.svc.Doctors.AwardPoints(r.Context(), mux.Vars(r)["doctorId"], req.Points)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Points awarded", "doctor", d)
}

// LeaderboardHandler handles GET /leaderboard?department=&limit=
func (s *Server) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := defaultLeaderboardSize
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, apperrors.Validation("invalid_limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}
	board, err := s.svc.Doctors.Leaderboard(r.Context(), q.Get("department"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "", "leaderboard", board)
}
