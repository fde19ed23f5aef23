package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"stealthcompany.com/wardbook/internal/dal"
	"stealthcompany.com/wardbook/internal/metrics"
	"stealthcompany.com/wardbook/pkg/apperrors"
)

// Options configures the HTTP surface
type Options struct {
	CDNDomain       string
	RequireIdentity bool
	RateLimitRPS    float64
	RateLimitBurst  int
}

// Server holds the dependencies every handler needs. It keeps no per-request state.
type Server struct {
	svc             *dal.Service
	cdnDomain       string
	requireIdentity bool
	limiter         *RateLimiter
	validate        *validator.Validate
}

// NewServer wires the handlers to the entity stores
func NewServer(svc *dal.Service, opts Options) *Server {
	return &Server{
		svc:             svc,
		cdnDomain:       opts.CDNDomain,
		requireIdentity: opts.RequireIdentity,
		limiter:         NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		validate:        newValidator(),
	}
}

// SetupRoutes configures and returns the HTTP handler
func (s *Server) SetupRoutes() http.Handler {
	r := mux.NewRouter()

	r.Use(metrics.MetricsMiddleware)
	r.Use(s.limiter.Middleware)
	r.Use(IdentityMiddleware(s.requireIdentity))

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, req, http.StatusNotFound, &apperrors.AppError{Reason: "route_not_found", Message: "no such endpoint"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, req, http.StatusMethodNotAllowed, &apperrors.AppError{Reason: "method_not_allowed", Message: "method not allowed"})
	})

	r.HandleFunc(HealthPath, HealthHandler).Methods("GET")
	r.Handle(MetricsPath, metrics.Handler()).Methods("GET")

	// Patients
	r.HandleFunc("/patients", s.CreatePatientHandler).Methods("POST")
	r.HandleFunc("/patients", s.ListPatientsHandler).Methods("GET")
	r.HandleFunc("/patients/{mrn}", s.GetPatientHandler).Methods("GET")
	r.HandleFunc("/patients/{mrn}", s.PatchPatientHandler).Methods("PUT", "PATCH")
	r.HandleFunc("/patients/{mrn}", s.DeletePatientHandler).Methods("DELETE")
	r.HandleFunc("/patients/{mrn}/state", s.TransitionPatientHandler).Methods("POST")

	// Notes
	r.HandleFunc("/patients/{mrn}/notes", s.CreateNoteHandler).Methods("POST")
	r.HandleFunc("/patients/{mrn}/notes", s.ListNotesHandler).Methods("GET")
	r.HandleFunc("/patients/{mrn}/notes/{noteId}", s.GetNoteHandler).Methods("GET")
	r.HandleFunc("/patients/{mrn}/notes/{noteId}", s.PatchNoteHandler).Methods("PATCH", "PUT")
	r.HandleFunc("/patients/{mrn}/notes/{noteId}", s.DeleteNoteHandler).Methods("DELETE")
	r.HandleFunc("/patients/{mrn}/notes/{noteId}/files/{action:attach|detach}", s.NoteFilesHandler).Methods("POST")

	// Medications
	r.HandleFunc("/patients/{mrn}/meds", s.CreateMedicationHandler).Methods("POST")
	r.HandleFunc("/patients/{mrn}/meds", s.ListMedicationsHandler).Methods("GET")
	r.HandleFunc("/patients/{mrn}/meds/{medId}", s.GetMedicationHandler).Methods("GET")
	r.HandleFunc("/patients/{mrn}/meds/{medId}", s.PatchMedicationHandler).Methods("PATCH", "PUT")
	r.HandleFunc("/patients/{mrn}/meds/{medId}", s.StopMedicationHandler).Methods("DELETE")
	r.HandleFunc("/patients/{mrn}/meds/{medId}/files/{action:attach|detach}", s.MedicationFilesHandler).Methods("POST")

	// Tasks
	r.HandleFunc("/patients/{mrn}/tasks", s.CreateTaskHandler).Methods("POST")
	r.HandleFunc("/patients/{mrn}/tasks", s.ListTasksHandler).Methods("GET")
	r.HandleFunc("/patients/{mrn}/tasks/{taskId}", s.GetTaskHandler).Methods("GET")
	r.HandleFunc("/patients/{mrn}/tasks/{taskId}", s.PatchTaskHandler).Methods("PATCH", "PUT")
	r.HandleFunc("/patients/{mrn}/tasks/{taskId}", s.CancelTaskHandler).Methods("DELETE")
	r.HandleFunc("/patients/{mrn}/tasks/{taskId}/complete", s.CompleteTaskHandler).Methods("POST")

	// Document bundle
	r.HandleFunc("/patients/{mrn}/documents", s.GetDocumentsHandler).Methods("GET")
	r.HandleFunc("/patients/{mrn}/documents/init", s.InitDocumentsHandler).Methods("POST")
	r.HandleFunc("/patients/{mrn}/documents/attach", s.AttachDocumentHandler).Methods("POST")
	r.HandleFunc("/patients/{mrn}/documents/detach", s.DetachDocumentHandler).Methods("POST")

	// Checklists
	r.HandleFunc("/checklists", s.GetChecklistsHandler).Methods("GET")
	r.HandleFunc("/checklists", s.PutChecklistHandler).Methods("PUT")

	// Doctors and points
	r.HandleFunc("/doctors", s.CreateDoctorHandler).Methods("POST")
	r.HandleFunc("/doctors", s.ListDoctorsHandler).Methods("GET")
	r.HandleFunc("/doctors/{doctorId}", s.GetDoctorHandler).Methods("GET")
	r.HandleFunc("/doctors/{doctorId}", s.PatchDoctorHandler).Methods("PATCH", "PUT")
	r.HandleFunc("/doctors/{doctorId}", s.DeleteDoctorHandler).Methods("DELETE")
	r.HandleFunc("/doctors/{doctorId}/points", s.AwardPointsHandler).Methods("POST")
	r.HandleFunc("/leaderboard", s.LeaderboardHandler).Methods("GET")

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"}),
	)
	return cors(r)
}

// HealthHandler reports liveness
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
