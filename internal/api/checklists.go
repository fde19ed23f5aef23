package api

import (
	"net/http"

	"stealthcompany.com/wardbook/internal/dal"
	"stealthcompany.com/wardbook/internal/model"
	"stealthcompany.com/wardbook/pkg/apperrors"
)

// GetChecklistsHandler handles GET /checklists?from=&to=. With both stages it
// returns that transition's checklist; with neither it returns all of them.
func (s *Server) GetChecklistsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")

	switch {
	case from == "" && to == "":
		list, err := s.svc.Checklists.List(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		respond(w, r, http.StatusOK, "", "checklists", list)
	case from == "" || to == "":
		writeError(w, r, apperrors.Validation("missing_transition", "from and to must be given together"))
	default:
		c, err := s.svc.Checklists.Get(r.Context(), model.Stage(from), model.Stage(to))
		if err != nil {
			writeError(w, r, err)
			return
		}
		respond(w, r, http.StatusOK, "", "checklist", c)
	}
}

// PutChecklistHandler handles PUT /checklists
func (s *Server) PutChecklistHandler(w http.ResponseWriter, r *http.Request) {
	var req checklistRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.svc.Checklists.Put(r.Context(), dal.ChecklistInput{
		From:       model.Stage(req.From),
		To:         model.Stage(req.To),
		EntryItems: req.EntryItems,
		ExitItems:  req.ExitItems,
	}, ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Checklist saved", "checklist", c)
}
