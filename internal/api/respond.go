package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/wardbook/internal/dal"
	"stealthcompany.com/wardbook/internal/metrics"
	"stealthcompany.com/wardbook/internal/model"
	"stealthcompany.com/wardbook/pkg/apperrors"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// envelope is the response body shape: an optional message and error next to
// the entity keyed by its name
type envelope map[string]any

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Failed to encode response")
	}
}

// respond writes a success envelope and counts the outcome
func respond(w http.ResponseWriter, r *http.Request, status int, message string, key string, entity any) {
	body := envelope{key: entity}
	if message != "" {
		body["message"] = message
	}
	metrics.RecordOutcome("ok")
	writeJSON(w, r, status, body)
}

// writeError maps err onto the taxonomy. Internal details are logged, never returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.As(err)
	metrics.RecordOutcome(appErr.Kind.String())

	if appErr.Kind == apperrors.KindInternal {
		log.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
	} else {
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("reason", appErr.Reason).
			Msg("Request rejected")
	}
	writeJSON(w, r, appErr.HTTPStatus(), appErr)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst, rejecting unknown fields, then runs
// the struct's validate tags
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Validation("missing_body", "request body is required")
		}
		return apperrors.Validation("invalid_json", err.Error())
	}
	if dec.More() {
		return apperrors.Validation("invalid_json", "request body must hold a single JSON object")
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Tag() == "required" {
				return apperrors.Validation("missing_"+fe.Field(), fe.Field()+" is required")
			}
			return apperrors.Validation("invalid_"+fe.Field(), fmt.Sprintf("%s failed the %s check", fe.Field(), fe.Tag()))
		}
		return apperrors.Validation("invalid_body", err.Error())
	}
	return nil
}

// pageRequest reads limit and cursor query parameters
func pageRequest(r *http.Request) (dal.PageRequest, error) {
	q := r.URL.Query()
	req := dal.PageRequest{Cursor: q.Get("cursor")}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return req, apperrors.Validation("invalid_limit", "limit must be a positive integer")
		}
		req.Limit = n
	}
	return req, nil
}

// boolParam reads an optional boolean query parameter
func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.Validation("invalid_"+name, name+" must be true or false")
	}
	return v, nil
}

// respondPage writes one page of a listing under key, with the cursor for the
// next page when there is one
func respondPage[T any](w http.ResponseWriter, r *http.Request, key string, page *model.Page[T]) {
	body := envelope{key: page.Items}
	if page.NextCursor != "" {
		body["nextCursor"] = page.NextCursor
	}
	metrics.RecordOutcome("ok")
	writeJSON(w, r, http.StatusOK, body)
}
