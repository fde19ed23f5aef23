// Package dal holds the entity stores. Each model owns one record shape and
// its lifecycle rules and talks to storage only through kv.Store. Engine
// sentinels are translated into apperrors at every exported method.
package dal

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"stealthcompany.com/wardbook/internal/codec"
	"stealthcompany.com/wardbook/internal/cursor"
	"stealthcompany.com/wardbook/internal/kv"
	"stealthcompany.com/wardbook/pkg/apperrors"
)

// Options configures the models built by NewService
type Options struct {
	Cursors         *cursor.Codec
	Now             func() time.Time
	NewID           func() string
	DefaultPageSize int
	MaxPageSize     int
	ChecklistTTL    time.Duration
}

// Service bundles every entity store over one kv.Store
type Service struct {
	Patients    *PatientModel
	Notes       *NoteModel
	Medications *MedicationModel
	Tasks       *TaskModel
	Documents   *DocumentModel
	Doctors     *DoctorModel
	Checklists  *ChecklistModel
	Reconciler  *Reconciler
}

// NewService wires the entity stores
func NewService(store kv.Store, opts Options) (*Service, error) {
	if opts.Cursors == nil {
		c, err := cursor.New("", 0)
		if err != nil {
			return nil, err
		}
		opts.Cursors = c
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = NewID
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 200
	}
	if opts.DefaultPageSize <= 0 || opts.DefaultPageSize > opts.MaxPageSize {
		opts.DefaultPageSize = min(50, opts.MaxPageSize)
	}

	b := &base{store: store, opts: opts}
	doctors := &DoctorModel{base: b}
	return &Service{
		Patients:    &PatientModel{base: b},
		Notes:       &NoteModel{base: b},
		Medications: &MedicationModel{base: b},
		Tasks:       &TaskModel{base: b, doctors: doctors},
		Documents:   &DocumentModel{base: b},
		Doctors:     doctors,
		Checklists:  newChecklistModel(b, opts.ChecklistTTL),
		Reconciler:  &Reconciler{base: b, Workers: 8, PageSize: 100},
	}, nil
}

// base carries what every model shares
type base struct {
	store kv.Store
	opts  Options
}

func (b *base) now() time.Time {
	return b.opts.Now().UTC()
}

func (b *base) stamp() string {
	return codec.FormatTime(b.now())
}

// NewID returns a time-ordered UUIDv7 string
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// PageRequest asks for one page of a listing
type PageRequest struct {
	Limit  int
	Cursor string
}

func (b *base) limit(req PageRequest) int {
	switch {
	case req.Limit <= 0:
		return b.opts.DefaultPageSize
	case req.Limit > b.opts.MaxPageSize:
		return b.opts.MaxPageSize
	}
	return req.Limit
}

// translate maps adapter sentinels onto the error taxonomy
func translate(err error, resource, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, kv.ErrNotFound):
		return apperrors.NotFound(resource, id)
	case errors.Is(err, kv.ErrPreconditionFailed):
		return apperrors.Conflict("precondition_failed", fmt.Sprintf("%s %s was modified concurrently", resource, id))
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Internal(fmt.Errorf("%s %s: %w", resource, id, err))
}

var identifier = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

func validateID(field, v string) error {
	if !identifier.MatchString(v) {
		return apperrors.Validation("invalid_"+field, fmt.Sprintf("%s must be 1-64 letters, digits, '.', '_' or '-'", field))
	}
	return nil
}

// validateClassifier rejects values that would break the a#b classification key
func validateClassifier(field, v string) error {
	if strings.Contains(v, "#") {
		return apperrors.Validation("invalid_"+field, fmt.Sprintf("%s must not contain '#'", field))
	}
	return nil
}

// AttachmentPrefix is the object-storage prefix every file of a patient lives under
func AttachmentPrefix(mrn string) string {
	return "patients/" + mrn + "/"
}

func validateAttachmentKey(mrn, key string) error {
	prefix := AttachmentPrefix(mrn)
	if !strings.HasPrefix(key, prefix) || len(key) == len(prefix) || strings.Contains(key, "..") {
		return apperrors.Validation("invalid_file_key", fmt.Sprintf("file key must live under %s", prefix))
	}
	return nil
}

func (b *base) requirePatient(ctx context.Context, mrn string) error {
	if err := validateID("mrn", mrn); err != nil {
		return err
	}
	_, err := b.store.Get(ctx, codec.PatientKey(mrn))
	return translate(err, "patient", mrn)
}

// fill pages through a query until limit items pass keep, so filtered
// listings still return full pages
func fill[T any](ctx context.Context, limit int, after *kv.Key, fetch func(context.Context, int, *kv.Key) (kv.Page, error), decode func(kv.Item) (T, bool)) ([]T, *kv.Key, error) {
	const maxRounds = 10
	out := make([]T, 0, limit)
	for round := 0; round < maxRounds; round++ {
		page, err := fetch(ctx, limit-len(out), after)
		if err != nil {
			return nil, nil, err
		}
		for _, it := range page.Items {
			if v, ok := decode(it); ok {
				out = append(out, v)
			}
		}
		after = page.Next
		if after == nil || len(out) >= limit {
			break
		}
	}
	return out, after, nil
}
