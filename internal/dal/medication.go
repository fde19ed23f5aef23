package dal

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/wardbook/internal/codec"
	"stealthcompany.com/wardbook/internal/kv"
	"stealthcompany.com/wardbook/internal/model"
	"stealthcompany.com/wardbook/pkg/apperrors"
)

// MedicationModel owns the prescriptions of a patient
type MedicationModel struct {
	*base
}

// NewMedication is the input of Create. A zero Start means now.
type NewMedication struct {
	Name         string
	Dose         string
	Route        string
	Frequency    string
	Start        time.Time
	End          *time.Time
	Instructions string
	Files        []string
}

// MedicationPatch carries the fields to change
type MedicationPatch struct {
	Name         *string
	Dose         *string
	Route        *string
	Frequency    *string
	Start        *time.Time
	End          *time.Time
	Instructions *string
}

// Create stores a prescription under an existing patient
func (m *MedicationModel) Create(ctx context.Context, mrn string, in NewMedication, actor string) (*model.Medication, error) {
	if in.Name == "" {
		return nil, apperrors.Validation("missing_name", "name is required")
	}
	now := m.now()
	if in.Start.IsZero() {
		in.Start = now
	}
	if in.End != nil && in.End.Before(in.Start) {
		return nil, apperrors.Validation("invalid_end", "end must not be before start")
	}
	for _, f := range in.Files {
		if err := validateAttachmentKey(mrn, f); err != nil {
			return nil, err
		}
	}
	if err := m.requirePatient(ctx, mrn); err != nil {
		return nil, err
	}

	med := &model.Medication{
		ID:           m.opts.NewID(),
		MRN:          mrn,
		Name:         in.Name,
		Dose:         in.Dose,
		Route:        in.Route,
		Frequency:    in.Frequency,
		Start:        in.Start.UTC(),
		End:          in.End,
		Instructions: in.Instructions,
		PrescribedBy: actor,
		Files:        dedupe(in.Files),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := m.store.Put(ctx, codec.MedicationToItem(med), kv.ItemNotExists())
	if errors.Is(err, kv.ErrPreconditionFailed) {
		return nil, apperrors.AlreadyExists("medication", med.ID)
	}
	if err != nil {
		return nil, translate(err, "medication", med.ID)
	}

	log.Info().Str("mrn", mrn).Str("medication_id", med.ID).Str("actor", actor).Msg("Medication created")
	return med, nil
}

// Get returns one prescription
func (m *MedicationModel) Get(ctx context.Context, mrn, id string) (*model.Medication, error) {
	if err := validateID("medication_id", id); err != nil {
		return nil, err
	}
	it, err := m.store.Get(ctx, codec.MedicationKey(mrn, id))
	if err != nil {
		return nil, translate(err, "medication", id)
	}
	return codec.MedicationFromItem(it), nil
}

// List returns prescriptions oldest first; activeOnly skips stopped ones
func (m *MedicationModel) List(ctx context.Context, mrn string, activeOnly bool, req PageRequest) (*model.Page[*model.Medication], error) {
	if err := validateID("mrn", mrn); err != nil {
		return nil, err
	}
	scope := "meds:" + mrn
	if activeOnly {
		scope += ":active"
	}
	pk := codec.PatientKey(mrn).PK
	now := m.now()

	items, next, err := fill(ctx, m.limit(req), m.opts.Cursors.Decode(req.Cursor, scope),
		func(ctx context.Context, n int, after *kv.Key) (kv.Page, error) {
			return m.store.QueryPrefix(ctx, kv.PrefixQuery{PK: pk, SKPrefix: codec.MedPrefix, Limit: n, After: after})
		},
		func(it kv.Item) (*model.Medication, bool) {
			med := codec.MedicationFromItem(it)
			return med, !activeOnly || med.Active(now)
		})
	if err != nil {
		return nil, translate(err, "medications", mrn)
	}
	return &model.Page[*model.Medication]{Items: items, NextCursor: m.opts.Cursors.Encode(next, scope)}, nil
}

// Patch edits a prescription
func (m *MedicationModel) Patch(ctx context.Context, mrn, id string, patch MedicationPatch, actor string) (*model.Medication, error) {
	if err := validateID("medication_id", id); err != nil {
		return nil, err
	}
	set := map[string]any{}
	var remove []string
	optional := func(attr string, v *string) {
		if v == nil {
			return
		}
		if *v == "" {
			remove = append(remove, attr)
			return
		}
		set[attr] = *v
	}
	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, apperrors.Validation("missing_name", "name cannot be empty")
		}
		set[codec.AttrName] = *patch.Name
	}
	optional(codec.AttrDose, patch.Dose)
	optional(codec.AttrRoute, patch.Route)
	optional(codec.AttrFrequency, patch.Frequency)
	optional(codec.AttrInstructions, patch.Instructions)
	if patch.Start != nil {
		set[codec.AttrStart] = codec.FormatTime(*patch.Start)
	}
	// a bound patched alone is checked against the stored one inside the write
	var bound *kv.Condition
	switch {
	case patch.Start != nil && patch.End != nil:
		if patch.End.Before(*patch.Start) {
			return nil, apperrors.Validation("invalid_end", "end must not be before start")
		}
	case patch.End != nil:
		end := codec.FormatTime(*patch.End)
		bound = kv.Or(kv.NotExists(codec.AttrStart), kv.LessThan(codec.AttrStart, end), kv.Equals(codec.AttrStart, end))
	case patch.Start != nil:
		start := codec.FormatTime(*patch.Start)
		bound = kv.Or(kv.NotExists(codec.AttrEnd), kv.GreaterThan(codec.AttrEnd, start), kv.Equals(codec.AttrEnd, start))
	}
	if patch.End != nil {
		set[codec.AttrEnd] = codec.FormatTime(*patch.End)
	}
	if len(set) == 0 && len(remove) == 0 {
		return nil, apperrors.Validation("empty_patch", "no updatable fields supplied")
	}
	set[codec.AttrUpdatedAt] = m.stamp()

	key := codec.MedicationKey(mrn, id)
	it, err := m.store.Update(ctx, key, kv.Update{Set: set, Remove: remove}, kv.And(kv.ItemExists(), bound))
	if errors.Is(err, kv.ErrPreconditionFailed) {
		if _, err := m.store.Get(ctx, key); err != nil {
			return nil, translate(err, "medication", id)
		}
		if patch.End != nil {
			return nil, apperrors.Validation("invalid_end", "end must not be before start")
		}
		return nil, apperrors.Validation("invalid_start", "start must not be after end")
	}
	if err != nil {
		return nil, translate(err, "medication", id)
	}
	log.Info().Str("mrn", mrn).Str("medication_id", id).Str("actor", actor).Msg("Medication updated")
	return codec.MedicationFromItem(it), nil
}

// Stop ends a prescription now. A scheduled end still in the future is
// pulled back to now; an end already reached is kept, so stopping twice is
// harmless.
func (m *MedicationModel) Stop(ctx context.Context, mrn, id, actor string) (*model.Medication, error) {
	if err := validateID("medication_id", id); err != nil {
		return nil, err
	}
	key := codec.MedicationKey(mrn, id)
	now := m.stamp()
	upd := kv.Update{Set: map[string]any{codec.AttrEnd: now, codec.AttrUpdatedAt: now}}
	cond := kv.And(kv.ItemExists(), kv.Or(kv.NotExists(codec.AttrEnd), kv.GreaterThan(codec.AttrEnd, now)))

	it, err := m.store.Update(ctx, key, upd, cond)
	if errors.Is(err, kv.ErrPreconditionFailed) {
		// already ended, or gone
		existing, err := m.store.Get(ctx, key)
		if err != nil {
			return nil, translate(err, "medication", id)
		}
		return codec.MedicationFromItem(existing), nil
	}
	if err != nil {
		return nil, translate(err, "medication", id)
	}
	log.Info().Str("mrn", mrn).Str("medication_id", id).Str("actor", actor).Msg("Medication stopped")
	return codec.MedicationFromItem(it), nil
}

// AttachFile adds a file key to the prescription
func (m *MedicationModel) AttachFile(ctx context.Context, mrn, id, fileKey string) (*model.Medication, error) {
	if err := validateID("medication_id", id); err != nil {
		return nil, err
	}
	it, err := m.mutateFiles(ctx, codec.MedicationKey(mrn, id), mrn, fileKey, true, "medication", id)
	if err != nil {
		return nil, err
	}
	return codec.MedicationFromItem(it), nil
}

// DetachFile removes a file key from the prescription
func (m *MedicationModel) DetachFile(ctx context.Context, mrn, id, fileKey string) (*model.Medication, error) {
	if err := validateID("medication_id", id); err != nil {
		return nil, err
	}
	it, err := m.mutateFiles(ctx, codec.MedicationKey(mrn, id), mrn, fileKey, false, "medication", id)
	if err != nil {
		return nil, err
	}
	return codec.MedicationFromItem(it), nil
}
