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

// PatientModel owns patient profile records and the department_status index
type PatientModel struct {
	*base
}

// NewPatient is the input of Create
type NewPatient struct {
	MRN              string
	Name             string
	DateOfBirth      string
	Sex              string
	Phone            string
	Bed              string
	Department       string
	Status           model.PatientStatus
	CurrentState     model.Stage
	Diagnosis        string
	Comorbidities    []string
	AssignedDoctorID string
}

// PatientPatch carries the fields to change; nil means unchanged. An empty
// Department clears it.
type PatientPatch struct {
	Name             *string
	DateOfBirth      *string
	Sex              *string
	Phone            *string
	Bed              *string
	Department       *string
	Status           *model.PatientStatus
	CurrentState     *model.Stage
	Diagnosis        *string
	Comorbidities    *[]string
	AssignedDoctorID *string
}

// Create stores a new patient; an existing MRN is never overwritten
func (m *PatientModel) Create(ctx context.Context, in NewPatient, actor string) (*model.Patient, error) {
	if err := validateID("mrn", in.MRN); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, apperrors.Validation("missing_name", "name is required")
	}
	if err := validateClassifier("department", in.Department); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = model.PatientActive
	}
	if !in.Status.Valid() {
		return nil, apperrors.Validation("invalid_status", "status must be ACTIVE or INACTIVE")
	}
	if in.CurrentState == "" {
		in.CurrentState = model.StageOnboarding
	}
	if !in.CurrentState.Valid() {
		return nil, apperrors.Validation("invalid_state", "unknown workflow state "+string(in.CurrentState))
	}

	now := m.now()
	p := &model.Patient{
		MRN:              in.MRN,
		Name:             in.Name,
		DateOfBirth:      in.DateOfBirth,
		Sex:              in.Sex,
		Phone:            in.Phone,
		Bed:              in.Bed,
		Department:       in.Department,
		Status:           in.Status,
		CurrentState:     in.CurrentState,
		StateDates:       map[model.Stage]time.Time{in.CurrentState: now},
		Diagnosis:        in.Diagnosis,
		Comorbidities:    nonNilStrings(in.Comorbidities),
		AssignedDoctorID: in.AssignedDoctorID,
		UpdateCount:      0,
		CreatedAt:        now,
		UpdatedAt:        now,
		CreatedBy:        actor,
	}

	err := m.store.Put(ctx, codec.PatientToItem(p), kv.ItemNotExists())
	if errors.Is(err, kv.ErrPreconditionFailed) {
		return nil, apperrors.AlreadyExists("patient", in.MRN)
	}
	if err != nil {
		return nil, translate(err, "patient", in.MRN)
	}

	log.Info().
		Str("mrn", p.MRN).
		Str("department", p.Department).
		Str("actor", actor).
		Msg("Patient created")
	return p, nil
}

// Get returns one patient profile
func (m *PatientModel) Get(ctx context.Context, mrn string) (*model.Patient, error) {
	if err := validateID("mrn", mrn); err != nil {
		return nil, err
	}
	it, err := m.store.Get(ctx, codec.PatientKey(mrn))
	if err != nil {
		return nil, translate(err, "patient", mrn)
	}
	return codec.PatientFromItem(it), nil
}

// PatientFilter selects a listing. With a department the classification
// index is used; otherwise every profile is scanned.
type PatientFilter struct {
	Department string
	Status     model.PatientStatus
}

// List returns patients matching filter
func (m *PatientModel) List(ctx context.Context, filter PatientFilter, req PageRequest) (*model.Page[*model.Patient], error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.Validation("invalid_status", "status must be ACTIVE or INACTIVE")
	}
	if err := validateClassifier("department", filter.Department); err != nil {
		return nil, err
	}
	limit := m.limit(req)

	var fetch func(context.Context, int, *kv.Key) (kv.Page, error)
	scope := "patients"
	if filter.Department != "" {
		status := filter.Status
		if status == "" {
			status = model.PatientActive
		}
		indexKey := codec.ClassificationKey(filter.Department, string(status))
		scope = "patients:" + indexKey
		fetch = func(ctx context.Context, n int, after *kv.Key) (kv.Page, error) {
			return m.store.QueryIndex(ctx, kv.IndexQuery{Index: codec.AttrDepartmentStatus, Value: indexKey, Limit: n, After: after})
		}
	} else {
		scope += ":" + string(filter.Status)
		fetch = func(ctx context.Context, n int, after *kv.Key) (kv.Page, error) {
			return m.store.Scan(ctx, kv.ScanQuery{PKPrefix: codec.PatientPrefix, SK: codec.ProfileSK, Limit: n, After: after})
		}
	}

	items, next, err := fill(ctx, limit, m.opts.Cursors.Decode(req.Cursor, scope), fetch, func(it kv.Item) (*model.Patient, bool) {
		p := codec.PatientFromItem(it)
		return p, filter.Department != "" || filter.Status == "" || p.Status == filter.Status
	})
	if err != nil {
		return nil, translate(err, "patients", scope)
	}
	return &model.Page[*model.Patient]{Items: items, NextCursor: m.opts.Cursors.Encode(next, scope)}, nil
}

// Patch applies a partial update. The update counter is incremented
// atomically and the classification key is rewritten in the same write
// whenever department or status change.
func (m *PatientModel) Patch(ctx context.Context, mrn string, patch PatientPatch, actor string) (*model.Patient, error) {
	if err := validateID("mrn", mrn); err != nil {
		return nil, err
	}

	set := map[string]any{}
	var remove []string
	patched := map[string]any{}
	putOptional := func(attr string, v *string) {
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
	putOptional(codec.AttrDateOfBirth, patch.DateOfBirth)
	putOptional(codec.AttrSex, patch.Sex)
	putOptional(codec.AttrPhone, patch.Phone)
	putOptional(codec.AttrBed, patch.Bed)
	putOptional(codec.AttrDiagnosis, patch.Diagnosis)
	putOptional(codec.AttrAssignedDoctorID, patch.AssignedDoctorID)
	if patch.Comorbidities != nil {
		set[codec.AttrComorbidities] = codec.List(*patch.Comorbidities)
	}
	if patch.Department != nil {
		if err := validateClassifier("department", *patch.Department); err != nil {
			return nil, err
		}
		putOptional(codec.AttrDepartment, patch.Department)
		patched[codec.AttrDepartment] = *patch.Department
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, apperrors.Validation("invalid_status", "status must be ACTIVE or INACTIVE")
		}
		set[codec.AttrStatus] = string(*patch.Status)
		patched[codec.AttrStatus] = string(*patch.Status)
	}

	if patch.CurrentState != nil {
		if !patch.CurrentState.Valid() {
			return nil, apperrors.Validation("invalid_state", "unknown workflow state "+string(*patch.CurrentState))
		}
		set[codec.AttrCurrentState] = string(*patch.CurrentState)
	}

	if len(set) == 0 && len(remove) == 0 {
		return nil, apperrors.Validation("empty_patch", "no updatable fields supplied")
	}

	build := func() kv.Update {
		now := m.stamp()
		s := make(map[string]any, len(set)+1)
		for k, v := range set {
			s[k] = v
		}
		s[codec.AttrUpdatedAt] = now
		var setIfAbsent map[string]any
		if patch.CurrentState != nil {
			setIfAbsent = map[string]any{codec.StateDateAttr(*patch.CurrentState): now}
		}
		return kv.Update{
			Set:         s,
			SetIfAbsent: setIfAbsent,
			Remove:      append([]string(nil), remove...),
			Increment:   map[string]int64{codec.AttrUpdateCount: 1},
		}
	}

	it, err := m.updateClassified(ctx, codec.PatientKey(mrn), patientIndex, patched, build, "patient", mrn)
	if err != nil {
		return nil, err
	}
	p := codec.PatientFromItem(it)

	log.Info().
		Str("mrn", mrn).
		Str("actor", actor).
		Int64("update_count", p.UpdateCount).
		Msg("Patient updated")
	return p, nil
}

// Transition records entry into a workflow state. The first entry time of a
// state is kept when the state is re-entered.
func (m *PatientModel) Transition(ctx context.Context, mrn string, state model.Stage, actor string) (*model.Patient, error) {
	return m.Patch(ctx, mrn, PatientPatch{CurrentState: &state}, actor)
}

// SoftDelete marks the patient INACTIVE, which moves it out of the active index
func (m *PatientModel) SoftDelete(ctx context.Context, mrn, actor string) (*model.Patient, error) {
	inactive := model.PatientInactive
	return m.Patch(ctx, mrn, PatientPatch{Status: &inactive}, actor)
}

func nonNilStrings(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
