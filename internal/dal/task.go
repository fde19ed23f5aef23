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

// MaxTaskPoints caps the points a single task can award
const MaxTaskPoints = 100

// TaskModel owns patient tasks. Completing a task awards its points to the
// assignee.
type TaskModel struct {
	*base
	doctors *DoctorModel
}

// NewTask is the input of Create
type NewTask struct {
	Title      string
	Details    string
	AssigneeID string
	Points     int64
	DueAt      *time.Time
}

// TaskPatch carries the fields to change on an open task
type TaskPatch struct {
	Title      *string
	Details    *string
	AssigneeID *string
	Points     *int64
	DueAt      *time.Time
}

func validatePoints(p int64) error {
	if p < 0 || p > MaxTaskPoints {
		return apperrors.Validation("invalid_points", "points must be between 0 and 100")
	}
	return nil
}

// Create stores an open task under an existing patient
func (m *TaskModel) Create(ctx context.Context, mrn string, in NewTask, actor string) (*model.Task, error) {
	if in.Title == "" {
		return nil, apperrors.Validation("missing_title", "title is required")
	}
	if err := validatePoints(in.Points); err != nil {
		return nil, err
	}
	if err := m.requirePatient(ctx, mrn); err != nil {
		return nil, err
	}
	if in.AssigneeID != "" {
		if _, err := m.doctors.Get(ctx, in.AssigneeID); err != nil {
			return nil, err
		}
	}

	now := m.now()
	t := &model.Task{
		ID:         m.opts.NewID(),
		MRN:        mrn,
		Title:      in.Title,
		Details:    in.Details,
		AssigneeID: in.AssigneeID,
		Points:     in.Points,
		Status:     model.TaskOpen,
		DueAt:      in.DueAt,
		CreatedBy:  actor,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := m.store.Put(ctx, codec.TaskToItem(t), kv.ItemNotExists())
	if errors.Is(err, kv.ErrPreconditionFailed) {
		return nil, apperrors.AlreadyExists("task", t.ID)
	}
	if err != nil {
		return nil, translate(err, "task", t.ID)
	}
	log.Info().Str("mrn", mrn).Str("task_id", t.ID).Str("assignee", t.AssigneeID).Msg("Task created")
	return t, nil
}

// Get returns one task
func (m *TaskModel) Get(ctx context.Context, mrn, id string) (*model.Task, error) {
	if err := validateID("task_id", id); err != nil {
		return nil, err
	}
	it, err := m.store.Get(ctx, codec.TaskKey(mrn, id))
	if err != nil {
		return nil, translate(err, "task", id)
	}
	return codec.TaskFromItem(it), nil
}

// List returns the tasks of a patient oldest first, optionally by status
func (m *TaskModel) List(ctx context.Context, mrn string, status model.TaskStatus, req PageRequest) (*model.Page[*model.Task], error) {
	if err := validateID("mrn", mrn); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, apperrors.Validation("invalid_status", "status must be OPEN, DONE or CANCELLED")
	}
	scope := "tasks:" + mrn + ":" + string(status)
	pk := codec.PatientKey(mrn).PK

	items, next, err := fill(ctx, m.limit(req), m.opts.Cursors.Decode(req.Cursor, scope),
		func(ctx context.Context, n int, after *kv.Key) (kv.Page, error) {
			return m.store.QueryPrefix(ctx, kv.PrefixQuery{PK: pk, SKPrefix: codec.TaskPrefix, Limit: n, After: after})
		},
		func(it kv.Item) (*model.Task, bool) {
			t := codec.TaskFromItem(it)
			return t, status == "" || t.Status == status
		})
	if err != nil {
		return nil, translate(err, "tasks", mrn)
	}
	return &model.Page[*model.Task]{Items: items, NextCursor: m.opts.Cursors.Encode(next, scope)}, nil
}

// Patch edits an open task
func (m *TaskModel) Patch(ctx context.Context, mrn, id string, patch TaskPatch) (*model.Task, error) {
	if err := validateID("task_id", id); err != nil {
		return nil, err
	}
	set := map[string]any{}
	var remove []string
	if patch.Title != nil {
		if *patch.Title == "" {
			return nil, apperrors.Validation("missing_title", "title cannot be empty")
		}
		set[codec.AttrTitle] = *patch.Title
	}
	if patch.Details != nil {
		set[codec.AttrDetails] = *patch.Details
	}
	if patch.AssigneeID != nil {
		if *patch.AssigneeID == "" {
			remove = append(remove, codec.AttrAssigneeID)
		} else {
			if _, err := m.doctors.Get(ctx, *patch.AssigneeID); err != nil {
				return nil, err
			}
			set[codec.AttrAssigneeID] = *patch.AssigneeID
		}
	}
	if patch.Points != nil {
		if err := validatePoints(*patch.Points); err != nil {
			return nil, err
		}
		set[codec.AttrPoints] = *patch.Points
	}
	if patch.DueAt != nil {
		set[codec.AttrDueAt] = codec.FormatTime(*patch.DueAt)
	}
	if len(set) == 0 && len(remove) == 0 {
		return nil, apperrors.Validation("empty_patch", "no updatable fields supplied")
	}
	set[codec.AttrUpdatedAt] = m.stamp()

	return m.transition(ctx, mrn, id, kv.Update{Set: set, Remove: remove})
}

// Complete closes an open task and awards its points to the assignee. The
// status flip is conditioned on the task still being open, so points are
// awarded at most once. A failed award is logged and does not reopen the task.
func (m *TaskModel) Complete(ctx context.Context, mrn, id, actor string) (*model.Task, error) {
	if err := validateID("task_id", id); err != nil {
		return nil, err
	}
	now := m.stamp()
	t, err := m.transition(ctx, mrn, id, kv.Update{Set: map[string]any{
		codec.AttrStatus:      string(model.TaskDone),
		codec.AttrCompletedBy: actor,
		codec.AttrCompletedAt: now,
		codec.AttrUpdatedAt:   now,
	}})
	if err != nil {
		return nil, err
	}

	if t.AssigneeID != "" && t.Points > 0 {
		if _, err := m.doctors.AwardPoints(ctx, t.AssigneeID, t.Points); err != nil {
			log.Error().
				Err(err).
				Str("task_id", id).
				Str("doctor_id", t.AssigneeID).
				Int64("points", t.Points).
				Msg("Task completed but points were not awarded")
		}
	}
	log.Info().Str("mrn", mrn).Str("task_id", id).Str("actor", actor).Msg("Task completed")
	return t, nil
}

// Cancel closes an open task without awarding points
func (m *TaskModel) Cancel(ctx context.Context, mrn, id, actor string) (*model.Task, error) {
	if err := validateID("task_id", id); err != nil {
		return nil, err
	}
	t, err := m.transition(ctx, mrn, id, kv.Update{Set: map[string]any{
		codec.AttrStatus:    string(model.TaskCancelled),
		codec.AttrUpdatedAt: m.stamp(),
	}})
	if err != nil {
		return nil, err
	}
	log.Info().Str("mrn", mrn).Str("task_id", id).Str("actor", actor).Msg("Task cancelled")
	return t, nil
}

// transition applies upd to a task that must still be OPEN
func (m *TaskModel) transition(ctx context.Context, mrn, id string, upd kv.Update) (*model.Task, error) {
	it, err := m.store.Update(ctx, codec.TaskKey(mrn, id), upd, kv.Equals(codec.AttrStatus, string(model.TaskOpen)))
	if errors.Is(err, kv.ErrPreconditionFailed) {
		return nil, apperrors.Conflict("task_not_open", "task "+id+" is no longer open")
	}
	if err != nil {
		return nil, translate(err, "task", id)
	}
	return codec.TaskFromItem(it), nil
}
