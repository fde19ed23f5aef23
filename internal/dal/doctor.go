package dal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"stealthcompany.com/wardbook/internal/codec"
	"stealthcompany.com/wardbook/internal/kv"
	"stealthcompany.com/wardbook/internal/model"
	"stealthcompany.com/wardbook/pkg/apperrors"
)

// MaxPointsAward bounds a single manual points adjustment
const MaxPointsAward = 1000

// DoctorModel owns staff profiles, the department_role index and the
// points counters behind the leaderboard
type DoctorModel struct {
	*base
}

// NewDoctor is the input of Create. An empty ID is generated.
type NewDoctor struct {
	ID         string
	Name       string
	Email      string
	Phone      string
	Department string
	Role       model.Role
}

// DoctorPatch carries the fields to change
type DoctorPatch struct {
	Name       *string
	Email      *string
	Phone      *string
	Department *string
	Role       *model.Role
	Active     *bool
}

// DoctorFilter selects a listing. Department and Role together use the
// index; anything else scans profiles.
type DoctorFilter struct {
	Department      string
	Role            model.Role
	IncludeInactive bool
}

func validateRole(r model.Role) error {
	if !r.Valid() {
		return apperrors.Validation("invalid_role", fmt.Sprintf("unknown role %q", r))
	}
	return nil
}

// Create stores an active doctor; an existing id is never overwritten
func (m *DoctorModel) Create(ctx context.Context, in NewDoctor, actor string) (*model.Doctor, error) {
	if in.ID == "" {
		in.ID = m.opts.NewID()
	}
	if err := validateID("doctor_id", in.ID); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, apperrors.Validation("missing_name", "name is required")
	}
	if err := validateRole(in.Role); err != nil {
		return nil, err
	}
	if err := validateClassifier("department", in.Department); err != nil {
		return nil, err
	}

	now := m.now()
	d := &model.Doctor{
		ID:         in.ID,
		Name:       in.Name,
		Email:      in.Email,
		Phone:      in.Phone,
		Department: in.Department,
		Role:       in.Role,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := m.store.Put(ctx, codec.DoctorToItem(d), kv.ItemNotExists())
	if errors.Is(err, kv.ErrPreconditionFailed) {
		return nil, apperrors.AlreadyExists("doctor", d.ID)
	}
	if err != nil {
		return nil, translate(err, "doctor", d.ID)
	}

	log.Info().
		Str("doctor_id", d.ID).
		Str("department", d.Department).
		Str("role", string(d.Role)).
		Str("actor", actor).
		Msg("Doctor created")
	return d, nil
}

// Get returns one doctor, active or not
func (m *DoctorModel) Get(ctx context.Context, id string) (*model.Doctor, error) {
	if err := validateID("doctor_id", id); err != nil {
		return nil, err
	}
	it, err := m.store.Get(ctx, codec.DoctorKey(id))
	if err != nil {
		return nil, translate(err, "doctor", id)
	}
	return codec.DoctorFromItem(it), nil
}

// List returns doctors matching filter
func (m *DoctorModel) List(ctx context.Context, filter DoctorFilter, req PageRequest) (*model.Page[*model.Doctor], error) {
	if filter.Role != "" {
		if err := validateRole(filter.Role); err != nil {
			return nil, err
		}
	}
	if err := validateClassifier("department", filter.Department); err != nil {
		return nil, err
	}
	limit := m.limit(req)

	var fetch func(context.Context, int, *kv.Key) (kv.Page, error)
	var scope string
	if filter.Department != "" && filter.Role != "" && !filter.IncludeInactive {
		indexKey := codec.DoctorIndexKey(filter.Department, filter.Role, true)
		scope = "doctors:" + indexKey
		fetch = func(ctx context.Context, n int, after *kv.Key) (kv.Page, error) {
			return m.store.QueryIndex(ctx, kv.IndexQuery{Index: codec.AttrDepartmentRole, Value: indexKey, Limit: n, After: after})
		}
	} else {
		scope = fmt.Sprintf("doctors:%s:%s:%t", filter.Department, filter.Role, filter.IncludeInactive)
		fetch = func(ctx context.Context, n int, after *kv.Key) (kv.Page, error) {
			return m.store.Scan(ctx, kv.ScanQuery{PKPrefix: codec.DoctorPrefix, SK: codec.ProfileSK, Limit: n, After: after})
		}
	}

	items, next, err := fill(ctx, limit, m.opts.Cursors.Decode(req.Cursor, scope), fetch, func(it kv.Item) (*model.Doctor, bool) {
		d := codec.DoctorFromItem(it)
		keep := (filter.IncludeInactive || d.Active) &&
			(filter.Department == "" || d.Department == filter.Department) &&
			(filter.Role == "" || d.Role == filter.Role)
		return d, keep
	})
	if err != nil {
		return nil, translate(err, "doctors", scope)
	}
	return &model.Page[*model.Doctor]{Items: items, NextCursor: m.opts.Cursors.Encode(next, scope)}, nil
}

// Patch applies a partial update and keeps department_role in step with
// department, role and active in the same write
func (m *DoctorModel) Patch(ctx context.Context, id string, patch DoctorPatch, actor string) (*model.Doctor, error) {
	if err := validateID("doctor_id", id); err != nil {
		return nil, err
	}
	set := map[string]any{}
	var remove []string
	patched := map[string]any{}
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
	optional(codec.AttrEmail, patch.Email)
	optional(codec.AttrPhone, patch.Phone)
	if patch.Department != nil {
		if err := validateClassifier("department", *patch.Department); err != nil {
			return nil, err
		}
		optional(codec.AttrDepartment, patch.Department)
		patched[codec.AttrDepartment] = *patch.Department
	}
	if patch.Role != nil {
		if err := validateRole(*patch.Role); err != nil {
			return nil, err
		}
		set[codec.AttrRole] = string(*patch.Role)
		patched[codec.AttrRole] = string(*patch.Role)
	}
	if patch.Active != nil {
		set[codec.AttrActive] = *patch.Active
		patched[codec.AttrActive] = *patch.Active
	}
	if len(set) == 0 && len(remove) == 0 {
		return nil, apperrors.Validation("empty_patch", "no updatable fields supplied")
	}

	build := func() kv.Update {
		s := make(map[string]any, len(set)+1)
		for k, v := range set {
			s[k] = v
		}
		s[codec.AttrUpdatedAt] = m.stamp()
		return kv.Update{Set: s, Remove: append([]string(nil), remove...)}
	}
	it, err := m.updateClassified(ctx, codec.DoctorKey(id), doctorIndex, patched, build, "doctor", id)
	if err != nil {
		return nil, err
	}

	log.Info().Str("doctor_id", id).Str("actor", actor).Msg("Doctor updated")
	return codec.DoctorFromItem(it), nil
}

// SoftDelete deactivates the doctor, which drops it from the department index
func (m *DoctorModel) SoftDelete(ctx context.Context, id, actor string) (*model.Doctor, error) {
	inactive := false
	return m.Patch(ctx, id, DoctorPatch{Active: &inactive}, actor)
}

// AwardPoints adds delta to the doctor's points with an atomic increment.
// Negative deltas correct earlier awards.
func (m *DoctorModel) AwardPoints(ctx context.Context, id string, delta int64) (*model.Doctor, error) {
	if err := validateID("doctor_id", id); err != nil {
		return nil, err
	}
	if delta == 0 || delta < -MaxPointsAward || delta > MaxPointsAward {
		return nil, apperrors.Validation("invalid_points", fmt.Sprintf("points must be non-zero and within ±%d", MaxPointsAward))
	}
	upd := kv.Update{
		Set:       map[string]any{codec.AttrUpdatedAt: m.stamp()},
		Increment: map[string]int64{codec.AttrPoints: delta},
	}
	it, err := m.store.Update(ctx, codec.DoctorKey(id), upd, kv.ItemExists())
	if err != nil {
		return nil, translate(err, "doctor", id)
	}
	d := codec.DoctorFromItem(it)
	log.Info().Str("doctor_id", id).Int64("delta", delta).Int64("points", d.Points).Msg("Points awarded")
	return d, nil
}

// Leaderboard ranks the active doctors of a department by points, then
// name. Every role is read from the index concurrently.
func (m *DoctorModel) Leaderboard(ctx context.Context, department string, limit int) ([]*model.Doctor, error) {
	if department == "" {
		return nil, apperrors.Validation("missing_department", "department is required")
	}
	if err := validateClassifier("department", department); err != nil {
		return nil, err
	}
	limit = m.limit(PageRequest{Limit: limit})

	var (
		mu  sync.Mutex
		all []*model.Doctor
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, role := range model.Roles {
		indexKey := codec.DoctorIndexKey(department, role, true)
		g.Go(func() error {
			var after *kv.Key
			for {
				page, err := m.store.QueryIndex(gctx, kv.IndexQuery{
					Index: codec.AttrDepartmentRole,
					Value: indexKey,
					Limit: m.opts.MaxPageSize,
					After: after,
				})
				if err != nil {
					return err
				}
				mu.Lock()
				for _, it := range page.Items {
					all = append(all, codec.DoctorFromItem(it))
				}
				mu.Unlock()
				if page.Next == nil {
					return nil
				}
				after = page.Next
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, translate(err, "leaderboard", department)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Points != all[j].Points {
			return all[i].Points > all[j].Points
		}
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].ID < all[j].ID
	})
	if len(all) > limit {
		all = all[:limit]
	}
	if all == nil {
		all = []*model.Doctor{}
	}
	return all, nil
}
