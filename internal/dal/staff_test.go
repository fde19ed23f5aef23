package dal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/wardbook/internal/codec"
	"stealthcompany.com/wardbook/internal/kv"
	"stealthcompany.com/wardbook/internal/model"
	"stealthcompany.com/wardbook/pkg/apperrors"
)

func doctorIDs(ds []*model.Doctor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}

func seedDoctors(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	for _, d := range []NewDoctor{
		{ID: "d1", Name: "Grey", Department: "Cardio", Role: model.RoleConsultant},
		{ID: "d2", Name: "Yang", Department: "Cardio", Role: model.RoleResident},
		{ID: "d3", Name: "Shepherd", Department: "Neuro", Role: model.RoleConsultant},
		{ID: "d4", Name: "Karev", Department: "Cardio", Role: model.RoleConsultant},
	} {
		_, err := svc.Doctors.Create(ctx, d, "admin")
		require.NoError(t, err)
	}
}

func TestDoctorCreate(t *testing.T) {
	ctx := context.Background()
	svc, mem, _ := newFixture(t)
	seedDoctors(t, svc)

	_, err := svc.Doctors.Create(ctx, NewDoctor{ID: "d1", Name: "Other", Role: model.RoleIntern}, "admin")
	requireKind(t, err, apperrors.KindAlreadyExists, "already_exists")
	_, err = svc.Doctors.Create(ctx, NewDoctor{Name: "X", Role: "janitor"}, "admin")
	requireKind(t, err, apperrors.KindValidation, "invalid_role")
	_, err = svc.Doctors.Create(ctx, NewDoctor{Role: model.RoleIntern}, "admin")
	requireKind(t, err, apperrors.KindValidation, "missing_name")

	generated, err := svc.Doctors.Create(ctx, NewDoctor{Name: "Bailey", Role: model.RoleRegistrar}, "admin")
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)
	assert.True(t, generated.Active)

	it, err := mem.Get(ctx, codec.DoctorKey("d1"))
	require.NoError(t, err)
	assert.Equal(t, "Grey", it[codec.AttrName])
	assert.Equal(t, "Cardio#consultant", it[codec.AttrDepartmentRole])

	_, present := must(mem.Get(ctx, codec.DoctorKey(generated.ID)))[codec.AttrDepartmentRole]
	assert.False(t, present, "a doctor without department is not indexed")
}

func TestDoctorListAndSoftDelete(t *testing.T) {
	ctx := context.Background()
	svc, mem, _ := newFixture(t)
	seedDoctors(t, svc)

	page, err := svc.Doctors.List(ctx, DoctorFilter{Department: "Cardio", Role: model.RoleConsultant}, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d4"}, doctorIDs(page.Items))

	page, err = svc.Doctors.List(ctx, DoctorFilter{Department: "Cardio"}, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2", "d4"}, doctorIDs(page.Items))

	deleted, err := svc.Doctors.SoftDelete(ctx, "d1", "admin")
	require.NoError(t, err)
	assert.False(t, deleted.Active)
	_, present := must(mem.Get(ctx, codec.DoctorKey("d1")))[codec.AttrDepartmentRole]
	assert.False(t, present)

	page, err = svc.Doctors.List(ctx, DoctorFilter{Department: "Cardio", Role: model.RoleConsultant}, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"d4"}, doctorIDs(page.Items))

	page, err = svc.Doctors.List(ctx, DoctorFilter{Department: "Cardio", Role: model.RoleConsultant, IncludeInactive: true}, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d4"}, doctorIDs(page.Items))

	page, err = svc.Doctors.List(ctx, DoctorFilter{}, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"d2", "d3", "d4"}, doctorIDs(page.Items))

	// reactivating restores the index key
	_, err = svc.Doctors.Patch(ctx, "d1", DoctorPatch{Active: ptr(true)}, "admin")
	require.NoError(t, err)
	assert.Equal(t, "Cardio#consultant", must(mem.Get(ctx, codec.DoctorKey("d1")))[codec.AttrDepartmentRole])

	_, err = svc.Doctors.SoftDelete(ctx, "ghost", "admin")
	requireKind(t, err, apperrors.KindNotFound, "not_found")
}

func TestDoctorPatchMovesIndexKey(t *testing.T) {
	ctx := context.Background()
	svc, mem, _ := newFixture(t)
	seedDoctors(t, svc)

	d, err := svc.Doctors.Patch(ctx, "d2", DoctorPatch{Department: ptr("Neuro")}, "admin")
	require.NoError(t, err)
	assert.Equal(t, "Neuro", d.Department)
	assert.Equal(t, "Neuro#resident", must(mem.Get(ctx, codec.DoctorKey("d2")))[codec.AttrDepartmentRole])

	_, err = svc.Doctors.Patch(ctx, "d2", DoctorPatch{Role: ptr(model.RoleRegistrar)}, "admin")
	require.NoError(t, err)
	assert.Equal(t, "Neuro#registrar", must(mem.Get(ctx, codec.DoctorKey("d2")))[codec.AttrDepartmentRole])

	_, err = svc.Doctors.Patch(ctx, "d2", DoctorPatch{Department: ptr("")}, "admin")
	require.NoError(t, err)
	it := must(mem.Get(ctx, codec.DoctorKey("d2")))
	assert.NotContains(t, it, codec.AttrDepartmentRole)
	assert.NotContains(t, it, codec.AttrDepartment)

	_, err = svc.Doctors.Patch(ctx, "d2", DoctorPatch{Email: ptr("yang@example.org")}, "admin")
	require.NoError(t, err)
	assert.NotContains(t, must(mem.Get(ctx, codec.DoctorKey("d2"))), codec.AttrDepartmentRole)
}

func TestDoctorPointsAndLeaderboard(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFixture(t)
	seedDoctors(t, svc)

	for id, pts := range map[string]int64{"d1": 10, "d2": 30, "d3": 50, "d4": 10} {
		_, err := svc.Doctors.AwardPoints(ctx, id, pts)
		require.NoError(t, err)
	}
	d, err := svc.Doctors.AwardPoints(ctx, "d2", -5)
	require.NoError(t, err)
	assert.Equal(t, int64(25), d.Points)

	_, err = svc.Doctors.AwardPoints(ctx, "d2", 0)
	requireKind(t, err, apperrors.KindValidation, "invalid_points")
	_, err = svc.Doctors.AwardPoints(ctx, "d2", MaxPointsAward+1)
	requireKind(t, err, apperrors.KindValidation, "invalid_points")
	_, err = svc.Doctors.AwardPoints(ctx, "ghost", 1)
	requireKind(t, err, apperrors.KindNotFound, "not_found")

	board, err := svc.Doctors.Leaderboard(ctx, "Cardio", 10)
	require.NoError(t, err)
	// ties break on name: Grey before Karev
	assert.Equal(t, []string{"d2", "d1", "d4"}, doctorIDs(board))

	board, err = svc.Doctors.Leaderboard(ctx, "Cardio", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"d2"}, doctorIDs(board))

	_, err = svc.Doctors.SoftDelete(ctx, "d2", "admin")
	require.NoError(t, err)
	board, err = svc.Doctors.Leaderboard(ctx, "Cardio", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d4"}, doctorIDs(board))

	_, err = svc.Doctors.Leaderboard(ctx, "", 10)
	requireKind(t, err, apperrors.KindValidation, "missing_department")
}

func TestChecklistUpsertAndList(t *testing.T) {
	ctx := context.Background()
	svc, mem, _ := newFixture(t)

	_, err := svc.Checklists.Get(ctx, model.StageOnboarding, model.StagePreOp)
	requireKind(t, err, apperrors.KindNotFound, "not_found")
	_, err = svc.Checklists.Put(ctx, ChecklistInput{From: model.StagePreOp, To: model.StagePreOp}, "admin")
	requireKind(t, err, apperrors.KindValidation, "invalid_transition")
	_, err = svc.Checklists.Put(ctx, ChecklistInput{From: "limbo", To: model.StagePreOp}, "admin")
	requireKind(t, err, apperrors.KindValidation, "invalid_from")
	_, err = svc.Checklists.Put(ctx, ChecklistInput{From: model.StageOnboarding, To: model.StagePreOp, EntryItems: []string{" "}}, "admin")
	requireKind(t, err, apperrors.KindValidation, "invalid_entryItems")

	_, err = svc.Checklists.Put(ctx, ChecklistInput{
		From:       model.StagePostOp,
		To:         model.StageDischargeInit,
		EntryItems: []string{"vitals stable"},
	}, "admin")
	require.NoError(t, err)
	c, err := svc.Checklists.Put(ctx, ChecklistInput{
		From:       model.StageOnboarding,
		To:         model.StagePreOp,
		EntryItems: []string{" consent ", "bloods"},
		ExitItems:  []string{"fasting"},
	}, "admin")
	require.NoError(t, err)
	assert.Equal(t, []string{"consent", "bloods"}, c.EntryItems)

	got, err := svc.Checklists.Get(ctx, model.StageOnboarding, model.StagePreOp)
	require.NoError(t, err)
	assert.Equal(t, []string{"fasting"}, got.ExitItems)
	assert.Equal(t, "admin", got.UpdatedBy)

	// a replaced definition is visible through the cache immediately
	_, err = svc.Checklists.Put(ctx, ChecklistInput{From: model.StageOnboarding, To: model.StagePreOp, EntryItems: []string{"consent"}}, "nurse")
	require.NoError(t, err)
	got, err = svc.Checklists.Get(ctx, model.StageOnboarding, model.StagePreOp)
	require.NoError(t, err)
	assert.Equal(t, []string{"consent"}, got.EntryItems)
	assert.Empty(t, got.ExitItems)

	all, err := svc.Checklists.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, model.StageOnboarding, all[0].From)
	assert.Equal(t, model.StagePostOp, all[1].From)

	stored := must(mem.Get(ctx, codec.ChecklistKey(model.StageOnboarding, model.StagePreOp)))
	assert.Equal(t, []string{"consent"}, kv.Strings(stored[codec.AttrEntryItems]))
}
