package dal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/wardbook/internal/model"
	"stealthcompany.com/wardbook/pkg/apperrors"
)

func noteIDs(notes []*model.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}

func TestNoteCreateRequiresPatient(t *testing.T) {
	ctx := context.Background()
	svc, mem, _ := newFixture(t)

	_, err := svc.Notes.Create(ctx, "M1", NewNote{Content: "hello"}, "u1")
	requireKind(t, err, apperrors.KindNotFound, "not_found")
	assert.Equal(t, 0, mem.Len())

	createPatient(t, svc, "M1")
	_, err = svc.Notes.Create(ctx, "M1", NewNote{}, "u1")
	requireKind(t, err, apperrors.KindValidation, "missing_content")
	_, err = svc.Notes.Create(ctx, "M1", NewNote{Content: "x", Files: []string{"elsewhere/x.jpg"}}, "u1")
	requireKind(t, err, apperrors.KindValidation, "invalid_file_key")

	n, err := svc.Notes.Create(ctx, "M1", NewNote{Content: "x", Files: []string{"patients/M1/a.jpg", "patients/M1/a.jpg"}}, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"patients/M1/a.jpg"}, n.Files)
	assert.Equal(t, "u1", n.AuthorID)
}

func TestNoteSoftDeleteListing(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newFixture(t)
	createPatient(t, svc, "M1")

	var ids []string
	for _, c := range []string{"first", "second", "third"} {
		n, err := svc.Notes.Create(ctx, "M1", NewNote{Content: c}, "u1")
		require.NoError(t, err)
		ids = append(ids, n.ID)
		clock.Advance(time.Second)
	}

	deleted, err := svc.Notes.SoftDelete(ctx, "M1", ids[1], "u2")
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
	require.NotNil(t, deleted.DeletedAt)
	deletedAt := *deleted.DeletedAt

	clock.Advance(time.Minute)
	again, err := svc.Notes.SoftDelete(ctx, "M1", ids[1], "u3")
	require.NoError(t, err)
	assert.True(t, again.DeletedAt.Equal(deletedAt))
	assert.Equal(t, "u2", again.DeletedBy)

	page, err := svc.Notes.List(ctx, "M1", NoteListOptions{}, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{ids[2], ids[0]}, noteIDs(page.Items))

	page, err = svc.Notes.List(ctx, "M1", NoteListOptions{IncludeDeleted: true, Ascending: true}, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, ids, noteIDs(page.Items))
	assert.True(t, page.Items[1].Deleted)

	got, err := svc.Notes.Get(ctx, "M1", ids[1])
	require.NoError(t, err)
	assert.True(t, got.Deleted)

	_, err = svc.Notes.SoftDelete(ctx, "M1", "missing", "u1")
	requireKind(t, err, apperrors.KindNotFound, "not_found")
}

func TestNoteListPagesSkipDeleted(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFixture(t)
	createPatient(t, svc, "M1")

	var ids []string
	for range 6 {
		n, err := svc.Notes.Create(ctx, "M1", NewNote{Content: "x"}, "u1")
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}
	for _, i := range []int{4, 3} {
		_, err := svc.Notes.SoftDelete(ctx, "M1", ids[i], "u1")
		require.NoError(t, err)
	}

	page, err := svc.Notes.List(ctx, "M1", NoteListOptions{}, PageRequest{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{ids[5], ids[2]}, noteIDs(page.Items))
	require.NotEmpty(t, page.NextCursor)

	page, err = svc.Notes.List(ctx, "M1", NoteListOptions{}, PageRequest{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	assert.Equal(t, []string{ids[1], ids[0]}, noteIDs(page.Items))
}

func TestNoteFileAttachIsSetAdd(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFixture(t)
	createPatient(t, svc, "M1")
	n, err := svc.Notes.Create(ctx, "M1", NewNote{Content: "x"}, "u1")
	require.NoError(t, err)

	key := "patients/M1/optimized/notes/n1/x.jpg"
	for range 2 {
		n, err = svc.Notes.AttachFile(ctx, "M1", n.ID, key)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{key}, n.Files)

	n, err = svc.Notes.DetachFile(ctx, "M1", n.ID, key)
	require.NoError(t, err)
	assert.Empty(t, n.Files)
	n, err = svc.Notes.DetachFile(ctx, "M1", n.ID, key)
	require.NoError(t, err)
	assert.Empty(t, n.Files)

	_, err = svc.Notes.AttachFile(ctx, "M1", n.ID, "patients/M2/x.jpg")
	requireKind(t, err, apperrors.KindValidation, "invalid_file_key")
	_, err = svc.Notes.AttachFile(ctx, "M1", "missing", key)
	requireKind(t, err, apperrors.KindNotFound, "not_found")
}

func TestNotePatch(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFixture(t)
	createPatient(t, svc, "M1")
	n, err := svc.Notes.Create(ctx, "M1", NewNote{Content: "x", Category: "rounds"}, "u1")
	require.NoError(t, err)

	n, err = svc.Notes.Patch(ctx, "M1", n.ID, NotePatch{Content: ptr("y"), Category: ptr("")}, "u1")
	require.NoError(t, err)
	assert.Equal(t, "y", n.Content)
	assert.Empty(t, n.Category)

	_, err = svc.Notes.Patch(ctx, "M1", n.ID, NotePatch{Content: ptr("")}, "u1")
	requireKind(t, err, apperrors.KindValidation, "missing_content")
	_, err = svc.Notes.Patch(ctx, "M1", "missing", NotePatch{Content: ptr("z")}, "u1")
	requireKind(t, err, apperrors.KindNotFound, "not_found")
}

func TestMedicationLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newFixture(t)
	createPatient(t, svc, "M1")

	aspirin, err := svc.Medications.Create(ctx, "M1", NewMedication{Name: "aspirin", Dose: "75mg"}, "u1")
	require.NoError(t, err)
	assert.Nil(t, aspirin.End)
	assert.True(t, aspirin.Start.Equal(clock.Now()))

	heparin, err := svc.Medications.Create(ctx, "M1", NewMedication{Name: "heparin"}, "u1")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	stopped, err := svc.Medications.Stop(ctx, "M1", heparin.ID, "u1")
	require.NoError(t, err)
	require.NotNil(t, stopped.End)
	end := *stopped.End

	clock.Advance(time.Hour)
	stopped, err = svc.Medications.Stop(ctx, "M1", heparin.ID, "u1")
	require.NoError(t, err)
	assert.True(t, stopped.End.Equal(end), "stopping twice keeps the first end")

	all, err := svc.Medications.List(ctx, "M1", false, PageRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)
	assert.Equal(t, aspirin.ID, all.Items[0].ID)

	active, err := svc.Medications.List(ctx, "M1", true, PageRequest{})
	require.NoError(t, err)
	require.Len(t, active.Items, 1)
	assert.Equal(t, "aspirin", active.Items[0].Name)

	patched, err := svc.Medications.Patch(ctx, "M1", aspirin.ID, MedicationPatch{Dose: ptr("150mg"), Route: ptr("oral")}, "u1")
	require.NoError(t, err)
	assert.Equal(t, "150mg", patched.Dose)
	assert.Equal(t, "oral", patched.Route)

	withFile, err := svc.Medications.AttachFile(ctx, "M1", aspirin.ID, "patients/M1/rx/aspirin.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"patients/M1/rx/aspirin.pdf"}, withFile.Files)

	_, err = svc.Medications.Create(ctx, "M1", NewMedication{}, "u1")
	requireKind(t, err, apperrors.KindValidation, "missing_name")
	past := clock.Now().Add(-48 * time.Hour)
	_, err = svc.Medications.Create(ctx, "M1", NewMedication{Name: "x", End: &past}, "u1")
	requireKind(t, err, apperrors.KindValidation, "invalid_end")
	_, err = svc.Medications.Stop(ctx, "M1", "missing", "u1")
	requireKind(t, err, apperrors.KindNotFound, "not_found")
}

func TestMedicationStopPullsScheduledEndBack(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newFixture(t)
	createPatient(t, svc, "M1")

	course := clock.Now().Add(7 * 24 * time.Hour)
	abx, err := svc.Medications.Create(ctx, "M1", NewMedication{Name: "amoxicillin", End: &course}, "u1")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	stopped, err := svc.Medications.Stop(ctx, "M1", abx.ID, "u1")
	require.NoError(t, err)
	require.NotNil(t, stopped.End)
	assert.True(t, stopped.End.Equal(clock.Now()), "end %s, want %s", stopped.End, clock.Now())

	active, err := svc.Medications.List(ctx, "M1", true, PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, active.Items)

	clock.Advance(time.Hour)
	again, err := svc.Medications.Stop(ctx, "M1", abx.ID, "u1")
	require.NoError(t, err)
	assert.True(t, again.End.Equal(*stopped.End))
}

func TestMedicationPatchKeepsEndAfterStart(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newFixture(t)
	createPatient(t, svc, "M1")

	start := clock.Now()
	end := start.Add(48 * time.Hour)
	med, err := svc.Medications.Create(ctx, "M1", NewMedication{Name: "heparin", End: &end}, "u1")
	require.NoError(t, err)

	before := start.Add(-time.Hour)
	_, err = svc.Medications.Patch(ctx, "M1", med.ID, MedicationPatch{End: &before}, "u1")
	requireKind(t, err, apperrors.KindValidation, "invalid_end")

	after := end.Add(time.Hour)
	_, err = svc.Medications.Patch(ctx, "M1", med.ID, MedicationPatch{Start: &after}, "u1")
	requireKind(t, err, apperrors.KindValidation, "invalid_start")

	patched, err := svc.Medications.Patch(ctx, "M1", med.ID, MedicationPatch{End: &start}, "u1")
	require.NoError(t, err)
	assert.True(t, patched.End.Equal(start))

	_, err = svc.Medications.Patch(ctx, "M1", "missing", MedicationPatch{End: &start}, "u1")
	requireKind(t, err, apperrors.KindNotFound, "not_found")
}

func TestTaskCompletionAwardsPointsOnce(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFixture(t)
	createPatient(t, svc, "M1")
	doc, err := svc.Doctors.Create(ctx, NewDoctor{ID: "d1", Name: "House", Department: "Cardio", Role: model.RoleConsultant}, "admin")
	require.NoError(t, err)

	_, err = svc.Tasks.Create(ctx, "M1", NewTask{Title: "x", AssigneeID: "ghost"}, "u1")
	requireKind(t, err, apperrors.KindNotFound, "not_found")
	_, err = svc.Tasks.Create(ctx, "M1", NewTask{Title: "x", Points: MaxTaskPoints + 1}, "u1")
	requireKind(t, err, apperrors.KindValidation, "invalid_points")

	task, err := svc.Tasks.Create(ctx, "M1", NewTask{Title: "Consent form", AssigneeID: doc.ID, Points: 5}, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskOpen, task.Status)

	task, err = svc.Tasks.Patch(ctx, "M1", task.ID, TaskPatch{Points: ptr(int64(7))})
	require.NoError(t, err)
	assert.Equal(t, int64(7), task.Points)

	done, err := svc.Tasks.Complete(ctx, "M1", task.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, model.TaskDone, done.Status)
	assert.Equal(t, "u2", done.CompletedBy)
	require.NotNil(t, done.CompletedAt)

	_, err = svc.Tasks.Complete(ctx, "M1", task.ID, "u2")
	requireKind(t, err, apperrors.KindConflict, "task_not_open")
	_, err = svc.Tasks.Cancel(ctx, "M1", task.ID, "u2")
	requireKind(t, err, apperrors.KindConflict, "task_not_open")
	_, err = svc.Tasks.Patch(ctx, "M1", task.ID, TaskPatch{Title: ptr("late")})
	requireKind(t, err, apperrors.KindConflict, "task_not_open")

	doc, err = svc.Doctors.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), doc.Points)
}

func TestTaskListByStatus(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFixture(t)
	createPatient(t, svc, "M1")

	a, err := svc.Tasks.Create(ctx, "M1", NewTask{Title: "a"}, "u1")
	require.NoError(t, err)
	b, err := svc.Tasks.Create(ctx, "M1", NewTask{Title: "b"}, "u1")
	require.NoError(t, err)
	_, err = svc.Tasks.Cancel(ctx, "M1", a.ID, "u1")
	require.NoError(t, err)

	open, err := svc.Tasks.List(ctx, "M1", model.TaskOpen, PageRequest{})
	require.NoError(t, err)
	require.Len(t, open.Items, 1)
	assert.Equal(t, b.ID, open.Items[0].ID)

	all, err := svc.Tasks.List(ctx, "M1", "", PageRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)

	_, err = svc.Tasks.Get(ctx, "M1", "missing")
	requireKind(t, err, apperrors.KindNotFound, "not_found")
}
