package codec

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/wardbook/internal/kv"
	"stealthcompany.com/wardbook/internal/model"
)

func TestClassificationKey(t *testing.T) {
	tests := []struct {
		a, b string
		want string
	}{
		{"Cardio", "ACTIVE", "Cardio#ACTIVE"},
		{"", "ACTIVE", ""},
		{"Cardio", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassificationKey(tt.a, tt.b))
	}

	assert.Equal(t, "", DoctorIndexKey("Cardio", model.RoleIntern, false))
	assert.Equal(t, "Cardio#intern", DoctorIndexKey("Cardio", model.RoleIntern, true))
}

func TestStoredTimesSortChronologically(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	times := []time.Time{
		base.Add(time.Second),
		base,
		base.Add(500 * time.Millisecond),
		base.Add(-time.Hour).In(time.FixedZone("CET", 3600)),
	}
	stored := make([]string, len(times))
	for i, tm := range times {
		stored[i] = FormatTime(tm)
	}
	sort.Strings(stored)

	assert.Equal(t, FormatTime(base.Add(-time.Hour)), stored[0])
	assert.Equal(t, FormatTime(base), stored[1])
	assert.Equal(t, FormatTime(base.Add(500*time.Millisecond)), stored[2])
	assert.True(t, ParseTime(stored[3]).Equal(base.Add(time.Second)))
	assert.True(t, ParseTime(nil).IsZero())
	assert.Nil(t, ParseTimePtr("garbage"))
}

func TestPatientItemCarriesClassificationKey(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := &model.Patient{
		MRN:           "M1",
		Name:          "A",
		Department:    "Cardio",
		Status:        model.PatientActive,
		CurrentState:  model.StagePreOp,
		StateDates:    map[model.Stage]time.Time{model.StagePreOp: now},
		Comorbidities: []string{"diabetes", "asthma"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	it := PatientToItem(p)
	assert.Equal(t, "PATIENT#M1", it[kv.AttrPK])
	assert.Equal(t, "PROFILE", it[kv.AttrSK])
	assert.Equal(t, "Cardio#ACTIVE", it[AttrDepartmentStatus])
	assert.Equal(t, FormatTime(now), it["state_date_pre_op"])

	back := PatientFromItem(it)
	assert.Equal(t, p.Comorbidities, back.Comorbidities)
	assert.True(t, back.StateDates[model.StagePreOp].Equal(now))

	p.Department = ""
	assert.NotContains(t, PatientToItem(p), AttrDepartmentStatus)
}

func TestBundleFromItem(t *testing.T) {
	it := NewBundleItem("M1", FormatTime(time.Now()))
	it[DocsAttr(model.CategoryLab)] = AttachmentsToValue([]model.Attachment{
		{Key: "patients/M1/lab/a.pdf", Size: 42, UploadedAt: time.Now()},
	})

	b := BundleFromItem(it)
	require.Len(t, b.Categories, len(model.Categories))
	require.Len(t, b.Categories[model.CategoryLab], 1)
	assert.Equal(t, int64(42), b.Categories[model.CategoryLab][0].Size)
	assert.Empty(t, b.Categories[model.CategoryPreOp])
	assert.Nil(t, b.UpdatedAt)
	assert.True(t, b.Persisted)
}

func TestNoteFilesAreASet(t *testing.T) {
	n := &model.Note{ID: "n1", MRN: "M1", Content: "x"}
	it := NoteToItem(n)
	assert.NotContains(t, it, AttrFiles)

	n.Files = []string{"patients/M1/a.jpg"}
	it = NoteToItem(n)
	assert.Equal(t, []string{"patients/M1/a.jpg"}, it[AttrFiles])
	assert.Equal(t, "n1", NoteFromItem(it).ID)
}
