package dal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/wardbook/internal/codec"
	"stealthcompany.com/wardbook/internal/kv"
	"stealthcompany.com/wardbook/internal/model"
)

func TestLeaseExclusion(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	a, err := AcquireLease(ctx, mem, "job", "a", time.Minute, now)
	require.NoError(t, err)

	_, err = AcquireLease(ctx, mem, "job", "b", time.Minute, now.Add(30*time.Second))
	require.ErrorIs(t, err, ErrLeaseHeld)

	// the holder may extend
	_, err = AcquireLease(ctx, mem, "job", "a", time.Minute, now.Add(30*time.Second))
	require.NoError(t, err)

	// an expired lease can be taken over
	b, err := AcquireLease(ctx, mem, "job", "b", time.Minute, now.Add(2*time.Minute))
	require.NoError(t, err)

	// a stale holder releasing does not free the new owner's lease
	require.NoError(t, a.Release(ctx))
	_, err = AcquireLease(ctx, mem, "job", "c", time.Minute, now.Add(2*time.Minute))
	require.ErrorIs(t, err, ErrLeaseHeld)

	require.NoError(t, b.Release(ctx))
	_, err = AcquireLease(ctx, mem, "job", "c", time.Minute, now.Add(2*time.Minute))
	require.NoError(t, err)

	_, err = AcquireLease(ctx, mem, "job", "", time.Minute, now)
	require.Error(t, err)
}

func TestReconcileRepairsStaleKeys(t *testing.T) {
	ctx := context.Background()
	svc, mem, _ := newFixture(t)
	svc.Reconciler.PageSize = 2
	svc.Reconciler.Workers = 2

	for _, mrn := range []string{"M1", "M2", "M3"} {
		createPatient(t, svc, mrn)
	}
	seedDoctors(t, svc)

	// simulate writes that changed a classifying attribute without its key
	_, err := mem.Update(ctx, codec.PatientKey("M1"), kv.Update{Set: map[string]any{codec.AttrStatus: "INACTIVE"}}, nil)
	require.NoError(t, err)
	_, err = mem.Update(ctx, codec.PatientKey("M3"), kv.Update{Remove: []string{codec.AttrDepartment}}, nil)
	require.NoError(t, err)
	_, err = mem.Update(ctx, codec.DoctorKey("d2"), kv.Update{Set: map[string]any{codec.AttrActive: false}}, nil)
	require.NoError(t, err)

	report, err := svc.Reconciler.Sweep(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(3), report[codec.EntityPatient].Scanned)
	assert.Equal(t, int64(2), report[codec.EntityPatient].Repaired)
	assert.Equal(t, int64(4), report[codec.EntityDoctor].Scanned)
	assert.Equal(t, int64(1), report[codec.EntityDoctor].Repaired)

	assert.Equal(t, "Cardio#INACTIVE", storedPatient(t, mem, "M1")[codec.AttrDepartmentStatus])
	assert.Equal(t, "Cardio#ACTIVE", storedPatient(t, mem, "M2")[codec.AttrDepartmentStatus])
	assert.NotContains(t, storedPatient(t, mem, "M3"), codec.AttrDepartmentStatus)
	assert.NotContains(t, must(mem.Get(ctx, codec.DoctorKey("d2"))), codec.AttrDepartmentRole)

	page, err := svc.Patients.List(ctx, PatientFilter{Department: "Cardio"}, PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, model.PatientActive, page.Items[0].Status)

	again, err := svc.Reconciler.Sweep(ctx, "test")
	require.NoError(t, err)
	assert.Zero(t, again[codec.EntityPatient].Repaired)
	assert.Zero(t, again[codec.EntityDoctor].Repaired)
}

func TestReconcileRespectsLease(t *testing.T) {
	ctx := context.Background()
	svc, mem, clock := newFixture(t)

	_, err := AcquireLease(ctx, mem, ReconcileLease, "other", time.Hour, clock.Now())
	require.NoError(t, err)

	_, err = svc.Reconciler.Sweep(ctx, "test")
	require.ErrorIs(t, err, ErrLeaseHeld)

	clock.Advance(2 * time.Hour)
	_, err = svc.Reconciler.Sweep(ctx, "test")
	require.NoError(t, err)
}
