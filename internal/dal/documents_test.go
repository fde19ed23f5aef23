package dal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/wardbook/internal/codec"
	"stealthcompany.com/wardbook/internal/kv"
	"stealthcompany.com/wardbook/internal/model"
	"stealthcompany.com/wardbook/pkg/apperrors"
)

func createPatient(t *testing.T, svc *Service, mrn string) {
	t.Helper()
	_, err := svc.Patients.Create(context.Background(), NewPatient{MRN: mrn, Name: "A", Department: "Cardio"}, "u1")
	require.NoError(t, err)
}

func attachment(mrn, name string) model.Attachment {
	return model.Attachment{Key: "patients/" + mrn + "/docs/" + name, MimeType: "application/pdf", Size: 10}
}

func keys(list []model.Attachment) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.Key
	}
	return out
}

func TestDocumentsGetDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	svc, mem, _ := newFixture(t)
	createPatient(t, svc, "M1")
	before := mem.Len()

	b, err := svc.Documents.Get(ctx, "M1")
	require.NoError(t, err)
	assert.False(t, b.Persisted)
	assert.Len(t, b.Categories, len(model.Categories))
	for _, c := range model.Categories {
		assert.NotNil(t, b.Categories[c])
		assert.Empty(t, b.Categories[c])
	}
	assert.Equal(t, before, mem.Len())
}

func TestDocumentsInitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFixture(t)

	_, _, err := svc.Documents.Init(ctx, "M1")
	requireKind(t, err, apperrors.KindNotFound, "not_found")

	createPatient(t, svc, "M1")
	b, created, err := svc.Documents.Init(ctx, "M1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, b.Persisted)
	assert.Nil(t, b.UpdatedAt)

	_, err = svc.Documents.Attach(ctx, "M1", AttachInput{Category: model.CategoryLab, Attachment: attachment("M1", "cbc.pdf")}, "u1")
	require.NoError(t, err)

	b, created, err = svc.Documents.Init(ctx, "M1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, []string{"patients/M1/docs/cbc.pdf"}, keys(b.Categories[model.CategoryLab]))
}

func TestDocumentsAttachValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFixture(t)
	createPatient(t, svc, "M1")

	_, err := svc.Documents.Attach(ctx, "M1", AttachInput{Category: model.CategoryLab, Attachment: attachment("M1", "a.pdf")}, "u1")
	requireKind(t, err, apperrors.KindNotFound, "not_found")

	_, _, err = svc.Documents.Init(ctx, "M1")
	require.NoError(t, err)

	_, err = svc.Documents.Attach(ctx, "M1", AttachInput{Category: "xray", Attachment: attachment("M1", "a.pdf")}, "u1")
	requireKind(t, err, apperrors.KindValidation, "invalid_category")
	_, err = svc.Documents.Attach(ctx, "M1", AttachInput{Category: model.CategoryLab, Attachment: attachment("M2", "a.pdf")}, "u1")
	requireKind(t, err, apperrors.KindValidation, "invalid_file_key")
	_, err = svc.Documents.Attach(ctx, "M1", AttachInput{Category: model.CategoryLab, Attachment: model.Attachment{Key: "patients/M1/../M2/a.pdf"}}, "u1")
	requireKind(t, err, apperrors.KindValidation, "invalid_file_key")
	_, err = svc.Documents.Detach(ctx, "M1", model.CategoryLab, "")
	requireKind(t, err, apperrors.KindValidation, "missing_key")
}

func TestDocumentsAttachAndDetachAreIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, mem, clock := newFixture(t)
	createPatient(t, svc, "M1")
	_, _, err := svc.Documents.Init(ctx, "M1")
	require.NoError(t, err)

	in := AttachInput{Category: model.CategoryRadiology, Attachment: attachment("M1", "ct.pdf")}
	b, err := svc.Documents.Attach(ctx, "M1", in, "u1")
	require.NoError(t, err)
	require.NotNil(t, b.UpdatedAt)
	first := *b.UpdatedAt
	assert.Equal(t, "u1", b.Categories[model.CategoryRadiology][0].UploadedBy)

	clock.Advance(time.Minute)
	b, err = svc.Documents.Attach(ctx, "M1", in, "u2")
	require.NoError(t, err)
	assert.Len(t, b.Categories[model.CategoryRadiology], 1)
	assert.True(t, b.UpdatedAt.Equal(first), "a repeated attach writes nothing")

	b, err = svc.Documents.Detach(ctx, "M1", model.CategoryRadiology, in.Attachment.Key)
	require.NoError(t, err)
	assert.Empty(t, b.Categories[model.CategoryRadiology])

	stamp := kv.String(must(mem.Get(ctx, codec.DocumentsKey("M1")))[codec.AttrUpdatedAt])
	b, err = svc.Documents.Detach(ctx, "M1", model.CategoryRadiology, in.Attachment.Key)
	require.NoError(t, err)
	assert.Empty(t, b.Categories[model.CategoryRadiology])
	assert.Equal(t, stamp, kv.String(must(mem.Get(ctx, codec.DocumentsKey("M1")))[codec.AttrUpdatedAt]))
}

func must(it kv.Item, err error) kv.Item {
	if err != nil {
		panic(err)
	}
	return it
}

func TestDocumentsPreOpIsBounded(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newFixture(t)
	createPatient(t, svc, "M1")
	_, _, err := svc.Documents.Init(ctx, "M1")
	require.NoError(t, err)

	// uploaded out of key order so eviction must follow upload time
	for _, name := range []string{"b.pdf", "a.pdf", "c.pdf"} {
		_, err := svc.Documents.Attach(ctx, "M1", AttachInput{Category: model.CategoryPreOp, Attachment: attachment("M1", name)}, "u1")
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	_, err = svc.Documents.Attach(ctx, "M1", AttachInput{Category: model.CategoryPreOp, Attachment: attachment("M1", "d.pdf")}, "u1")
	requireKind(t, err, apperrors.KindValidation, "category_full")

	b, err := svc.Documents.Get(ctx, "M1")
	require.NoError(t, err)
	assert.Len(t, b.Categories[model.CategoryPreOp], 3)

	b, err = svc.Documents.Attach(ctx, "M1", AttachInput{
		Category:      model.CategoryPreOp,
		Attachment:    attachment("M1", "d.pdf"),
		ReplaceOldest: true,
	}, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"patients/M1/docs/a.pdf",
		"patients/M1/docs/c.pdf",
		"patients/M1/docs/d.pdf",
	}, keys(b.Categories[model.CategoryPreOp]))

	// other categories are unbounded
	for i := range 5 {
		_, err := svc.Documents.Attach(ctx, "M1", AttachInput{Category: model.CategoryLab, Attachment: attachment("M1", fmt.Sprintf("lab%d.pdf", i))}, "u1")
		require.NoError(t, err)
	}
	b, err = svc.Documents.Get(ctx, "M1")
	require.NoError(t, err)
	assert.Len(t, b.Categories[model.CategoryLab], 5)
}

func TestDocumentsConcurrentAttachConflicts(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	clock := &testClock{t: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	racer := newTestService(t, mem, clock)

	var fired atomic.Bool
	hooked := &hookStore{Store: mem}
	hooked.beforeUpdate = func(key kv.Key) {
		if key.SK == codec.DocumentsSK && fired.CompareAndSwap(false, true) {
			_, err := racer.Documents.Attach(ctx, "M1", AttachInput{Category: model.CategoryLab, Attachment: attachment("M1", "racer.pdf")}, "racer")
			require.NoError(t, err)
		}
	}
	svc := newTestService(t, hooked, clock)

	createPatient(t, racer, "M1")
	_, _, err := racer.Documents.Init(ctx, "M1")
	require.NoError(t, err)

	mine := AttachInput{Category: model.CategoryLab, Attachment: attachment("M1", "mine.pdf")}
	_, err = svc.Documents.Attach(ctx, "M1", mine, "u1")
	requireKind(t, err, apperrors.KindConflict, "version_conflict")

	b, err := svc.Documents.Get(ctx, "M1")
	require.NoError(t, err)
	assert.Equal(t, []string{"patients/M1/docs/racer.pdf"}, keys(b.Categories[model.CategoryLab]))

	// the racer's stamp equals the current clock, so the retry needs a
	// strictly later stamp to stay distinguishable
	b, err = svc.Documents.Attach(ctx, "M1", mine, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"patients/M1/docs/racer.pdf", "patients/M1/docs/mine.pdf"}, keys(b.Categories[model.CategoryLab]))
}

func TestDocumentsConcurrentAttachLosesNothing(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFixture(t)
	createPatient(t, svc, "M1")
	_, _, err := svc.Documents.Init(ctx, "M1")
	require.NoError(t, err)

	const writers = 12
	var (
		wg        sync.WaitGroup
		conflicts atomic.Int64
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := AttachInput{Category: model.CategoryNotes, Attachment: attachment("M1", fmt.Sprintf("n%02d.pdf", i))}
			for {
				_, err := svc.Documents.Attach(ctx, "M1", in, "u1")
				if apperrors.Is(err, apperrors.KindConflict) {
					conflicts.Add(1)
					continue
				}
				assert.NoError(t, err)
				return
			}
		}()
	}
	wg.Wait()

	b, err := svc.Documents.Get(ctx, "M1")
	require.NoError(t, err)
	assert.Len(t, b.Categories[model.CategoryNotes], writers)
	t.Logf("conflicts observed: %d", conflicts.Load())
}

func TestNextStampIsStrictlyIncreasing(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, now, nextStamp(now, nil))

	earlier := now.Add(-time.Second)
	assert.Equal(t, now, nextStamp(now, &earlier))

	assert.Equal(t, now.Add(time.Nanosecond), nextStamp(now, &now))

	later := now.Add(time.Hour)
	assert.Equal(t, later.Add(time.Nanosecond), nextStamp(now, &later))
}
