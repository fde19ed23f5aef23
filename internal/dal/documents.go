package dal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/wardbook/internal/codec"
	"stealthcompany.com/wardbook/internal/kv"
	"stealthcompany.com/wardbook/internal/metrics"
	"stealthcompany.com/wardbook/internal/model"
	"stealthcompany.com/wardbook/pkg/apperrors"
)

// DocumentModel owns the per-patient document bundle. Category lists are
// rewritten whole, so every list mutation is a compare-and-swap on the
// bundle's updated_at stamp. A lost race is reported to the caller as a
// version conflict; the server never retries it.
type DocumentModel struct {
	*base
}

// AttachInput is one attach request
type AttachInput struct {
	Category      model.Category
	Attachment    model.Attachment
	ReplaceOldest bool
}

// Get returns the bundle, or an empty unpersisted view when none exists.
// It never writes.
func (m *DocumentModel) Get(ctx context.Context, mrn string) (*model.DocumentBundle, error) {
	if err := validateID("mrn", mrn); err != nil {
		return nil, err
	}
	it, err := m.store.Get(ctx, codec.DocumentsKey(mrn))
	if errors.Is(err, kv.ErrNotFound) {
		return model.EmptyBundle(mrn), nil
	}
	if err != nil {
		return nil, translate(err, "documents", mrn)
	}
	return codec.BundleFromItem(it), nil
}

// Init persists an empty bundle for an existing patient. created is false
// when a bundle was already stored, in which case it is returned untouched.
func (m *DocumentModel) Init(ctx context.Context, mrn string) (*model.DocumentBundle, bool, error) {
	if err := m.requirePatient(ctx, mrn); err != nil {
		return nil, false, err
	}
	item := codec.NewBundleItem(mrn, m.stamp())
	err := m.store.Put(ctx, item, kv.ItemNotExists())
	if errors.Is(err, kv.ErrPreconditionFailed) {
		existing, err := m.store.Get(ctx, codec.DocumentsKey(mrn))
		if err != nil {
			return nil, false, translate(err, "documents", mrn)
		}
		return codec.BundleFromItem(existing), false, nil
	}
	if err != nil {
		return nil, false, translate(err, "documents", mrn)
	}

	log.Info().Str("mrn", mrn).Msg("Document bundle initialized")
	return codec.BundleFromItem(item), true, nil
}

// Attach appends an attachment to a category. Attaching a key the category
// already holds changes nothing. A bounded category that is full rejects
// the attachment unless ReplaceOldest is set, which evicts the entry with
// the earliest upload time first.
func (m *DocumentModel) Attach(ctx context.Context, mrn string, in AttachInput, actor string) (*model.DocumentBundle, error) {
	if err := validateID("mrn", mrn); err != nil {
		return nil, err
	}
	if !in.Category.Valid() {
		return nil, apperrors.Validation("invalid_category", fmt.Sprintf("unknown document category %q", in.Category))
	}
	if err := validateAttachmentKey(mrn, in.Attachment.Key); err != nil {
		return nil, err
	}
	if in.Attachment.Size < 0 {
		return nil, apperrors.Validation("invalid_size", "size must not be negative")
	}

	return m.mutate(ctx, mrn, in.Category, func(list []model.Attachment, now time.Time) ([]model.Attachment, bool, error) {
		for _, a := range list {
			if a.Key == in.Attachment.Key {
				return nil, false, nil
			}
		}
		if limit, bounded := model.CategoryLimits[in.Category]; bounded && len(list) >= limit {
			if !in.ReplaceOldest {
				return nil, false, apperrors.Validation("category_full",
					fmt.Sprintf("category %s holds at most %d documents, set replaceOldest to evict the oldest", in.Category, limit))
			}
			list = evictOldest(list, len(list)-limit+1)
		}

		a := in.Attachment
		a.URL = ""
		a.UploadedAt = now
		if a.UploadedBy == "" {
			a.UploadedBy = actor
		}
		return append(list, a), true, nil
	})
}

// Detach removes an attachment from a category; removing an absent key
// changes nothing
func (m *DocumentModel) Detach(ctx context.Context, mrn string, category model.Category, key string) (*model.DocumentBundle, error) {
	if err := validateID("mrn", mrn); err != nil {
		return nil, err
	}
	if !category.Valid() {
		return nil, apperrors.Validation("invalid_category", fmt.Sprintf("unknown document category %q", category))
	}
	if key == "" {
		return nil, apperrors.Validation("missing_key", "key is required")
	}

	return m.mutate(ctx, mrn, category, func(list []model.Attachment, _ time.Time) ([]model.Attachment, bool, error) {
		kept := make([]model.Attachment, 0, len(list))
		for _, a := range list {
			if a.Key != key {
				kept = append(kept, a)
			}
		}
		return kept, len(kept) != len(list), nil
	})
}

// mutate runs one read-compute-write round of the stamp protocol. change
// reports false when the list is left as is, in which case nothing is written.
func (m *DocumentModel) mutate(ctx context.Context, mrn string, category model.Category,
	change func([]model.Attachment, time.Time) ([]model.Attachment, bool, error)) (*model.DocumentBundle, error) {
	key := codec.DocumentsKey(mrn)
	current, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, translate(err, "documents", mrn)
	}
	bundle := codec.BundleFromItem(current)
	stamp := kv.String(current[codec.AttrUpdatedAt])

	now := m.now()
	list, changed, err := change(bundle.Categories[category], now)
	if err != nil {
		return nil, err
	}
	if !changed {
		return bundle, nil
	}

	upd := kv.Update{Set: map[string]any{
		codec.DocsAttr(category): codec.AttachmentsToValue(list),
		codec.AttrUpdatedAt:      codec.FormatTime(nextStamp(now, bundle.UpdatedAt)),
	}}
	it, err := m.store.Update(ctx, key, upd, kv.And(kv.ItemExists(), versionCondition(stamp)))
	if errors.Is(err, kv.ErrPreconditionFailed) {
		metrics.RecordConflict("documents", "surfaced")
		log.Warn().Str("mrn", mrn).Str("category", string(category)).Msg("Document bundle changed concurrently")
		return nil, apperrors.Conflict("version_conflict",
			fmt.Sprintf("documents of %s were modified concurrently, re-read and retry", mrn))
	}
	if err != nil {
		return nil, translate(err, "documents", mrn)
	}
	return codec.BundleFromItem(it), nil
}

// versionCondition holds while the bundle still carries the captured stamp.
// A bundle that has never been stamped accepts its first writer.
func versionCondition(stamp string) *kv.Condition {
	if stamp == "" {
		return kv.NotExists(codec.AttrUpdatedAt)
	}
	return kv.Or(kv.Equals(codec.AttrUpdatedAt, stamp), kv.NotExists(codec.AttrUpdatedAt))
}

// nextStamp is now, pushed past prev so two writes within one clock tick
// still produce distinct stamps
func nextStamp(now time.Time, prev *time.Time) time.Time {
	if prev != nil && !now.After(*prev) {
		return prev.Add(time.Nanosecond)
	}
	return now
}

// evictOldest drops the n entries with the earliest upload time, keeping
// the order of the rest
func evictOldest(list []model.Attachment, n int) []model.Attachment {
	if n <= 0 {
		return list
	}
	idx := make([]int, len(list))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return list[idx[a]].UploadedAt.Before(list[idx[b]].UploadedAt)
	})
	drop := make(map[int]bool, n)
	for _, i := range idx[:min(n, len(idx))] {
		drop[i] = true
	}
	kept := make([]model.Attachment, 0, len(list)-len(drop))
	for i, a := range list {
		if !drop[i] {
			kept = append(kept, a)
		}
	}
	return kept
}
