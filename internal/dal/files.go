package dal

import (
	"context"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/wardbook/internal/codec"
	"stealthcompany.com/wardbook/internal/kv"
)

// mutateFiles adds or removes exactly one key of a child record's file set.
// Both directions are idempotent: re-attaching a present key or detaching an
// absent one leaves the set unchanged.
func (b *base) mutateFiles(ctx context.Context, key kv.Key, mrn, fileKey string, attach bool, entity, id string) (kv.Item, error) {
	if err := validateAttachmentKey(mrn, fileKey); err != nil {
		return nil, err
	}
	upd := kv.Update{Set: map[string]any{codec.AttrUpdatedAt: b.stamp()}}
	if attach {
		upd.AddToSet = map[string][]string{codec.AttrFiles: {fileKey}}
	} else {
		upd.DeleteFromSet = map[string][]string{codec.AttrFiles: {fileKey}}
	}

	it, err := b.store.Update(ctx, key, upd, kv.ItemExists())
	if err != nil {
		return nil, translate(err, entity, id)
	}

	log.Debug().
		Str("entity", entity).
		Str("id", id).
		Str("file_key", fileKey).
		Bool("attach", attach).
		Msg("File set updated")
	return it, nil
}
