package codec

import (
	"stealthcompany.com/wardbook/internal/kv"
	"stealthcompany.com/wardbook/internal/model"
)

// Attachment descriptor fields, stored as a nested map per list entry
const (
	AttrKey        = "key"
	AttrUploadedBy = "uploaded_by"
	AttrCaption    = "caption"
	AttrMimeType   = "mime_type"
	AttrSize       = "size"
	AttrUploadedAt = "uploaded_at"
)

// NewBundleItem is the stored form of a freshly initialized bundle. It
// carries no updated_at so the first list mutation never conflicts.
func NewBundleItem(mrn string, createdAt string) kv.Item {
	key := DocumentsKey(mrn)
	it := kv.Item{
		kv.AttrPK:     key.PK,
		kv.AttrSK:     key.SK,
		AttrEntity:    EntityDocuments,
		AttrMRN:       mrn,
		AttrCreatedAt: createdAt,
	}
	for _, c := range model.Categories {
		it[DocsAttr(c)] = []any{}
	}
	return it
}

func AttachmentToValue(a model.Attachment) map[string]any {
	v := map[string]any{
		AttrKey:        a.Key,
		AttrSize:       a.Size,
		AttrUploadedAt: FormatTime(a.UploadedAt),
	}
	if a.UploadedBy != "" {
		v[AttrUploadedBy] = a.UploadedBy
	}
	if a.Caption != "" {
		v[AttrCaption] = a.Caption
	}
	if a.MimeType != "" {
		v[AttrMimeType] = a.MimeType
	}
	return v
}

func AttachmentFromValue(v map[string]any) model.Attachment {
	size, _ := kv.Int64(v[AttrSize])
	return model.Attachment{
		Key:        kv.String(v[AttrKey]),
		UploadedBy: kv.String(v[AttrUploadedBy]),
		Caption:    kv.String(v[AttrCaption]),
		MimeType:   kv.String(v[AttrMimeType]),
		Size:       size,
		UploadedAt: ParseTime(v[AttrUploadedAt]),
	}
}

// AttachmentsToValue encodes a category list
func AttachmentsToValue(list []model.Attachment) []any {
	out := make([]any, len(list))
	for i, a := range list {
		out[i] = AttachmentToValue(a)
	}
	return out
}

// BundleFromItem decodes a stored bundle; every category is present
func BundleFromItem(it kv.Item) *model.DocumentBundle {
	b := model.EmptyBundle(MRNFromPK(it.Key().PK))
	b.Persisted = true
	b.CreatedAt = ParseTimePtr(it[AttrCreatedAt])
	b.UpdatedAt = ParseTimePtr(it[AttrUpdatedAt])
	for _, c := range model.Categories {
		for _, v := range kv.Maps(it[DocsAttr(c)]) {
			b.Categories[c] = append(b.Categories[c], AttachmentFromValue(v))
		}
	}
	return b
}
