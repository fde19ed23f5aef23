package dal

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/wardbook/internal/codec"
	"stealthcompany.com/wardbook/internal/kv"
	"stealthcompany.com/wardbook/internal/model"
	"stealthcompany.com/wardbook/pkg/apperrors"
)

// NoteModel owns the clinical notes of a patient
type NoteModel struct {
	*base
}

// NewNote is the input of Create
type NewNote struct {
	Content    string
	Category   string
	AuthorName string
	Files      []string
}

// NotePatch carries the fields to change; files go through Attach/Detach
type NotePatch struct {
	Content  *string
	Category *string
}

// NoteListOptions controls a note listing. Newest notes come first unless
// Ascending is set.
type NoteListOptions struct {
	IncludeDeleted bool
	Ascending      bool
}

// Create stores a note under an existing patient
func (m *NoteModel) Create(ctx context.Context, mrn string, in NewNote, actor string) (*model.Note, error) {
	if in.Content == "" {
		return nil, apperrors.Validation("missing_content", "content is required")
	}
	for _, f := range in.Files {
		if err := validateAttachmentKey(mrn, f); err != nil {
			return nil, err
		}
	}
	if err := m.requirePatient(ctx, mrn); err != nil {
		return nil, err
	}

	now := m.now()
	n := &model.Note{
		ID:         m.opts.NewID(),
		MRN:        mrn,
		AuthorID:   actor,
		AuthorName: in.AuthorName,
		Category:   in.Category,
		Content:    in.Content,
		Files:      dedupe(in.Files),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := m.store.Put(ctx, codec.NoteToItem(n), kv.ItemNotExists())
	if errors.Is(err, kv.ErrPreconditionFailed) {
		return nil, apperrors.AlreadyExists("note", n.ID)
	}
	if err != nil {
		return nil, translate(err, "note", n.ID)
	}

	log.Info().Str("mrn", mrn).Str("note_id", n.ID).Str("actor", actor).Msg("Note created")
	return n, nil
}

// Get returns a note, including a soft-deleted one
func (m *NoteModel) Get(ctx context.Context, mrn, id string) (*model.Note, error) {
	if err := validateID("note_id", id); err != nil {
		return nil, err
	}
	it, err := m.store.Get(ctx, codec.NoteKey(mrn, id))
	if err != nil {
		return nil, translate(err, "note", id)
	}
	return codec.NoteFromItem(it), nil
}

// List returns the notes of a patient, skipping soft-deleted ones unless asked
func (m *NoteModel) List(ctx context.Context, mrn string, opts NoteListOptions, req PageRequest) (*model.Page[*model.Note], error) {
	if err := validateID("mrn", mrn); err != nil {
		return nil, err
	}
	scope := "notes:" + mrn
	if opts.Ascending {
		scope += ":asc"
	}
	if opts.IncludeDeleted {
		scope += ":all"
	}
	pk := codec.PatientKey(mrn).PK

	items, next, err := fill(ctx, m.limit(req), m.opts.Cursors.Decode(req.Cursor, scope),
		func(ctx context.Context, n int, after *kv.Key) (kv.Page, error) {
			return m.store.QueryPrefix(ctx, kv.PrefixQuery{PK: pk, SKPrefix: codec.NotePrefix, Limit: n, After: after, Descending: !opts.Ascending})
		},
		func(it kv.Item) (*model.Note, bool) {
			n := codec.NoteFromItem(it)
			return n, opts.IncludeDeleted || !n.Deleted
		})
	if err != nil {
		return nil, translate(err, "notes", mrn)
	}
	return &model.Page[*model.Note]{Items: items, NextCursor: m.opts.Cursors.Encode(next, scope)}, nil
}

// Patch edits a note's content or category
func (m *NoteModel) Patch(ctx context.Context, mrn, id string, patch NotePatch, actor string) (*model.Note, error) {
	if err := validateID("note_id", id); err != nil {
		return nil, err
	}
	set := map[string]any{}
	var remove []string
	if patch.Content != nil {
		if *patch.Content == "" {
			return nil, apperrors.Validation("missing_content", "content cannot be empty")
		}
		set[codec.AttrContent] = *patch.Content
	}
	if patch.Category != nil {
		if *patch.Category == "" {
			remove = append(remove, codec.AttrCategory)
		} else {
			set[codec.AttrCategory] = *patch.Category
		}
	}
	if len(set) == 0 && len(remove) == 0 {
		return nil, apperrors.Validation("empty_patch", "no updatable fields supplied")
	}
	set[codec.AttrUpdatedAt] = m.stamp()

	it, err := m.store.Update(ctx, codec.NoteKey(mrn, id), kv.Update{Set: set, Remove: remove}, kv.ItemExists())
	if err != nil {
		return nil, translate(err, "note", id)
	}
	log.Info().Str("mrn", mrn).Str("note_id", id).Str("actor", actor).Msg("Note updated")
	return codec.NoteFromItem(it), nil
}

// SoftDelete flags the note deleted. The first deletion time is kept.
func (m *NoteModel) SoftDelete(ctx context.Context, mrn, id, actor string) (*model.Note, error) {
	if err := validateID("note_id", id); err != nil {
		return nil, err
	}
	now := m.stamp()
	upd := kv.Update{
		Set:         map[string]any{codec.AttrDeleted: true, codec.AttrUpdatedAt: now},
		SetIfAbsent: map[string]any{codec.AttrDeletedAt: now, codec.AttrDeletedBy: actor},
	}
	it, err := m.store.Update(ctx, codec.NoteKey(mrn, id), upd, kv.ItemExists())
	if err != nil {
		return nil, translate(err, "note", id)
	}
	log.Info().Str("mrn", mrn).Str("note_id", id).Str("actor", actor).Msg("Note soft-deleted")
	return codec.NoteFromItem(it), nil
}

// AttachFile adds a file key to the note; attaching a present key is a no-op
func (m *NoteModel) AttachFile(ctx context.Context, mrn, id, fileKey string) (*model.Note, error) {
	if err := validateID("note_id", id); err != nil {
		return nil, err
	}
	it, err := m.mutateFiles(ctx, codec.NoteKey(mrn, id), mrn, fileKey, true, "note", id)
	if err != nil {
		return nil, err
	}
	return codec.NoteFromItem(it), nil
}

// DetachFile removes a file key from the note; detaching an absent key is a no-op
func (m *NoteModel) DetachFile(ctx context.Context, mrn, id, fileKey string) (*model.Note, error) {
	if err := validateID("note_id", id); err != nil {
		return nil, err
	}
	it, err := m.mutateFiles(ctx, codec.NoteKey(mrn, id), mrn, fileKey, false, "note", id)
	if err != nil {
		return nil, err
	}
	return codec.NoteFromItem(it), nil
}

func dedupe(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
