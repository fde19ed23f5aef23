package codec

import (
	"stealthcompany.com/wardbook/internal/kv"
	"stealthcompany.com/wardbook/internal/model"
)

// Note, medication and task attribute names
const (
	AttrID           = "id"
	AttrAuthorID     = "author_id"
	AttrAuthorName   = "author_name"
	AttrCategory     = "category"
	AttrContent      = "content"
	AttrDose         = "dose"
	AttrRoute        = "route"
	AttrFrequency    = "frequency"
	AttrStart        = "start"
	AttrInstructions = "instructions"
	AttrPrescribedBy = "prescribed_by"
	AttrTitle        = "title"
	AttrDetails      = "details"
	AttrAssigneeID   = "assignee_id"
	AttrDueAt        = "due_at"
	AttrCompletedBy  = "completed_by"
	AttrCompletedAt  = "completed_at"
)

func childBase(key kv.Key, entity, mrn, id string) kv.Item {
	return kv.Item{
		kv.AttrPK:  key.PK,
		kv.AttrSK:  key.SK,
		AttrEntity: entity,
		AttrMRN:    mrn,
		AttrID:     id,
	}
}

// NoteToItem encodes a new note. Files are a string set.
func NoteToItem(n *model.Note) kv.Item {
	it := childBase(NoteKey(n.MRN, n.ID), EntityNote, n.MRN, n.ID)
	it[AttrContent] = n.Content
	it[AttrDeleted] = n.Deleted
	it[AttrCreatedAt] = FormatTime(n.CreatedAt)
	it[AttrUpdatedAt] = FormatTime(n.UpdatedAt)
	putString(it, AttrAuthorID, n.AuthorID)
	putString(it, AttrAuthorName, n.AuthorName)
	putString(it, AttrCategory, n.Category)
	if files := Set(n.Files); files != nil {
		it[AttrFiles] = files
	}
	return it
}

func NoteFromItem(it kv.Item) *model.Note {
	key := it.Key()
	return &model.Note{
		ID:         IDFromSK(key.SK, NotePrefix),
		MRN:        MRNFromPK(key.PK),
		AuthorID:   kv.String(it[AttrAuthorID]),
		AuthorName: kv.String(it[AttrAuthorName]),
		Category:   kv.String(it[AttrCategory]),
		Content:    kv.String(it[AttrContent]),
		Files:      nonNil(kv.Strings(it[AttrFiles])),
		Deleted:    kv.Bool(it[AttrDeleted]),
		DeletedAt:  ParseTimePtr(it[AttrDeletedAt]),
		DeletedBy:  kv.String(it[AttrDeletedBy]),
		CreatedAt:  ParseTime(it[AttrCreatedAt]),
		UpdatedAt:  ParseTime(it[AttrUpdatedAt]),
	}
}

func MedicationToItem(m *model.Medication) kv.Item {
	it := childBase(MedicationKey(m.MRN, m.ID), EntityMedication, m.MRN, m.ID)
	it[AttrName] = m.Name
	it[AttrStart] = FormatTime(m.Start)
	it[AttrCreatedAt] = FormatTime(m.CreatedAt)
	it[AttrUpdatedAt] = FormatTime(m.UpdatedAt)
	putString(it, AttrDose, m.Dose)
	putString(it, AttrRoute, m.Route)
	putString(it, AttrFrequency, m.Frequency)
	putString(it, AttrInstructions, m.Instructions)
	putString(it, AttrPrescribedBy, m.PrescribedBy)
	if m.End != nil {
		it[AttrEnd] = FormatTime(*m.End)
	}
	if files := Set(m.Files); files != nil {
		it[AttrFiles] = files
	}
	return it
}

func MedicationFromItem(it kv.Item) *model.Medication {
	key := it.Key()
	return &model.Medication{
		ID:           IDFromSK(key.SK, MedPrefix),
		MRN:          MRNFromPK(key.PK),
		Name:         kv.String(it[AttrName]),
		Dose:         kv.String(it[AttrDose]),
		Route:        kv.String(it[AttrRoute]),
		Frequency:    kv.String(it[AttrFrequency]),
		Start:        ParseTime(it[AttrStart]),
		End:          ParseTimePtr(it[AttrEnd]),
		Instructions: kv.String(it[AttrInstructions]),
		PrescribedBy: kv.String(it[AttrPrescribedBy]),
		Files:        nonNil(kv.Strings(it[AttrFiles])),
		CreatedAt:    ParseTime(it[AttrCreatedAt]),
		UpdatedAt:    ParseTime(it[AttrUpdatedAt]),
	}
}

func TaskToItem(t *model.Task) kv.Item {
	it := childBase(TaskKey(t.MRN, t.ID), EntityTask, t.MRN, t.ID)
	it[AttrTitle] = t.Title
	it[AttrPoints] = t.Points
	it[AttrStatus] = string(t.Status)
	it[AttrCreatedAt] = FormatTime(t.CreatedAt)
	it[AttrUpdatedAt] = FormatTime(t.UpdatedAt)
	putString(it, AttrDetails, t.Details)
	putString(it, AttrAssigneeID, t.AssigneeID)
	putString(it, AttrCreatedBy, t.CreatedBy)
	if t.DueAt != nil {
		it[AttrDueAt] = FormatTime(*t.DueAt)
	}
	return it
}

func TaskFromItem(it kv.Item) *model.Task {
	key := it.Key()
	points, _ := kv.Int64(it[AttrPoints])
	return &model.Task{
		ID:          IDFromSK(key.SK, TaskPrefix),
		MRN:         MRNFromPK(key.PK),
		Title:       kv.String(it[AttrTitle]),
		Details:     kv.String(it[AttrDetails]),
		AssigneeID:  kv.String(it[AttrAssigneeID]),
		Points:      points,
		Status:      model.TaskStatus(kv.String(it[AttrStatus])),
		DueAt:       ParseTimePtr(it[AttrDueAt]),
		CreatedBy:   kv.String(it[AttrCreatedBy]),
		CompletedBy: kv.String(it[AttrCompletedBy]),
		CompletedAt: ParseTimePtr(it[AttrCompletedAt]),
		CreatedAt:   ParseTime(it[AttrCreatedAt]),
		UpdatedAt:   ParseTime(it[AttrUpdatedAt]),
	}
}
