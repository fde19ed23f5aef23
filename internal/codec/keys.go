// Package codec maps domain records onto flat stored items and back. It owns
// the key layout and attribute names; it holds no business rules.
package codec

import (
	"strings"
	"time"

	"stealthcompany.com/wardbook/internal/kv"
	"stealthcompany.com/wardbook/internal/model"
)

// Partition and sort key layout
const (
	PatientPrefix    = "PATIENT#"
	DoctorPrefix     = "DOCTOR#"
	ProfileSK        = "PROFILE"
	DocumentsSK      = "DOCUMENTS"
	NotePrefix       = "NOTE#"
	MedPrefix        = "MED#"
	TaskPrefix       = "TASK#"
	ChecklistPK      = "CHECKLIST"
	TransitionPrefix = "TRANSITION#"
	LeasePK          = "LOCK"
)

// Stored attribute names shared across entities
const (
	AttrEntity           = "entity"
	AttrDepartment       = "department"
	AttrStatus           = "status"
	AttrRole             = "role"
	AttrActive           = "active"
	AttrDepartmentStatus = "department_status"
	AttrDepartmentRole   = "department_role"
	AttrUpdateCount      = "update_count"
	AttrCreatedAt        = "created_at"
	AttrUpdatedAt        = "updated_at"
	AttrCurrentState     = "current_state"
	AttrStateDatePrefix  = "state_date_"
	AttrFiles            = "files"
	AttrDeleted          = "deleted"
	AttrDeletedAt        = "deleted_at"
	AttrDeletedBy        = "deleted_by"
	AttrEnd              = "end"
	AttrPoints           = "points"
	AttrDocsPrefix       = "docs_"
	AttrExpiresAt        = "expires_at"
	AttrOwner            = "owner"
)

// Entity discriminators stored in AttrEntity
const (
	EntityPatient    = "patient"
	EntityNote       = "note"
	EntityMedication = "medication"
	EntityTask       = "task"
	EntityDocuments  = "documents"
	EntityDoctor     = "doctor"
	EntityChecklist  = "checklist"
	EntityLease      = "lease"
)

func PatientKey(mrn string) kv.Key {
	return kv.Key{PK: PatientPrefix + mrn, SK: ProfileSK}
}

func NoteKey(mrn, id string) kv.Key {
	return kv.Key{PK: PatientPrefix + mrn, SK: NotePrefix + id}
}

func MedicationKey(mrn, id string) kv.Key {
	return kv.Key{PK: PatientPrefix + mrn, SK: MedPrefix + id}
}

func TaskKey(mrn, id string) kv.Key {
	return kv.Key{PK: PatientPrefix + mrn, SK: TaskPrefix + id}
}

func DocumentsKey(mrn string) kv.Key {
	return kv.Key{PK: PatientPrefix + mrn, SK: DocumentsSK}
}

func DoctorKey(id string) kv.Key {
	return kv.Key{PK: DoctorPrefix + id, SK: ProfileSK}
}

func ChecklistKey(from, to model.Stage) kv.Key {
	return kv.Key{PK: ChecklistPK, SK: TransitionPrefix + string(from) + "#" + string(to)}
}

func LeaseKey(name string) kv.Key {
	return kv.Key{PK: LeasePK, SK: name}
}

// ClassificationKey joins two classifying values into an index key. It is
// empty when either part is, which means the record is absent from the index.
func ClassificationKey(a, b string) string {
	if a == "" || b == "" {
		return ""
	}
	return a + "#" + b
}

// StateDateAttr is the attribute recording when a stage was first entered
func StateDateAttr(s model.Stage) string {
	return AttrStateDatePrefix + s.AttrSuffix()
}

// DocsAttr is the attribute holding a bundle category list
func DocsAttr(c model.Category) string {
	return AttrDocsPrefix + string(c)
}

// TimeLayout is fixed width so lexical order of stored strings is chronological
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t for storage, always in UTC
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime reads a stored timestamp; malformed or absent values give the zero time
func ParseTime(v any) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return time.Time{}
		}
	}
	return t.UTC()
}

// ParseTimePtr is ParseTime for optional attributes
func ParseTimePtr(v any) *time.Time {
	t := ParseTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}

// IDFromSK strips a sort key prefix
func IDFromSK(sk, prefix string) string {
	return strings.TrimPrefix(sk, prefix)
}

// MRNFromPK strips the patient partition prefix
func MRNFromPK(pk string) string {
	return strings.TrimPrefix(pk, PatientPrefix)
}

// List stores an ordered string list. []string is reserved for string sets.
func List(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// Set stores a string set; nil for an empty set
func Set(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	out := make([]string, len(ss))
	copy(out, ss)
	return out
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
