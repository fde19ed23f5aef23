package codec

import (
	"stealthcompany.com/wardbook/internal/kv"
	"stealthcompany.com/wardbook/internal/model"
)

// Doctor and checklist attribute names
const (
	AttrEmail      = "email"
	AttrFrom       = "from"
	AttrTo         = "to"
	AttrEntryItems = "entry_items"
	AttrExitItems  = "exit_items"
	AttrUpdatedBy  = "updated_by"
)

// DoctorIndexKey is the department_role value of a doctor; empty when the
// doctor must not be listed
func DoctorIndexKey(department string, role model.Role, active bool) string {
	if !active {
		return ""
	}
	return ClassificationKey(department, string(role))
}

func DoctorToItem(d *model.Doctor) kv.Item {
	key := DoctorKey(d.ID)
	it := kv.Item{
		kv.AttrPK:     key.PK,
		kv.AttrSK:     key.SK,
		AttrEntity:    EntityDoctor,
		AttrID:        d.ID,
		AttrName:      d.Name,
		AttrActive:    d.Active,
		AttrPoints:    d.Points,
		AttrCreatedAt: FormatTime(d.CreatedAt),
		AttrUpdatedAt: FormatTime(d.UpdatedAt),
	}
	putString(it, AttrEmail, d.Email)
	putString(it, AttrPhone, d.Phone)
	putString(it, AttrDepartment, d.Department)
	putString(it, AttrRole, string(d.Role))
	putString(it, AttrDepartmentRole, DoctorIndexKey(d.Department, d.Role, d.Active))
	return it
}

func DoctorFromItem(it kv.Item) *model.Doctor {
	points, _ := kv.Int64(it[AttrPoints])
	return &model.Doctor{
		ID:         IDFromSK(it.Key().PK, DoctorPrefix),
		Name:       kv.String(it[AttrName]),
		Email:      kv.String(it[AttrEmail]),
		Phone:      kv.String(it[AttrPhone]),
		Department: kv.String(it[AttrDepartment]),
		Role:       model.Role(kv.String(it[AttrRole])),
		Active:     kv.Bool(it[AttrActive]),
		Points:     points,
		CreatedAt:  ParseTime(it[AttrCreatedAt]),
		UpdatedAt:  ParseTime(it[AttrUpdatedAt]),
	}
}

func ChecklistToItem(c *model.Checklist) kv.Item {
	key := ChecklistKey(c.From, c.To)
	it := kv.Item{
		kv.AttrPK:      key.PK,
		kv.AttrSK:      key.SK,
		AttrEntity:     EntityChecklist,
		AttrFrom:       string(c.From),
		AttrTo:         string(c.To),
		AttrEntryItems: List(c.EntryItems),
		AttrExitItems:  List(c.ExitItems),
		AttrUpdatedAt:  FormatTime(c.UpdatedAt),
	}
	putString(it, AttrUpdatedBy, c.UpdatedBy)
	return it
}

func ChecklistFromItem(it kv.Item) *model.Checklist {
	return &model.Checklist{
		From:       model.Stage(kv.String(it[AttrFrom])),
		To:         model.Stage(kv.String(it[AttrTo])),
		EntryItems: nonNil(kv.Strings(it[AttrEntryItems])),
		ExitItems:  nonNil(kv.Strings(it[AttrExitItems])),
		UpdatedBy:  kv.String(it[AttrUpdatedBy]),
		UpdatedAt:  ParseTime(it[AttrUpdatedAt]),
	}
}
