package codec

import (
	"strings"
	"time"

	"stealthcompany.com/wardbook/internal/kv"
	"stealthcompany.com/wardbook/internal/model"
)

// Patient attribute names
const (
	AttrMRN              = "mrn"
	AttrName             = "name"
	AttrDateOfBirth      = "date_of_birth"
	AttrSex              = "sex"
	AttrPhone            = "phone"
	AttrBed              = "bed"
	AttrDiagnosis        = "diagnosis"
	AttrComorbidities    = "comorbidities"
	AttrAssignedDoctorID = "assigned_doctor_id"
	AttrCreatedBy        = "created_by"
)

// PatientToItem encodes a new patient record, deriving the classification key
func PatientToItem(p *model.Patient) kv.Item {
	key := PatientKey(p.MRN)
	it := kv.Item{
		kv.AttrPK:         key.PK,
		kv.AttrSK:         key.SK,
		AttrEntity:        EntityPatient,
		AttrMRN:           p.MRN,
		AttrName:          p.Name,
		AttrStatus:        string(p.Status),
		AttrUpdateCount:   p.UpdateCount,
		AttrCreatedAt:     FormatTime(p.CreatedAt),
		AttrUpdatedAt:     FormatTime(p.UpdatedAt),
		AttrComorbidities: List(p.Comorbidities),
	}
	putString(it, AttrDateOfBirth, p.DateOfBirth)
	putString(it, AttrSex, p.Sex)
	putString(it, AttrPhone, p.Phone)
	putString(it, AttrBed, p.Bed)
	putString(it, AttrDepartment, p.Department)
	putString(it, AttrDiagnosis, p.Diagnosis)
	putString(it, AttrAssignedDoctorID, p.AssignedDoctorID)
	putString(it, AttrCreatedBy, p.CreatedBy)
	putString(it, AttrCurrentState, string(p.CurrentState))
	putString(it, AttrDepartmentStatus, ClassificationKey(p.Department, string(p.Status)))
	for stage, at := range p.StateDates {
		it[StateDateAttr(stage)] = FormatTime(at)
	}
	return it
}

// PatientFromItem decodes a stored patient profile
func PatientFromItem(it kv.Item) *model.Patient {
	count, _ := kv.Int64(it[AttrUpdateCount])
	p := &model.Patient{
		MRN:              kv.String(it[AttrMRN]),
		Name:             kv.String(it[AttrName]),
		DateOfBirth:      kv.String(it[AttrDateOfBirth]),
		Sex:              kv.String(it[AttrSex]),
		Phone:            kv.String(it[AttrPhone]),
		Bed:              kv.String(it[AttrBed]),
		Department:       kv.String(it[AttrDepartment]),
		Status:           model.PatientStatus(kv.String(it[AttrStatus])),
		CurrentState:     model.Stage(kv.String(it[AttrCurrentState])),
		Diagnosis:        kv.String(it[AttrDiagnosis]),
		Comorbidities:    nonNil(kv.Strings(it[AttrComorbidities])),
		AssignedDoctorID: kv.String(it[AttrAssignedDoctorID]),
		UpdateCount:      count,
		CreatedAt:        ParseTime(it[AttrCreatedAt]),
		UpdatedAt:        ParseTime(it[AttrUpdatedAt]),
		CreatedBy:        kv.String(it[AttrCreatedBy]),
	}
	if p.MRN == "" {
		p.MRN = MRNFromPK(it.Key().PK)
	}
	for attr, v := range it {
		if !strings.HasPrefix(attr, AttrStateDatePrefix) {
			continue
		}
		if p.StateDates == nil {
			p.StateDates = make(map[model.Stage]time.Time)
		}
		p.StateDates[model.StageFromAttrSuffix(strings.TrimPrefix(attr, AttrStateDatePrefix))] = ParseTime(v)
	}
	return p
}

func putString(it kv.Item, attr, v string) {
	if v != "" {
		it[attr] = v
	}
}
