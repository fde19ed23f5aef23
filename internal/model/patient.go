package model

import "time"

// PatientStatus classifies a patient for the department index
type PatientStatus string

const (
	PatientActive   PatientStatus = "ACTIVE"
	PatientInactive PatientStatus = "INACTIVE"
)

// Valid reports whether s is a known status
func (s PatientStatus) Valid() bool {
	return s == PatientActive || s == PatientInactive
}

// Patient is the profile record of a patient aggregate
type Patient struct {
	MRN              string              `json:"mrn"`
	Name             string              `json:"name"`
	DateOfBirth      string              `json:"dateOfBirth,omitempty"`
	Sex              string              `json:"sex,omitempty"`
	Phone            string              `json:"phone,omitempty"`
	Bed              string              `json:"bed,omitempty"`
	Department       string              `json:"department,omitempty"`
	Status           PatientStatus       `json:"status"`
	CurrentState     Stage               `json:"currentState,omitempty"`
	StateDates       map[Stage]time.Time `json:"stateDates,omitempty"`
	Diagnosis        string              `json:"diagnosis,omitempty"`
	Comorbidities    []string            `json:"comorbidities"`
	AssignedDoctorID string              `json:"assignedDoctorId,omitempty"`
	UpdateCount      int64               `json:"updateCount"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
	CreatedBy        string              `json:"createdBy,omitempty"`
}
