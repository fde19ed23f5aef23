package api

import "time"

// Request Types

type createPatientRequest struct {
	MRN              string   `json:"mrn" validate:"required,max=64"`
	Name             string   `json:"name" validate:"required,max=200"`
	DateOfBirth      string   `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Sex              string   `json:"sex" validate:"omitempty,max=32"`
	Phone            string   `json:"phone" validate:"omitempty,max=32"`
	Bed              string   `json:"bed" validate:"omitempty,max=32"`
	Department       string   `json:"department" validate:"omitempty,max=64"`
	Status           string   `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	CurrentState     string   `json:"currentState" validate:"omitempty,max=32"`
	Diagnosis        string   `json:"diagnosis" validate:"omitempty,max=2000"`
	Comorbidities    []string `json:"comorbidities" validate:"omitempty,max=50,dive,max=200"`
	AssignedDoctorID string   `json:"assignedDoctorId" validate:"omitempty,max=64"`
}

type patchPatientRequest struct {
	Name             *string   `json:"name" validate:"omitempty,max=200"`
	DateOfBirth      *string   `json:"dateOfBirth" validate:"omitempty,max=32"`
	Sex              *string   `json:"sex" validate:"omitempty,max=32"`
	Phone            *string   `json:"phone" validate:"omitempty,max=32"`
	Bed              *string   `json:"bed" validate:"omitempty,max=32"`
	Department       *string   `json:"department" validate:"omitempty,max=64"`
	Status           *string   `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	CurrentState     *string   `json:"currentState" validate:"omitempty,max=32"`
	Diagnosis        *string   `json:"diagnosis" validate:"omitempty,max=2000"`
	Comorbidities    *[]string `json:"comorbidities" validate:"omitempty,max=50,dive,max=200"`
	AssignedDoctorID *string   `json:"assignedDoctorId" validate:"omitempty,max=64"`
}

type transitionRequest struct {
	State string `json:"state" validate:"required,max=32"`
}

type createNoteRequest struct {
	Content    string   `json:"content" validate:"required,max=20000"`
	Category   string   `json:"category" validate:"omitempty,max=64"`
	AuthorName string   `json:"authorName" validate:"omitempty,max=200"`
	Files      []string `json:"files" validate:"omitempty,max=50,dive,required,max=512"`
}

type patchNoteRequest struct {
	Content  *string `json:"content" validate:"omitempty,max=20000"`
	Category *string `json:"category" validate:"omitempty,max=64"`
}

type fileRequest struct {
	Key string `json:"key" validate:"required,max=512"`
}

type createMedicationRequest struct {
	Name         string     `json:"name" validate:"required,max=200"`
	Dose         string     `json:"dose" validate:"omitempty,max=64"`
	Route        string     `json:"route" validate:"omitempty,max=64"`
	Frequency    string     `json:"frequency" validate:"omitempty,max=64"`
	Start        *time.Time `json:"start"`
	End          *time.Time `json:"end"`
	Instructions string     `json:"instructions" validate:"omitempty,max=2000"`
	Files        []string   `json:"files" validate:"omitempty,max=50,dive,required,max=512"`
}

type patchMedicationRequest struct {
	Name         *string    `json:"name" validate:"omitempty,max=200"`
	Dose         *string    `json:"dose" validate:"omitempty,max=64"`
	Route        *string    `json:"route" validate:"omitempty,max=64"`
	Frequency    *string    `json:"frequency" validate:"omitempty,max=64"`
	Start        *time.Time `json:"start"`
	End          *time.Time `json:"end"`
	Instructions *string    `json:"instructions" validate:"omitempty,max=2000"`
}

type createTaskRequest struct {
	Title      string     `json:"title" validate:"required,max=200"`
	Details    string     `json:"details" validate:"omitempty,max=2000"`
	AssigneeID string     `json:"assigneeId" validate:"omitempty,max=64"`
	Points     int64      `json:"points" validate:"gte=0"`
	DueAt      *time.Time `json:"dueAt"`
}

type patchTaskRequest struct {
	Title      *string    `json:"title" validate:"omitempty,max=200"`
	Details    *string    `json:"details" validate:"omitempty,max=2000"`
	AssigneeID *string    `json:"assigneeId" validate:"omitempty,max=64"`
	Points     *int64     `json:"points" validate:"omitempty,gte=0"`
	DueAt      *time.Time `json:"dueAt"`
}

type attachDocumentRequest struct {
	Category      string `json:"category" validate:"required"`
	Key           string `json:"key" validate:"required,max=512"`
	Caption       string `json:"caption" validate:"omitempty,max=500"`
	MimeType      string `json:"mimeType" validate:"omitempty,max=128"`
	Size          int64  `json:"size" validate:"gte=0"`
	UploadedBy    string `json:"uploadedBy" validate:"omitempty,max=200"`
	ReplaceOldest bool   `json:"replaceOldest"`
}

type detachDocumentRequest struct {
	Category string `json:"category" validate:"required"`
	Key      string `json:"key" validate:"required,max=512"`
}

type checklistRequest struct {
	From       string   `json:"from" validate:"required"`
	To         string   `json:"to" validate:"required"`
	EntryItems []string `json:"entryItems" validate:"omitempty,max=100,dive,max=500"`
	ExitItems  []string `json:"exitItems" validate:"omitempty,max=100,dive,max=500"`
}

type createDoctorRequest struct {
	ID         string `json:"id" validate:"omitempty,max=64"`
	Name       string `json:"name" validate:"required,max=200"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"omitempty,max=32"`
	Department string `json:"department" validate:"omitempty,max=64"`
	Role       string `json:"role" validate:"required"`
}

type patchDoctorRequest struct {
	Name       *string `json:"name" validate:"omitempty,max=200"`
	Email      *string `json:"email" validate:"omitempty,max=254"`
	Phone      *string `json:"phone" validate:"omitempty,max=32"`
	Department *string `json:"department" validate:"omitempty,max=64"`
	Role       *string `json:"role"`
	Active     *bool   `json:"active"`
}

type pointsRequest struct {
	Points int64 `json:"points" validate:"required"`
}
