package model

import "time"

// Note is a clinical note under a patient. Deleted notes stay stored.
type Note struct {
	ID         string     `json:"id"`
	MRN        string     `json:"mrn"`
	AuthorID   string     `json:"authorId,omitempty"`
	AuthorName string     `json:"authorName,omitempty"`
	Category   string     `json:"category,omitempty"`
	Content    string     `json:"content"`
	Files      []string   `json:"files"`
	FileURLs   []string   `json:"fileUrls,omitempty"`
	Deleted    bool       `json:"deleted"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
	DeletedBy  string     `json:"deletedBy,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Medication is a prescription under a patient. Stopping sets End.
type Medication struct {
	ID           string     `json:"id"`
	MRN          string     `json:"mrn"`
	Name         string     `json:"name"`
	Dose         string     `json:"dose,omitempty"`
	Route        string     `json:"route,omitempty"`
	Frequency    string     `json:"frequency,omitempty"`
	Start        time.Time  `json:"start"`
	End          *time.Time `json:"end,omitempty"`
	Instructions string     `json:"instructions,omitempty"`
	PrescribedBy string     `json:"prescribedBy,omitempty"`
	Files        []string   `json:"files"`
	FileURLs     []string   `json:"fileUrls,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Active reports whether the medication is still being given at t
func (m Medication) Active(t time.Time) bool {
	return m.End == nil || m.End.After(t)
}

// TaskStatus is the lifecycle of a task
type TaskStatus string

const (
	TaskOpen      TaskStatus = "OPEN"
	TaskDone      TaskStatus = "DONE"
	TaskCancelled TaskStatus = "CANCELLED"
)

// Valid reports whether s is a known task status
func (s TaskStatus) Valid() bool {
	return s == TaskOpen || s == TaskDone || s == TaskCancelled
}

// Task is a to-do item under a patient that awards points to its assignee on completion
type Task struct {
	ID          string     `json:"id"`
	MRN         string     `json:"mrn"`
	Title       string     `json:"title"`
	Details     string     `json:"details,omitempty"`
	AssigneeID  string     `json:"assigneeId,omitempty"`
	Points      int64      `json:"points"`
	Status      TaskStatus `json:"status"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	CreatedBy   string     `json:"createdBy,omitempty"`
	CompletedBy string     `json:"completedBy,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
