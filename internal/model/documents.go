package model

import "time"

// Category is one of the fixed document lists of a bundle
type Category string

const (
	CategoryPreOp     Category = "preop"
	CategoryLab       Category = "lab"
	CategoryRadiology Category = "radiology"
	CategoryIntraOp   Category = "intraop"
	CategoryNotes     Category = "notes"
	CategoryPostOp    Category = "postop"
	CategoryDischarge Category = "discharge"
)

// Categories lists every bundle category
var Categories = []Category{
	CategoryPreOp,
	CategoryLab,
	CategoryRadiology,
	CategoryIntraOp,
	CategoryNotes,
	CategoryPostOp,
	CategoryDischarge,
}

// CategoryLimits bounds the number of entries a category may hold
var CategoryLimits = map[Category]int{
	CategoryPreOp: 3,
}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// Attachment describes one stored file. The bytes live in object storage.
type Attachment struct {
	Key        string    `json:"key"`
	UploadedBy string    `json:"uploadedBy,omitempty"`
	Caption    string    `json:"caption,omitempty"`
	MimeType   string    `json:"mimeType,omitempty"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	URL        string    `json:"url,omitempty"`
}

// DocumentBundle holds the per-category attachment lists of one patient.
// UpdatedAt is nil until the first list mutation.
type DocumentBundle struct {
	MRN        string                    `json:"mrn"`
	Categories map[Category][]Attachment `json:"categories"`
	CreatedAt  *time.Time                `json:"createdAt,omitempty"`
	UpdatedAt  *time.Time                `json:"updatedAt,omitempty"`
	Persisted  bool                      `json:"persisted"`
}

// EmptyBundle returns a bundle view with every category present and empty
func EmptyBundle(mrn string) *DocumentBundle {
	b := &DocumentBundle{MRN: mrn, Categories: make(map[Category][]Attachment, len(Categories))}
	for _, c := range Categories {
		b.Categories[c] = []Attachment{}
	}
	return b
}
