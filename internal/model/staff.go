package model

import "time"

// Role is a staff role within a department
type Role string

const (
	RoleConsultant Role = "consultant"
	RoleRegistrar  Role = "registrar"
	RoleResident   Role = "resident"
	RoleIntern     Role = "intern"
	RoleNurse      Role = "nurse"
)

// Roles lists every staff role
var Roles = []Role{RoleConsultant, RoleRegistrar, RoleResident, RoleIntern, RoleNurse}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	for _, k := range Roles {
		if k == r {
			return true
		}
	}
	return false
}

// Doctor is a staff profile. Inactive or unassigned doctors are absent from
// the department index.
type Doctor struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Department string    `json:"department,omitempty"`
	Role       Role      `json:"role,omitempty"`
	Active     bool      `json:"active"`
	Points     int64     `json:"points"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Checklist lists the items required to enter and leave a workflow transition
type Checklist struct {
	From       Stage     `json:"from"`
	To         Stage     `json:"to"`
	EntryItems []string  `json:"entryItems"`
	ExitItems  []string  `json:"exitItems"`
	UpdatedBy  string    `json:"updatedBy,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Page is one page of a listing; NextCursor is empty on the last page
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}
