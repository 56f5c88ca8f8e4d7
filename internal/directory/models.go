// Package directory is the staff phone book: search, org structure and bulk
// import from HR exports.
package directory

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"intranet/pkg/email"
	pkgstrings "intranet/pkg/platform/strings"
)

type Employee struct {
	ID         uuid.UUID  `json:"id"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone,omitempty"`
	Mobile     string     `json:"mobile,omitempty"`
	Department string     `json:"department,omitempty"`
	JobTitle   string     `json:"job_title,omitempty"`
	Location   string     `json:"location,omitempty"`
	PhotoURL   string     `json:"photo_url,omitempty"`
	ManagerID  *uuid.UUID `json:"manager_id,omitempty"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (e *Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// Filter drives both the staff search and the admin listing. Active nil
// means any state.
type Filter struct {
	Query      string
	Department string
	Location   string
	Active     *bool
}

func (f Filter) matches(e *Employee) bool {
	if f.Active != nil && e.Active != *f.Active {
		return false
	}
	if f.Department != "" && !strings.EqualFold(e.Department, f.Department) {
		return false
	}
	if f.Location != "" && !strings.EqualFold(e.Location, f.Location) {
		return false
	}
	return pkgstrings.ContainsFold(f.Query, e.FullName(), e.Email, e.JobTitle, e.Department, e.Phone, e.Mobile)
}

type DepartmentCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type EmployeeRequest struct {
	FirstName  string     `json:"first_name" validate:"max=120"`
	LastName   string     `json:"last_name" validate:"max=120"`
	Email      string     `json:"email" validate:"required,email,max=254"`
	Phone      string     `json:"phone" validate:"max=40"`
	Mobile     string     `json:"mobile" validate:"max=40"`
	Department string     `json:"department" validate:"max=120"`
	JobTitle   string     `json:"job_title" validate:"max=120"`
	Location   string     `json:"location" validate:"max=120"`
	PhotoURL   string     `json:"photo_url" validate:"omitempty,httpurl"`
	ManagerID  *uuid.UUID `json:"manager_id"`
	Active     *bool      `json:"active"`
}

// Normalize trims fields and fills missing names from the email address.
func (r *EmployeeRequest) Normalize() {
	r.Email = email.Normalize(r.Email)
	for _, f := range []*string{&r.FirstName, &r.LastName, &r.Phone, &r.Mobile, &r.Department, &r.JobTitle, &r.Location, &r.PhotoURL} {
		*f = strings.TrimSpace(*f)
	}
	if r.FirstName == "" && r.LastName == "" && r.Email != "" {
		first, last := email.DeriveNameFromEmail(r.Email)
		r.FirstName = first
		if last != "User" {
			r.LastName = last
		}
	}
}

// RowError reports why an import line was skipped. Line counts the header
// as line 1.
type RowError struct {
	Line    int    `json:"line"`
	Email   string `json:"email,omitempty"`
	Message string `json:"message"`
}

type ImportReport struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"`
	Errors  []RowError `json:"errors"`
}
