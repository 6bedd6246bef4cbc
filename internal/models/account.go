package models

import (
	"strings"
	"time"
)

// Profile holds personal details shared by staff accounts and residents.
type Profile struct {
	FirstName     string `json:"first_name"`
	MiddleName    string `json:"middle_name,omitempty"`
	LastName      string `json:"last_name"`
	Suffix        string `json:"suffix,omitempty"`
	Age           int    `json:"age,omitempty"`
	Birthdate     string `json:"birthdate,omitempty"`
	Gender        string `json:"gender,omitempty"`
	Contact       string `json:"contact"`
	Address       string `json:"address"`
	ResponderType string `json:"responder_type,omitempty"`
	PhotoRef      string `json:"photo_ref,omitempty"`
	ValidIDRef    string `json:"valid_id_ref,omitempty"`
}

// FullName joins the name parts, skipping empty ones.
func (p Profile) FullName() string {
	parts := make([]string, 0, 4)
	for _, s := range []string{p.FirstName, p.MiddleName, p.LastName, p.Suffix} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Account is a dashboard login (admin, staff, responder or viewer).
type Account struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	Active       bool      `db:"active" json:"active"`
	Profile      Profile   `db:"-" json:"profile"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
	Version      int64     `db:"version" json:"version"`
}

// DisplayName prefers the profile name over the username.
func (a *Account) DisplayName() string {
	if name := a.Profile.FullName(); name != "" {
		return name
	}
	return a.Username
}

// ResidentStatus is the membership state of a resident.
type ResidentStatus string

const (
	ResidentActive   ResidentStatus = "active"
	ResidentInactive ResidentStatus = "inactive"
)

// Resident is a registered community member who may file reports.
type Resident struct {
	ID           string         `db:"id" json:"id"`
	Username     string         `db:"username" json:"username"`
	Email        string         `db:"email" json:"email"`
	PasswordHash string         `db:"password_hash" json:"-"`
	Status       ResidentStatus `db:"status" json:"status"`
	Notes        string         `db:"notes" json:"notes,omitempty"`
	Profile      Profile        `db:"-" json:"profile"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
	Version      int64          `db:"version" json:"version"`
}

// Clone returns a copy.
func (r *Resident) Clone() *Resident {
	if r == nil {
		return nil
	}
	out := *r
	return &out
}

// ResidentFilter narrows resident listings. Status accepts all, active,
// inactive or pending.
type ResidentFilter struct {
	Search   string
	Status   string
	Page     int
	PageSize int
}

// Matches applies the search term over username, name and email.
func (f ResidentFilter) Matches(r *Resident) bool {
	q := strings.ToLower(strings.TrimSpace(f.Search))
	if q == "" {
		return true
	}
	haystack := strings.ToLower(strings.Join([]string{r.Username, r.Profile.FullName(), r.Email}, " "))
	return strings.Contains(haystack, q)
}
