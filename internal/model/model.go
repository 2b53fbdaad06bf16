// Package model defines domain entities shared by the client components.
package model

import (
	"strings"
	"time"
)

// User is the authenticated identity returned by the backend.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Valid reports whether the user carries an identity.
func (u User) Valid() bool { return strings.TrimSpace(u.ID) != "" }

// Session pairs a bearer token with the user it was issued for.
// A session with only one half set is not a session.
type Session struct {
	Token     string
	User      User
	ExpiresIn int64     // validity window hint from the backend, seconds (0 = unknown)
	ExpiresAt time.Time // zero when the backend gave no expiry
}

// Valid reports whether both halves of the session are present.
func (s Session) Valid() bool { return s.Token != "" && s.User.Valid() }

// Expired reports whether the session has a known expiry in the past.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Request is a user-submitted service ticket.
type Request struct {
	ID           string
	Category     string
	Description  string
	Status       Status
	SubmitterID  string
	Phone        string
	Department   string
	City         string
	Neighborhood string
	Address      string
	ImageURL     string
	CreatedAt    time.Time
}

// Categories accepted by the backend.
const (
	CategoryMaintenance = "Mantenimiento"
	CategoryRepair      = "Reparación"
	CategoryComplaint   = "Denuncia"
)

// DefaultDepartment is used when a draft leaves the department empty.
const DefaultDepartment = "Santander"

// KnownCategory reports whether c is one of the accepted categories.
func KnownCategory(c string) bool {
	switch c {
	case CategoryMaintenance, CategoryRepair, CategoryComplaint:
		return true
	}
	return false
}

// Draft is the submission input for a new request.
type Draft struct {
	Category     string
	Description  string
	Phone        string
	Department   string
	City         string
	Neighborhood string
	Address      string
	ImagePath    string // optional local file attached as the photo
}
