package model

import "fmt"

// Status is the position of a request in its fixed progression.
type Status int

// Statuses in progression order. The zero value is not a valid status.
const (
	StatusUnknown Status = iota
	StatusReviewed
	StatusInProgress
	StatusResolved
)

// progression lists the valid statuses in order.
var progression = []Status{StatusReviewed, StatusInProgress, StatusResolved}

var wireNames = map[Status]string{
	StatusReviewed:   "Revisado",
	StatusInProgress: "En Proceso",
	StatusResolved:   "Solucionado",
}

// ParseStatus converts a backend status string into a Status.
func ParseStatus(s string) (Status, error) {
	for st, name := range wireNames {
		if name == s {
			return st, nil
		}
	}
	return StatusUnknown, fmt.Errorf("unknown status %q", s)
}

// String returns the backend representation of the status.
func (s Status) String() string {
	if name, ok := wireNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool { return s.Index() >= 0 }

// Index returns the zero-based position of s in the progression, or -1.
func (s Status) Index() int {
	for i, st := range progression {
		if st == s {
			return i
		}
	}
	return -1
}

// Terminal reports whether s is the last status of the progression.
func (s Status) Terminal() bool { return s == progression[len(progression)-1] }

// Next returns the successor of s. ok is false for the terminal or an invalid status.
func (s Status) Next() (next Status, ok bool) {
	i := s.Index()
	if i < 0 || i == len(progression)-1 {
		return s, false
	}
	return progression[i+1], true
}

// Statuses returns the progression in order.
func Statuses() []Status {
	return append([]Status(nil), progression...)
}
