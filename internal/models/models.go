// package models defines the data model for the manhwa reading tracker
package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/manhwatrack/internal/shared"
)

// Model is implemented by every persisted entity.
type Model interface {
	Validate() error // Validate checks the entity's fields before they reach storage
}

// Status is the reading state of a library entry.
type Status string

const (
	StatusReading    Status = "reading"
	StatusCompleted  Status = "completed"
	StatusOnHold     Status = "on_hold"
	StatusDropped    Status = "dropped"
	StatusPlanToRead Status = "plan_to_read"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusReading, StatusCompleted, StatusOnHold, StatusDropped, StatusPlanToRead}

// ParseStatus accepts the canonical form as well as hyphenated and spaced variants ("on-hold", "Plan to read").
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	st := Status(norm)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, s)
	}
	return st, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusReading, StatusCompleted, StatusOnHold, StatusDropped, StatusPlanToRead:
		return true
	}
	return false
}

// Label returns a human readable form ("On Hold").
func (s Status) Label() string {
	switch s {
	case StatusReading:
		return "Reading"
	case StatusCompleted:
		return "Completed"
	case StatusOnHold:
		return "On Hold"
	case StatusDropped:
		return "Dropped"
	case StatusPlanToRead:
		return "Plan to Read"
	}
	return string(s)
}

// Next cycles through [Statuses]; used by status toggles.
func (s Status) Next() Status {
	for i, st := range Statuses {
		if st == s {
			return Statuses[(i+1)%len(Statuses)]
		}
	}
	return StatusPlanToRead
}
