package attendance

import (
	"errors"
	"fmt"
	"time"

	"checkin/internal/roster"
)

// ErrGuestNotFound is returned when a term or id matches no roster guest.
var ErrGuestNotFound = errors.New("guest not found")

// RegisteredGuest is a guest that has been checked in.
type RegisteredGuest struct {
	roster.Guest
	RegisteredAt   time.Time `json:"registeredAt"`
	RegisteredTime string    `json:"registeredTime"`
}

// Status is the check-in state of one guest id.
type Status int

const (
	StatusNotFound Status = iota
	StatusPending
	StatusRegistered
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRegistered:
		return "registered"
	default:
		return "not_found"
	}
}

// Lookup is the answer to a status query; Entry is set only when Registered.
type Lookup struct {
	Status Status
	Guest  roster.Guest
	Entry  *RegisteredGuest
}

// Result describes a Register call. Duplicate means the guest was already in the
// ledger and Entry is the original record.
type Result struct {
	Entry     RegisteredGuest
	Duplicate bool
	Persisted bool
}

// Stats summarizes ledger progress.
type Stats struct {
	TotalGuests int           `json:"totalGuests"`
	Registered  int           `json:"registered"`
	Pending     int           `json:"pending"`
	Percent     float64       `json:"percent"`
	CareerCount int           `json:"careerCount"`
	Careers     []CareerStats `json:"careers"`
}

// CareerStats is the check-in progress of the guests of one career.
// Careers are listed in the order their first guest checked in.
type CareerStats struct {
	Career     string  `json:"career"`
	Registered int     `json:"registered"`
	Total      int     `json:"total"`
	Percent    float64 `json:"percent"`
}

// IngestSummary reports the outcome of a roster upload.
type IngestSummary struct {
	Students   int    `json:"students"`
	Guests     int    `json:"guests"`
	Durable    bool   `json:"durable"`
	Store      string `json:"store"`
	Bookkeeped int    `json:"bookkeeped"`
	Failed     int    `json:"failed"`
}

// Message is the notification shown to staff after an upload.
func (s IngestSummary) Message() string {
	if s.Durable {
		return fmt.Sprintf("loaded %d students with %d guests, saved to %s", s.Students, s.Guests, s.Store)
	}
	return fmt.Sprintf("loaded %d students with %d guests (memory only)", s.Students, s.Guests)
}
