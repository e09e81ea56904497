package roster

import (
	"strings"
	"time"
)

// Guest slot labels as they appear on credentials and exports.
const (
	TypeGuest1 = "Invitado 1"
	TypeGuest2 = "Invitado 2"
)

// Guest is one invited person attached to a graduating student.
type Guest struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	StudentName string    `json:"studentName"`
	Career      string    `json:"career"`
	Type        string    `json:"type"`
	QRGenerated time.Time `json:"qrGenerated"`
}

// Student is one accepted roster row.
type Student struct {
	Name   string  `json:"name"`
	Career string  `json:"career"`
	Guests []Guest `json:"guests"`
}

// Roster is the immutable result of one ingestion.
type Roster struct {
	students []Student
	guests   []Guest
	byID     map[string]int
}

// New indexes students into a roster. Guests keep roster order.
func New(students []Student) *Roster {
	r := &Roster{
		students: students,
		byID:     make(map[string]int),
	}
	for _, s := range students {
		for _, g := range s.Guests {
			r.byID[g.ID] = len(r.guests)
			r.guests = append(r.guests, g)
		}
	}
	return r
}

// Students returns the accepted rows.
func (r *Roster) Students() []Student {
	if r == nil {
		return nil
	}
	return append([]Student(nil), r.students...)
}

// Guests returns every guest in roster order.
func (r *Roster) Guests() []Guest {
	if r == nil {
		return nil
	}
	return append([]Guest(nil), r.guests...)
}

// Len is the number of guests.
func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.guests)
}

// Guest returns the guest with the given id.
func (r *Roster) Guest(id string) (Guest, bool) {
	if r == nil {
		return Guest{}, false
	}
	i, ok := r.byID[id]
	if !ok {
		return Guest{}, false
	}
	return r.guests[i], true
}

// Find matches term case-insensitively against guest ids (exact) and names (substring).
// The first guest in roster order wins.
func (r *Roster) Find(term string) (Guest, bool) {
	if r == nil {
		return Guest{}, false
	}
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return Guest{}, false
	}
	for _, g := range r.guests {
		if strings.ToLower(g.ID) == needle || strings.Contains(strings.ToLower(g.Name), needle) {
			return g, true
		}
	}
	return Guest{}, false
}

// Search returns every guest matching term, in roster order.
// An empty term returns the whole roster.
func (r *Roster) Search(term string) []Guest {
	if r == nil {
		return nil
	}
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return r.Guests()
	}
	var out []Guest
	for _, g := range r.guests {
		if strings.ToLower(g.ID) == needle || strings.Contains(strings.ToLower(g.Name), needle) {
			out = append(out, g)
		}
	}
	return out
}
