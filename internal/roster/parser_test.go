package roster

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 10, 19, 18, 30, 0, 0, time.UTC)

func newTestParser() *Parser {
	return NewParserWithClock(func() time.Time { return fixedNow })
}

func TestParse_TwoGuests(t *testing.T) {
	students := newTestParser().Parse("H\nAna,Medicina,Pedro,Laura\n")

	if len(students) != 1 {
		t.Fatalf("expected 1 student, got %d", len(students))
	}
	s := students[0]
	if s.Name != "Ana" || s.Career != "Medicina" {
		t.Errorf("unexpected student %+v", s)
	}
	if len(s.Guests) != 2 {
		t.Fatalf("expected 2 guests, got %d", len(s.Guests))
	}
	want := []struct{ name, typ string }{{"Pedro", TypeGuest1}, {"Laura", TypeGuest2}}
	for i, w := range want {
		g := s.Guests[i]
		if g.Name != w.name || g.Type != w.typ {
			t.Errorf("guest %d: expected %s/%s, got %s/%s", i, w.name, w.typ, g.Name, g.Type)
		}
		if g.StudentName != "Ana" || g.Career != "Medicina" {
			t.Errorf("guest %d: wrong back-reference %+v", i, g)
		}
		if !g.QRGenerated.Equal(fixedNow) {
			t.Errorf("guest %d: expected qrGenerated %s, got %s", i, fixedNow, g.QRGenerated)
		}
		if !strings.HasPrefix(g.ID, "STD1G") {
			t.Errorf("guest %d: unexpected id %q", i, g.ID)
		}
	}
}

func TestParse_RowAcceptance(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		students int
		guests   int
	}{
		{"no_guest_names", "H\nJuan,Ing,,\n", 0, 0},
		{"header_only", "Estudiante,Carrera,Invitado1,Invitado2", 0, 0},
		{"empty_input", "", 0, 0},
		{"single_field_rejected", "H\nJuan\n", 0, 0},
		{"blank_student_rejected", "H\n  ,Ing,Pedro\n", 0, 0},
		{"guest_two_only", "H\nJuan,Ing,,Marta\n", 1, 1},
		{"tab_delimited", "H\nJuan\tIng\tPedro\tMarta\n", 1, 2},
		{"semicolon_delimited", "H\nJuan;Ing;Pedro\n", 1, 1},
		{"mixed_delimiters_and_crlf", "H\r\nJuan;Ing,Pedro\tMarta\r\nAna,Med,Luis\r\n", 2, 3},
		{"byte_order_mark", "\ufeffH\nJuan,Ing,Pedro\n", 1, 1},
		{"two_fields_no_guests", "H\nJuan,Ing\n", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			students := newTestParser().Parse(tt.input)
			if len(students) != tt.students {
				t.Fatalf("expected %d students, got %d", tt.students, len(students))
			}
			if got := New(students).Len(); got != tt.guests {
				t.Errorf("expected %d guests, got %d", tt.guests, got)
			}
		})
	}
}

func TestParse_GuestTwoOnlyKeepsSlotLabel(t *testing.T) {
	students := newTestParser().Parse("H\nJuan,Ing,,Marta\n")
	g := students[0].Guests[0]
	if g.Type != TypeGuest2 {
		t.Errorf("expected %q, got %q", TypeGuest2, g.Type)
	}
	if !strings.HasPrefix(g.ID, "STD1G2") {
		t.Errorf("expected slot 2 id, got %q", g.ID)
	}
}

func TestParse_IDsUniqueWithinAndAcrossParses(t *testing.T) {
	p := newTestParser()
	input := "H\nAna,Med,Pedro,Pedro\nAna,Med,Pedro,Pedro\nLuis,Der,Pedro\n"

	seen := map[string]bool{}
	for round := 0; round < 3; round++ {
		for _, g := range New(p.Parse(input)).Guests() {
			if seen[g.ID] {
				t.Fatalf("duplicate id %q in round %d", g.ID, round)
			}
			seen[g.ID] = true
		}
	}
	if len(seen) != 15 {
		t.Errorf("expected 15 distinct ids, got %d", len(seen))
	}
}

func TestParseReader_RejectsNonText(t *testing.T) {
	_, err := newTestParser().ParseReader(strings.NewReader("H\nAna,Med,\xff\xfe\n"))
	if !errors.Is(err, ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure, got %v", err)
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatal("expected *ParseError")
	}
	if !strings.Contains(err.Error(), ExpectedFormat) {
		t.Errorf("expected message to describe the format, got %q", err.Error())
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestParseReader_ReadError(t *testing.T) {
	students, err := newTestParser().ParseReader(failingReader{})
	if !errors.Is(err, ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure, got %v", err)
	}
	if students != nil {
		t.Error("expected no partial result")
	}
}
