package roster

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// ExpectedFormat describes the accepted column layout.
const ExpectedFormat = "Student, Career, Guest1, Guest2"

// ErrParseFailure is matched by every error returned from ParseReader.
var ErrParseFailure = errors.New("roster parse failure")

// ParseError reports a roster that could not be read as text.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot process roster, expected columns %q: %v", ExpectedFormat, e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{ErrParseFailure, e.Err} }

// Parser turns delimited roster text into students.
// Guest ids embed a per-parse stamp that is strictly increasing for the parser's lifetime,
// so re-uploading the same file never reuses an id.
type Parser struct {
	now func() time.Time

	mu   sync.Mutex
	last int64
}

// NewParser returns a parser using the wall clock.
func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// NewParserWithClock is used by tests to pin qrGenerated timestamps.
func NewParserWithClock(now func() time.Time) *Parser {
	return &Parser{now: now}
}

// ParseReader reads the whole input and parses it.
// Unreadable or non-UTF-8 input yields a *ParseError and no students.
func (p *Parser) ParseReader(r io.Reader) ([]Student, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	if !utf8.Valid(data) {
		return nil, &ParseError{Err: errors.New("input is not UTF-8 text")}
	}
	return p.Parse(string(data)), nil
}

// Parse converts raw roster text into students. The first line is a header.
// Rows need a non-empty student name and at least two fields; rows without guests are dropped.
func (p *Parser) Parse(raw string) []Student {
	raw = strings.TrimPrefix(raw, "\ufeff")
	lines := strings.Split(raw, "\n")

	now := p.now().UTC()
	stamp := p.nextStamp(now)

	var students []Student
	for i := 1; i < len(lines); i++ {
		fields := splitRow(strings.TrimSuffix(lines[i], "\r"))
		if len(fields) < 2 || strings.TrimSpace(fields[0]) == "" {
			continue
		}
		name := strings.TrimSpace(fields[0])
		career := strings.TrimSpace(fields[1])

		var guests []Guest
		for slot, label := range []string{TypeGuest1, TypeGuest2} {
			col := slot + 2
			if col >= len(fields) {
				break
			}
			guestName := strings.TrimSpace(fields[col])
			if guestName == "" {
				continue
			}
			guests = append(guests, Guest{
				ID:          fmt.Sprintf("STD%dG%d%d", i, slot+1, stamp),
				Name:        guestName,
				StudentName: name,
				Career:      career,
				Type:        label,
				QRGenerated: now,
			})
		}
		if len(guests) == 0 {
			continue
		}
		students = append(students, Student{Name: name, Career: career, Guests: guests})
	}
	return students
}

// nextStamp returns the millisecond clock reading, bumped past any stamp already issued.
func (p *Parser) nextStamp(now time.Time) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	stamp := now.UnixMilli()
	if stamp <= p.last {
		stamp = p.last + 1
	}
	p.last = stamp
	return stamp
}

// splitRow splits on comma, tab and semicolon, keeping empty fields.
func splitRow(line string) []string {
	var fields []string
	start := 0
	for i, r := range line {
		if r == ',' || r == '\t' || r == ';' {
			fields = append(fields, line[start:i])
			start = i + 1
		}
	}
	return append(fields, line[start:])
}
