package export

import (
	"encoding/csv"
	"errors"
	"io"
	"time"

	"checkin/internal/attendance"
	"checkin/internal/roster"
)

// ErrNothingToExport is returned before anything is written when there are no rows.
var ErrNothingToExport = errors.New("nothing to export")

// bom makes spreadsheet software detect UTF-8.
const bom = "\ufeff"

var (
	attendanceHeader = []string{"ID", "Nombre", "Tipo", "Graduando", "Carrera", "Fecha/Hora"}
	rosterHeader     = []string{"ID", "Nombre", "Tipo", "Graduando", "Carrera", "QR"}
)

// AttendanceFileName is the download name for the ledger export on day now.
func AttendanceFileName(now time.Time) string {
	return "Registro_" + now.UTC().Format(time.DateOnly) + ".csv"
}

// RosterFileName is the download name for the guest list export on day now.
func RosterFileName(now time.Time) string {
	return "Lista_Invitados_" + now.UTC().Format(time.DateOnly) + ".csv"
}

// Attendance writes checked-in guests in ledger order.
func Attendance(w io.Writer, entries []attendance.RegisteredGuest) error {
	if len(entries) == 0 {
		return ErrNothingToExport
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.ID, e.Name, e.Type, e.StudentName, e.Career, e.RegisteredTime})
	}
	return write(w, attendanceHeader, rows)
}

// Roster writes every roster guest; the QR column is the credential
// generation time rendered in loc with layout.
func Roster(w io.Writer, guests []roster.Guest, loc *time.Location, layout string) error {
	if len(guests) == 0 {
		return ErrNothingToExport
	}
	if loc == nil {
		loc = time.UTC
	}
	rows := make([][]string, 0, len(guests))
	for _, g := range guests {
		rows = append(rows, []string{g.ID, g.Name, g.Type, g.StudentName, g.Career, g.QRGenerated.In(loc).Format(layout)})
	}
	return write(w, rosterHeader, rows)
}

func write(w io.Writer, header []string, rows [][]string) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
