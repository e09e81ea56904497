package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"checkin/internal/attendance"
	"checkin/internal/roster"
)

func TestAttendance_EmptyLedger(t *testing.T) {
	var buf bytes.Buffer
	if err := Attendance(&buf, nil); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("expected ErrNothingToExport, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no bytes written, got %q", buf.String())
	}
	if err := Roster(&buf, nil, nil, time.RFC3339); !errors.Is(err, ErrNothingToExport) || buf.Len() != 0 {
		t.Errorf("expected empty roster to be rejected, got %v", err)
	}
}

func TestAttendance_QuotesFreeText(t *testing.T) {
	entries := []attendance.RegisteredGuest{
		{
			Guest: roster.Guest{
				ID: "STD1G1", Name: `Pedro "Pepe" Gómez`, Type: roster.TypeGuest1,
				StudentName: "Ana", Career: "Ingeniería, Sistemas",
			},
			RegisteredTime: "19/10/2026, 18:15:30",
		},
	}
	var buf bytes.Buffer
	if err := Attendance(&buf, entries); err != nil {
		t.Fatalf("export: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "\ufeffID,Nombre,Tipo,Graduando,Carrera,Fecha/Hora\n") {
		t.Errorf("unexpected header %q", out)
	}
	want := `STD1G1,"Pedro ""Pepe"" Gómez",Invitado 1,Ana,"Ingeniería, Sistemas","19/10/2026, 18:15:30"` + "\n"
	if !strings.HasSuffix(out, want) {
		t.Errorf("unexpected row in %q", out)
	}

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, "\ufeff"))).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	if len(records) != 2 || records[1][1] != `Pedro "Pepe" Gómez` || records[1][4] != "Ingeniería, Sistemas" {
		t.Errorf("fields did not survive a csv round trip: %v", records)
	}
}

func TestRoster_FormatsQRTime(t *testing.T) {
	guests := []roster.Guest{
		{ID: "STD1G1", Name: "Pedro", Type: roster.TypeGuest1, StudentName: "Ana", Career: "Medicina", QRGenerated: time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC)},
		{ID: "STD1G2", Name: "Laura", Type: roster.TypeGuest2, StudentName: "Ana", Career: "Medicina", QRGenerated: time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC)},
	}
	loc := time.FixedZone("COT", -5*3600)
	var buf bytes.Buffer
	if err := Roster(&buf, guests, loc, "2006-01-02 15:04"); err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "\ufeffID,Nombre,Tipo,Graduando,Carrera,QR" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[2] != "STD1G2,Laura,Invitado 2,Ana,Medicina,2026-10-19 18:00" {
		t.Errorf("unexpected row %q", lines[2])
	}
}

func TestFileNames(t *testing.T) {
	now := time.Date(2026, 10, 19, 23, 59, 0, 0, time.FixedZone("COT", -5*3600))
	if got := AttendanceFileName(now); got != "Registro_2026-10-20.csv" {
		t.Errorf("unexpected attendance name %q", got)
	}
	if got := RosterFileName(now); got != "Lista_Invitados_2026-10-20.csv" {
		t.Errorf("unexpected roster name %q", got)
	}
}
