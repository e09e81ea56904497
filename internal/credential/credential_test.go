package credential

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"checkin/internal/roster"
)

var guest = roster.Guest{
	ID:          "STD1G11760000000000",
	Name:        "Pedro Pérez",
	StudentName: "Ana María",
	Career:      "Medicina",
	Type:        roster.TypeGuest1,
	QRGenerated: time.Date(2026, 10, 19, 18, 30, 0, 0, time.UTC),
}

func TestCodec_PlainRoundTrip(t *testing.T) {
	c := NewCodec("")
	payload, err := c.Encode(guest)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || !strings.Contains(string(raw), `"studentName":"Ana María"`) {
		t.Fatalf("payload is not base64 JSON: %s", raw)
	}

	got, err := c.Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != guest.ID || got.Name != guest.Name || !got.QRGenerated.Equal(guest.QRGenerated) {
		t.Errorf("unexpected guest %+v", got)
	}
}

func TestCodec_SignedRoundTrip(t *testing.T) {
	c := NewCodec("event-secret")
	payload, err := c.Encode(guest)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Count(payload, ".") != 2 {
		t.Fatalf("expected a JWT, got %q", payload)
	}
	got, err := c.Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != guest.ID || got.Career != guest.Career {
		t.Errorf("unexpected guest %+v", got)
	}
}

func TestCodec_Rejects(t *testing.T) {
	signed := NewCodec("event-secret")
	token, _ := signed.Encode(guest)
	forged, _ := NewCodec("other-secret").Encode(guest)
	plain, _ := NewCodec("").Encode(guest)
	noID, _ := NewCodec("").Encode(roster.Guest{Name: "Sin id"})

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(`{"id":"STD9G1","sub":"STD9G1"}`)) + "." + parts[2]

	tests := []struct {
		name    string
		codec   *Codec
		payload string
	}{
		{"empty", signed, "  "},
		{"wrong_key", signed, forged},
		{"tampered_claims", signed, tampered},
		{"plain_when_signed", signed, plain},
		{"not_base64", NewCodec(""), "Pedro"},
		{"base64_not_json", NewCodec(""), base64.StdEncoding.EncodeToString([]byte("hola"))},
		{"missing_id", NewCodec(""), noID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.codec.Decode(tt.payload); !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("expected ErrInvalidPayload, got %v", err)
			}
		})
	}
}

func TestRenderer_ImageURL(t *testing.T) {
	r := NewRenderer("https://api.qrserver.com/v1/create-qr-code/", false)
	got := r.ImageURL("a+b=")
	want := "https://api.qrserver.com/v1/create-qr-code/?data=a%2Bb%3D&size=300x300"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestRenderer_Render(t *testing.T) {
	var gotData string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotData = r.URL.Query().Get("data")
		img := image.NewGray(image.Rect(0, 0, 30, 30))
		w.Header().Set("Content-Type", "image/png")
		_ = png.Encode(w, img)
	}))
	defer srv.Close()

	img, err := NewRenderer(srv.URL, false).Render(context.Background(), "payload")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if img.Bounds().Dx() != 30 || gotData != "payload" {
		t.Errorf("unexpected image %v for data %q", img.Bounds(), gotData)
	}
}

func TestRenderer_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := NewRenderer(srv.URL, false).Render(context.Background(), "payload"); err == nil {
		t.Error("expected error for 429")
	}
}

func TestRenderer_SkipPlaceholder(t *testing.T) {
	r := NewRenderer("http://127.0.0.1:1", true)
	a, err := r.Render(context.Background(), "one")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	b, _ := r.Render(context.Background(), "one")
	if a.Bounds() != image.Rect(0, 0, QRSize, QRSize) {
		t.Errorf("unexpected bounds %v", a.Bounds())
	}
	if a.At(7, 7) != b.At(7, 7) {
		t.Error("placeholder must be deterministic")
	}
}

func TestComposeCard(t *testing.T) {
	qr := placeholder("payload")
	data, err := ComposeCard(guest, qr)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("card is not a png: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, CardWidth, CardHeight) {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	if got := color.RGBAModel.Convert(img.At(25, 300)).(color.RGBA); got != gold {
		t.Errorf("expected gold frame, got %v", got)
	}
	if got := color.RGBAModel.Convert(img.At(330, 365)).(color.RGBA); got != (color.RGBA{0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("expected white qr backdrop, got %v", got)
	}

	if _, err := ComposeCard(guest, nil); err == nil {
		t.Error("expected error without qr")
	}
}

func TestCardFileName(t *testing.T) {
	if got := CardFileName(guest); got != "Invitacion_Ana_María_Pedro_Pérez.png" {
		t.Errorf("unexpected file name %q", got)
	}
}
