package cloudinary

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSign(t *testing.T) {
	c := New("demo", "key", "secret", "")
	got := c.sign(map[string]string{"timestamp": "1315060510", "public_id": "sample", "api_key": "key", "file": "x"})
	// sha1("public_id=sample&timestamp=1315060510secret")
	if got != "23439cc4b8416c5b1da24eff228cee7968b8f287" {
		t.Errorf("unexpected signature %q", got)
	}
	if c.sign(map[string]string{"timestamp": "1", "api_key": "a"}) != c.sign(map[string]string{"timestamp": "1", "api_key": "b"}) {
		t.Error("api_key must not affect the signature")
	}
}

func TestUploadCard(t *testing.T) {
	var fields map[string]string
	var fileBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/demo/image/upload" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			return
		}
		fields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		f, _, err := r.FormFile("file")
		if err == nil {
			fileBody, _ = io.ReadAll(f)
		}
		_, _ = w.Write([]byte(`{"public_id":"invitaciones/STD1G1","secure_url":"https://res.example/card.png"}`))
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "invitaciones")
	c.BaseURL = srv.URL
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	res, err := c.UploadCard(context.Background(), []byte("png"), "STD1G1", "card.png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.SecureURL != "https://res.example/card.png" {
		t.Errorf("unexpected result %+v", res)
	}
	if fields["public_id"] != "STD1G1" || fields["folder"] != "invitaciones" || fields["timestamp"] != "1700000000" {
		t.Errorf("unexpected fields %v", fields)
	}
	if fields["signature"] == "" || string(fileBody) != "png" {
		t.Errorf("missing signature or file: %v %q", fields, fileBody)
	}
}

func TestUploadCard_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid Signature"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "")
	c.BaseURL = srv.URL
	if _, err := c.UploadCard(context.Background(), []byte("png"), "id", "card.png"); err == nil {
		t.Error("expected error on 401")
	}
}
