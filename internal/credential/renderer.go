package credential

import (
	"context"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"time"
)

// QRSize is the edge length requested from the QR service.
const QRSize = 300

// Renderer fetches QR bitmaps from an api.qrserver.com compatible endpoint.
type Renderer struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// NewRenderer creates a renderer. With skip set no request is made and a
// deterministic placeholder is returned instead.
func NewRenderer(baseURL string, skip bool) *Renderer {
	return &Renderer{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ImageURL is the address a browser can load the QR from directly.
func (r *Renderer) ImageURL(payload string) string {
	q := url.Values{}
	q.Set("size", fmt.Sprintf("%dx%d", QRSize, QRSize))
	q.Set("data", payload)
	return r.BaseURL + "?" + q.Encode()
}

// Render downloads and decodes the QR image for payload.
func (r *Renderer) Render(ctx context.Context, payload string) (image.Image, error) {
	if r.Skip {
		return placeholder(payload), nil
	}
	if payload == "" {
		return nil, fmt.Errorf("payload required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.ImageURL(payload), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qr service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("qr service error %s: %s", resp.Status, string(body))
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode qr image: %w", err)
	}
	return img, nil
}

// placeholder draws a 25x25 module grid seeded from the payload hash.
// It is not a scannable code.
func placeholder(payload string) image.Image {
	const modules, cell = 25, QRSize / 25
	img := image.NewGray(image.Rect(0, 0, modules*cell, modules*cell))
	sum := sha256.Sum256([]byte(payload))
	for y := 0; y < modules; y++ {
		for x := 0; x < modules; x++ {
			bit := (y*modules + x) % (len(sum) * 8)
			v := color.Gray{Y: 0xff}
			if sum[bit/8]&(1<<(bit%8)) != 0 {
				v = color.Gray{}
			}
			for dy := 0; dy < cell; dy++ {
				for dx := 0; dx < cell; dx++ {
					img.SetGray(x*cell+dx, y*cell+dy, v)
				}
			}
		}
	}
	return img
}
