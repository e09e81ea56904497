package credential

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"unicode"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"checkin/internal/roster"
)

// Card geometry in pixels.
const (
	CardWidth  = 900
	CardHeight = 700
)

var (
	gradientFrom = color.RGBA{0x1e, 0x40, 0xaf, 0xff}
	gradientTo   = color.RGBA{0x3b, 0x82, 0xf6, 0xff}
	gold         = color.RGBA{0xfb, 0xbf, 0x24, 0xff}
	paleBlue     = color.RGBA{0xbf, 0xdb, 0xfe, 0xff}
)

// ComposeCard renders the printable invitation for g with its QR bitmap and
// returns it PNG encoded.
func ComposeCard(g roster.Guest, qr image.Image) ([]byte, error) {
	if qr == nil {
		return nil, errors.New("qr image required")
	}
	card := image.NewRGBA(image.Rect(0, 0, CardWidth, CardHeight))
	fillGradient(card)

	strokeRect(card, image.Rect(25, 25, CardWidth-25, CardHeight-25), 10, gold)
	strokeRect(card, image.Rect(35, 35, CardWidth-35, CardHeight-35), 3, gold)

	drawText(card, "CEREMONIA DE GRADUACIÓN", 90, 3, color.White)
	xdraw.Draw(card, image.Rect(150, 114, 750, 116), image.NewUniform(gold), image.Point{}, xdraw.Src)

	drawText(card, "INVITADO", 165, 2, gold)
	drawText(card, g.Name, 205, 3, color.White)
	drawText(card, "GRADUANDO", 255, 2, gold)
	drawText(card, g.StudentName, 290, 2, color.White)
	drawText(card, g.Career, 320, 2, paleBlue)

	xdraw.Draw(card, image.Rect(325, 360, 575, 610), image.NewUniform(color.White), image.Point{}, xdraw.Src)
	xdraw.NearestNeighbor.Scale(card, image.Rect(337, 372, 562, 597), qr, qr.Bounds(), xdraw.Over, nil)

	drawText(card, "Presenta este código en el registro", 640, 2, color.White)
	drawText(card, "ID: "+g.ID, 658, 1, paleBlue)

	var buf bytes.Buffer
	if err := png.Encode(&buf, card); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CardFileName is the download name for a guest's card.
func CardFileName(g roster.Guest) string {
	return "Invitacion_" + underscoreSpaces(g.StudentName) + "_" + underscoreSpaces(g.Name) + ".png"
}

func underscoreSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, s)
}

// fillGradient paints a diagonal gradient from the top-left corner.
func fillGradient(dst *image.RGBA) {
	b := dst.Bounds()
	span := b.Dx() + b.Dy()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			t := (x + y) * 255 / span
			dst.SetRGBA(x, y, color.RGBA{
				R: lerp(gradientFrom.R, gradientTo.R, t),
				G: lerp(gradientFrom.G, gradientTo.G, t),
				B: lerp(gradientFrom.B, gradientTo.B, t),
				A: 0xff,
			})
		}
	}
}

func lerp(a, b uint8, t int) uint8 {
	return uint8(int(a) + (int(b)-int(a))*t/255)
}

func strokeRect(dst *image.RGBA, r image.Rectangle, width int, c color.Color) {
	src := image.NewUniform(c)
	half := width / 2
	outer := r.Inset(-half)
	inner := outer.Inset(width)
	for _, edge := range []image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, inner.Min.Y),
		image.Rect(outer.Min.X, inner.Max.Y, outer.Max.X, outer.Max.Y),
		image.Rect(outer.Min.X, inner.Min.Y, inner.Min.X, inner.Max.Y),
		image.Rect(inner.Max.X, inner.Min.Y, outer.Max.X, inner.Max.Y),
	} {
		xdraw.Draw(dst, edge, src, image.Point{}, xdraw.Src)
	}
}

// drawText centers s horizontally with its baseline at y. The 7x13 face is
// rasterized once and scaled up; scale shrinks when the line would overflow.
func drawText(dst *image.RGBA, s string, baseline, scale int, c color.Color) {
	face := basicfont.Face7x13
	w := font.MeasureString(face, s).Ceil()
	if w == 0 {
		return
	}
	m := face.Metrics()
	ascent, height := m.Ascent.Ceil(), m.Height.Ceil()

	line := image.NewRGBA(image.Rect(0, 0, w, height))
	d := font.Drawer{Dst: line, Src: image.NewUniform(c), Face: face, Dot: fixed.P(0, ascent)}
	d.DrawString(s)

	if fit := (CardWidth - 120) / w; scale > fit {
		scale = fit
	}
	if scale < 1 {
		scale = 1
	}
	dw, dh := w*scale, height*scale
	x0 := dst.Bounds().Dx()/2 - dw/2
	y0 := baseline - ascent*scale
	xdraw.NearestNeighbor.Scale(dst, image.Rect(x0, y0, x0+dw, y0+dh), line, line.Bounds(), xdraw.Over, nil)
}
