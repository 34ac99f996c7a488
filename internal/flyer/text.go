package flyer

import (
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"flyergen/internal/assets"
)

// CenterX returns the left edge that centres a span of width w on a canvas of
// width canvasW.
func CenterX(canvasW, w float64) float64 {
	return (canvasW - w) / 2
}

// measure returns the advance width of s in face.
func measure(face font.Face, s string) float64 {
	if face == nil || s == "" {
		return 0
	}
	return float64(font.MeasureString(face, s)) / 64
}

func ascent(face font.Face) float64 {
	return float64(face.Metrics().Ascent) / 64
}

func descent(face font.Face) float64 {
	return float64(face.Metrics().Descent) / 64
}

// drawText draws s with its top-left corner at (x, top).
func drawText(dc *gg.Context, face font.Face, s string, x, top float64, c color.Color) {
	dc.SetFontFace(face)
	dc.SetColor(c)
	dc.DrawString(s, x, top+ascent(face))
}

// face returns the glyph source at size, or the built-in face when the
// request's font cannot provide one.
func (r *renderer) face(size float64) font.Face {
	if r.font != nil {
		if f := r.font.Face(size); f != nil {
			return f
		}
	}
	return assets.DefaultFace(size)
}

// fit shrinks size in 2pt steps until s fits maxW or minSize is reached. It
// returns the face, the chosen size and the measured width.
func (r *renderer) fit(s string, size, minSize, maxW float64) (font.Face, float64, float64) {
	face := r.face(size)
	w := measure(face, s)
	for w > maxW && size-2 >= minSize {
		size -= 2
		face = r.face(size)
		w = measure(face, s)
	}
	return face, size, w
}

// drawCentered draws a mandatory line centred horizontally. Text that cannot
// be measured is drawn with the built-in face at a fixed offset.
func (r *renderer) drawCentered(s string, st TextStyle) {
	if s == "" {
		return
	}
	l := r.layout
	W := float64(l.Width)

	face, _, w := r.fit(s, st.Size, l.MinTextSize, W-2*r.margin())
	if w > 0 {
		drawText(r.dc, face, s, CenterX(W, w), st.Y, st.Color)
		return
	}

	r.fallbacks++
	drawText(r.dc, assets.DefaultFace(st.Size), s, W/2-l.FallbackOffset, st.Y, st.Color)
}

func (r *renderer) margin() float64 {
	if r.layout.Row.Margin > 0 {
		return r.layout.Row.Margin
	}
	return 0
}
