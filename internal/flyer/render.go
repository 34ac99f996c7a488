package flyer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	_ "golang.org/x/image/webp"

	"flyergen/internal/assets"
	u "flyergen/internal/utils"
)

// ErrRender marks an unexpected compositing failure.
var ErrRender = errors.New("flyer rendering failed")

// maxPhotoPixels bounds the decoded size of a profile photo.
const maxPhotoPixels = 40_000_000

// FaceSource provides glyph faces at a given point size.
type FaceSource interface {
	Face(size float64) font.Face
}

// Assets are the resolved inputs of one render. Any field may be nil:
// missing logos are omitted and a missing font uses the built-in face.
type Assets struct {
	Font       FaceSource
	FormerLogo image.Image
	NewLogo    image.Image
}

// Compositor draws flyers with a fixed layout. It holds no per-request state
// and is safe for concurrent use.
type Compositor struct {
	layout Layout
}

// NewCompositor returns a Compositor for l.
func NewCompositor(l Layout) (*Compositor, error) {
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return &Compositor{layout: l}, nil
}

// Layout returns the layout the compositor draws.
func (c *Compositor) Layout() Layout { return c.layout }

type renderer struct {
	dc        *gg.Context
	layout    Layout
	font      FaceSource
	fallbacks int
}

// Render composes req into a new opaque image. Asset problems degrade the
// output (placeholder photo, no logo, built-in face) rather than failing.
func (c *Compositor) Render(req Request, a Assets) (img *image.RGBA, err error) {
	l := c.layout
	if verr := l.Validate(); verr != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, verr)
	}

	defer func() {
		if p := recover(); p != nil {
			img, err = nil, fmt.Errorf("%w: %v", ErrRender, p)
		}
	}()

	r := &renderer{
		dc:     gg.NewContext(l.Width, l.Height),
		layout: l,
		font:   a.Font,
	}

	r.drawBackground()
	r.drawCentered(l.Header, l.HeaderStyle)
	r.drawProfile(req.Photo)
	r.drawCompanyRow(req.FormerCompany, req.NewCompany, a.FormerLogo, a.NewLogo)
	r.drawDetails(req)

	if r.fallbacks > 0 {
		u.Warn("Flyer text drawn with fallback placement", "count", r.fallbacks)
	}
	return toRGBA(r.dc.Image()), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba
}

func (r *renderer) drawBackground() {
	dc, l := r.dc, r.layout
	W, H := float64(l.Width), float64(l.Height)

	dc.SetColor(l.Background)
	dc.Clear()

	dc.SetLineWidth(1)
	dc.SetColor(l.GridColor)
	if l.GridStep > 0 {
		for x := 0; x < l.Width; x += l.GridStep {
			dc.DrawLine(float64(x), 0, float64(x), H)
		}
		for y := 0; y < l.Height; y += l.GridStep {
			dc.DrawLine(0, float64(y), W, float64(y))
		}
	}
	if l.DiagonalStep > 0 {
		for i := 0; i < l.Width+l.Height; i += l.DiagonalStep {
			d := float64(i)
			dc.DrawLine(d, 0, d-H, H)
			dc.DrawLine(d-H, 0, d, H)
		}
	}
	dc.Stroke()

	for i := 0; i < l.GlowNodes; i++ {
		x := float64((i*100 + 50) % l.Width)
		y := float64((i*120 + 60) % l.Height)
		dc.DrawCircle(x, y, 6)
		dc.SetColor(l.GlowColor)
		dc.Fill()
		dc.DrawCircle(x, y, 3)
		dc.SetColor(l.GlowCore)
		dc.Fill()
	}
}

// drawDetails draws the person's lines last so they sit above the photo and
// the company row.
func (r *renderer) drawDetails(req Request) {
	l := r.layout
	r.drawCentered(strings.ToUpper(req.Name), l.NameStyle)
	r.drawCentered(req.AnnouncementText, l.AnnouncementStyle)
	if l.ShowRole {
		r.drawCentered(strings.ToUpper(req.Role), l.RoleStyle)
	}
	r.drawCentered(fmt.Sprintf(l.DateFormat, req.Date), l.DateStyle)
}

func (r *renderer) drawProfile(photo []byte) {
	dc, l := r.dc, r.layout
	size := l.ProfileSize
	radius := float64(size) / 2
	cx := float64(l.Width) / 2
	cy := float64(l.ProfileY) + radius
	left := (l.Width - size) / 2

	if l.ProfileRing > 0 {
		dc.DrawCircle(cx, cy, radius+float64(l.ProfileRing))
		dc.SetColor(l.ProfileRingColor)
		dc.Fill()
	}

	src, err := decodePhoto(photo)
	if err != nil {
		u.Warn("Profile photo unusable, drawing placeholder", "error", err)
		dc.DrawCircle(cx, cy, radius)
		dc.SetColor(l.PlaceholderColor)
		dc.Fill()
		return
	}

	square := imaging.Fill(src, size, size, imaging.Center, imaging.Lanczos)
	dc.DrawCircle(cx, cy, radius)
	dc.Clip()
	dc.DrawImage(square, left, l.ProfileY)
	dc.ResetClip()
}

func decodePhoto(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty photo")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode photo header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPhotoPixels {
		return nil, fmt.Errorf("photo dimensions %dx%d out of range", cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	return img, nil
}

// scaleLogo resizes logo so its longer side is size, keeping the aspect ratio.
func scaleLogo(logo image.Image, size int) image.Image {
	if logo == nil || size <= 0 {
		return nil
	}
	b := logo.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil
	}
	if b.Dx() >= b.Dy() {
		return imaging.Resize(logo, size, 0, imaging.Lanczos)
	}
	return imaging.Resize(logo, 0, size, imaging.Lanczos)
}

type rowSection struct {
	logo image.Image
	text string
	w    float64
}

func (r *renderer) sectionWidth(s rowSection) float64 {
	w := s.w
	if s.logo != nil {
		w += float64(s.logo.Bounds().Dx()) + r.layout.Row.LogoGap
	}
	return w
}

// fitRow measures both sections and shrinks the company font until the group
// fits between the row margins or reaches the minimum size.
func (r *renderer) fitRow(left, right *rowSection) (face font.Face, size, total float64) {
	row := r.layout.Row
	W := float64(r.layout.Width)
	size = row.Text.Size
	for {
		face = r.face(size)
		left.w, right.w = measure(face, left.text), measure(face, right.text)
		if (left.text != "" && left.w <= 0) || (right.text != "" && right.w <= 0) {
			r.fallbacks++
			face = assets.DefaultFace(size)
			left.w, right.w = measure(face, left.text), measure(face, right.text)
		}
		total = r.sectionWidth(*left) + row.Spacing + row.ArrowWidth + row.Spacing + r.sectionWidth(*right)
		if total <= W-2*row.Margin || size-2 < row.MinTextSize {
			return face, size, total
		}
		size -= 2
	}
}

// drawCompanyRow draws the optional banner, then both companies and the arrow
// as one group centred on the canvas.
func (r *renderer) drawCompanyRow(former, next string, formerLogo, newLogo image.Image) {
	l := r.layout
	row := l.Row
	W := float64(l.Width)

	if row.Banner {
		r.dc.DrawRectangle(row.BannerInset, row.BannerTop, W-2*row.BannerInset, row.BannerHeight)
		r.dc.SetColor(row.BannerColor)
		r.dc.Fill()
	}

	left := rowSection{logo: scaleLogo(formerLogo, row.LogoSize), text: former}
	right := rowSection{logo: scaleLogo(newLogo, row.LogoSize), text: next}
	face, _, total := r.fitRow(&left, &right)

	x := CenterX(W, total)
	x = r.drawSection(left, face, x)
	x += row.Spacing
	r.drawArrow(x)
	x += row.ArrowWidth + row.Spacing
	r.drawSection(right, face, x)
}

func (r *renderer) drawSection(s rowSection, face font.Face, x float64) float64 {
	row := r.layout.Row
	if s.logo != nil {
		b := s.logo.Bounds()
		top := int(row.CenterY) - b.Dy()/2
		r.dc.DrawImage(s.logo, int(x), top)
		x += float64(b.Dx()) + row.LogoGap
	}
	if s.text != "" {
		top := row.CenterY - (ascent(face)+descent(face))/2
		drawText(r.dc, face, s.text, x, top, row.Text.Color)
		x += s.w
	}
	return x
}

// drawArrow draws a right-pointing arrow starting at x.
func (r *renderer) drawArrow(x float64) {
	dc, row := r.dc, r.layout.Row
	y := row.CenterY
	tip := x + row.ArrowWidth
	head := row.ArrowHead
	if head > row.ArrowWidth {
		head = row.ArrowWidth
	}

	dc.SetColor(row.ArrowColor)
	dc.SetLineWidth(row.ArrowStroke)
	dc.DrawLine(x, y, tip-head, y)
	dc.Stroke()

	dc.MoveTo(tip, y)
	dc.LineTo(tip-head, y-head/2-row.ArrowStroke/2)
	dc.LineTo(tip-head, y+head/2+row.ArrowStroke/2)
	dc.ClosePath()
	dc.Fill()
}
