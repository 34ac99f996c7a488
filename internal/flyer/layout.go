package flyer

import (
	"fmt"
	"image/color"
)

// Preset names.
const (
	PresetAnnouncement = "announcement"
	PresetBanner       = "banner"
)

// TextStyle places one line of text. Y is the top of the text (the ascender
// line), not the baseline.
type TextStyle struct {
	Size  float64
	Y     float64
	Color color.RGBA
}

// CompanyRow lays out "[logo] former → [logo] new" as one centered group.
type CompanyRow struct {
	// CenterY is the vertical centre line of logos, text and arrow.
	CenterY float64

	Banner       bool
	BannerColor  color.RGBA
	BannerInset  float64
	BannerTop    float64
	BannerHeight float64

	LogoSize int
	LogoGap  float64
	Spacing  float64

	ArrowWidth  float64
	ArrowStroke float64
	ArrowHead   float64
	ArrowColor  color.RGBA

	Text        TextStyle
	MinTextSize float64
	Margin      float64
}

// Layout holds every constant of a flyer design.
type Layout struct {
	Name          string
	Width, Height int

	Background   color.RGBA
	GridColor    color.RGBA
	GridStep     int
	DiagonalStep int
	GlowNodes    int
	GlowColor    color.RGBA
	GlowCore     color.RGBA

	Header      string
	HeaderStyle TextStyle

	ProfileSize      int
	ProfileY         int
	ProfileRing      int
	ProfileRingColor color.RGBA
	PlaceholderColor color.RGBA

	Row CompanyRow

	NameStyle         TextStyle
	AnnouncementStyle TextStyle
	ShowRole          bool
	RoleStyle         TextStyle
	DateFormat        string
	DateStyle         TextStyle

	// MinTextSize bounds shrink-to-fit for centred lines.
	MinTextSize float64
	// FallbackOffset positions text at Width/2-FallbackOffset when it cannot be measured.
	FallbackOffset float64
}

var (
	gold      = color.RGBA{255, 215, 0, 255}
	white     = color.RGBA{255, 255, 255, 255}
	black     = color.RGBA{0, 0, 0, 255}
	lightGray = color.RGBA{200, 200, 200, 255}
)

func baseLayout() Layout {
	return Layout{
		Width:            800,
		Height:           900,
		Background:       color.RGBA{15, 23, 42, 255},
		GridColor:        color.RGBA{30, 58, 138, 255},
		GridStep:         40,
		GlowNodes:        8,
		GlowColor:        color.RGBA{59, 130, 246, 255},
		GlowCore:         color.RGBA{147, 197, 253, 255},
		PlaceholderColor: color.RGBA{100, 100, 100, 255},
		DateFormat:       "Effective: %s",
		DateStyle:        TextStyle{Size: 36, Y: 800, Color: lightGray},
		MinTextSize:      20,
		FallbackOffset:   150,
	}
}

// Announcement is the default design: small round photo, white name under
// it, the company row, then announcement, role and date.
func Announcement() Layout {
	l := baseLayout()
	l.Name = PresetAnnouncement
	l.Header = "TECH TRANSFER ANNOUNCEMENT"
	l.HeaderStyle = TextStyle{Size: 36, Y: 40, Color: gold}
	l.ProfileSize = 200
	l.ProfileY = 100
	l.ProfileRing = 10
	l.ProfileRingColor = white
	l.NameStyle = TextStyle{Size: 70, Y: 320, Color: white}
	l.Row = CompanyRow{
		CenterY:     470,
		LogoSize:    64,
		LogoGap:     12,
		Spacing:     24,
		ArrowWidth:  60,
		ArrowStroke: 8,
		ArrowHead:   20,
		ArrowColor:  gold,
		Text:        TextStyle{Size: 40, Color: white},
		MinTextSize: 18,
		Margin:      30,
	}
	l.AnnouncementStyle = TextStyle{Size: 56, Y: 620, Color: gold}
	l.ShowRole = true
	l.RoleStyle = TextStyle{Size: 54, Y: 700, Color: white}
	return l
}

// Banner is the large-photo design with the company row on a light banner.
// It does not show the role.
func Banner() Layout {
	l := baseLayout()
	l.Name = PresetBanner
	l.DiagonalStep = 80
	l.Header = "TRANSFER UPDATE"
	l.HeaderStyle = TextStyle{Size: 36, Y: 20, Color: gold}
	l.ProfileSize = 360
	l.ProfileY = 90
	l.ProfileRing = 10
	l.ProfileRingColor = gold
	l.Row = CompanyRow{
		CenterY:      509,
		Banner:       true,
		BannerColor:  color.RGBA{229, 231, 235, 255},
		BannerInset:  50,
		BannerTop:    440,
		BannerHeight: 120,
		LogoSize:     48,
		LogoGap:      15,
		Spacing:      30,
		ArrowWidth:   30,
		ArrowStroke:  4,
		ArrowHead:    12,
		ArrowColor:   black,
		Text:         TextStyle{Size: 34, Color: black},
		MinTextSize:  16,
		Margin:       60,
	}
	l.NameStyle = TextStyle{Size: 70, Y: 620, Color: gold}
	l.AnnouncementStyle = TextStyle{Size: 56, Y: 710, Color: gold}
	l.ShowRole = false
	return l
}

// PresetByName returns the named layout.
func PresetByName(name string) (Layout, bool) {
	switch name {
	case PresetAnnouncement:
		return Announcement(), true
	case PresetBanner:
		return Banner(), true
	default:
		return Layout{}, false
	}
}

// Validate rejects layouts that cannot be drawn.
func (l Layout) Validate() error {
	if l.Width <= 0 || l.Height <= 0 {
		return fmt.Errorf("canvas %dx%d must be positive", l.Width, l.Height)
	}
	if l.ProfileSize <= 0 {
		return fmt.Errorf("profile size %d must be positive", l.ProfileSize)
	}
	if l.GridStep < 0 || l.DiagonalStep < 0 {
		return fmt.Errorf("pattern steps must not be negative")
	}
	return nil
}
