package flyer

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func jpegBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solidImage(w, h, c), &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	return buf.Bytes()
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func sampleRequest(t *testing.T) Request {
	t.Helper()
	req, err := NewRequest(map[string]string{
		FieldName:             "Jane Doe",
		FieldFormerCompany:    "Google",
		FieldNewCompany:       "Acme Corp",
		FieldRole:             "Engineer",
		FieldAnnouncementText: "Excited for this move!",
		FieldDate:             "2024-01-01",
	}, jpegBytes(t, 300, 200, color.RGBA{200, 30, 30, 255}))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return req
}
