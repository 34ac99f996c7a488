package flyer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"strings"
	"unicode"
)

// EncodePNG encodes img losslessly.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encode png: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}

// ToBase64 returns the standard base64 text of data, without a data-URI prefix.
func ToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Filename suggests a download name: whitespace in name becomes underscores,
// followed by "_tech_transfer.png". An empty name yields "unnamed".
func Filename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "unnamed"
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, name)
	return name + "_tech_transfer.png"
}
