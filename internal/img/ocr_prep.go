package img

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// DefaultMaxWidth bounds recognition latency without losing legible text.
const DefaultMaxWidth = 1800

type PrepOptions struct {
	MaxWidth  int
	Grayscale bool
}

type Prepared struct {
	Bytes         []byte
	MIME          string
	Width, Height int
}

// PrepareForOCR: decode → flatten alpha → downscale (optional) → grayscale (optional) → PNG
func PrepareForOCR(data []byte, opts PrepOptions) (Prepared, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Prepared{}, fmt.Errorf("decode image: %w", err)
	}

	src = flatten(src)

	// proportional, never upscale
	if opts.MaxWidth > 0 && src.Bounds().Dx() > opts.MaxWidth {
		src = imaging.Resize(src, opts.MaxWidth, 0, imaging.Lanczos)
	}

	if opts.Grayscale {
		src = imaging.Grayscale(src)
	}

	// PNG keeps glyph edges intact; JPEG artifacts hurt tesseract on small text
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, imaging.PNG); err != nil {
		return Prepared{}, fmt.Errorf("encode image: %w", err)
	}
	b := src.Bounds()
	return Prepared{Bytes: buf.Bytes(), MIME: "image/png", Width: b.Dx(), Height: b.Dy()}, nil
}

// composite onto white so transparent text backgrounds don't turn black
func flatten(src image.Image) image.Image {
	b := src.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, src, image.Pt(0, 0), 1.0)
}

// Fingerprint is the content hash used to key cached OCR text.
func Fingerprint(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// CheckFormat accepts a file with an allowed extension whose content is a
// PNG or JPEG. The two may disagree: decoding goes by content.
func CheckFormat(filename string, data []byte) error {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png":
	default:
		return fmt.Errorf("unsupported file type %q", ext)
	}

	head := data
	if len(head) > 512 {
		head = head[:512] // http.DetectContentType looks at <=512 bytes
	}
	switch mimeType := http.DetectContentType(head); mimeType {
	case "image/png", "image/jpeg":
		return nil
	default:
		return fmt.Errorf("content is not a PNG or JPEG image (detected %s)", mimeType)
	}
}
