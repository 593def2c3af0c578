package img

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// encodeTextImage renders text on a solid background and returns PNG bytes.
func encodeTextImage(t *testing.T, width, height int, bg color.Color, text string) []byte {
	t.Helper()
	im := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			im.Set(x, y, bg)
		}
	}
	d := &font.Drawer{
		Dst:  im,
		Src:  image.NewUniform(color.RGBA{200, 20, 20, 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(10), Y: fixed.I(20)},
	}
	d.DrawString(text)

	var buf bytes.Buffer
	if err := png.Encode(&buf, im); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

func decodePNG(t *testing.T, b []byte) image.Image {
	t.Helper()
	im, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("prepared bytes are not PNG: %v", err)
	}
	return im
}

func TestPrepareForOCR_Downscale(t *testing.T) {
	data := encodeTextImage(t, 3600, 400, color.White, "sales@example.com")

	p, err := PrepareForOCR(data, PrepOptions{MaxWidth: 1800, Grayscale: true})
	if err != nil {
		t.Fatalf("PrepareForOCR failed: %v", err)
	}
	if p.MIME != "image/png" {
		t.Errorf("MIME = %q, want image/png", p.MIME)
	}
	if p.Width != 1800 || p.Height != 200 {
		t.Errorf("size = %dx%d, want 1800x200", p.Width, p.Height)
	}
	im := decodePNG(t, p.Bytes)
	if im.Bounds().Dx() != 1800 {
		t.Errorf("encoded width = %d", im.Bounds().Dx())
	}
}

func TestPrepareForOCR_NoUpscale(t *testing.T) {
	data := encodeTextImage(t, 300, 60, color.White, "a@b.co")

	p, err := PrepareForOCR(data, PrepOptions{MaxWidth: DefaultMaxWidth})
	if err != nil {
		t.Fatalf("PrepareForOCR failed: %v", err)
	}
	if p.Width != 300 || p.Height != 60 {
		t.Errorf("size = %dx%d, want 300x60", p.Width, p.Height)
	}
}

func TestPrepareForOCR_Grayscale(t *testing.T) {
	data := encodeTextImage(t, 200, 40, color.RGBA{10, 120, 230, 255}, "x@y.io")

	p, err := PrepareForOCR(data, PrepOptions{Grayscale: true})
	if err != nil {
		t.Fatalf("PrepareForOCR failed: %v", err)
	}
	im := decodePNG(t, p.Bytes)
	for _, pt := range []image.Point{{0, 0}, {100, 20}, {199, 39}} {
		r, g, b, _ := im.At(pt.X, pt.Y).RGBA()
		if r != g || g != b {
			t.Errorf("pixel %v not gray: %d %d %d", pt, r, g, b)
		}
	}
}

func TestPrepareForOCR_FlattensAlpha(t *testing.T) {
	im := image.NewNRGBA(image.Rect(0, 0, 20, 20)) // fully transparent
	var buf bytes.Buffer
	if err := png.Encode(&buf, im); err != nil {
		t.Fatalf("encode: %v", err)
	}

	p, err := PrepareForOCR(buf.Bytes(), PrepOptions{})
	if err != nil {
		t.Fatalf("PrepareForOCR failed: %v", err)
	}
	r, g, b, a := decodePNG(t, p.Bytes).At(5, 5).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff || a != 0xffff {
		t.Errorf("transparent pixel = %d %d %d %d, want opaque white", r, g, b, a)
	}
}

func TestPrepareForOCR_JPEG(t *testing.T) {
	im := image.NewRGBA(image.Rect(0, 0, 64, 32))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, im, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := PrepareForOCR(buf.Bytes(), PrepOptions{MaxWidth: 32}); err != nil {
		t.Fatalf("PrepareForOCR(jpeg) failed: %v", err)
	}
}

func TestPrepareForOCR_InvalidData(t *testing.T) {
	if _, err := PrepareForOCR([]byte("definitely not an image"), PrepOptions{}); err == nil {
		t.Error("expected decode error for garbage input")
	}
	if _, err := PrepareForOCR(nil, PrepOptions{}); err == nil {
		t.Error("expected decode error for empty input")
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("one"))
	if a != Fingerprint([]byte("one")) {
		t.Error("fingerprint not stable")
	}
	if a == Fingerprint([]byte("two")) {
		t.Error("different content produced same fingerprint")
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64", len(a))
	}
}

func TestCheckFormat(t *testing.T) {
	pngData := encodeTextImage(t, 10, 10, color.White, "")
	var jpgBuf bytes.Buffer
	if err := jpeg.Encode(&jpgBuf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatalf("encode: %v", err)
	}

	tests := []struct {
		name    string
		file    string
		data    []byte
		wantErr bool
	}{
		{"png", "shot.png", pngData, false},
		{"upper case ext", "SHOT.PNG", pngData, false},
		{"jpeg", "photo.jpeg", jpgBuf.Bytes(), false},
		{"jpg", "photo.jpg", jpgBuf.Bytes(), false},
		{"png named jpg", "photo.jpg", pngData, false},
		{"jpeg named png", "scan.png", jpgBuf.Bytes(), false},
		{"garbage", "scan.png", []byte("hello"), true},
		{"unsupported ext", "doc.gif", []byte("GIF89a"), true},
		{"empty", "empty.png", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFormat(tt.file, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckFormat(%q) err = %v, wantErr %v", tt.file, err, tt.wantErr)
			}
		})
	}
}
