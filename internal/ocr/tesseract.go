package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract reads images with a fresh gosseract client per call; clients are
// not safe for concurrent use and requests may overlap.
type Tesseract struct {
	Lang string
}

func NewTesseract(lang string) *Tesseract {
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{Lang: lang}
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Read(ctx context.Context, imgB []byte, _ string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(strings.Split(t.Lang, "+")...); err != nil {
		return Result{}, fmt.Errorf("set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return Result{}, fmt.Errorf("set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(imgB); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}
	return Result{Text: text}, nil
}
