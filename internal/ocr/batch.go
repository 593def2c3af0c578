package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emandor/mailsift/internal/img"
	"github.com/emandor/mailsift/internal/telemetry"
)

type Progress struct {
	Done     int    `json:"done"`
	Total    int    `json:"total"`
	Percent  int    `json:"percent"`
	Filename string `json:"filename,omitempty"`
	Status   string `json:"status"`
	Complete bool   `json:"complete"`
}

type ProgressFunc func(Progress)

// Batch is the outcome of one RecognizeAll call. Texts holds the text of
// every image that was read, in upload order.
type Batch struct {
	Texts  []string
	Errors []*ImageError
}

// Text joins the recognized texts, each followed by a newline.
func (b Batch) Text() string {
	var sb strings.Builder
	for _, t := range b.Texts {
		sb.WriteString(t)
		sb.WriteByte('\n')
	}
	return sb.String()
}

type Recognizer struct {
	Engine Engine
	Prep   img.PrepOptions
}

func NewRecognizer(engine Engine, prep img.PrepOptions) *Recognizer {
	return &Recognizer{Engine: engine, Prep: prep}
}

// RecognizeAll reads images one at a time. A failing image is recorded in
// Batch.Errors and skipped; it never stops the remaining images.
func (r *Recognizer) RecognizeAll(ctx context.Context, images []Image, progress ProgressFunc) Batch {
	if progress == nil {
		progress = func(Progress) {}
	}
	log := telemetry.L().With().Str("engine", r.Engine.Name()).Int("images", len(images)).Logger()

	var batch Batch
	total := len(images)
	for i, im := range images {
		progress(Progress{
			Done:     i,
			Total:    total,
			Percent:  percent(i, total),
			Filename: im.Filename,
			Status:   fmt.Sprintf("Processing image %d of %d...", i+1, total),
		})

		start := time.Now()
		txt, err := r.readOne(ctx, im)
		if err != nil {
			log.Warn().Str("file", im.Filename).Err(err).Msg("ocr_image_failed")
			batch.Errors = append(batch.Errors, &ImageError{Filename: im.Filename, Err: err})
		} else {
			log.Debug().Str("file", im.Filename).Int("len", len(txt)).
				Dur("took", time.Since(start)).Msg("ocr_done")
			batch.Texts = append(batch.Texts, txt)
		}

		progress(Progress{
			Done:     i + 1,
			Total:    total,
			Percent:  percent(i+1, total),
			Filename: im.Filename,
			Status:   fmt.Sprintf("Processing image %d of %d...", i+1, total),
		})
	}

	progress(Progress{Done: total, Total: total, Percent: 100, Status: "Processing complete!", Complete: true})
	log.Info().Int("read", len(batch.Texts)).Int("failed", len(batch.Errors)).Msg("ocr_batch_done")
	return batch
}

func (r *Recognizer) readOne(ctx context.Context, im Image) (txt string, err error) {
	// one bad image must not take the batch down
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("ocr engine panic: %v", rec)
		}
	}()

	if err := img.CheckFormat(im.Filename, im.Data); err != nil {
		return "", err
	}
	prep, err := img.PrepareForOCR(im.Data, r.Prep)
	if err != nil {
		return "", err
	}
	res, err := r.Engine.Read(ctx, prep.Bytes, prep.MIME)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func percent(done, total int) int {
	if total == 0 {
		return 100
	}
	return done * 100 / total
}
