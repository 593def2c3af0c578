// Package ocr turns uploaded images into text.
//
// Engines recognize a single prepared image. Recognizer drives a batch of
// uploads through preprocessing and an engine one image at a time, turning
// every per-image failure into an ImageError instead of aborting the batch.
package ocr

import (
	"context"
	"fmt"
)

type Result struct {
	Text string
	// Cached is set when the text came from the cache instead of the engine.
	Cached bool
}

type Engine interface {
	Name() string
	Read(ctx context.Context, img []byte, mime string) (Result, error)
}

// Image is one uploaded file, in upload order.
type Image struct {
	Filename string
	Data     []byte
}

// ImageError reports a single image that produced no text.
type ImageError struct {
	Filename string
	Err      error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }
