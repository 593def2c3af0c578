package middleware

import (
	"errors"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/emandor/mailsift/internal/config"
)

// MaxImagesPerRequest caps one extraction batch.
const MaxImagesPerRequest = 50

// FileUploadValidator checks uploaded files for an allowed extension and
// size. Content is not inspected here: an unreadable image is reported per
// file by the OCR step instead of failing the whole request.
func FileUploadValidator(cfg *config.Config) fiber.Handler {
	extMap := make(map[string]struct{})
	for _, e := range cfg.AllowedFileExt {
		extMap[strings.ToLower(e)] = struct{}{}
	}
	maxSize := int64(cfg.AllowedMaxFileSize) * 1024 * 1024

	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if errors.Is(err, fasthttp.ErrNoMultipartForm) {
			return c.Next()
		}
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid multipart form",
			})
		}

		count := 0
		for _, files := range form.File {
			for _, file := range files {
				count++
				if count > MaxImagesPerRequest {
					return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
						"error": "too many files",
					})
				}
				if ferr := validateFile(file, extMap, maxSize); ferr != nil {
					return c.Status(ferr.Code).JSON(fiber.Map{
						"error": ferr.Message,
						"file":  file.Filename,
					})
				}
			}
		}

		return c.Next()
	}
}

// validateFile checks the file size and extension
func validateFile(file *multipart.FileHeader, extMap map[string]struct{}, maxSize int64) *fiber.Error {
	if maxSize > 0 && file.Size > maxSize {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "file too large")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if _, ok := extMap[ext]; !ok {
		return fiber.NewError(fiber.StatusBadRequest, "invalid file type")
	}

	return nil
}
