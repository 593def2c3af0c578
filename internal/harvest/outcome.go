package harvest

import (
	"fmt"

	"github.com/emandor/mailsift/internal/export"
	"github.com/emandor/mailsift/internal/ocr"
)

type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateExtracting State = "extracting"
	StatePersisting State = "persisting"
)

type Status string

const (
	StatusSaved        Status = "saved"
	StatusDownloadOnly Status = "download_only"
	StatusNoEmails     Status = "no_emails"
	// StatusFailed: the CSV could not be rendered, so there is nothing to offer.
	StatusFailed Status = "failed"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

type ImageFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// Input is everything one action works from. It is not modified by Run.
type Input struct {
	ActionID string
	Text     string
	Images   []ocr.Image
}

type Outcome struct {
	ActionID    string           `json:"action_id"`
	Status      Status           `json:"status"`
	Emails      []string         `json:"emails"`
	Messages    []Message        `json:"messages"`
	SavedPath   string           `json:"saved_path,omitempty"`
	Download    *export.Download `json:"download,omitempty"`
	ImageErrors []ImageFailure   `json:"image_errors,omitempty"`
}

func (o *Outcome) add(level Level, format string, args ...any) {
	o.Messages = append(o.Messages, Message{Level: level, Text: fmt.Sprintf(format, args...)})
}

// Summary is the completion payload pushed to progress subscribers.
func (o *Outcome) Summary() map[string]any {
	return map[string]any{
		"status":       o.Status,
		"email_count":  len(o.Emails),
		"saved_path":   o.SavedPath,
		"image_errors": len(o.ImageErrors),
	}
}
