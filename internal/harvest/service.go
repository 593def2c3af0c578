package harvest

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emandor/mailsift/internal/export"
	"github.com/emandor/mailsift/internal/extract"
	"github.com/emandor/mailsift/internal/history"
	"github.com/emandor/mailsift/internal/ocr"
	"github.com/emandor/mailsift/internal/telemetry"
)

type Recognizer interface {
	RecognizeAll(ctx context.Context, images []ocr.Image, progress ocr.ProgressFunc) ocr.Batch
}

type Saver interface {
	Save(dir, name string, data []byte) (export.Saved, error)
}

type Notifier interface {
	Progress(actionID string, p ocr.Progress)
	ImageFailed(actionID string, e *ocr.ImageError)
	Completed(actionID string, summary any)
}

type Options struct {
	TargetDir  string
	FileName   string
	BackupName string
}

type Service struct {
	recognizer Recognizer
	saver      Saver
	notifier   Notifier
	history    history.Recorder
	opts       Options
}

func NewService(rec Recognizer, saver Saver, notifier Notifier, hist history.Recorder, opts Options) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if hist == nil {
		hist = history.Nop{}
	}
	return &Service{recognizer: rec, saver: saver, notifier: notifier, history: hist, opts: opts}
}

// Run carries one action from Processing to Idle. Every failure along the
// way ends up as a message on the Outcome; Run itself never fails.
func (s *Service) Run(ctx context.Context, in Input) Outcome {
	id := in.ActionID
	if id == "" {
		id = uuid.NewString()
	}
	log := telemetry.Action(id)
	out := Outcome{ActionID: id, Emails: []string{}, Messages: []Message{}}

	var raw strings.Builder
	raw.WriteString(in.Text)
	raw.WriteByte('\n')

	if len(in.Images) > 0 {
		transition(log, StateProcessing)
		batch := s.recognizer.RecognizeAll(ctx, in.Images, func(p ocr.Progress) {
			s.notifier.Progress(id, p)
		})
		for _, e := range batch.Errors {
			out.add(LevelError, "Error processing %s: %v", e.Filename, e.Err)
			out.ImageErrors = append(out.ImageErrors, ImageFailure{Filename: e.Filename, Error: e.Err.Error()})
			s.notifier.ImageFailed(id, e)
		}
		raw.WriteString(batch.Text())
	}

	transition(log, StateExtracting)
	set := extract.Emails(raw.String())
	log.Info().Int("emails", set.Len()).Int("chars", raw.Len()).Msg("emails_extracted")

	if set.Len() == 0 {
		out.Status = StatusNoEmails
		out.add(LevelWarning, "No email addresses found in the provided images or text.")
		s.finish(ctx, log, &out, len(in.Images), "")
		return out
	}

	out.Emails = set.Sorted()
	out.add(LevelSuccess, "Found %d unique emails!", set.Len())

	transition(log, StatePersisting)
	saveErr := s.persist(log, &out, set)
	s.finish(ctx, log, &out, len(in.Images), saveErr)
	return out
}

// persist offers the download first so a failed save still leaves the user
// with the data.
func (s *Service) persist(log zerolog.Logger, out *Outcome, set extract.Set) string {
	data, err := export.NewRecord(set).CSV()
	if err != nil {
		log.Error().Err(err).Msg("export_render_failed")
		out.Status = StatusFailed
		out.add(LevelError, "Error saving file: %v", err)
		return err.Error()
	}
	dl := export.NewDownload(s.opts.BackupName, data)
	out.Download = &dl

	dir := s.opts.TargetDir
	saved, err := s.saver.Save(dir, s.opts.FileName, data)
	if err == nil {
		out.Status = StatusSaved
		out.SavedPath = saved.Path
		if saved.CreatedDir {
			out.add(LevelInfo, "Created directory: %s", dir)
		}
		out.add(LevelSuccess, "Saved to: %s", saved.Path)
		log.Info().Str("path", saved.Path).Bool("created_dir", saved.CreatedDir).Msg("export_saved")
		return ""
	}

	out.Status = StatusDownloadOnly
	var se *export.SaveError
	switch {
	case export.IsPermission(err):
		out.add(LevelError, "Permission Denied: Cannot write to `%s`. Please check folder permissions.", dir)
	case errors.As(err, &se) && se.Kind == export.KindDirCreate:
		out.add(LevelError, "Could not create directory `%s`: %v", dir, se.Err)
	default:
		out.add(LevelError, "Error saving file: %v", err)
	}
	log.Warn().Err(err).Str("dir", dir).Msg("export_save_failed")
	return err.Error()
}

func (s *Service) finish(ctx context.Context, log zerolog.Logger, out *Outcome, images int, saveErr string) {
	transition(log, StateIdle)

	run := history.Run{
		ID:           out.ActionID,
		Status:       string(out.Status),
		EmailCount:   len(out.Emails),
		ImageCount:   images,
		FailedImages: len(out.ImageErrors),
		SavedPath:    out.SavedPath,
		SaveError:    sql.NullString{String: saveErr, Valid: saveErr != ""},
	}
	if err := s.history.Record(ctx, run); err != nil {
		log.Warn().Err(err).Msg("history_record_failed")
	}
	s.notifier.Completed(out.ActionID, out.Summary())
	log.Info().Str("status", string(out.Status)).Msg("action_done")
}

func transition(log zerolog.Logger, to State) {
	log.Debug().Str("state", string(to)).Msg("state_changed")
}

type nopNotifier struct{}

func (nopNotifier) Progress(string, ocr.Progress)       {}
func (nopNotifier) ImageFailed(string, *ocr.ImageError) {}
func (nopNotifier) Completed(string, any)               {}
