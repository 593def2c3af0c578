// Package history keeps an audit trail of extraction actions. It records
// outcomes only; nothing here feeds back into an extraction.
package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

type Run struct {
	ID           string         `db:"id" json:"id"`
	Status       string         `db:"status" json:"status"`
	EmailCount   int            `db:"email_count" json:"email_count"`
	ImageCount   int            `db:"image_count" json:"image_count"`
	FailedImages int            `db:"failed_images" json:"failed_images"`
	SavedPath    string         `db:"saved_path" json:"saved_path"`
	SaveError    sql.NullString `db:"save_error" json:"-"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

type Recorder interface {
	Record(ctx context.Context, run Run) error
	Recent(ctx context.Context, limit int) ([]Run, error)
}

type SQLRecorder struct {
	db *sqlx.DB
}

func NewSQLRecorder(db *sqlx.DB) *SQLRecorder { return &SQLRecorder{db: db} }

func (r *SQLRecorder) Record(ctx context.Context, run Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO extraction_runs
			(id, status, email_count, image_count, failed_images, saved_path, save_error, created_at)
		VALUES
			(:id, :status, :email_count, :image_count, :failed_images, :saved_path, :save_error, :created_at)`,
		run)
	return err
}

func (r *SQLRecorder) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []Run
	err := r.db.SelectContext(ctx, &runs, `
		SELECT id, status, email_count, image_count, failed_images, saved_path, save_error, created_at
		FROM extraction_runs
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	return runs, err
}

// Nop is used when no database is configured.
type Nop struct{}

func (Nop) Record(context.Context, Run) error          { return nil }
func (Nop) Recent(context.Context, int) ([]Run, error) { return nil, nil }
