// Package export renders an email set as CSV and persists it.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"

	"github.com/emandor/mailsift/internal/extract"
)

const (
	Header       = "Email"
	MIMETypeCSV  = "text/csv"
	DocumentsDir = "Documents"
)

// Record is the single-column table written to disk, one row per email.
type Record struct {
	Emails []string
}

func NewRecord(set extract.Set) Record {
	return Record{Emails: set.Sorted()}
}

// CSV renders the record with an "Email" header and no index column.
func (r Record) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{Header}); err != nil {
		return nil, err
	}
	for _, e := range r.Emails {
		if !extract.Valid(e) {
			return nil, fmt.Errorf("record entry %q is not an email", e)
		}
		if err := w.Write([]string{e}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TargetDir is <home>/Documents/<org>.
func TargetDir(home, org string) string {
	return filepath.Join(home, DocumentsDir, org)
}

// Download is the in-memory copy offered to the user, independent of the
// on-disk save.
type Download struct {
	Filename string `json:"filename"`
	MIME     string `json:"mime"`
	Data     []byte `json:"data"`
}

func NewDownload(filename string, data []byte) Download {
	return Download{Filename: filename, MIME: MIMETypeCSV, Data: data}
}
