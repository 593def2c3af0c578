package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

type Kind string

const (
	KindDirCreate  Kind = "dir_create"
	KindPermission Kind = "permission_denied"
	KindWrite      Kind = "write"
)

type SaveError struct {
	Kind Kind
	Dir  string
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	switch e.Kind {
	case KindDirCreate:
		return fmt.Sprintf("create directory %s: %v", e.Dir, e.Err)
	case KindPermission:
		return fmt.Sprintf("permission denied writing to %s: %v", e.Dir, e.Err)
	default:
		return fmt.Sprintf("write %s: %v", e.Path, e.Err)
	}
}

func (e *SaveError) Unwrap() error { return e.Err }

// IsPermission reports whether err is a save that was refused by the filesystem.
func IsPermission(err error) bool {
	var se *SaveError
	return errors.As(err, &se) && se.Kind == KindPermission
}

type Saved struct {
	Path       string
	CreatedDir bool
}

// Writer persists CSV bytes. The zero value uses the os package.
type Writer struct {
	stat      func(string) (fs.FileInfo, error)
	mkdirAll  func(string, fs.FileMode) error
	writeFile func(string, []byte, fs.FileMode) error
}

func NewWriter() *Writer { return &Writer{} }

// Save creates dir (with parents) when missing and overwrites dir/name.
func (w *Writer) Save(dir, name string, data []byte) (Saved, error) {
	path := filepath.Join(dir, name)
	out := Saved{Path: path}

	if _, err := w.statFn()(dir); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return out, &SaveError{Kind: KindPermission, Dir: dir, Path: path, Err: err}
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return out, &SaveError{Kind: KindDirCreate, Dir: dir, Path: path, Err: err}
		}
		if err := w.mkdirFn()(dir, 0o755); err != nil {
			return out, &SaveError{Kind: KindDirCreate, Dir: dir, Path: path, Err: err}
		}
		out.CreatedDir = true
	}

	if err := w.writeFn()(path, data, 0o644); err != nil {
		kind := KindWrite
		if errors.Is(err, fs.ErrPermission) {
			kind = KindPermission
		}
		return out, &SaveError{Kind: kind, Dir: dir, Path: path, Err: err}
	}
	return out, nil
}

func (w *Writer) statFn() func(string) (fs.FileInfo, error) {
	if w.stat != nil {
		return w.stat
	}
	return os.Stat
}

func (w *Writer) mkdirFn() func(string, fs.FileMode) error {
	if w.mkdirAll != nil {
		return w.mkdirAll
	}
	return os.MkdirAll
}

func (w *Writer) writeFn() func(string, []byte, fs.FileMode) error {
	if w.writeFile != nil {
		return w.writeFile
	}
	return os.WriteFile
}
