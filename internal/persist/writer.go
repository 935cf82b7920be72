package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/onlythejoe/void-engine/internal/memory"
)

// #region io-error
// IOError reports a failed read or write of the state file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// #endregion io-error

// #region writer
// Writer flushes a field to a single JSON file, replacing it atomically.
type Writer struct {
	path string
}

// NewWriter returns a Writer targeting path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the destination file.
func (w *Writer) Path() string {
	return w.path
}

// #endregion writer

// #region flush
// Flush writes one consistent copy of field to a temp file next to the destination
// and renames it into place, returning how many snapshots that copy held. On any
// failure, including ctx cancellation before the rename, the previous file is left
// as it was.
func (w *Writer) Flush(ctx context.Context, field *memory.Field) (int, error) {
	snaps := field.Slice()
	data, err := encodeSnapshots(field.Cap(), snaps)
	if err != nil {
		return 0, err
	}
	return len(snaps), w.write(ctx, data)
}

func (w *Writer) write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return &IOError{Op: "flush", Path: w.path, Err: err}
	}

	dir := filepath.Dir(w.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.path)+"-*.tmp")
	if err != nil {
		return &IOError{Op: "create temp", Path: w.path, Err: err}
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &IOError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &IOError{Op: "sync", Path: tmpPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &IOError{Op: "close", Path: tmpPath, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return &IOError{Op: "flush", Path: w.path, Err: err}
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		return &IOError{Op: "rename", Path: w.path, Err: err}
	}
	success = true

	syncDir(dir)
	return nil
}

// syncDir makes the rename durable where the platform allows it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}

// #endregion flush

// #region load
// Load reads the field stored at path. A missing file is the first-run case and
// yields an empty field of defaultCapacity.
func Load(path string, defaultCapacity int) (*memory.Field, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return memory.NewField(defaultCapacity)
	}
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return Decode(data)
}

// #endregion load
