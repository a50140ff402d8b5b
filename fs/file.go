// Package fs adapts local files to docingest.File.
package fs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fwojciec/docingest"
)

// Ensure File implements docingest.File at compile time.
var _ docingest.File = (*File)(nil)

// DefaultType is declared for files whose extension has no known type.
const DefaultType = "application/octet-stream"

// File is a regular file on the local filesystem. Its type is declared from
// the file extension; the content is not sniffed.
type File struct {
	path string
	info fs.FileInfo
}

// Stat returns the File at path.
func Stat(path string) (*File, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, docingest.Errorf(docingest.ENOTFOUND, "file not found: %s", path)
	} else if err != nil {
		return nil, docingest.Errorf(docingest.EINVALID, "cannot stat %s: %v", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, docingest.Errorf(docingest.EINVALID, "not a regular file: %s", path)
	}
	return &File{path: path, info: info}, nil
}

func (f *File) Name() string            { return f.info.Name() }
func (f *File) Size() int64             { return f.info.Size() }
func (f *File) LastModified() time.Time { return f.info.ModTime() }

// Type returns the MIME type registered for the file extension, without
// parameters.
func (f *File) Type() string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(f.path)))
	if t == "" {
		return DefaultType
	}
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

// Open opens the file for reading.
func (f *File) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(f.path)
}
