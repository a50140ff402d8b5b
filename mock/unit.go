package mock

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/fwojciec/docingest"
)

var (
	_ docingest.Unit = (*Unit)(nil)
	_ docingest.File = (*File)(nil)
)

// Unit is a mock implementation of docingest.Unit.
type Unit struct {
	PostFn      func(msg *docingest.Message) error
	MessagesFn  func() <-chan *docingest.Message
	TerminateFn func() error
}

func (u *Unit) Post(msg *docingest.Message) error {
	return u.PostFn(msg)
}

func (u *Unit) Messages() <-chan *docingest.Message {
	return u.MessagesFn()
}

func (u *Unit) Terminate() error {
	return u.TerminateFn()
}

// File is a mock implementation of docingest.File.
// Open returns Data unless OpenFn is set.
type File struct {
	FileName string
	FileSize int64
	FileType string
	Modified time.Time
	Data     []byte
	OpenFn   func(ctx context.Context) (io.ReadCloser, error)
}

func (f *File) Name() string            { return f.FileName }
func (f *File) Size() int64             { return f.FileSize }
func (f *File) Type() string            { return f.FileType }
func (f *File) LastModified() time.Time { return f.Modified }

func (f *File) Open(ctx context.Context) (io.ReadCloser, error) {
	if f.OpenFn != nil {
		return f.OpenFn(ctx)
	}
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}
