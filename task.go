package docingest

import (
	"context"
	"io"
	"time"
)

// MIMETypePDF is the only declared file type accepted for PDF tasks.
const MIMETypePDF = "application/pdf"

// TaskKind discriminates the payload of a Task.
type TaskKind string

// Task kinds.
const (
	TaskURL TaskKind = "url"
	TaskPDF TaskKind = "pdf"
)

// Task is a single ingestion request. It is created at submission time,
// handed to the execution unit once, and never mutated afterwards.
type Task struct {
	ID          string       `json:"id"`
	Kind        TaskKind     `json:"kind"`
	URL         string       `json:"url,omitempty"`
	File        *FilePayload `json:"file,omitempty"`
	SubmittedAt time.Time    `json:"submittedAt"`
}

// Validate returns an error if the payload does not match the task kind.
func (t *Task) Validate() error {
	switch t.Kind {
	case TaskURL:
		if t.URL == "" {
			return Errorf(EINVALID, "url task requires an address")
		}
		if t.File != nil {
			return Errorf(EINVALID, "url task must not carry a file payload")
		}
	case TaskPDF:
		if t.File == nil {
			return Errorf(EINVALID, "pdf task requires a file payload")
		}
		if t.URL != "" {
			return Errorf(EINVALID, "pdf task must not carry an address")
		}
	default:
		return Errorf(EINVALID, "unknown task kind %q", t.Kind)
	}
	return nil
}

// FilePayload is the byte content of a submitted file plus the metadata the
// host declared for it. Ownership of Data moves with the payload.
type FilePayload struct {
	Name         string    `json:"fileName"`
	Size         int64     `json:"fileSize"`
	Type         string    `json:"fileType"`
	LastModified time.Time `json:"lastModified"`
	Data         []byte    `json:"fileData"`
}

// File is a host-side file handle, the analogue of a browser File object.
type File interface {
	// Name returns the base name of the file.
	Name() string

	// Size returns the size in bytes.
	Size() int64

	// Type returns the declared MIME type.
	Type() string

	// LastModified returns the modification time reported by the host.
	LastModified() time.Time

	// Open returns a reader over the full content.
	// The caller must close it.
	Open(ctx context.Context) (io.ReadCloser, error)
}
