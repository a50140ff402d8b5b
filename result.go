package docingest

import "time"

// Operation names the routine that produced a Result.
type Operation string

// Operations.
const (
	OperationHTML  Operation = "html"
	OperationPDF   Operation = "pdf"
	OperationError Operation = "error"
)

// OperationFor returns the operation that serves a task kind.
func OperationFor(kind TaskKind) Operation {
	switch kind {
	case TaskURL:
		return OperationHTML
	case TaskPDF:
		return OperationPDF
	}
	return OperationError
}

// Result is the single terminal outcome of a task.
// Data holds a *DocumentExtract or a *FileExtract on success.
type Result struct {
	TaskID    string    `json:"taskId,omitempty"`
	Operation Operation `json:"operation"`
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	URL       string    `json:"url,omitempty"`
	Filename  string    `json:"filename,omitempty"`
}

// Document returns the document extract of a successful URL result.
func (r *Result) Document() (*DocumentExtract, bool) {
	d, ok := r.Data.(*DocumentExtract)
	return d, ok
}

// File returns the file extract of a successful PDF result.
func (r *Result) File() (*FileExtract, bool) {
	f, ok := r.Data.(*FileExtract)
	return f, ok
}

// Extract limits.
const (
	MaxContentChars = 10000
	MaxLinks        = 50
	MaxHeadings     = 20
)

// DefaultTitle is reported when a page has no title element.
const DefaultTitle = "No title found"

// DocumentExtract is the structured summary of a fetched markup document.
type DocumentExtract struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Markdown    string    `json:"markdown,omitempty"`
	Links       []Link    `json:"links"`
	Headings    []Heading `json:"headings"`

	// ContentLength is the character count of Content before truncation.
	ContentLength int       `json:"contentLength"`
	ContentHash   string    `json:"contentHash,omitempty"`
	ExtractedAt   time.Time `json:"extractedAt"`
}

// Link is an anchor with visible text and a resolved target.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Heading is an h1-h6 element.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// FileExtract is the structured summary of a validated PDF payload.
type FileExtract struct {
	Metadata    FileMetadata `json:"metadata"`
	Content     FileContent  `json:"content"`
	ContentHash string       `json:"contentHash,omitempty"`
	ExtractedAt time.Time    `json:"extractedAt"`
}

// FileMetadata describes a submitted file as declared by the host.
type FileMetadata struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	Type         string    `json:"type"`
	LastModified time.Time `json:"lastModified"`
}

// FileContent is the extracted content of a file. PDF text extraction is not
// implemented, so every PDF yields PlaceholderContent.
type FileContent struct {
	Text        string `json:"text"`
	Pages       int    `json:"pages"`
	Placeholder bool   `json:"placeholder"`
}

// PlaceholderContent is the sentinel content record for PDF files.
var PlaceholderContent = FileContent{
	Text:        "PDF text extraction not yet implemented",
	Pages:       0,
	Placeholder: true,
}
