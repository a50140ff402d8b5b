package worker

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/fwojciec/docingest"
)

// Failure prefixes identify the operation a failure occurred in.
const (
	HTMLFailurePrefix = "Failed to extract HTML content: "
	PDFFailurePrefix  = "Failed to process PDF: "
)

// UnknownFilename is reported for PDF failures without a file name.
const UnknownFilename = "unknown"

// Extractor runs the URL and PDF operations. It holds no per-task state and
// is safe for concurrent use when its collaborators are.
type Extractor struct {
	Fetcher   docingest.Fetcher
	Parser    docingest.Parser
	Inspector docingest.Inspector

	// Converter, when set, adds a Markdown rendering of the content region.
	Converter docingest.Converter

	// Hasher, when set, fingerprints body text and file payloads.
	Hasher docingest.Hasher

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Run executes task and returns its single terminal result.
func (e *Extractor) Run(ctx context.Context, task *docingest.Task) *docingest.Result {
	var result *docingest.Result
	switch task.Kind {
	case docingest.TaskURL:
		result = e.ExtractURL(ctx, task.URL)
	case docingest.TaskPDF:
		result = e.ExtractPDF(task.File)
	default:
		result = &docingest.Result{
			Operation: docingest.OperationError,
			Error:     "unknown task kind: " + string(task.Kind),
		}
	}
	result.TaskID = task.ID
	return result
}

// ExtractURL fetches url, parses the markup and returns a bounded document
// extract, or a failure result carrying HTMLFailurePrefix.
func (e *Extractor) ExtractURL(ctx context.Context, url string) *docingest.Result {
	doc, err := e.extractDocument(ctx, url)
	if err != nil {
		return &docingest.Result{
			Operation: docingest.OperationHTML,
			Error:     HTMLFailurePrefix + docingest.ErrorMessage(err),
			URL:       url,
		}
	}
	return &docingest.Result{
		Operation: docingest.OperationHTML,
		Success:   true,
		Data:      doc,
		URL:       url,
	}
}

func (e *Extractor) extractDocument(ctx context.Context, url string) (*docingest.DocumentExtract, error) {
	html, err := e.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	parsed, err := e.Parser.Parse(html, url)
	if err != nil {
		return nil, err
	}

	content, length := Truncate(parsed.Text, docingest.MaxContentChars)
	doc := &docingest.DocumentExtract{
		URL:           url,
		Title:         parsed.Title,
		Description:   parsed.Description,
		Content:       content,
		Links:         firstN(parsed.Links, docingest.MaxLinks),
		Headings:      firstN(parsed.Headings, docingest.MaxHeadings),
		ContentLength: length,
		ExtractedAt:   e.now(),
	}

	if e.Converter != nil {
		md, err := e.Converter.Convert(parsed.ContentHTML)
		if err != nil {
			return nil, err
		}
		doc.Markdown, _ = Truncate(md, docingest.MaxContentChars)
	}
	if e.Hasher != nil {
		doc.ContentHash = e.Hasher.Sum([]byte(parsed.Text))
	}

	return doc, nil
}

// ExtractPDF validates file and returns its descriptor extract, or a failure
// result carrying PDFFailurePrefix.
func (e *Extractor) ExtractPDF(file *docingest.FilePayload) *docingest.Result {
	name := UnknownFilename
	if file != nil && file.Name != "" {
		name = file.Name
	}

	extract, err := e.Inspector.Inspect(file)
	if err != nil {
		return &docingest.Result{
			Operation: docingest.OperationPDF,
			Error:     PDFFailurePrefix + docingest.ErrorMessage(err),
			Filename:  name,
		}
	}

	extract.ExtractedAt = e.now()
	if e.Hasher != nil {
		extract.ContentHash = e.Hasher.Sum(file.Data)
	}

	return &docingest.Result{
		Operation: docingest.OperationPDF,
		Success:   true,
		Data:      extract,
		Filename:  name,
	}
}

func (e *Extractor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Truncate returns the first n characters of s and the character count of s.
func Truncate(s string, n int) (string, int) {
	length := utf8.RuneCountInString(s)
	if length <= n {
		return s, length
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], length
		}
		i++
	}
	return s, length
}

// firstN returns a copy of at most n leading items. The result is never nil.
func firstN[T any](items []T, n int) []T {
	n = min(n, len(items))
	out := make([]T, n)
	copy(out, items[:n])
	return out
}
