// Package pdf validates PDF payloads and describes them. Text extraction is
// not implemented: every accepted file yields docingest.PlaceholderContent.
package pdf

import (
	"bytes"

	"github.com/fwojciec/docingest"
)

// Ensure Inspector implements docingest.Inspector at compile time.
var _ docingest.Inspector = (*Inspector)(nil)

// Signature is the magic prefix of every PDF file.
var Signature = []byte("%PDF")

// Inspector checks declared type and signature of PDF payloads.
type Inspector struct{}

// NewInspector creates a new Inspector.
func NewInspector() *Inspector {
	return &Inspector{}
}

// Inspect validates file and returns its metadata with placeholder content.
func (i *Inspector) Inspect(file *docingest.FilePayload) (*docingest.FileExtract, error) {
	if file == nil {
		return nil, docingest.Errorf(docingest.EINVALID, "missing file payload")
	}
	if file.Type != docingest.MIMETypePDF {
		return nil, docingest.Errorf(docingest.EVALIDATION, "Invalid file type: %s", file.Type)
	}
	if !bytes.HasPrefix(file.Data, Signature) {
		return nil, docingest.Errorf(docingest.EVALIDATION, "Invalid PDF file signature")
	}

	return &docingest.FileExtract{
		Metadata: docingest.FileMetadata{
			Name:         file.Name,
			Size:         file.Size,
			Type:         file.Type,
			LastModified: file.LastModified,
		},
		Content: docingest.PlaceholderContent,
	}, nil
}
