package docingest

// ParsedDocument holds everything read from a markup document, before any
// transport limits are applied. Lists are filtered and in document order.
type ParsedDocument struct {
	Title       string
	Description string

	// Text is the whitespace-collapsed text of the chosen content region.
	Text string

	// ContentHTML is the markup of the chosen content region.
	ContentHTML string

	// Region names the content region that matched (e.g., "main", "body").
	Region string

	Links    []Link
	Headings []Heading
}

// Parser parses markup into a ParsedDocument.
type Parser interface {
	// Parse builds a document tree from html and reads the extract fields.
	// Relative link targets are resolved against baseURL.
	// Returns EPARSE if the markup cannot be parsed.
	Parse(html string, baseURL string) (*ParsedDocument, error)
}
