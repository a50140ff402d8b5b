package mock

import "github.com/fwojciec/docingest"

var (
	_ docingest.Parser    = (*Parser)(nil)
	_ docingest.Converter = (*Converter)(nil)
)

// Parser is a mock implementation of docingest.Parser.
type Parser struct {
	ParseFn func(html string, baseURL string) (*docingest.ParsedDocument, error)
}

func (p *Parser) Parse(html string, baseURL string) (*docingest.ParsedDocument, error) {
	return p.ParseFn(html, baseURL)
}

// Converter is a mock implementation of docingest.Converter.
type Converter struct {
	ConvertFn func(html string) (string, error)
}

func (c *Converter) Convert(html string) (string, error) {
	return c.ConvertFn(html)
}
