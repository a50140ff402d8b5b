// Package goquery implements docingest.Parser on top of goquery document
// trees.
package goquery

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/docingest"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Ensure Parser implements docingest.Parser at compile time.
var _ docingest.Parser = (*Parser)(nil)

// headingLevels maps heading atoms to their level.
var headingLevels = map[atom.Atom]int{
	atom.H1: 1,
	atom.H2: 2,
	atom.H3: 3,
	atom.H4: 4,
	atom.H5: 5,
	atom.H6: 6,
}

// nonVisible matches elements whose text never renders.
const nonVisible = "script, style, noscript, template"

// Parser reads titles, descriptions, body text, links and headings from HTML.
type Parser struct {
	regions []Region
}

// Option configures a Parser.
type Option func(*Parser)

// WithRegions replaces the ordered content region list.
func WithRegions(regions []Region) Option {
	return func(p *Parser) {
		p.regions = regions
	}
}

// NewParser creates a Parser that probes DefaultRegions.
func NewParser(opts ...Option) *Parser {
	p := &Parser{regions: DefaultRegions()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse builds a document tree from rawHTML and reads the extract fields.
func (p *Parser) Parse(rawHTML string, baseURL string) (*docingest.ParsedDocument, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, docingest.Errorf(docingest.EINVALID, "invalid base URL: %v", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, docingest.Errorf(docingest.EPARSE, "failed to parse HTML: %v", err)
	}

	base = documentBase(doc, base)

	region, sel := p.probe(doc)
	text, contentHTML, err := regionContent(sel)
	if err != nil {
		return nil, docingest.Errorf(docingest.EPARSE, "failed to render content region: %v", err)
	}

	return &docingest.ParsedDocument{
		Title:       title(doc),
		Description: description(doc),
		Text:        text,
		ContentHTML: contentHTML,
		Region:      region,
		Links:       links(doc, base),
		Headings:    headings(doc),
	}, nil
}

// probe returns the first region that matches, falling back to the whole
// document when none does.
func (p *Parser) probe(doc *goquery.Document) (string, *goquery.Selection) {
	for _, r := range p.regions {
		if sel := r.Match(doc); sel != nil && sel.Length() > 0 {
			return r.Name, sel.First()
		}
	}
	return "document", doc.Selection
}

// title returns the text of the first title element.
func title(doc *goquery.Document) string {
	t := strings.TrimSpace(doc.Find("title").First().Text())
	if t == "" {
		return docingest.DefaultTitle
	}
	return t
}

// description returns the content of the description meta tag.
func description(doc *goquery.Document) string {
	meta := doc.Find("meta[name]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		return strings.EqualFold(strings.TrimSpace(name), "description")
	}).First()
	content, _ := meta.Attr("content")
	return strings.TrimSpace(content)
}

// regionContent returns the visible text and the markup of sel with
// non-rendering elements removed. The document itself is left untouched.
func regionContent(sel *goquery.Selection) (string, string, error) {
	clone := sel.Clone()
	clone.Find(nonVisible).Remove()

	var rendered string
	var err error
	if clone.Length() > 0 && clone.Get(0).Type == html.DocumentNode {
		rendered, err = clone.Html()
	} else {
		rendered, err = goquery.OuterHtml(clone)
	}
	if err != nil {
		return "", "", err
	}
	return collapse(clone.Text()), rendered, nil
}

// documentBase honours a <base href> element.
func documentBase(doc *goquery.Document, base *url.URL) *url.URL {
	href, ok := doc.Find("base[href]").First().Attr("href")
	if !ok {
		return base
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return base
	}
	return base.ResolveReference(ref)
}

// links returns all anchors with visible text and a resolvable target, in
// document order.
func links(doc *goquery.Document, base *url.URL) []docingest.Link {
	var out []docingest.Link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		text := collapse(s.Text())
		if text == "" {
			return
		}
		out = append(out, docingest.Link{
			Text: text,
			Href: base.ResolveReference(ref).String(),
		})
	})
	return out
}

// headings returns all h1-h6 elements with text, in document order.
func headings(doc *goquery.Document) []docingest.Heading {
	var out []docingest.Heading
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		level, ok := headingLevels[s.Get(0).DataAtom]
		if !ok {
			return
		}
		text := collapse(s.Text())
		if text == "" {
			return
		}
		out = append(out, docingest.Heading{Level: level, Text: text})
	})
	return out
}

// collapse replaces runs of whitespace with single spaces and trims the ends.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
