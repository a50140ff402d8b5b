package goquery

import "github.com/PuerkitoBio/goquery"

// Region is a named structural predicate over a document tree. Match returns
// the elements that belong to the region; an empty selection means no match.
type Region struct {
	Name  string
	Match func(doc *goquery.Document) *goquery.Selection
}

// SelectorRegion returns a Region matching a CSS selector.
func SelectorRegion(name, selector string) Region {
	return Region{
		Name: name,
		Match: func(doc *goquery.Document) *goquery.Selection {
			return doc.Find(selector)
		},
	}
}

// DefaultRegions returns the content regions probed for body text, most
// specific first: the main landmark, an article, common content containers
// and finally the whole body.
func DefaultRegions() []Region {
	return []Region{
		SelectorRegion("main", "main"),
		SelectorRegion("role-main", `[role="main"]`),
		SelectorRegion("article", "article"),
		SelectorRegion("content-class", ".content"),
		SelectorRegion("content-id", "#content"),
		SelectorRegion("post-content", ".post-content"),
		SelectorRegion("entry-content", ".entry-content"),
		SelectorRegion("main-content", ".main-content"),
		SelectorRegion("body", "body"),
	}
}
