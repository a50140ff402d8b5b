package docingest

import "context"

// Fetcher retrieves markup from URLs.
type Fetcher interface {
	// Fetch retrieves the document at url and returns its markup.
	// A non-2xx response is an ENETWORK error whose message has the form
	// "HTTP <status>: <statusText>".
	// The context controls timeout and cancellation.
	Fetch(ctx context.Context, url string) (html string, err error)

	// Close releases resources held by the fetcher.
	Close() error
}
