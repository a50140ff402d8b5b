// Package rod provides a docingest.Fetcher that renders pages in headless
// Chrome, for documents whose content is built by JavaScript.
package rod

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/fwojciec/docingest"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// DefaultFetchTimeout is the default timeout for a single page render.
const DefaultFetchTimeout = 10 * time.Second

// Ensure Fetcher implements docingest.Fetcher at compile time.
var _ docingest.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves rendered HTML from URLs using Chrome browser automation.
// Fetcher is safe for concurrent use by multiple goroutines.
type Fetcher struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	timeout  time.Duration
	closed   atomic.Bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithFetchTimeout sets the per-page render timeout.
// Defaults to DefaultFetchTimeout (10s) if not specified.
func WithFetchTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// NewFetcher creates a new Fetcher that launches a headless Chrome browser.
// Close must be called when the Fetcher is no longer needed.
//
// Returns an error if Chrome/Chromium cannot be found or launched.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{timeout: DefaultFetchTimeout}
	for _, opt := range opts {
		opt(f)
	}

	// Launch browser using rod's launcher (finds or downloads Chrome)
	f.launcher = launcher.New().Headless(true)
	u, err := f.launcher.Launch()
	if err != nil {
		return nil, docingest.Errorf(docingest.ECONSTRUCT, "launching browser: %v", err)
	}

	f.browser = rod.New().ControlURL(u)
	if err := f.browser.Connect(); err != nil {
		f.launcher.Kill() // Clean up launched process on connection failure
		return nil, docingest.Errorf(docingest.ECONSTRUCT, "connecting to browser: %v", err)
	}

	return f, nil
}

// Fetch navigates to the URL, waits for the load event and returns the
// rendered HTML. A non-2xx status on the main document is an ENETWORK error.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.closed.Load() {
		return "", docingest.Errorf(docingest.EINVALID, "fetcher is closed")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	page, err := f.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("opening page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx)

	var status int
	var statusText string
	wait := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument || e.Response == nil {
			return false
		}
		status, statusText = e.Response.Status, e.Response.StatusText
		return true
	})
	responded := make(chan struct{})
	go func() {
		wait()
		close(responded)
	}()

	if err := page.Navigate(url); err != nil {
		return "", f.contextErr(ctx, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", f.contextErr(ctx, err)
	}

	select {
	case <-responded:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if status != 0 && (status < 200 || status > 299) {
		if statusText == "" {
			// HTTP/2 responses carry no reason phrase.
			statusText = http.StatusText(status)
		}
		return "", docingest.Errorf(docingest.ENETWORK, "HTTP %d: %s", status, statusText)
	}

	html, err := page.HTML()
	if err != nil {
		return "", f.contextErr(ctx, err)
	}
	return html, nil
}

// contextErr prefers the context error when the context ended the operation.
func (f *Fetcher) contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return docingest.Errorf(docingest.ENETWORK, "%v", err)
}

// Close releases browser resources. It is safe to call more than once.
func (f *Fetcher) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	err := f.browser.Close()
	f.launcher.Kill()
	return err
}
