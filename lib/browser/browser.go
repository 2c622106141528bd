// Package browser defines the automation bridge the export engine drives a
// live notes page through, plus its chromedp implementation. The engine
// owns exactly one bridge per session and receives it by injection; there
// is no ambient browser handle.
package browser

import (
	"context"
	"fmt"
	"net/http"
)

// ErrNoElement is returned by element-addressed operations when the
// selector currently matches nothing. The notes list re-renders while it is
// being read, so callers treat this as "retry", never as fatal.
var ErrNoElement = fmt.Errorf("no element matches selector")

// Bridge is the minimal surface the engine needs against a live page:
// navigation, DOM snapshots, clicks, script evaluation and the
// authenticated session's cookies. Implementations must be safe for
// sequential use from a single goroutine; the engine never calls them
// concurrently.
type Bridge interface {
	// Navigate loads url and returns once the document is ready.
	Navigate(ctx context.Context, url string) error
	// HTML returns the outer HTML of the first element matching selector,
	// or ErrNoElement.
	HTML(ctx context.Context, selector string) (string, error)
	// Click dispatches a click on the first element matching selector.
	Click(ctx context.Context, selector string) error
	// Eval evaluates a script expression in the page. When out is non-nil
	// the JSON-compatible result is unmarshalled into it.
	Eval(ctx context.Context, expression string, out any) error
	// Cookies returns the cookies of the page's authenticated session.
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}
