// Package portal drives the external prediction portal through browser
// automation. The portal has no API; the Session state machine is the only
// contract with it, issuing primitive actions through a Driver and reading
// back DOM text. Every wait is bounded and every transient failure has an
// explicit bounded retry, kept separate from fatal validation failures.
package portal

import (
	"context"
	"time"
)

// Driver is the browser-automation primitive set. Implementations classify
// their failures: a bounded wait that expires returns an automation error of
// kind timeout, a missing element one of kind element_not_found, so the
// session can tell transient flakiness from broken assumptions.
//
// Tests inject a scripted fake; production uses the Chrome driver.
type Driver interface {
	// Navigate loads a URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error

	// Find reports whether an element currently exists, without waiting.
	Find(ctx context.Context, selector string) (bool, error)

	// SetValue writes a value into a form element.
	SetValue(ctx context.Context, selector, value string) error

	// Click fires a click on an element.
	Click(ctx context.Context, selector string) error

	// ReadText returns the text content of an element.
	ReadText(ctx context.Context, selector string) (string, error)

	// WaitFor blocks until an element exists or the timeout expires.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error

	// CurrentURL returns the page URL.
	CurrentURL(ctx context.Context) (string, error)

	// DownloadTriggered waits for a started download to finish and returns
	// the artifact path.
	DownloadTriggered(ctx context.Context, timeout time.Duration) (string, error)

	// Close releases the browser session.
	Close() error
}
