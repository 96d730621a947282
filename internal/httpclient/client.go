// Package httpclient provides a hardened HTTP client for upstream services.
package httpclient

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/helical/genefold/errors"
)

const defaultMaxRedirects = 10

// New creates an HTTP client with an overall request timeout, sane transport
// limits, and a bounded redirect policy restricted to http/https.
func New(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= defaultMaxRedirects {
				return errors.Newf("stopped after %d redirects", defaultMaxRedirects)
			}
			if err := validateURL(req.URL); err != nil {
				return errors.Wrap(err, "redirect blocked")
			}
			return nil
		},
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

func validateURL(u *url.URL) error {
	switch u.Scheme {
	case "http", "https":
		return nil
	default:
		return errors.Newf("scheme %q not allowed", u.Scheme)
	}
}
