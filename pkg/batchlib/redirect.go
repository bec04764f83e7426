package batchlib

import (
	"errors"
	"fmt"
	"net/http"
)

// DefaultMaxRedirects is the maximum number of redirect hops followed for an
// HTTP source.
const DefaultMaxRedirects = 10

var (
	ErrTooManyRedirects      = errors.New("redirect loop detected")
	ErrCrossProtocolRedirect = errors.New("cross-protocol redirect not supported")
)

func isHTTPScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}

// RedirectPolicy returns a CheckRedirect function enforcing a hop limit and
// rejecting redirects out of http/https. The Range header of the original
// request is carried over so a resumed transfer stays ranged after a redirect.
func RedirectPolicy(maxRedirects int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: exceeded %d hops (last URL: %s)",
				ErrTooManyRedirects, maxRedirects, via[len(via)-1].URL.Redacted())
		}
		if len(via) == 0 {
			return nil
		}
		prev := via[len(via)-1]
		if isHTTPScheme(prev.URL.Scheme) && !isHTTPScheme(req.URL.Scheme) {
			return fmt.Errorf("%w: %s -> %s",
				ErrCrossProtocolRedirect, prev.URL.Scheme, req.URL.Scheme)
		}
		if r := via[0].Header.Get("Range"); r != "" && req.Header.Get("Range") == "" {
			req.Header.Set("Range", r)
		}
		return nil
	}
}
