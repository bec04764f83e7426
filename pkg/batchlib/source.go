package batchlib

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Stream is a remote body positioned at Offset.
type Stream struct {
	// Body yields the bytes from Offset to the end. Nil when Complete.
	Body io.ReadCloser
	// Offset is where Body starts. It is 0 when the server ignored the
	// requested offset and is sending the whole file again.
	Offset int64
	// Total is the full size of the remote file, 0 when unknown.
	Total int64
	// Complete is set when the remote has no bytes past the requested offset.
	Complete bool
}

// Source opens a remote file for reading from offset.
type Source interface {
	Open(ctx context.Context, rawURL string, offset int64) (*Stream, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, rawURL string, offset int64) (*Stream, error)

func (f SourceFunc) Open(ctx context.Context, rawURL string, offset int64) (*Stream, error) {
	return f(ctx, rawURL, offset)
}

// SchemeRouter maps URL schemes to Sources.
// The zero value is not usable; use NewSchemeRouter to create one.
type SchemeRouter struct {
	routes map[string]Source
}

// NewSchemeRouter creates a SchemeRouter serving http and https through client
// and ftp, ftps and sftp through the protocol sources.
func NewSchemeRouter(client *http.Client, sftpOpts *SFTPOpts) *SchemeRouter {
	if client == nil {
		client = http.DefaultClient
	}
	r := &SchemeRouter{routes: make(map[string]Source)}
	hs := &httpSource{client: client, userAgent: DEF_USER_AGENT}
	r.routes["http"] = hs
	r.routes["https"] = hs
	fs := &ftpSource{timeout: DEF_CONNECT_TIMEOUT}
	r.routes["ftp"] = fs
	r.routes["ftps"] = fs
	r.routes["sftp"] = newSFTPSource(sftpOpts)
	return r
}

// Register adds or replaces the source for the given scheme.
func (r *SchemeRouter) Register(scheme string, src Source) {
	r.routes[strings.ToLower(scheme)] = src
}

// Open routes rawURL to the source registered for its scheme.
func (r *SchemeRouter) Open(ctx context.Context, rawURL string, offset int64) (*Stream, error) {
	if rawURL == "" {
		return nil, ErrEmptyURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	src, ok := r.routes[scheme]
	if !ok {
		return nil, fmt.Errorf("%w %q (supported: %s)",
			ErrUnsupportedScheme, scheme, strings.Join(r.Schemes(), ", "))
	}
	return src.Open(ctx, rawURL, offset)
}

// Schemes returns the sorted list of registered schemes.
func (r *SchemeRouter) Schemes() []string {
	schemes := make([]string, 0, len(r.routes))
	for s := range r.routes {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// closeOnCancel wraps a body whose reads do not observe a context, closing it
// when ctx is canceled so a forced stop unblocks the reader.
type closeOnCancel struct {
	io.ReadCloser
	stop func() bool
}

func withCancelClose(ctx context.Context, rc io.ReadCloser) io.ReadCloser {
	c := &closeOnCancel{ReadCloser: &onceCloser{ReadCloser: rc}}
	c.stop = context.AfterFunc(ctx, func() { c.ReadCloser.Close() })
	return c
}

func (c *closeOnCancel) Close() error {
	c.stop()
	return c.ReadCloser.Close()
}

type onceCloser struct {
	io.ReadCloser
	once sync.Once
	err  error
}

func (o *onceCloser) Close() error {
	o.once.Do(func() { o.err = o.ReadCloser.Close() })
	return o.err
}
