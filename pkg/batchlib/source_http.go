package batchlib

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

type httpSource struct {
	client    *http.Client
	userAgent string
}

// Open issues a GET with "Range: bytes=<offset>-" when offset > 0 and
// interprets the response:
//
//	206 continues at offset, total = offset + Content-Length
//	200 restarts at 0 when offset > 0, total = Content-Length
//	416 reports the file as complete at offset
func (s *httpSource) Open(ctx context.Context, rawURL string, offset int64) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		return &Stream{Offset: offset, Total: offset, Complete: true}, nil
	case resp.StatusCode == http.StatusPartialContent:
		start, size, ok := parseContentRange(resp.Header.Get("Content-Range"))
		if ok && start != offset {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: asked for %d, got %d", ErrContentRangeMismatch, offset, start)
		}
		var total int64
		if resp.ContentLength >= 0 {
			total = offset + resp.ContentLength
		} else if size > 0 {
			total = size
		}
		return &Stream{Body: resp.Body, Offset: offset, Total: total}, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var total int64
		if resp.ContentLength >= 0 {
			total = resp.ContentLength
		}
		return &Stream{Body: resp.Body, Offset: 0, Total: total}, nil
	default:
		resp.Body.Close()
		return nil, newStatusError(resp)
	}
}

// parseContentRange parses "bytes <start>-<end>/<size>". size is -1 when the
// server sends "*".
func parseContentRange(v string) (start, size int64, ok bool) {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "bytes ") {
		return 0, 0, false
	}
	v = strings.TrimPrefix(v, "bytes ")
	rng, sz, found := strings.Cut(v, "/")
	if !found {
		return 0, 0, false
	}
	first, _, found := strings.Cut(rng, "-")
	if !found {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	size = -1
	if sz != "*" {
		if size, err = strconv.ParseInt(sz, 10, 64); err != nil {
			return 0, 0, false
		}
	}
	return start, size, true
}
