package batchlib

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// ftpSource serves ftp:// and ftps:// (explicit TLS) URLs. Credentials come
// from the URL; anonymous login is used when absent.
type ftpSource struct {
	timeout time.Duration
}

func (s *ftpSource) connect(ctx context.Context, u *url.URL) (*ftp.ServerConn, error) {
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "21")
	}
	opts := []ftp.DialOption{
		ftp.DialWithTimeout(s.timeout),
		ftp.DialWithContext(ctx),
	}
	if strings.EqualFold(u.Scheme, "ftps") {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{
			ServerName: u.Hostname(),
			MinVersion: tls.VersionTLS12,
		}))
	}
	conn, err := ftp.Dial(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("ftp: connect %s: %w", host, err)
	}

	user, pass := "anonymous", "anonymous"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	if err := conn.Login(user, pass); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp: login: %w", err)
	}
	if err := conn.Type(ftp.TransferTypeBinary); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp: binary mode: %w", err)
	}
	return conn, nil
}

// Open resumes with REST <offset> before RETR. An offset at or past the remote
// size reports the file as complete.
func (s *ftpSource) Open(ctx context.Context, rawURL string, offset int64) (*Stream, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Path == "" || u.Path == "/" {
		return nil, fmt.Errorf("%w: %q", ErrFileNameNotResolved, rawURL)
	}
	conn, err := s.connect(ctx, u)
	if err != nil {
		return nil, err
	}

	size, err := conn.FileSize(u.Path)
	if err != nil {
		// SIZE is optional (RFC 3659); continue with an unknown total.
		size = 0
	}
	if size > 0 && offset >= size {
		conn.Quit()
		return &Stream{Offset: offset, Total: size, Complete: true}, nil
	}

	resp, err := conn.RetrFrom(u.Path, uint64(offset))
	if err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp: retr %s: %w", u.Path, err)
	}
	return &Stream{
		Body:   withCancelClose(ctx, &ftpBody{Response: resp, conn: conn}),
		Offset: offset,
		Total:  size,
	}, nil
}

type ftpBody struct {
	*ftp.Response
	conn *ftp.ServerConn
}

func (b *ftpBody) Close() error {
	err := b.Response.Close()
	if qerr := b.conn.Quit(); err == nil {
		err = qerr
	}
	return err
}
