package batchlib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPOpts configures the sftp:// source.
type SFTPOpts struct {
	// KnownHostsPath is the trust-on-first-use known_hosts file.
	KnownHostsPath string
	// KeyPaths are private keys tried in order when the URL has no password.
	// Defaults to ~/.ssh/id_ed25519 and ~/.ssh/id_rsa.
	KeyPaths []string
	Timeout  time.Duration
}

type sftpSource struct {
	opts SFTPOpts
}

func newSFTPSource(opts *SFTPOpts) *sftpSource {
	s := &sftpSource{}
	if opts != nil {
		s.opts = *opts
	}
	if s.opts.KnownHostsPath == "" {
		s.opts.KnownHostsPath = filepath.Join(ConfigDir(), "known_hosts")
	}
	if len(s.opts.KeyPaths) == 0 {
		if home, err := os.UserHomeDir(); err == nil {
			s.opts.KeyPaths = []string{
				filepath.Join(home, ".ssh", "id_ed25519"),
				filepath.Join(home, ".ssh", "id_rsa"),
			}
		}
	}
	if s.opts.Timeout <= 0 {
		s.opts.Timeout = DEF_CONNECT_TIMEOUT
	}
	return s
}

func (s *sftpSource) authMethods(password string) ([]ssh.AuthMethod, error) {
	if password != "" {
		return []ssh.AuthMethod{ssh.Password(password)}, nil
	}
	for _, kp := range s.opts.KeyPaths {
		pemBytes, err := os.ReadFile(kp)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(pemBytes)
		if err != nil {
			var ppErr *ssh.PassphraseMissingError
			if errors.As(err, &ppErr) {
				return nil, fmt.Errorf("sftp: key %q is passphrase-protected", kp)
			}
			continue
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return nil, fmt.Errorf("sftp: no authentication method: provide a password in the URL or a key at %s",
		strings.Join(s.opts.KeyPaths, ", "))
}

func (s *sftpSource) connect(ctx context.Context, u *url.URL) (*ssh.Client, error) {
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "22")
	}
	var user, password string
	if u.User != nil {
		user = u.User.Username()
		password, _ = u.User.Password()
	}
	auth, err := s.authMethods(password)
	if err != nil {
		return nil, err
	}
	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: newTOFUHostKeyCallback(s.opts.KnownHostsPath),
		Timeout:         s.opts.Timeout,
	}

	d := net.Dialer{Timeout: s.opts.Timeout}
	nc, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return nil, fmt.Errorf("sftp: dial %s: %w", host, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(nc, host, cfg)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("sftp: handshake %s: %w", host, err)
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// Open seeks the remote file to offset. An offset at or past the remote size
// reports the file as complete.
func (s *sftpSource) Open(ctx context.Context, rawURL string, offset int64) (*Stream, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Path == "" || u.Path == "/" {
		return nil, fmt.Errorf("%w: %q", ErrFileNameNotResolved, rawURL)
	}
	sshClient, err := s.connect(ctx, u)
	if err != nil {
		return nil, err
	}
	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("sftp: subsystem: %w", err)
	}
	body := &sftpBody{client: client, ssh: sshClient}

	f, err := client.Open(u.Path)
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("sftp: open %s: %w", u.Path, err)
	}
	body.File = f
	info, err := f.Stat()
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("sftp: stat %s: %w", u.Path, err)
	}
	size := info.Size()
	if offset >= size {
		body.Close()
		return &Stream{Offset: offset, Total: size, Complete: true}, nil
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		body.Close()
		return nil, fmt.Errorf("sftp: seek %s: %w", u.Path, err)
	}
	return &Stream{
		Body:   withCancelClose(ctx, body),
		Offset: offset,
		Total:  size,
	}, nil
}

type sftpBody struct {
	*sftp.File
	client *sftp.Client
	ssh    *ssh.Client
}

func (b *sftpBody) Read(p []byte) (int, error) {
	return b.File.Read(p)
}

func (b *sftpBody) Close() error {
	var err error
	if b.File != nil {
		err = b.File.Close()
	}
	b.client.Close()
	b.ssh.Close()
	return err
}
