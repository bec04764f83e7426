package batchlib

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// HTTP client defaults.
const (
	DEF_CONNECT_TIMEOUT         = 10 * time.Second
	DEF_KEEPALIVE               = 60 * time.Second
	DEF_IDLE_CONN_TIMEOUT       = 90 * time.Second
	DEF_MAX_IDLE_CONNS_PER_HOST = 20
	DEF_RESPONSE_HEADER_TIMEOUT = 300 * time.Second
	DEF_USER_AGENT              = "batchdl/1.0"
)

var (
	ErrEmptyProxyURL        = errors.New("proxy URL cannot be empty")
	ErrUnsupportedProxy     = errors.New("unsupported proxy scheme")
	ErrInvalidProxyURL      = errors.New("invalid proxy URL")
	supportedProxySchemes   = map[string]bool{"http": true, "https": true, "socks5": true}
	errSOCKSNoContextDialer = errors.New("socks5 dialer does not support contexts")
)

// ClientOpts configures the HTTP client shared by all HTTP sources.
type ClientOpts struct {
	// ProxyURL is an http, https or socks5 proxy. Empty uses the proxy
	// environment variables (HTTP_PROXY, HTTPS_PROXY, NO_PROXY).
	ProxyURL              string
	ConnectTimeout        time.Duration
	ResponseHeaderTimeout time.Duration
	MaxRedirects          int
}

// DefaultClientOpts returns the pool and timeout settings used by the daemon.
func DefaultClientOpts() *ClientOpts {
	return &ClientOpts{
		ConnectTimeout:        DEF_CONNECT_TIMEOUT,
		ResponseHeaderTimeout: DEF_RESPONSE_HEADER_TIMEOUT,
		MaxRedirects:          DefaultMaxRedirects,
	}
}

// ProxyConfig holds a parsed proxy URL.
type ProxyConfig struct {
	Scheme   string
	Host     string
	Username string
	Password string
}

// URL returns the proxy URL as a string.
func (p *ProxyConfig) URL() string {
	var sb strings.Builder
	sb.WriteString(p.Scheme)
	sb.WriteString("://")
	if p.Username != "" {
		sb.WriteString(p.Username)
		if p.Password != "" {
			sb.WriteString(":")
			sb.WriteString(p.Password)
		}
		sb.WriteString("@")
	}
	sb.WriteString(p.Host)
	return sb.String()
}

// ParseProxyURL parses and validates a proxy URL string.
func ParseProxyURL(proxyURL string) (*ProxyConfig, error) {
	if proxyURL == "" {
		return nil, ErrEmptyProxyURL
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, ErrInvalidProxyURL
	}
	if !supportedProxySchemes[parsed.Scheme] {
		return nil, ErrUnsupportedProxy
	}
	cfg := &ProxyConfig{Scheme: parsed.Scheme, Host: parsed.Host}
	if parsed.User != nil {
		cfg.Username = parsed.User.Username()
		cfg.Password, _ = parsed.User.Password()
	}
	return cfg, nil
}

// NewHTTPClient builds the HTTP client used for http and https sources. The
// client has no overall timeout; long transfers are bounded by the response
// header timeout and by cancellation.
func NewHTTPClient(opts *ClientOpts) (*http.Client, error) {
	if opts == nil {
		opts = DefaultClientOpts()
	}
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DEF_CONNECT_TIMEOUT
	}
	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: DEF_KEEPALIVE,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   DEF_MAX_IDLE_CONNS_PER_HOST,
		IdleConnTimeout:       DEF_IDLE_CONN_TIMEOUT,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
	}

	if opts.ProxyURL != "" {
		cfg, err := ParseProxyURL(opts.ProxyURL)
		if err != nil {
			return nil, err
		}
		if cfg.Scheme == "socks5" {
			var auth *proxy.Auth
			if cfg.Username != "" {
				auth = &proxy.Auth{User: cfg.Username, Password: cfg.Password}
			}
			socks, err := proxy.SOCKS5("tcp", cfg.Host, auth, dialer)
			if err != nil {
				return nil, err
			}
			cd, ok := socks.(proxy.ContextDialer)
			if !ok {
				return nil, errSOCKSNoContextDialer
			}
			transport.Proxy = nil
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return cd.DialContext(ctx, network, addr)
			}
		} else {
			pu, _ := url.Parse(cfg.URL())
			transport.Proxy = http.ProxyURL(pu)
		}
	}

	return &http.Client{
		Transport:     transport,
		CheckRedirect: RedirectPolicy(maxRedirects),
	}, nil
}
