package transport

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// DialTCP connects to a networked serial server (ser2net and friends).
// A socks5:// proxy URL routes the dial through a lab jump host.
func DialTCP(ctx context.Context, target, proxyURL string, timeout time.Duration) (Transport, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}

	dial := dialer.DialContext
	if proxyURL != "" {
		pd, err := socksDialer(proxyURL, dialer)
		if err != nil {
			return nil, err
		}
		dial = pd
	}

	conn, err := dial(ctx, "tcp", target)
	if err != nil {
		return nil, fmt.Errorf("tcp: dial %s: %w", target, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	return newConnTransport(conn), nil
}

func socksDialer(proxyURL string, base *net.Dialer) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("tcp: proxy url: %w", err)
	}
	if u.Scheme != "socks5" {
		return nil, fmt.Errorf("tcp: unsupported proxy scheme %q", u.Scheme)
	}

	var auth *proxy.Auth
	if u.User != nil {
		auth = &proxy.Auth{User: u.User.Username()}
		if p, ok := u.User.Password(); ok {
			auth.Password = p
		}
	}

	d, err := proxy.SOCKS5("tcp", u.Host, auth, base)
	if err != nil {
		return nil, fmt.Errorf("tcp: socks5 dialer: %w", err)
	}

	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}, nil
}
