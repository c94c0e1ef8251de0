package httpx

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	netproxy "golang.org/x/net/proxy"
)

// ApplyProxy configures transport according to a proxy string:
// "off"/"direct" disable proxying, "env" uses the standard env vars,
// socks5:// URLs install a SOCKS dialer, anything else is a fixed
// http(s) proxy URL (scheme optional).
func ApplyProxy(transport *http.Transport, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	switch strings.ToLower(raw) {
	case "0", "false", "off", "no", "none", "direct":
		transport.Proxy = nil
		return nil
	case "env":
		transport.Proxy = http.ProxyFromEnvironment
		return nil
	}

	if strings.HasPrefix(strings.ToLower(raw), "socks5://") || strings.HasPrefix(strings.ToLower(raw), "socks5h://") {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid socks5 proxy url: %w", err)
		}
		var auth *netproxy.Auth
		if u.User != nil {
			pw, _ := u.User.Password()
			auth = &netproxy.Auth{User: u.User.Username(), Password: pw}
		}
		dialer, err := netproxy.SOCKS5("tcp", u.Host, auth, netproxy.Direct)
		if err != nil {
			return fmt.Errorf("socks5 dialer: %w", err)
		}
		transport.Proxy = nil
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(netproxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		}
		return nil
	}

	u, err := ParseProxyURL(raw)
	if err != nil {
		return err
	}
	transport.Proxy = http.ProxyURL(u)
	return nil
}

func ParseProxyURL(raw string) (*url.URL, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("empty proxy url")
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q (only http/https)", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return nil, fmt.Errorf("missing host")
	}
	return u, nil
}
