package httpx

import (
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"
	"time"
)

type ClientOptions struct {
	Timeout time.Duration

	// UseEnvProxy applies SUSU_HTTP_PROXY semantics:
	// - unset: direct (even if HTTP_PROXY / HTTPS_PROXY is set)
	// - "env": ProxyFromEnvironment
	// - URL / host:port: fixed http(s) or socks5 proxy
	UseEnvProxy bool

	// Proxy overrides UseEnvProxy when non-empty.
	Proxy string

	// CookieJar enables a cookie jar (some quote endpoints want one).
	CookieJar bool

	// Transport allows providing a pre-configured transport.
	// When nil, it clones http.DefaultTransport.
	Transport *http.Transport
}

func NewClient(opts ClientOptions) (*http.Client, error) {
	var transport *http.Transport
	if opts.Transport != nil {
		transport = opts.Transport.Clone()
	} else {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	proxyRaw := strings.TrimSpace(opts.Proxy)
	if proxyRaw == "" && opts.UseEnvProxy {
		proxyRaw = strings.TrimSpace(os.Getenv("SUSU_HTTP_PROXY"))
	}
	if proxyRaw != "" {
		if err := ApplyProxy(transport, proxyRaw); err != nil {
			return nil, err
		}
	} else {
		transport.Proxy = nil // default: no proxy (even if HTTP_PROXY / HTTPS_PROXY is set)
	}

	var jar http.CookieJar
	if opts.CookieJar {
		jar, _ = cookiejar.New(nil)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		Jar:       jar,
	}, nil
}
