package httpx

import (
	"net/http"
	"testing"
	"time"
)

func TestNewClient_DefaultIsDirect(t *testing.T) {
	t.Setenv("HTTP_PROXY", "http://127.0.0.1:7890")
	t.Setenv("HTTPS_PROXY", "http://127.0.0.1:7890")

	c, err := NewClient(ClientOptions{})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", c.Transport)
	}
	if tr.Proxy != nil {
		t.Fatalf("expected nil proxy func by default, got %T", tr.Proxy)
	}
	if c.Timeout != 15*time.Second {
		t.Fatalf("expected default 15s timeout, got %v", c.Timeout)
	}
}

func TestNewClient_EnvProxyMode(t *testing.T) {
	t.Setenv("SUSU_HTTP_PROXY", "env")

	c, err := NewClient(ClientOptions{UseEnvProxy: true})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	tr := c.Transport.(*http.Transport)
	if tr.Proxy == nil {
		t.Fatalf("expected non-nil proxy func for env mode")
	}
}

func TestNewClient_FixedProxy(t *testing.T) {
	c, err := NewClient(ClientOptions{Proxy: "127.0.0.1:7890"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	tr := c.Transport.(*http.Transport)
	if tr.Proxy == nil {
		t.Fatalf("expected fixed proxy func")
	}
}

func TestNewClient_Socks5Proxy(t *testing.T) {
	c, err := NewClient(ClientOptions{Proxy: "socks5://127.0.0.1:1080"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	tr := c.Transport.(*http.Transport)
	if tr.Proxy != nil {
		t.Fatalf("expected nil proxy func with socks5 dialer, got %T", tr.Proxy)
	}
	if tr.DialContext == nil {
		t.Fatalf("expected socks5 DialContext to be installed")
	}
}

func TestNewClient_CookieJar(t *testing.T) {
	c, err := NewClient(ClientOptions{CookieJar: true})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if c.Jar == nil {
		t.Fatalf("expected cookie jar")
	}
}

func TestParseProxyURL(t *testing.T) {
	cases := []struct {
		raw     string
		wantErr bool
	}{
		{"", true},
		{"127.0.0.1:7890", false},
		{"http://127.0.0.1:7890", false},
		{"https://proxy.example.com", false},
		{"ftp://127.0.0.1", true},
		{"http://", true},
	}
	for _, tc := range cases {
		_, err := ParseProxyURL(tc.raw)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseProxyURL(%q) err=%v wantErr=%v", tc.raw, err, tc.wantErr)
		}
	}
}
