package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

const resultsPage = `<html><body>
<a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fone">one</a>
<a class="result__a" href="https://example.com/two">two</a>
<a class="result__a" href="javascript:void(0)">junk</a>
<a class="result__a" href="https://example.com/three">three</a>
</body></html>`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientOptions{
		SearchBase: srv.URL,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c, srv
}

func TestSearch_ParsesAndUnwrapsResults(t *testing.T) {
	var gotQuery string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, resultsPage)
	})

	urls, err := c.Search(context.Background(), "台積電 股價", 2)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if gotQuery != "台積電 股價" {
		t.Fatalf("unexpected query sent: %q", gotQuery)
	}
	if len(urls) != 2 {
		t.Fatalf("expected 2 urls, got %v", urls)
	}
	if urls[0] != "https://example.com/one" {
		t.Fatalf("redirect link not unwrapped: %q", urls[0])
	}
	if urls[1] != "https://example.com/two" {
		t.Fatalf("unexpected second url: %q", urls[1])
	}
}

func TestSearch_NoResults(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>nothing here</body></html>")
	})
	if _, err := c.Search(context.Background(), "query", 3); err == nil {
		t.Fatalf("expected error for empty result page")
	}
}

func TestSearch_RejectsEmptyQuery(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	if _, err := c.Search(context.Background(), "  ", 3); err == nil {
		t.Fatalf("expected error for empty query")
	}
}

func TestExtractText(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<script>var x = 1;</script>
<nav>選單</nav>
<p>台積電   今天
漲停</p>
<footer>頁尾</footer>
</body></html>`)
	})

	text, err := c.ExtractText(context.Background(), srv.URL, 0)
	if err != nil {
		t.Fatalf("ExtractText returned error: %v", err)
	}
	if text != "台積電 今天 漲停" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestExtractText_Truncates(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>"+strings.Repeat("字", 100)+"</body></html>")
	})

	text, err := c.ExtractText(context.Background(), srv.URL, 10)
	if err != nil {
		t.Fatalf("ExtractText returned error: %v", err)
	}
	if len([]rune(text)) != 10 {
		t.Fatalf("expected 10 runes, got %d", len([]rune(text)))
	}
}

func TestExtractText_BadStatus(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	if _, err := c.ExtractText(context.Background(), srv.URL, 0); err == nil {
		t.Fatalf("expected error for non-200 status")
	}
}

func TestResolveResultURL(t *testing.T) {
	cases := []struct {
		href string
		want string
	}{
		{"https://example.com/a", "https://example.com/a"},
		{"//duckduckgo.com/l/?uddg=" + url.QueryEscape("https://example.com/b"), "https://example.com/b"},
		{"javascript:void(0)", ""},
		{"mailto:a@example.com", ""},
	}
	for _, tc := range cases {
		if got := resolveResultURL(tc.href); got != tc.want {
			t.Fatalf("resolveResultURL(%q) = %q, want %q", tc.href, got, tc.want)
		}
	}
}
