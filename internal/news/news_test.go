package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const feedBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Yahoo Finance</title>
<item><title>台積電法說會登場</title><link>https://example.com/n1</link><pubDate>Mon, 24 Aug 2026 08:00:00 +0800</pubDate></item>
<item><title>  </title><link>https://example.com/skip</link></item>
<item><title>外資調升目標價</title><link>https://example.com/n2</link></item>
<item><title>第三則</title><link>https://example.com/n3</link></item>
</channel></rss>`

func TestHeadlines(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("s")
		fmt.Fprint(w, feedBody)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{FeedBase: srv.URL, HTTPClient: srv.Client()})

	items, err := c.Headlines(context.Background(), "2330", 2)
	if err != nil {
		t.Fatalf("Headlines returned error: %v", err)
	}
	if gotQuery != "2330.TW" {
		t.Fatalf("unexpected symbol query: %q", gotQuery)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 headlines, got %d", len(items))
	}
	if items[0].Title != "台積電法說會登場" || items[0].Link != "https://example.com/n1" {
		t.Fatalf("unexpected first headline: %+v", items[0])
	}
	if items[0].Published.IsZero() {
		t.Fatalf("expected parsed publish time")
	}
	// Blank-title item is skipped.
	if items[1].Title != "外資調升目標價" {
		t.Fatalf("unexpected second headline: %+v", items[1])
	}
}

func TestHeadlines_EmptyFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>x</title></channel></rss>`)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{FeedBase: srv.URL, HTTPClient: srv.Client()})
	if _, err := c.Headlines(context.Background(), "2330", 5); err == nil {
		t.Fatalf("expected error for empty feed")
	}
}

func TestHeadlines_EmptySymbol(t *testing.T) {
	c := NewClient(ClientOptions{})
	if _, err := c.Headlines(context.Background(), "  ", 5); err == nil {
		t.Fatalf("expected error for empty symbol")
	}
}
