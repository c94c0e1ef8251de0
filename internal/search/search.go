// Package search does plain HTML web search plus page-text extraction,
// feeding the chat service's retrieval path.
package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"susu/bot/pkg/x/httpx"
)

const (
	// DuckDuckGo's no-JS endpoint; plain HTML, no API key.
	defaultSearchBase = "https://html.duckduckgo.com/html/"
	defaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

type ClientOptions struct {
	SearchBase string
	UserAgent  string
	HTTPClient *http.Client
}

func (o ClientOptions) withDefaults() ClientOptions {
	out := o
	if strings.TrimSpace(out.SearchBase) == "" {
		out.SearchBase = defaultSearchBase
	}
	if strings.TrimSpace(out.UserAgent) == "" {
		out.UserAgent = defaultUserAgent
	}
	return out
}

type Client struct {
	searchBase string
	userAgent  string
	httpClient *http.Client
}

func NewClient(opts ClientOptions) (*Client, error) {
	opts = opts.withDefaults()

	httpClient := opts.HTTPClient
	if httpClient == nil {
		var err error
		httpClient, err = httpx.NewClient(httpx.ClientOptions{
			Timeout:     20 * time.Second,
			UseEnvProxy: true,
		})
		if err != nil {
			return nil, err
		}
	}

	return &Client{
		searchBase: strings.TrimRight(opts.SearchBase, "/") + "/",
		userAgent:  opts.UserAgent,
		httpClient: httpClient,
	}, nil
}

// Search returns up to limit result URLs for the query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search: empty query")
	}
	if limit <= 0 {
		limit = 3
	}

	doc, err := c.fetchDocument(ctx, c.searchBase+"?q="+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}

	var urls []string
	doc.Find("a.result__a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		if resolved := resolveResultURL(href); resolved != "" {
			urls = append(urls, resolved)
		}
		return len(urls) < limit
	})
	if len(urls) == 0 {
		return nil, fmt.Errorf("search: no results for %q", query)
	}
	return urls, nil
}

// resolveResultURL unwraps the redirect links the HTML endpoint emits
// (//duckduckgo.com/l/?uddg=<target>).
func resolveResultURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		href = target
		if u, err = url.Parse(target); err != nil {
			return ""
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return href
}

// ExtractText fetches a page and returns its visible text, whitespace
// collapsed and truncated to maxLen runes.
func (c *Client) ExtractText(ctx context.Context, pageURL string, maxLen int) (string, error) {
	doc, err := c.fetchDocument(ctx, pageURL)
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript, nav, footer").Remove()
	text := collapseWhitespace(doc.Find("body").Text())
	if maxLen > 0 {
		runes := []rune(text)
		if len(runes) > maxLen {
			text = string(runes[:maxLen])
		}
	}
	return text, nil
}

func (c *Client) fetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: GET %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
