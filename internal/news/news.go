// Package news pulls per-symbol headlines from the Yahoo Finance RSS
// feed for the 相關新聞 postback view.
package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	defaultFeedBase = "https://feeds.finance.yahoo.com/rss/2.0/headline"
	defaultLimit    = 5
)

type Headline struct {
	Title     string
	Link      string
	Published time.Time
}

type ClientOptions struct {
	FeedBase   string
	HTTPClient *http.Client
}

type Client struct {
	feedBase string
	parser   *gofeed.Parser
}

func NewClient(opts ClientOptions) *Client {
	base := strings.TrimSpace(opts.FeedBase)
	if base == "" {
		base = defaultFeedBase
	}

	parser := gofeed.NewParser()
	if opts.HTTPClient != nil {
		parser.Client = opts.HTTPClient
	} else {
		parser.Client = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{feedBase: base, parser: parser}
}

// Headlines fetches up to limit recent items for a TWSE symbol
// (queried as {symbol}.TW).
func (c *Client) Headlines(ctx context.Context, symbol string, limit int) ([]Headline, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("news: empty symbol")
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	q := url.Values{}
	q.Set("s", symbol+".TW")
	q.Set("region", "TW")
	q.Set("lang", "zh-TW")

	feed, err := c.parser.ParseURLWithContext(c.feedBase+"?"+q.Encode(), ctx)
	if err != nil {
		return nil, fmt.Errorf("news: fetch feed for %s: %w", symbol, err)
	}

	out := make([]Headline, 0, limit)
	for _, item := range feed.Items {
		if item == nil || strings.TrimSpace(item.Title) == "" {
			continue
		}
		h := Headline{
			Title: strings.TrimSpace(item.Title),
			Link:  strings.TrimSpace(item.Link),
		}
		if item.PublishedParsed != nil {
			h.Published = *item.PublishedParsed
		}
		out = append(out, h)
		if len(out) == limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("news: no headlines for %s", symbol)
	}
	return out, nil
}
