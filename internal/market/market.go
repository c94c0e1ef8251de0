// Package market fetches Taiwan stock exchange quotes: the MIS realtime
// endpoint for the current snapshot and the STOCK_DAY report for daily
// history.
package market

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"susu/bot/pkg/x/httpx"
)

// ErrNotFound means the exchange has no listing for the symbol.
var ErrNotFound = errors.New("market: symbol not found")

// Quote is one realtime snapshot. Values stay strings, normalized so
// that empty cells become "0", mirroring the MIS payload.
type Quote struct {
	Symbol    string // c
	Name      string // n
	FullName  string // nf
	Exchange  string // ex (tse / otc)
	Date      string // d (YYYYMMDD)
	TradeTime string // ot (HH:MM:SS)
	MatchTime string // t

	Open      string // o
	High      string // h
	Low       string // l
	PrevClose string // y
	LimitUp   string // u
	LimitDown string // w

	LastPrice  string // z; falls back to best bid when "-"
	LastVolume string // tv
	AccVolume  string // v

	AskPrices  string // a, low→high, "_"-separated
	AskVolumes string // f
	BidPrices  string // b, high→low, "_"-separated
	BidVolumes string // g
}

// Bar is one daily OHLCV row.
type Bar struct {
	Date   string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

type Client struct {
	misBase    string
	reportBase string
	httpClient *http.Client
	now        func() time.Time
}

type ClientOptions struct {
	// MISBase / ReportBase override the exchange endpoints (tests).
	MISBase    string
	ReportBase string
	HTTPClient *http.Client
}

func NewClient(opts ClientOptions) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		var err error
		httpClient, err = httpx.NewClient(httpx.ClientOptions{
			Timeout:     15 * time.Second,
			UseEnvProxy: true,
			CookieJar:   true,
		})
		if err != nil {
			return nil, err
		}
	}

	misBase := strings.TrimRight(strings.TrimSpace(opts.MISBase), "/")
	if misBase == "" {
		misBase = "https://mis.twse.com.tw"
	}
	reportBase := strings.TrimRight(strings.TrimSpace(opts.ReportBase), "/")
	if reportBase == "" {
		reportBase = "https://www.twse.com.tw"
	}

	return &Client{
		misBase:    misBase,
		reportBase: reportBase,
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

// Quote fetches the realtime snapshot for a TSE symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return Quote{}, ErrNotFound
	}

	raw, err := c.get(ctx, c.misBase+"/stock/api/getStockInfo.jsp?ex_ch=tse_"+url.QueryEscape(symbol)+".tw")
	if err != nil {
		return Quote{}, err
	}

	msg := gjson.GetBytes(raw, "msgArray.0")
	if !msg.Exists() {
		return Quote{}, ErrNotFound
	}
	code := strings.TrimSpace(msg.Get("c").String())
	if !isDigits(code) || len(code) != 4 {
		return Quote{}, ErrNotFound
	}

	field := func(key string) string {
		v := strings.TrimSpace(msg.Get(key).String())
		if v == "" {
			return "0"
		}
		return v
	}

	q := Quote{
		Symbol:     code,
		Name:       field("n"),
		FullName:   field("nf"),
		Exchange:   field("ex"),
		Date:       field("d"),
		TradeTime:  field("ot"),
		MatchTime:  field("t"),
		Open:       field("o"),
		High:       field("h"),
		Low:        field("l"),
		PrevClose:  field("y"),
		LimitUp:    field("u"),
		LimitDown:  field("w"),
		LastPrice:  field("z"),
		LastVolume: field("tv"),
		AccVolume:  field("v"),
		AskPrices:  field("a"),
		AskVolumes: field("f"),
		BidPrices:  field("b"),
		BidVolumes: field("g"),
	}

	// No match this tick: use the best bid as the working price.
	if q.LastPrice == "-" {
		if best, _, ok := strings.Cut(q.BidPrices, "_"); ok || best != "" {
			q.LastPrice = best
		}
	}

	return q, nil
}

// Exists reports whether the exchange knows the symbol.
func (c *Client) Exists(ctx context.Context, symbol string) (bool, error) {
	_, err := c.Quote(ctx, symbol)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// History fetches daily bars for the last `months` calendar months,
// oldest first. An empty slice (no error) means the report had no rows.
func (c *Client) History(ctx context.Context, symbol string, months int) ([]Bar, error) {
	symbol = strings.TrimSpace(symbol)
	if months <= 0 {
		months = 6
	}

	var bars []Bar
	now := c.now()
	for i := months - 1; i >= 0; i-- {
		month := now.AddDate(0, -i, 0)
		date := fmt.Sprintf("%04d%02d01", month.Year(), int(month.Month()))
		u := c.reportBase + "/exchangeReport/STOCK_DAY?response=json&date=" + date + "&stockNo=" + url.QueryEscape(symbol)

		raw, err := c.get(ctx, u)
		if err != nil {
			return nil, err
		}
		if gjson.GetBytes(raw, "stat").String() != "OK" {
			continue // month without data (new listing, bad month)
		}
		for _, row := range gjson.GetBytes(raw, "data").Array() {
			cells := row.Array()
			if len(cells) < 7 {
				continue
			}
			bar, ok := parseDailyRow(cells)
			if !ok {
				continue
			}
			bars = append(bars, bar)
		}
	}
	return bars, nil
}

// LatestBar derives today's OHLCV row from the realtime quote.
func (c *Client) LatestBar(ctx context.Context, symbol string) (Bar, error) {
	q, err := c.Quote(ctx, symbol)
	if err != nil {
		return Bar{}, err
	}

	bar := Bar{Date: q.Date}
	fields := []struct {
		dst *float64
		raw string
	}{
		{&bar.Open, q.Open},
		{&bar.High, q.High},
		{&bar.Low, q.Low},
		{&bar.Close, q.LastPrice},
		{&bar.Volume, q.AccVolume},
	}
	for _, f := range fields {
		v, err := parseNumber(f.raw)
		if err != nil {
			return Bar{}, fmt.Errorf("bad quote field %q: %w", f.raw, err)
		}
		*f.dst = v
	}
	return bar, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("market fetch failed: status=%d url=%s", resp.StatusCode, url)
	}
	return body, nil
}

// STOCK_DAY columns: date, shares, turnover, open, high, low, close, change, count.
func parseDailyRow(cells []gjson.Result) (Bar, bool) {
	bar := Bar{Date: strings.TrimSpace(cells[0].String())}

	vol, err := parseNumber(cells[1].String())
	if err != nil {
		return Bar{}, false
	}
	bar.Volume = vol

	dst := []*float64{&bar.Open, &bar.High, &bar.Low, &bar.Close}
	for i, p := range dst {
		v, err := parseNumber(cells[3+i].String())
		if err != nil {
			return Bar{}, false // "--" rows on no-trade days
		}
		*p = v
	}
	return bar, true
}

func parseNumber(raw string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" || s == "-" || s == "--" {
		return 0, fmt.Errorf("empty number")
	}
	return strconv.ParseFloat(s, 64)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
