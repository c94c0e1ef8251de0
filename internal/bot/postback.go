package bot

import (
	"context"
	"fmt"
	"log"
	"strings"

	"susu/bot/internal/line"
	"susu/bot/internal/market"
)

// OnPostback serves the stateless view buttons. Postbacks bypass the
// gate and mode machinery entirely; they only reopen the gate on the
// way out so a button click can never strand its user.
func (r *Router) OnPostback(ctx context.Context, ev line.PostbackEvent) {
	userID := strings.TrimSpace(ev.UserID)
	if userID == "" {
		return
	}

	defer r.gate.SetOpen(userID, true)
	defer func() {
		if p := recover(); p != nil {
			log.Printf("[%s] panic handling postback for user=%s: %v", r.opts.LogPrefix, userID, p)
			r.reply(ctx, ev.ReplyToken, line.NewTextMessage(msgFailure))
		}
	}()

	symbol, action := ev.Subject(), ev.Action()
	if !isTicker(symbol) || action == "" {
		return
	}

	text, err := r.renderView(ctx, symbol, action)
	if err != nil {
		log.Printf("[%s] view %q for %s failed: %v", r.opts.LogPrefix, action, symbol, err)
		r.reply(ctx, ev.ReplyToken, line.NewTextMessage(msgFailure))
		return
	}
	if text == "" {
		return // unknown action, stale button
	}
	r.reply(ctx, ev.ReplyToken, line.NewTextMessage(text))
}

func (r *Router) renderView(ctx context.Context, symbol, action string) (string, error) {
	if action == actionNews {
		return r.renderNews(ctx, symbol)
	}

	q, err := r.opts.Market.Quote(ctx, symbol)
	if err != nil {
		return "", err
	}

	switch action {
	case actionDetail:
		return formatDetail(q), nil
	case actionPrice:
		return formatPrice(q), nil
	case actionDepth:
		return formatDepth(q), nil
	default:
		return "", nil
	}
}

func (r *Router) renderNews(ctx context.Context, symbol string) (string, error) {
	if r.opts.News == nil {
		return "", fmt.Errorf("news source not configured")
	}
	items, err := r.opts.News.Headlines(ctx, symbol, 5)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s 的相關新聞：", symbol)
	for _, item := range items {
		fmt.Fprintf(&b, "\n・%s", item.Title)
		if item.Link != "" {
			fmt.Fprintf(&b, "\n  %s", item.Link)
		}
	}
	return b.String(), nil
}

// formatDetail is the transposed full snapshot, one field per line.
func formatDetail(q market.Quote) string {
	rows := []struct {
		label string
		value string
	}{
		{"股票代號", q.Symbol},
		{"公司簡稱", q.Name},
		{"公司全名", q.FullName},
		{"上市別", q.Exchange},
		{"資料日期", q.Date},
		{"最近成交時刻", q.MatchTime},
		{"開盤", q.Open},
		{"最高", q.High},
		{"最低", q.Low},
		{"昨收", q.PrevClose},
		{"漲停價", q.LimitUp},
		{"跌停價", q.LimitDown},
		{"當盤成交價", q.LastPrice},
		{"當盤成交量", q.LastVolume},
		{"累積成交量", q.AccVolume},
	}

	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s：%s", row.label, row.value)
	}
	return b.String()
}

func formatPrice(q market.Quote) string {
	return fmt.Sprintf("%s（%s）\n當盤成交價 %s 元\n當盤成交量 %s 張\n累積成交量 %s 張",
		q.Name, q.Symbol, q.LastPrice, q.LastVolume, q.AccVolume)
}

// formatDepth lists the five best bid/ask levels. The MIS payload packs
// each series as "_"-separated values with a trailing "_".
func formatDepth(q market.Quote) string {
	bidPrices := splitLevels(q.BidPrices)
	bidVolumes := splitLevels(q.BidVolumes)
	askPrices := splitLevels(q.AskPrices)
	askVolumes := splitLevels(q.AskVolumes)

	var b strings.Builder
	fmt.Fprintf(&b, "%s（%s）最佳五檔", q.Name, q.Symbol)
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&b, "\n買%d %s（%s）｜賣%d %s（%s）",
			i+1, level(bidPrices, i), level(bidVolumes, i),
			i+1, level(askPrices, i), level(askVolumes, i))
	}
	return b.String()
}

func splitLevels(s string) []string {
	s = strings.Trim(strings.TrimSpace(s), "_")
	if s == "" {
		return nil
	}
	return strings.Split(s, "_")
}

func level(levels []string, i int) string {
	if i >= len(levels) || strings.TrimSpace(levels[i]) == "" {
		return "-"
	}
	return levels[i]
}
