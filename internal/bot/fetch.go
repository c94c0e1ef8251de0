package bot

import (
	"context"
	"errors"
	"fmt"
	"log"

	"susu/bot/internal/bot/state"
	"susu/bot/internal/line"
	"susu/bot/internal/market"
)

// Postback actions offered on a successful lookup. The postback data is
// "{symbol},{action}".
const (
	actionDetail = "詳細資料"
	actionPrice  = "當盤成交價"
	actionDepth  = "最佳五檔"
	actionNews   = "相關新聞"
)

// handleFetch runs the lookup mode: one valid ticker ends the mode with
// a quick-reply menu of views; anything malformed re-prompts.
func (r *Router) handleFetch(ctx context.Context, userID, text, replyToken string) {
	if text == "0" {
		r.exitToIdle(ctx, userID, replyToken)
		return
	}
	if !isTicker(text) {
		r.reply(ctx, replyToken, line.NewTextMessage(msgFetchInvalid))
		return
	}

	q, err := r.opts.Market.Quote(ctx, text)
	if errors.Is(err, market.ErrNotFound) {
		r.reply(ctx, replyToken, line.NewTextMessage(msgFetchInvalid))
		return
	}
	if err != nil {
		log.Printf("[%s] quote %s failed: %v", r.opts.LogPrefix, text, err)
		r.reply(ctx, replyToken, line.NewTextMessage(msgFailure))
		return
	}

	r.modes.Set(userID, state.ModeIdle)
	r.reply(ctx, replyToken, quoteMenu(q))
}

// quoteMenu is the headline price plus the view buttons.
func quoteMenu(q market.Quote) line.TextMessage {
	text := fmt.Sprintf("%s（%s）現在 %s 元，想看哪個？", q.Name, q.Symbol, q.LastPrice)

	items := make([]line.QuickReplyItem, 0, 4)
	for _, action := range []string{actionDetail, actionPrice, actionDepth, actionNews} {
		items = append(items, line.NewPostbackItem(
			action,
			q.Symbol+","+action,
			q.Name+" "+action,
			"",
		))
	}
	return line.NewTextMessageWithQuickReply(text, line.QuickReply{Items: items})
}
