package bot

import (
	"context"
	"log"

	"susu/bot/internal/line"
)

// handleChat forwards the token to the AI collaborator. "r" wipes the
// user's memory, "0" leaves the mode (history survives until the next
// "r" so the user can pick the thread back up).
func (r *Router) handleChat(ctx context.Context, userID, text, replyToken string) {
	switch text {
	case "0":
		r.exitToIdle(ctx, userID, replyToken)
	case "r", "R":
		r.opts.Chat.Reset(userID)
		r.reply(ctx, replyToken, line.NewTextMessage(msgChatReset+chatSeparator+msgChatHint))
	default:
		answer, err := r.opts.Chat.Complete(ctx, userID, text)
		if err != nil {
			log.Printf("[%s] chat completion failed for user=%s: %v", r.opts.LogPrefix, userID, err)
			r.reply(ctx, replyToken, line.NewTextMessage(msgFailure))
			return
		}
		r.reply(ctx, replyToken, line.NewTextMessage(answer+chatSeparator+msgChatHint))
	}
}
