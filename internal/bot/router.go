// Package bot routes inbound platform events through the per-user
// conversation state machine: admission gate, active mode, and the
// prediction pipeline session.
package bot

import (
	"context"
	"log"
	"strings"
	"time"

	"susu/bot/internal/bot/state"
	"susu/bot/internal/line"
	"susu/bot/internal/market"
	"susu/bot/internal/news"
	"susu/bot/internal/predict"
)

// MarketData is the quote/history collaborator.
type MarketData interface {
	Quote(ctx context.Context, symbol string) (market.Quote, error)
	History(ctx context.Context, symbol string, months int) ([]market.Bar, error)
	LatestBar(ctx context.Context, symbol string) (market.Bar, error)
}

// Completer is the conversational AI collaborator.
type Completer interface {
	Complete(ctx context.Context, userID, text string) (string, error)
	Reset(userID string)
}

// NewsSource feeds the 相關新聞 postback view.
type NewsSource interface {
	Headlines(ctx context.Context, symbol string, limit int) ([]news.Headline, error)
}

// Replier sends outgoing messages for one inbound event.
type Replier interface {
	Reply(ctx context.Context, replyToken string, msgs ...line.Message) error
}

// Trainer matches predict.Train; swapped for a stub in tests so router
// tests don't spend time on real gradient descent.
type Trainer func(X [][]float64, y []int, classes int, opts predict.TrainOptions) (*predict.Model, predict.History, error)

type Options struct {
	Market   MarketData
	Chat     Completer
	News     NewsSource
	Strategy predict.Strategy
	Replier  Replier

	// BaseURL is the public https origin serving StaticDir under
	// /static/; empty disables chart links.
	BaseURL   string
	StaticDir string

	ReclaimDelay  time.Duration
	HistoryMonths int
	LogPrefix     string

	Train       Trainer
	RenderChart func(predict.History, string) error
}

func (o Options) withDefaults() Options {
	out := o
	if out.ReclaimDelay <= 0 {
		out.ReclaimDelay = 60 * time.Second
	}
	if out.HistoryMonths <= 0 {
		out.HistoryMonths = 6
	}
	if strings.TrimSpace(out.LogPrefix) == "" {
		out.LogPrefix = "susu-bot"
	}
	if out.Train == nil {
		out.Train = predict.Train
	}
	if out.RenderChart == nil {
		out.RenderChart = predict.RenderAccuracyChart
	}
	return out
}

// Router implements line.Events. Events for different users run
// concurrently; the gate serializes each single user.
type Router struct {
	opts Options

	gate      *state.Gate
	modes     *state.ModeStore
	training  *state.TrainingStore
	reclaimer *state.Reclaimer
}

func NewRouter(opts Options) *Router {
	r := &Router{
		opts:     opts.withDefaults(),
		gate:     state.NewGate(),
		modes:    state.NewModeStore(),
		training: state.NewTrainingStore(),
	}
	// The reclaimer only reopens the gate; it never touches mode or
	// session state, so an in-flight dispatch keeps its context.
	r.reclaimer = state.NewReclaimer(func(userID string) {
		log.Printf("[%s] reclaiming stuck gate for user=%s", r.opts.LogPrefix, userID)
		r.gate.SetOpen(userID, true)
	})
	return r
}

// OnText runs one inbound text event through admission and dispatch.
func (r *Router) OnText(ctx context.Context, ev line.TextEvent) {
	userID := strings.TrimSpace(ev.UserID)
	text := strings.TrimSpace(ev.Text)
	if userID == "" || text == "" {
		return
	}

	if !r.gate.TryAcquire(userID) {
		r.reclaimer.Arm(userID, r.opts.ReclaimDelay)
		r.reply(ctx, ev.ReplyToken, line.NewTextMessage(msgBusy))
		return
	}

	// Reopen unconditionally: no handler branch, error or panic may
	// leave the user stuck.
	defer r.gate.SetOpen(userID, true)
	defer func() {
		if p := recover(); p != nil {
			log.Printf("[%s] panic handling text for user=%s: %v", r.opts.LogPrefix, userID, p)
			r.reply(ctx, ev.ReplyToken, line.NewTextMessage(msgFailure))
		}
	}()

	switch mode := r.modes.Get(userID); mode {
	case state.ModeFetch:
		r.handleFetch(ctx, userID, text, ev.ReplyToken)
	case state.ModeChat:
		r.handleChat(ctx, userID, text, ev.ReplyToken)
	case state.ModePredict:
		r.handlePredict(ctx, userID, text, ev.ReplyToken)
	default:
		r.handleIdle(ctx, userID, text, ev.ReplyToken)
	}
}

// handleIdle interprets the token as a menu selection. Anything else is
// a no-op ping; the deferred reopen covers it.
func (r *Router) handleIdle(ctx context.Context, userID, text, replyToken string) {
	switch text {
	case "1", "叔叔我要報", "叔叔我要抱":
		r.modes.Set(userID, state.ModeFetch)
		r.reply(ctx, replyToken, line.NewTextMessage(msgFetchPrompt))
	case "2", "我要撩叔叔", "我要聊叔叔":
		r.modes.Set(userID, state.ModeChat)
		r.reply(ctx, replyToken, line.NewTextMessage(msgChatPrompt))
	case "3", "叔叔幫我分析":
		r.modes.Set(userID, state.ModePredict)
		r.reply(ctx, replyToken, line.NewTextMessage(msgPredictPrompt))
	}
}

// exitToIdle clears every per-mode leftover for the user.
func (r *Router) exitToIdle(ctx context.Context, userID, replyToken string) {
	r.training.Clear(userID)
	r.modes.Reset(userID)
	r.reply(ctx, replyToken, line.NewTextMessage(msgExit))
}

func (r *Router) reply(ctx context.Context, replyToken string, msgs ...line.Message) {
	if err := r.opts.Replier.Reply(ctx, replyToken, msgs...); err != nil {
		log.Printf("[%s] reply failed: %v", r.opts.LogPrefix, err)
	}
}

// isTicker is the exchange's symbol shape: exactly four digits.
func isTicker(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
