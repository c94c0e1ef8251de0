package bot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"susu/bot/internal/bot/state"
	"susu/bot/internal/line"
	"susu/bot/internal/predict"
)

const (
	trainBatchSize       = 5
	trainValidationSplit = 0.25
)

// handlePredict is the two-step pipeline: a ticker readies the training
// session, an epoch count consumes it. The session is cleared on every
// path that leaves the second step.
func (r *Router) handlePredict(ctx context.Context, userID, text, replyToken string) {
	if text == "0" {
		r.exitToIdle(ctx, userID, replyToken)
		return
	}

	if sess, ok := r.training.Get(userID); ok {
		r.handleEpochs(ctx, userID, sess, text, replyToken)
		return
	}
	r.handleTicker(ctx, userID, text, replyToken)
}

func (r *Router) handleTicker(ctx context.Context, userID, text, replyToken string) {
	if !isTicker(text) {
		r.reply(ctx, replyToken, line.NewTextMessage(msgFetchInvalid))
		return
	}

	bars, err := r.opts.Market.History(ctx, text, r.opts.HistoryMonths)
	if err != nil {
		log.Printf("[%s] history %s failed: %v", r.opts.LogPrefix, text, err)
		r.reply(ctx, replyToken, line.NewTextMessage(msgFailure))
		return
	}
	if len(bars) == 0 {
		r.reply(ctx, replyToken, line.NewTextMessage(msgPredictNoData))
		return
	}

	// No shuffling: the split must keep the most recent rows as the
	// validation set.
	X, y, err := r.opts.Strategy.Prepare(bars, false)
	if err != nil {
		log.Printf("[%s] prepare %s failed: %v", r.opts.LogPrefix, text, err)
		r.reply(ctx, replyToken, line.NewTextMessage(msgPredictNoData))
		return
	}

	r.training.Put(userID, state.Session{Ticker: text, X: X, Y: y, Ready: true})
	r.reply(ctx, replyToken, line.NewTextMessage(msgPredictEpochsPrompt))
}

func (r *Router) handleEpochs(ctx context.Context, userID string, sess state.Session, text, replyToken string) {
	epochs, ok := parseEpochs(text)
	if !ok {
		r.reply(ctx, replyToken, line.NewTextMessage(msgPredictBadEpochs))
		return
	}

	// The session is consumed exactly once, whatever happens next.
	defer func() {
		r.training.Clear(userID)
		r.modes.Reset(userID)
	}()

	model, hist, err := r.opts.Train(sess.X, sess.Y, r.opts.Strategy.Classes(), predict.TrainOptions{
		Epochs:          epochs,
		BatchSize:       trainBatchSize,
		ValidationSplit: trainValidationSplit,
	})
	if err != nil {
		log.Printf("[%s] train %s failed: %v", r.opts.LogPrefix, sess.Ticker, err)
		r.reply(ctx, replyToken, line.NewTextMessage(msgFailure))
		return
	}

	chartName := chartFileName(userID)
	chartOK := true
	if err := r.opts.RenderChart(hist, filepath.Join(r.opts.StaticDir, chartName)); err != nil {
		log.Printf("[%s] chart render failed: %v", r.opts.LogPrefix, err)
		chartOK = false
	}

	latest, err := r.opts.Market.LatestBar(ctx, sess.Ticker)
	if err != nil {
		log.Printf("[%s] latest bar %s failed: %v", r.opts.LogPrefix, sess.Ticker, err)
		r.reply(ctx, replyToken, line.NewTextMessage(msgFailure))
		return
	}

	row, err := r.opts.Strategy.TestRow(sess.X, latest)
	if err != nil {
		log.Printf("[%s] test row %s failed: %v", r.opts.LogPrefix, sess.Ticker, err)
		r.reply(ctx, replyToken, line.NewTextMessage(msgFailure))
		return
	}
	class, err := model.Predict(row)
	if err != nil {
		log.Printf("[%s] predict %s failed: %v", r.opts.LogPrefix, sess.Ticker, err)
		r.reply(ctx, replyToken, line.NewTextMessage(msgFailure))
		return
	}
	label, err := r.opts.Strategy.Label(class)
	if err != nil {
		// Label tables are total by construction; this is a programmer
		// error, not a market condition.
		log.Printf("[%s] label mapping failed for class=%d: %v", r.opts.LogPrefix, class, err)
		r.reply(ctx, replyToken, line.NewTextMessage(msgFailure))
		return
	}

	msgs := []line.Message{line.NewTextMessage(predictionSummary(sess.Ticker, label, hist))}
	if chartOK && strings.TrimSpace(r.opts.BaseURL) != "" {
		msgs = append(msgs, line.NewImageMessage(strings.TrimRight(r.opts.BaseURL, "/")+"/static/"+chartName))
	}
	r.reply(ctx, replyToken, msgs...)
}

func predictionSummary(ticker, label string, hist predict.History) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s 明天開盤的預測：%s", ticker, label)
	if n := len(hist.TrainAcc); n > 0 {
		fmt.Fprintf(&b, "\n訓練準確率 %.1f%%", hist.TrainAcc[n-1]*100)
	}
	if n := len(hist.ValAcc); n > 0 {
		fmt.Fprintf(&b, "，驗證準確率 %.1f%%", hist.ValAcc[n-1]*100)
	}
	return b.String()
}

// parseEpochs accepts a 1–3 digit count, so 1..999.
func parseEpochs(s string) (int, bool) {
	if len(s) < 1 || len(s) > 3 {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// chartFileName keeps one chart artifact per user without exposing the
// raw user id in a public URL.
func chartFileName(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return "accuracy-" + hex.EncodeToString(sum[:8]) + ".png"
}
