package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"susu/bot/internal/bot/state"
	"susu/bot/internal/line"
	"susu/bot/internal/market"
	"susu/bot/internal/news"
	"susu/bot/internal/predict"
)

type fakeMarket struct {
	quotes   map[string]market.Quote
	history  map[string][]market.Bar
	latest   map[string]market.Bar
	quoteErr error
	histErr  error
}

func (f *fakeMarket) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	if f.quoteErr != nil {
		return market.Quote{}, f.quoteErr
	}
	q, ok := f.quotes[symbol]
	if !ok {
		return market.Quote{}, market.ErrNotFound
	}
	return q, nil
}

func (f *fakeMarket) History(ctx context.Context, symbol string, months int) ([]market.Bar, error) {
	if f.histErr != nil {
		return nil, f.histErr
	}
	return f.history[symbol], nil
}

func (f *fakeMarket) LatestBar(ctx context.Context, symbol string) (market.Bar, error) {
	b, ok := f.latest[symbol]
	if !ok {
		return market.Bar{}, market.ErrNotFound
	}
	return b, nil
}

type fakeChat struct {
	err    error
	resets int
}

func (f *fakeChat) Complete(ctx context.Context, userID, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "叔叔聽到了：" + text, nil
}

func (f *fakeChat) Reset(userID string) { f.resets++ }

type fakeNews struct{ items []news.Headline }

func (f *fakeNews) Headlines(ctx context.Context, symbol string, limit int) ([]news.Headline, error) {
	if len(f.items) == 0 {
		return nil, errors.New("no headlines")
	}
	return f.items, nil
}

type fakeReplier struct {
	mu      sync.Mutex
	replies [][]line.Message
}

func (f *fakeReplier) Reply(ctx context.Context, replyToken string, msgs ...line.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, msgs)
	return nil
}

func (f *fakeReplier) last(t *testing.T) []line.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		t.Fatalf("no reply was sent")
	}
	return f.replies[len(f.replies)-1]
}

func (f *fakeReplier) lastText(t *testing.T) string {
	t.Helper()
	msgs := f.last(t)
	tm, ok := msgs[0].(line.TextMessage)
	if !ok {
		t.Fatalf("first message is %T, want TextMessage", msgs[0])
	}
	return tm.Text
}

func (f *fakeReplier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replies)
}

func testBars() []market.Bar {
	bars := make([]market.Bar, 0, 8)
	for i := 0; i < 8; i++ {
		p := 100 + float64(i)
		bars = append(bars, market.Bar{
			Date: fmt.Sprintf("115/01/%02d", i+1),
			Open: p, High: p + 2, Low: p - 1, Close: p + 1, Volume: 1000 + float64(i),
		})
	}
	return bars
}

func newTestRouter(t *testing.T, m *fakeMarket, c *fakeChat, n *fakeNews) (*Router, *fakeReplier) {
	t.Helper()
	replier := &fakeReplier{}
	r := NewRouter(Options{
		Market:       m,
		Chat:         c,
		News:         n,
		Strategy:     OHLCV5Strategy(),
		Replier:      replier,
		BaseURL:      "https://bot.example.com",
		StaticDir:    t.TempDir(),
		ReclaimDelay: 20 * time.Millisecond,
		LogPrefix:    "router-test",
	})
	return r, replier
}

// OHLCV5Strategy avoids repeating the literal in every test.
func OHLCV5Strategy() predict.Strategy { return predict.OHLCV5{} }

func send(r *Router, user, text string) {
	r.OnText(context.Background(), line.TextEvent{UserID: user, Text: text, ReplyToken: "tok"})
}

func assertOpen(t *testing.T, r *Router, user string) {
	t.Helper()
	if !r.gate.IsOpen(user) {
		t.Fatalf("gate left closed for %s", user)
	}
}

func TestIdleEntryTokens(t *testing.T) {
	cases := []struct {
		token string
		want  state.Mode
	}{
		{"1", state.ModeFetch},
		{"叔叔我要報", state.ModeFetch},
		{"叔叔我要抱", state.ModeFetch},
		{"2", state.ModeChat},
		{"我要撩叔叔", state.ModeChat},
		{"我要聊叔叔", state.ModeChat},
		{"3", state.ModePredict},
		{"叔叔幫我分析", state.ModePredict},
	}
	for _, tc := range cases {
		r, replier := newTestRouter(t, &fakeMarket{}, &fakeChat{}, nil)
		send(r, "user-a", tc.token)
		if got := r.modes.Get("user-a"); got != tc.want {
			t.Fatalf("token %q: mode = %v, want %v", tc.token, got, tc.want)
		}
		if replier.count() != 1 {
			t.Fatalf("token %q: expected one prompt reply", tc.token)
		}
		assertOpen(t, r, "user-a")
	}
}

func TestIdleUnknownTokenIsNoOp(t *testing.T) {
	r, replier := newTestRouter(t, &fakeMarket{}, &fakeChat{}, nil)
	send(r, "user-a", "whatever")
	if r.modes.Get("user-a") != state.ModeIdle {
		t.Fatalf("unknown token must not change mode")
	}
	if replier.count() != 0 {
		t.Fatalf("unknown token must not reply")
	}
	assertOpen(t, r, "user-a")
}

func TestBusyPath(t *testing.T) {
	r, replier := newTestRouter(t, &fakeMarket{}, &fakeChat{}, nil)
	r.gate.SetOpen("user-a", false) // simulate in-flight dispatch

	send(r, "user-a", "1")

	if got := replier.lastText(t); got != msgBusy {
		t.Fatalf("expected busy reply, got %q", got)
	}
	if r.modes.Get("user-a") != state.ModeIdle {
		t.Fatalf("busy path must not mutate mode")
	}
	if r.gate.IsOpen("user-a") {
		t.Fatalf("busy path must not reopen the gate")
	}
	if !r.reclaimer.Pending("user-a") {
		t.Fatalf("busy path must arm the reclaimer")
	}

	// The reclaimer eventually frees the user.
	deadline := time.Now().Add(2 * time.Second)
	for !r.gate.IsOpen("user-a") {
		if time.Now().After(deadline) {
			t.Fatalf("reclaimer never reopened the gate")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFetchScenario(t *testing.T) {
	m := &fakeMarket{quotes: map[string]market.Quote{
		"2330": {Symbol: "2330", Name: "台積電", LastPrice: "600"},
	}}
	r, replier := newTestRouter(t, m, &fakeChat{}, nil)

	send(r, "user-a", "1")
	if !strings.Contains(replier.lastText(t), "股票代號") {
		t.Fatalf("expected ticker prompt, got %q", replier.lastText(t))
	}

	send(r, "user-a", "abcd")
	if replier.lastText(t) != msgFetchInvalid {
		t.Fatalf("expected invalid-ticker reminder, got %q", replier.lastText(t))
	}
	if r.modes.Get("user-a") != state.ModeFetch {
		t.Fatalf("invalid ticker must keep fetch mode")
	}
	assertOpen(t, r, "user-a")

	send(r, "user-a", "2330")
	msgs := replier.last(t)
	tm := msgs[0].(line.TextMessage)
	if !strings.Contains(tm.Text, "台積電") {
		t.Fatalf("expected quote menu, got %q", tm.Text)
	}
	if tm.QuickReply == nil || len(tm.QuickReply.Items) != 4 {
		t.Fatalf("expected 4 quick-reply actions, got %+v", tm.QuickReply)
	}
	if tm.QuickReply.Items[0].Action.Data != "2330,"+actionDetail {
		t.Fatalf("unexpected postback data: %q", tm.QuickReply.Items[0].Action.Data)
	}
	if r.modes.Get("user-a") != state.ModeIdle {
		t.Fatalf("successful lookup must end fetch mode")
	}
	assertOpen(t, r, "user-a")
}

func TestFetchUnknownSymbol(t *testing.T) {
	r, replier := newTestRouter(t, &fakeMarket{}, &fakeChat{}, nil)
	send(r, "user-a", "1")
	send(r, "user-a", "9999")
	if replier.lastText(t) != msgFetchInvalid {
		t.Fatalf("expected invalid-ticker reminder, got %q", replier.lastText(t))
	}
	if r.modes.Get("user-a") != state.ModeFetch {
		t.Fatalf("unknown symbol must keep fetch mode")
	}
	assertOpen(t, r, "user-a")
}

func TestFetchCollaboratorErrorReopensGate(t *testing.T) {
	m := &fakeMarket{quoteErr: errors.New("endpoint down")}
	r, replier := newTestRouter(t, m, &fakeChat{}, nil)
	send(r, "user-a", "1")
	send(r, "user-a", "2330")
	if replier.lastText(t) != msgFailure {
		t.Fatalf("expected failure reply, got %q", replier.lastText(t))
	}
	assertOpen(t, r, "user-a")
}

func TestUniversalExit(t *testing.T) {
	for _, token := range []string{"1", "2", "3"} {
		r, replier := newTestRouter(t, &fakeMarket{}, &fakeChat{}, nil)
		send(r, "user-a", token)
		send(r, "user-a", "0")
		if r.modes.Get("user-a") != state.ModeIdle {
			t.Fatalf("mode %q: expected idle after exit", token)
		}
		if replier.lastText(t) != msgExit {
			t.Fatalf("mode %q: expected exit reply, got %q", token, replier.lastText(t))
		}
		if _, ok := r.training.Get("user-a"); ok {
			t.Fatalf("mode %q: expected cleared training session", token)
		}
		assertOpen(t, r, "user-a")
	}
}

func TestModeEntryTokenInsideModeIsPayload(t *testing.T) {
	r, _ := newTestRouter(t, &fakeMarket{}, &fakeChat{}, nil)
	send(r, "user-a", "2") // chat mode
	send(r, "user-a", "3") // must stay a chat message, not switch modes
	if r.modes.Get("user-a") != state.ModeChat {
		t.Fatalf("entry token inside a mode must not switch modes")
	}
	assertOpen(t, r, "user-a")
}

func TestChatFlow(t *testing.T) {
	c := &fakeChat{}
	r, replier := newTestRouter(t, &fakeMarket{}, c, nil)

	send(r, "user-a", "2")
	send(r, "user-a", "叔叔你好")
	got := replier.lastText(t)
	if !strings.Contains(got, "叔叔聽到了：叔叔你好") || !strings.Contains(got, msgChatHint) {
		t.Fatalf("unexpected chat reply: %q", got)
	}

	send(r, "user-a", "r")
	if c.resets != 1 {
		t.Fatalf("expected one reset, got %d", c.resets)
	}
	if !strings.Contains(replier.lastText(t), msgChatReset) {
		t.Fatalf("expected reset reply, got %q", replier.lastText(t))
	}
	assertOpen(t, r, "user-a")
}

func TestChatErrorReopensGate(t *testing.T) {
	c := &fakeChat{err: errors.New("llm down")}
	r, replier := newTestRouter(t, &fakeMarket{}, c, nil)
	send(r, "user-a", "2")
	send(r, "user-a", "hello")
	if replier.lastText(t) != msgFailure {
		t.Fatalf("expected failure reply, got %q", replier.lastText(t))
	}
	if r.modes.Get("user-a") != state.ModeChat {
		t.Fatalf("chat error must keep chat mode")
	}
	assertOpen(t, r, "user-a")
}

func TestPredictFullScenario(t *testing.T) {
	m := &fakeMarket{
		history: map[string][]market.Bar{"2330": testBars()},
		latest:  map[string]market.Bar{"2330": {Open: 108, High: 110, Low: 107, Close: 109, Volume: 1200}},
	}
	r, replier := newTestRouter(t, m, &fakeChat{}, nil)

	send(r, "user-a", "3")
	send(r, "user-a", "2330")
	if replier.lastText(t) != msgPredictEpochsPrompt {
		t.Fatalf("expected epoch prompt, got %q", replier.lastText(t))
	}
	sess, ok := r.training.Get("user-a")
	if !ok || !sess.Ready || sess.Ticker != "2330" || len(sess.X) == 0 {
		t.Fatalf("expected ready session, got %+v (ok=%v)", sess, ok)
	}
	assertOpen(t, r, "user-a")

	send(r, "user-a", "20")
	msgs := replier.last(t)
	text := msgs[0].(line.TextMessage).Text
	if !strings.Contains(text, "2330") || !strings.Contains(text, "預測") {
		t.Fatalf("unexpected prediction reply: %q", text)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected text + chart image, got %d messages", len(msgs))
	}
	img := msgs[1].(line.ImageMessage)
	if !strings.HasPrefix(img.OriginalContentURL, "https://bot.example.com/static/accuracy-") {
		t.Fatalf("unexpected chart url: %q", img.OriginalContentURL)
	}

	if _, ok := r.training.Get("user-a"); ok {
		t.Fatalf("session must be cleared after the pipeline fires")
	}
	if r.modes.Get("user-a") != state.ModeIdle {
		t.Fatalf("expected idle after prediction")
	}
	assertOpen(t, r, "user-a")
}

func TestPredictEmptyHistoryRetries(t *testing.T) {
	m := &fakeMarket{history: map[string][]market.Bar{}}
	r, replier := newTestRouter(t, m, &fakeChat{}, nil)
	send(r, "user-a", "3")
	send(r, "user-a", "2330")
	if replier.lastText(t) != msgPredictNoData {
		t.Fatalf("expected no-data reply, got %q", replier.lastText(t))
	}
	if _, ok := r.training.Get("user-a"); ok {
		t.Fatalf("no session may exist without data")
	}
	if r.modes.Get("user-a") != state.ModePredict {
		t.Fatalf("empty history must keep predict mode for a retry")
	}
	assertOpen(t, r, "user-a")
}

func TestPredictInvalidTokens(t *testing.T) {
	m := &fakeMarket{
		history: map[string][]market.Bar{"2330": testBars()},
	}
	r, replier := newTestRouter(t, m, &fakeChat{}, nil)
	send(r, "user-a", "3")

	send(r, "user-a", "abc")
	if replier.lastText(t) != msgFetchInvalid {
		t.Fatalf("expected ticker reminder, got %q", replier.lastText(t))
	}

	send(r, "user-a", "2330")
	for _, bad := range []string{"many", "1000", "0050x", "-1"} {
		send(r, "user-a", bad)
		if replier.lastText(t) != msgPredictBadEpochs {
			t.Fatalf("token %q: expected epoch reminder, got %q", bad, replier.lastText(t))
		}
		if _, ok := r.training.Get("user-a"); !ok {
			t.Fatalf("token %q: invalid epochs must keep the session", bad)
		}
		assertOpen(t, r, "user-a")
	}
}

func TestPredictLatestBarFailureClearsSession(t *testing.T) {
	m := &fakeMarket{
		history: map[string][]market.Bar{"2330": testBars()},
		latest:  map[string]market.Bar{}, // LatestBar will fail
	}
	r, replier := newTestRouter(t, m, &fakeChat{}, nil)
	send(r, "user-a", "3")
	send(r, "user-a", "2330")
	send(r, "user-a", "5")

	if replier.lastText(t) != msgFailure {
		t.Fatalf("expected failure reply, got %q", replier.lastText(t))
	}
	if _, ok := r.training.Get("user-a"); ok {
		t.Fatalf("session must be consumed even on failure")
	}
	if r.modes.Get("user-a") != state.ModeIdle {
		t.Fatalf("expected idle after consumed session")
	}
	assertOpen(t, r, "user-a")
}

type panickyChat struct{}

func (panickyChat) Complete(ctx context.Context, userID, text string) (string, error) {
	panic("collaborator bug")
}
func (panickyChat) Reset(userID string) {}

func TestPanicInHandlerReopensGate(t *testing.T) {
	r, replier := newTestRouter(t, &fakeMarket{}, &fakeChat{}, nil)
	r.opts.Chat = panickyChat{}
	send(r, "user-a", "2")
	send(r, "user-a", "boom")
	if replier.lastText(t) != msgFailure {
		t.Fatalf("expected failure reply, got %q", replier.lastText(t))
	}
	assertOpen(t, r, "user-a")
}

func TestUsersAreIndependent(t *testing.T) {
	r, _ := newTestRouter(t, &fakeMarket{}, &fakeChat{}, nil)
	r.gate.SetOpen("user-a", false)
	send(r, "user-b", "2")
	if r.modes.Get("user-b") != state.ModeChat {
		t.Fatalf("user-b must not be affected by user-a's closed gate")
	}
	if r.modes.Get("user-a") != state.ModeIdle {
		t.Fatalf("user-a state must be untouched")
	}
}

func TestPostbackViews(t *testing.T) {
	q := market.Quote{
		Symbol: "2330", Name: "台積電", FullName: "台灣積體電路製造股份有限公司",
		Exchange: "tse", Date: "20260828", MatchTime: "13:30:00",
		Open: "598", High: "602", Low: "596", PrevClose: "597",
		LimitUp: "656", LimitDown: "538",
		LastPrice: "600", LastVolume: "120", AccVolume: "35000",
		AskPrices: "600_601_602_603_604_", AskVolumes: "10_20_30_40_50_",
		BidPrices: "599_598_597_596_595_", BidVolumes: "15_25_35_45_55_",
	}
	m := &fakeMarket{quotes: map[string]market.Quote{"2330": q}}
	n := &fakeNews{items: []news.Headline{
		{Title: "台積電法說會登場", Link: "https://example.com/n1"},
	}}
	r, replier := newTestRouter(t, m, &fakeChat{}, n)

	cases := []struct {
		action string
		want   []string
	}{
		{actionDetail, []string{"股票代號：2330", "公司全名：台灣積體電路製造股份有限公司", "跌停價：538"}},
		{actionPrice, []string{"當盤成交價 600 元", "當盤成交量 120 張"}},
		{actionDepth, []string{"買1 599（15）", "賣5 604（50）"}},
		{actionNews, []string{"相關新聞", "台積電法說會登場", "https://example.com/n1"}},
	}
	for _, tc := range cases {
		r.gate.SetOpen("user-a", false) // views must reopen regardless
		r.OnPostback(context.Background(), line.PostbackEvent{
			UserID: "user-a", Data: "2330," + tc.action, ReplyToken: "tok",
		})
		got := replier.lastText(t)
		for _, want := range tc.want {
			if !strings.Contains(got, want) {
				t.Fatalf("action %q: reply %q missing %q", tc.action, got, want)
			}
		}
		assertOpen(t, r, "user-a")
	}
}

func TestPostbackUnknownActionIsSilent(t *testing.T) {
	m := &fakeMarket{quotes: map[string]market.Quote{"2330": {Symbol: "2330"}}}
	r, replier := newTestRouter(t, m, &fakeChat{}, nil)
	r.gate.SetOpen("user-a", false)
	r.OnPostback(context.Background(), line.PostbackEvent{
		UserID: "user-a", Data: "2330,陳年舊按鈕", ReplyToken: "tok",
	})
	if replier.count() != 0 {
		t.Fatalf("stale action must not reply")
	}
	assertOpen(t, r, "user-a")
}

func TestPostbackErrorRepliesFailure(t *testing.T) {
	m := &fakeMarket{quoteErr: errors.New("endpoint down")}
	r, replier := newTestRouter(t, m, &fakeChat{}, nil)
	r.OnPostback(context.Background(), line.PostbackEvent{
		UserID: "user-a", Data: "2330," + actionDetail, ReplyToken: "tok",
	})
	if replier.lastText(t) != msgFailure {
		t.Fatalf("expected failure reply, got %q", replier.lastText(t))
	}
	assertOpen(t, r, "user-a")
}
