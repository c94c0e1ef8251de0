package line

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
)

// Events receives decoded webhook events. Implementations must not
// panic across the boundary; the server recovers and answers 200 so the
// platform does not retry-storm a buggy handler.
type Events interface {
	OnText(ctx context.Context, ev TextEvent)
	OnPostback(ctx context.Context, ev PostbackEvent)
}

type WebhookOptions struct {
	ChannelSecret string
	Handler       Events
	LogPrefix     string

	// StaticDir, when non-empty, is served under /static/ (chart
	// artifacts, quick-reply icons).
	StaticDir string
}

// NewWebhookMux builds the HTTP mux for the bot: POST /callback plus
// optional static file serving.
func NewWebhookMux(opts WebhookOptions) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /callback", func(w http.ResponseWriter, r *http.Request) {
		handleCallback(w, r, opts)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	if strings.TrimSpace(opts.StaticDir) != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}
	return mux
}

func handleCallback(w http.ResponseWriter, r *http.Request, opts WebhookOptions) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	if !VerifySignature(opts.ChannelSecret, body, r.Header.Get("X-Line-Signature")) {
		log.Printf("%s invalid webhook signature", opts.LogPrefix)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	events, err := parseWebhookBody(body)
	if err != nil {
		log.Printf("%s webhook decode failed: %v", opts.LogPrefix, err)
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	for _, ev := range events {
		dispatchEvent(r.Context(), opts, ev)
	}

	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

// VerifySignature checks the platform's body signature:
// base64(HMAC-SHA256(channel secret, raw body)).
func VerifySignature(channelSecret string, body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if channelSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(want), []byte(signature)) == 1
}

type webhookEvent struct {
	Type       string `json:"type"`
	ReplyToken string `json:"replyToken"`
	Source     struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
	} `json:"source"`
	Message struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
	Postback struct {
		Data string `json:"data"`
	} `json:"postback"`
}

// parseWebhookBody decodes a webhook delivery. Unknown event and message
// types are kept in the slice and ignored at dispatch.
func parseWebhookBody(body []byte) ([]webhookEvent, error) {
	var parsed struct {
		Events []webhookEvent `json:"events"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return parsed.Events, nil
}

func dispatchEvent(ctx context.Context, opts WebhookOptions, ev webhookEvent) {
	if opts.Handler == nil {
		return
	}
	userID := strings.TrimSpace(ev.Source.UserID)
	if userID == "" {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("%s handler panic: user=%s type=%s err=%v", opts.LogPrefix, userID, ev.Type, rec)
		}
	}()

	switch ev.Type {
	case "message":
		if ev.Message.Type != "text" {
			return
		}
		opts.Handler.OnText(ctx, TextEvent{
			UserID:     userID,
			Text:       ev.Message.Text,
			ReplyToken: ev.ReplyToken,
		})
	case "postback":
		opts.Handler.OnPostback(ctx, PostbackEvent{
			UserID:     userID,
			Data:       ev.Postback.Data,
			ReplyToken: ev.ReplyToken,
		})
	}
}
