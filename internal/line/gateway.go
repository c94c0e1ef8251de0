package line

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// The dev gateway consumes the same events the webhook would receive,
// but over a websocket stream, so the bot can run without a public
// HTTPS endpoint. Frames are single JSON-encoded webhook events.

type GatewayOptions struct {
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	LogPrefix        string
}

func (o GatewayOptions) withDefaults() GatewayOptions {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 500 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 10 * time.Second
	}
	return o
}

// RunGateway connects to wsURL and dispatches events until ctx is done,
// reconnecting with capped backoff on connection loss.
func RunGateway(ctx context.Context, wsURL string, handler Events, opts GatewayOptions) error {
	if strings.TrimSpace(wsURL) == "" {
		return fmt.Errorf("wsURL is required")
	}
	if handler == nil {
		return fmt.Errorf("handler is required")
	}

	opts = opts.withDefaults()
	backoff := opts.InitialBackoff

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := runGatewayOnce(ctx, wsURL, handler, opts)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.Printf("%s gateway disconnected: %v (reconnect in %s)", opts.LogPrefix, err, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > opts.MaxBackoff {
			backoff = opts.MaxBackoff
		}
	}
}

func runGatewayOnce(ctx context.Context, wsURL string, handler Events, opts GatewayOptions) error {
	dialer := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	var writeMu sync.Mutex
	sendPong := func() error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
		return conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`))
	}

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"), time.Now().Add(2*time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()
	defer close(stop)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var ev webhookEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			log.Printf("%s gateway frame decode failed: %v", opts.LogPrefix, err)
			continue
		}
		if ev.Type == "ping" {
			if err := sendPong(); err != nil {
				return err
			}
			continue
		}
		dispatchEvent(ctx, WebhookOptions{Handler: handler, LogPrefix: opts.LogPrefix}, ev)
	}
}
