// susubot is the stock-bot process: webhook (or dev-gateway) in,
// Messaging API replies out.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"susu/bot/internal/bot"
	"susu/bot/internal/chat"
	"susu/bot/internal/config"
	"susu/bot/internal/line"
	"susu/bot/internal/market"
	"susu/bot/internal/news"
	"susu/bot/internal/predict"
	"susu/bot/internal/search"
)

const logPrefix = "susu-bot"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix("[" + logPrefix + "] ")

	config.LoadDotEnv(logPrefix)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	router, err := buildRouter(cfg)
	if err != nil {
		log.Fatalf("wiring: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.GatewayURL != "" {
		runGateway(ctx, cfg, router)
		return
	}
	runWebhook(ctx, cfg, router)
}

func buildRouter(cfg config.Config) (*bot.Router, error) {
	replier, err := line.NewClient(cfg.MessagingAPIBase, cfg.ChannelAccessToken)
	if err != nil {
		return nil, err
	}

	marketClient, err := market.NewClient(market.ClientOptions{})
	if err != nil {
		return nil, err
	}

	searcher, err := search.NewClient(search.ClientOptions{})
	if err != nil {
		return nil, err
	}

	chatSvc := chat.NewService(chat.Config{
		BaseURL:   cfg.ChatBaseURL,
		APIKey:    cfg.ChatAPIKey,
		Model:     cfg.ChatModel,
		Adjective: cfg.Adjective,
		Role:      cfg.Role,
		LogPrefix: logPrefix,
	}, nil, searcher)

	return bot.NewRouter(bot.Options{
		Market:       marketClient,
		Chat:         chatSvc,
		News:         news.NewClient(news.ClientOptions{}),
		Strategy:     predict.OHLCV5{},
		Replier:      replier,
		BaseURL:      cfg.BaseURL,
		StaticDir:    cfg.StaticDir,
		ReclaimDelay: cfg.ReclaimDelay,
		LogPrefix:    logPrefix,
	}), nil
}

func runWebhook(ctx context.Context, cfg config.Config, router *bot.Router) {
	mux := line.NewWebhookMux(line.WebhookOptions{
		ChannelSecret: cfg.ChannelSecret,
		Handler:       router,
		LogPrefix:     "[" + logPrefix + "]",
		StaticDir:     cfg.StaticDir,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("webhook listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server: %v", err)
	}
	log.Printf("shut down")
}

func runGateway(ctx context.Context, cfg config.Config, router *bot.Router) {
	log.Printf("consuming events from gateway %s", cfg.GatewayURL)
	err := line.RunGateway(ctx, cfg.GatewayURL, router, line.GatewayOptions{
		LogPrefix: "[" + logPrefix + "]",
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("gateway: %v", err)
	}
	log.Printf("shut down")
}
