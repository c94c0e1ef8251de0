package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// LINE-style messaging platform credentials.
	ChannelSecret      string
	ChannelAccessToken string
	MessagingAPIBase   string

	// Webhook server.
	Addr      string
	BaseURL   string // public https base used for image URLs; empty disables image replies
	StaticDir string

	// Dev gateway. When set, events are consumed over websocket instead
	// of the public webhook.
	GatewayURL string

	// OpenAI-compatible chat endpoint.
	ChatBaseURL string
	ChatAPIKey  string
	ChatModel   string

	// Persona injected into the chat system prompt.
	Adjective string
	Role      string

	// How long a closed gate may stay closed before the reclaimer
	// force-opens it.
	ReclaimDelay time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		ChannelSecret:      strings.TrimSpace(os.Getenv("SUSU_CHANNEL_SECRET")),
		ChannelAccessToken: strings.TrimSpace(os.Getenv("SUSU_CHANNEL_ACCESS_TOKEN")),
		MessagingAPIBase:   strings.TrimRight(strings.TrimSpace(os.Getenv("SUSU_MESSAGING_API_BASE")), "/"),
		Addr:               strings.TrimSpace(os.Getenv("SUSU_ADDR")),
		BaseURL:            strings.TrimRight(strings.TrimSpace(os.Getenv("SUSU_BASE_URL")), "/"),
		StaticDir:          strings.TrimSpace(os.Getenv("SUSU_STATIC_DIR")),
		GatewayURL:         strings.TrimSpace(os.Getenv("SUSU_GATEWAY_URL")),
		ChatBaseURL:        strings.TrimRight(strings.TrimSpace(os.Getenv("SUSU_CHAT_BASE_URL")), "/"),
		ChatAPIKey:         strings.TrimSpace(os.Getenv("SUSU_CHAT_API_KEY")),
		ChatModel:          strings.TrimSpace(os.Getenv("SUSU_CHAT_MODEL")),
		Adjective:          strings.TrimSpace(os.Getenv("SUSU_ADJECTIVE")),
		Role:               strings.TrimSpace(os.Getenv("SUSU_ROLE")),
	}

	if cfg.ChannelAccessToken == "" {
		return Config{}, fmt.Errorf("SUSU_CHANNEL_ACCESS_TOKEN is required")
	}
	if cfg.GatewayURL == "" && cfg.ChannelSecret == "" {
		return Config{}, fmt.Errorf("SUSU_CHANNEL_SECRET is required in webhook mode")
	}

	if cfg.MessagingAPIBase == "" {
		cfg.MessagingAPIBase = "https://api.line.me"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = "static"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.Adjective == "" {
		cfg.Adjective = "愛碎念的"
	}
	if cfg.Role == "" {
		cfg.Role = "叔叔"
	}
	if cfg.BaseURL != "" && !strings.HasPrefix(cfg.BaseURL, "https://") {
		// The platform rejects plain-http image URLs.
		cfg.BaseURL = "https://" + strings.TrimPrefix(cfg.BaseURL, "http://")
	}

	cfg.ReclaimDelay = 60 * time.Second
	if v := strings.TrimSpace(os.Getenv("SUSU_RECLAIM_SECONDS")); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return Config{}, fmt.Errorf("invalid SUSU_RECLAIM_SECONDS: %q", v)
		}
		cfg.ReclaimDelay = time.Duration(secs) * time.Second
	}

	return cfg, nil
}
