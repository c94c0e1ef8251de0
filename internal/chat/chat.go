// Package chat keeps one conversation per user against an
// OpenAI-compatible completion endpoint, with an optional
// search-augmented answer path.
package chat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultModel          = "gpt-4o-mini"
	defaultMaxHistory     = 40 // message entries kept per user (user+assistant pairs)
	defaultRequestTimeout = 75 * time.Second
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string

	// Persona injected as the system prompt ("你是{Adjective}{Role}…").
	Adjective string
	Role      string

	MaxHistory int
	LogPrefix  string
}

func (c Config) withDefaults() Config {
	out := c
	if strings.TrimSpace(out.BaseURL) == "" {
		out.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(out.Model) == "" {
		out.Model = defaultModel
	}
	if strings.TrimSpace(out.Adjective) == "" {
		out.Adjective = "愛碎念的"
	}
	if strings.TrimSpace(out.Role) == "" {
		out.Role = "叔叔"
	}
	if out.MaxHistory <= 0 {
		out.MaxHistory = defaultMaxHistory
	}
	return out
}

// Service is safe for concurrent use; history access is serialized, the
// completion call itself runs outside the lock.
type Service struct {
	cfg        Config
	httpClient *http.Client
	searcher   Searcher

	mu        sync.Mutex
	histories map[string][]openaigo.ChatCompletionMessageParamUnion
}

// Searcher is the web-retrieval collaborator for the RAG path. Nil
// disables retrieval and the model always answers directly.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
	ExtractText(ctx context.Context, url string, maxLen int) (string, error)
}

func NewService(cfg Config, httpClient *http.Client, searcher Searcher) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Service{
		cfg:        cfg.withDefaults(),
		httpClient: httpClient,
		searcher:   searcher,
		histories:  map[string][]openaigo.ChatCompletionMessageParamUnion{},
	}
}

// Reset drops the user's conversation history ("失憶").
func (s *Service) Reset(userID string) {
	s.mu.Lock()
	delete(s.histories, userID)
	s.mu.Unlock()
}

// Complete answers one user message, remembering the exchange. When a
// searcher is wired in, the model may ask for retrieval first.
func (s *Service) Complete(ctx context.Context, userID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("chat: empty input")
	}

	if s.searcher == nil {
		return s.completeAndRemember(ctx, userID, text)
	}
	return s.completeWithSearch(ctx, userID, text)
}

func (s *Service) personaSystem() string {
	return fmt.Sprintf("你是%s%s，平常會用輕鬆自然的語氣聊天，使用繁體中文。", s.cfg.Adjective, s.cfg.Role)
}

func (s *Service) completeAndRemember(ctx context.Context, userID, text string) (string, error) {
	s.mu.Lock()
	history := append([]openaigo.ChatCompletionMessageParamUnion(nil), s.histories[userID]...)
	s.mu.Unlock()

	messages := make([]openaigo.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openaigo.SystemMessage(s.personaSystem()))
	messages = append(messages, history...)
	messages = append(messages, openaigo.UserMessage(text))

	reply, err := s.call(ctx, messages)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	h := append(s.histories[userID], openaigo.UserMessage(text), openaigo.AssistantMessage(reply))
	if len(h) > s.cfg.MaxHistory {
		h = h[len(h)-s.cfg.MaxHistory:]
	}
	s.histories[userID] = h
	s.mu.Unlock()

	return reply, nil
}

// oneShot asks the model a single question outside any user history.
func (s *Service) oneShot(ctx context.Context, system, prompt string) (string, error) {
	return s.call(ctx, []openaigo.ChatCompletionMessageParamUnion{
		openaigo.SystemMessage(system),
		openaigo.UserMessage(prompt),
	})
}

func (s *Service) call(ctx context.Context, messages []openaigo.ChatCompletionMessageParamUnion) (string, error) {
	client := openaigo.NewClient(
		option.WithBaseURL(strings.TrimRight(strings.TrimSpace(s.cfg.BaseURL), "/")),
		option.WithAPIKey(strings.TrimSpace(s.cfg.APIKey)),
		option.WithHTTPClient(s.httpClient),
		option.WithMaxRetries(2),
		option.WithRequestTimeout(defaultRequestTimeout),
	)

	resp, err := client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model:    openaigo.ChatModel(strings.TrimSpace(s.cfg.Model)),
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat: empty choices")
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("chat: empty reply")
	}
	return reply, nil
}
