package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
)

const (
	ragMaxRounds  = 2
	ragMaxPages   = 3
	ragMaxPageLen = 4000
)

const ragFallbackReply = "叔叔查了一圈還是不太確定，這題先別逼叔叔了。"

// completeWithSearch lets the model ask for retrieval before answering.
// The probe call replies with the literal token "search" when the
// question needs fresh or verifiable facts; otherwise its reply is the
// answer itself.
func (s *Service) completeWithSearch(ctx context.Context, userID, text string) (string, error) {
	probeSystem := s.personaSystem() +
		"如果這個問題需要查證最新或外部資訊才能回答，只回覆「search」這個字，不要回覆其他內容；否則直接回答。"
	probe, err := s.oneShot(ctx, probeSystem, text)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(strings.TrimSpace(probe), "search") {
		return s.completeAndRemember(ctx, userID, text)
	}

	for round := 0; round < ragMaxRounds; round++ {
		keywords, err := s.oneShot(ctx,
			"你是搜尋助手。根據問題產生一組簡短的網頁搜尋關鍵字，只回覆關鍵字本身。",
			text)
		if err != nil {
			return "", err
		}

		pages, err := s.gatherPages(ctx, keywords)
		if err != nil {
			log.Printf("[%s] search round %d failed: %v", s.cfg.LogPrefix, round+1, err)
			continue
		}
		if pages == "" {
			continue
		}

		verdict, err := s.oneShot(ctx,
			"你是審核助手。根據提供的資料判斷是否足以回答問題，只回覆「yes」或「no」。",
			fmt.Sprintf("問題：%s\n\n資料：\n%s", text, pages))
		if err != nil {
			return "", err
		}
		if !strings.EqualFold(strings.TrimSpace(verdict), "yes") {
			continue
		}

		return s.completeAndRemember(ctx, userID,
			fmt.Sprintf("請根據以下資料回答問題。\n問題：%s\n\n資料：\n%s", text, pages))
	}

	return ragFallbackReply, nil
}

// gatherPages searches and concatenates trimmed page texts.
func (s *Service) gatherPages(ctx context.Context, keywords string) (string, error) {
	urls, err := s.searcher.Search(ctx, strings.TrimSpace(keywords), ragMaxPages)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, u := range urls {
		text, err := s.searcher.ExtractText(ctx, u, ragMaxPageLen)
		if err != nil {
			log.Printf("[%s] extract %s failed: %v", s.cfg.LogPrefix, u, err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&b, "來源 %s\n%s\n\n", u, text)
	}
	return strings.TrimSpace(b.String()), nil
}
