package advisory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const categorizePromptTemplate = `請分析以下客服工單，並提供分類和優先級建議：

標題: %s
描述: %s

請以JSON格式回覆，包含：
1. category: 工單分類（技術問題、帳戶問題、產品諮詢、投訴建議）
2. priority: 優先級（low、medium、high、urgent）
3. reasoning: 分類理由

範例回覆格式：
{"category": "技術問題", "priority": "high", "reasoning": "用戶無法登入系統，影響正常使用"}`

const replyPromptTemplate = `作為客服專員，請針對以下工單提供專業且友善的回覆建議：

工單標題: %s
工單描述: %s
工單分類: %s
優先級: %s

請提供一個專業、友善且有幫助的回覆，包含：
1. 對問題的理解確認
2. 可能的解決方案或後續步驟
3. 預期的處理時間

回覆應該以繁體中文撰寫，語氣親切專業。`

var priorityLabels = map[domain.TicketPriority]string{
	domain.TicketPriorityLow:    "低",
	domain.TicketPriorityMedium: "中",
	domain.TicketPriorityHigh:   "高",
	domain.TicketPriorityUrgent: "緊急",
}

// OllamaClient talks to an Ollama-compatible chat endpoint. All failures are
// absorbed into degraded fallback results.
type OllamaClient struct {
	host          string
	model         string
	httpClient    *http.Client
	cache         Cache
	categorizeTTL time.Duration
	replyTTL      time.Duration
	logger        *zap.Logger
}

// NewOllamaClient constructs the client.
func NewOllamaClient(cfg config.OllamaConfig, advisoryCfg config.AdvisoryConfig, cache Cache, logger *zap.Logger) *OllamaClient {
	return &OllamaClient{
		host:          strings.TrimRight(cfg.Host, "/"),
		model:         cfg.Model,
		httpClient:    &http.Client{Timeout: cfg.Timeout()},
		cache:         cache,
		categorizeTTL: advisoryCfg.CategorizeTTL(),
		replyTTL:      advisoryCfg.ReplyTTL(),
		logger:        logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Categorize asks the model for category/priority suggestions. Results are
// cached for an hour on a fingerprint of the inputs; a valid cached entry is
// always an Ok result since fallbacks are never cached.
func (c *OllamaClient) Categorize(ctx context.Context, title, description string) Suggestion {
	key := categorizeCacheKey(title, description)
	if cached, ok := c.cache.Get(ctx, key); ok {
		var suggestion Suggestion
		if err := json.Unmarshal([]byte(cached), &suggestion); err == nil {
			return suggestion
		}
	}

	prompt := fmt.Sprintf(categorizePromptTemplate, title, description)
	content, err := c.chat(ctx, prompt)
	if err != nil {
		c.logger.Warn("advisory categorize failed", zap.Error(err))
		return fallbackSuggestion(fmt.Sprintf("服務錯誤: %v", err))
	}

	suggestion, ok := parseSuggestion(content)
	if !ok {
		c.logger.Warn("advisory categorize returned unparseable content")
		return fallbackSuggestion("")
	}

	if encoded, err := json.Marshal(suggestion); err == nil {
		c.cache.Set(ctx, key, string(encoded), c.categorizeTTL)
	}
	return suggestion
}

// DraftReply asks the model for a reply draft. The cache key includes the
// ticket's last update time so edits invalidate stale drafts automatically.
func (c *OllamaClient) DraftReply(ctx context.Context, ticket *domain.Ticket) ReplyDraft {
	key := fmt.Sprintf("advisory:reply:%d:%d", ticket.ID, ticket.UpdatedAt.Unix())
	if cached, ok := c.cache.Get(ctx, key); ok {
		return ReplyDraft{Text: cached}
	}

	prompt := fmt.Sprintf(replyPromptTemplate,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		priorityLabels[ticket.Priority],
	)
	content, err := c.chat(ctx, prompt)
	if err != nil {
		c.logger.Warn("advisory draft reply failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		return fallbackReply(err.Error())
	}
	if strings.TrimSpace(content) == "" {
		return fallbackReply("empty model response")
	}

	c.cache.Set(ctx, key, content, c.replyTTL)
	return ReplyDraft{Text: content}
}

func (c *OllamaClient) chat(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return decoded.Message.Content, nil
}

func parseSuggestion(content string) (Suggestion, bool) {
	var raw struct {
		Category  string `json:"category"`
		Priority  string `json:"priority"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return Suggestion{}, false
	}
	if raw.Category == "" || raw.Priority == "" || raw.Reasoning == "" {
		return Suggestion{}, false
	}
	priority, ok := domain.ParsePriority(raw.Priority)
	if !ok {
		return Suggestion{}, false
	}
	return Suggestion{
		Category:  raw.Category,
		Priority:  priority,
		Reasoning: raw.Reasoning,
	}, true
}

func categorizeCacheKey(title, description string) string {
	sum := sha256.Sum256([]byte(title + "\x00" + description))
	return "advisory:categorize:" + hex.EncodeToString(sum[:])
}
