package advisory

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// FallbackReply is the user-facing apology persisted in place of a reply
// draft when the remote model is unavailable. The response workflow treats a
// degraded draft as an error instead of persisting this text.
const FallbackReply = "抱歉，AI助手暫時無法提供回覆建議，請稍後再試。"

// FallbackReasoning is recorded when the model answered but not in the
// expected shape.
const FallbackReasoning = "AI無法正確分析，使用預設分類"

// Suggestion is the categorization result. Degraded marks a fallback payload
// produced because the remote call failed or returned an unusable answer;
// Reason carries the diagnostic in that case.
type Suggestion struct {
	Category  string                `json:"category"`
	Priority  domain.TicketPriority `json:"priority"`
	Reasoning string                `json:"reasoning"`

	Degraded bool   `json:"-"`
	Reason   string `json:"-"`
}

// ReplyDraft is the draft-reply result with the same degradation marker.
type ReplyDraft struct {
	Text string

	Degraded bool
	Reason   string
}

// Client suggests ticket metadata and drafts replies. Implementations never
// return errors: failures are absorbed into degraded fallback results so
// callers decide per-endpoint whether degradation matters.
type Client interface {
	Categorize(ctx context.Context, title, description string) Suggestion
	DraftReply(ctx context.Context, ticket *domain.Ticket) ReplyDraft
}

func fallbackSuggestion(reason string) Suggestion {
	reasoning := reason
	if reasoning == "" {
		reasoning = FallbackReasoning
	}
	return Suggestion{
		Category:  domain.DefaultCategory,
		Priority:  domain.TicketPriorityMedium,
		Reasoning: reasoning,
		Degraded:  true,
		Reason:    reason,
	}
}

func fallbackReply(reason string) ReplyDraft {
	return ReplyDraft{
		Text:     FallbackReply,
		Degraded: true,
		Reason:   reason,
	}
}
