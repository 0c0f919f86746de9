package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"newsdesk/internal/domain"
	"newsdesk/internal/ports"
)

// Completer is the gateway surface stages depend on. The bool reports
// whether a completion was obtained; false means the call permanently
// failed this cycle and the row stays eligible for the next run.
type Completer interface {
	Complete(ctx context.Context, req ports.ChatRequest) (string, bool)
}

const summaryTokenBudget = 300

// Summarizer derives a condensed text for every content item that lacks
// one.
type Summarizer struct {
	store  ports.Store
	llm    Completer
	model  string
	logger *slog.Logger
	now    func() time.Time
}

// NewSummarizer constructs the summarization stage.
func NewSummarizer(store ports.Store, llm Completer, model string, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{store: store, llm: llm, model: model, logger: logger, now: time.Now}
}

// Run selects items without a summary, produces one per item, and commits
// the batch. Per-item failures are logged and skipped so one bad row never
// blocks the rest; skipped rows are re-selected next run.
func (s *Summarizer) Run(ctx context.Context) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	defer tx.Rollback()

	items, err := tx.ItemsWithoutSummary(ctx)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	produced := 0
	for _, item := range items {
		text, ok := s.summarize(ctx, item)
		if !ok {
			s.logger.Warn("skipping summary", "content_id", item.ID)
			continue
		}

		summary := domain.Summary{
			ContentID: item.ID,
			Text:      text,
			Topic:     extractTopic(text),
			CreatedAt: s.now().UTC(),
		}
		if err := tx.InsertSummary(ctx, summary); err != nil {
			return fmt.Errorf("summarize item %d: %w", item.ID, err)
		}
		produced++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	s.logger.Info("summarization done", "selected", len(items), "produced", produced)
	return nil
}

func (s *Summarizer) summarize(ctx context.Context, item domain.ContentItem) (string, bool) {
	req := ports.ChatRequest{
		Model: s.model,
		Messages: []ports.ChatMessage{
			{Role: "system", Content: "You are a summarization engine."},
			{Role: "user", Content: fmt.Sprintf(
				"Summarize the following article in no more than 120 words as bullet points. "+
					"Include source, author, publish date, and finish with a line \"Topic: <tag>\".\n\n"+
					"Article data: %s", item.Raw)},
		},
		MaxTokens: summaryTokenBudget,
	}
	return s.llm.Complete(ctx, req)
}

// extractTopic pulls the trailing "Topic: <tag>" line out of a summary, if
// the model produced one.
func extractTopic(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*_"))
		rest, found := strings.CutPrefix(line, "Topic:")
		if !found {
			rest, found = strings.CutPrefix(line, "topic:")
		}
		if found {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
