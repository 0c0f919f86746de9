package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsdesk/internal/domain"
	"newsdesk/internal/ports"
)

const commentaryTokenBudget = 200

// Commentator attaches a contextual analysis to every fact-checked summary
// that lacks one.
type Commentator struct {
	store  ports.Store
	llm    Completer
	model  string
	logger *slog.Logger
	now    func() time.Time
}

// NewCommentator constructs the commentary stage.
func NewCommentator(store ports.Store, llm Completer, model string, logger *slog.Logger) *Commentator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Commentator{store: store, llm: llm, model: model, logger: logger, now: time.Now}
}

// Run selects checked summaries without commentary, produces one paragraph
// per summary, and commits the batch. Failed rows are skipped and stay
// eligible for the next run.
func (c *Commentator) Run(ctx context.Context) error {
	tx, err := c.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("commentary: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.SummariesWithoutCommentary(ctx)
	if err != nil {
		return fmt.Errorf("commentary: %w", err)
	}

	produced := 0
	for _, row := range rows {
		text, ok := c.comment(ctx, row)
		if !ok {
			c.logger.Warn("skipping commentary", "summary_id", row.Summary.ID)
			continue
		}

		commentary := domain.Commentary{
			SummaryID: row.Summary.ID,
			Text:      text,
			CreatedAt: c.now().UTC(),
		}
		if err := tx.InsertCommentary(ctx, commentary); err != nil {
			return fmt.Errorf("commentary for summary %d: %w", row.Summary.ID, err)
		}
		produced++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commentary: %w", err)
	}

	c.logger.Info("commentary done", "selected", len(rows), "produced", produced)
	return nil
}

func (c *Commentator) comment(ctx context.Context, row domain.CheckedSummary) (string, bool) {
	req := ports.ChatRequest{
		Model: c.model,
		Messages: []ports.ChatMessage{
			{Role: "system", Content: "You are a contextual commentary engine."},
			{Role: "user", Content: fmt.Sprintf(
				"Provide a single-paragraph contextual analysis in a neutral yet engaging tone. "+
					"Mention historical parallels, market impact, or societal angles as relevant.\n\n"+
					"Summary: %s\nFact-check status: %s", row.Summary.Text, row.Status)},
		},
		MaxTokens: commentaryTokenBudget,
	}
	return c.llm.Complete(ctx, req)
}
