package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"newsdesk/internal/domain"
	"newsdesk/internal/ports"
)

const factCheckTokenBudget = 200

// FactChecker verifies every summary that lacks a verdict. Unlike the
// other derivation stages, a failed producer call still writes a row: the
// safe default is not_verifiable with no citations.
type FactChecker struct {
	store  ports.Store
	llm    Completer
	model  string
	logger *slog.Logger
	now    func() time.Time
}

// NewFactChecker constructs the fact-check stage.
func NewFactChecker(store ports.Store, llm Completer, model string, logger *slog.Logger) *FactChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &FactChecker{store: store, llm: llm, model: model, logger: logger, now: time.Now}
}

// Run selects summaries without a fact-check, produces verdicts, and
// commits the batch.
func (c *FactChecker) Run(ctx context.Context) error {
	tx, err := c.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("factcheck: %w", err)
	}
	defer tx.Rollback()

	summaries, err := tx.SummariesWithoutFactCheck(ctx)
	if err != nil {
		return fmt.Errorf("factcheck: %w", err)
	}

	for _, summary := range summaries {
		status, citations, _ := c.CheckText(ctx, summary.Text)
		check := domain.FactCheck{
			SummaryID: summary.ID,
			Status:    status,
			Citations: citations,
			CheckedAt: c.now().UTC(),
		}
		if err := tx.InsertFactCheck(ctx, check); err != nil {
			return fmt.Errorf("factcheck summary %d: %w", summary.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("factcheck: %w", err)
	}

	c.logger.Info("fact-checking done", "checked", len(summaries))
	return nil
}

// verdict is the structured payload the model is asked to return.
type verdict struct {
	Status    string   `json:"status"`
	Citations []string `json:"citations"`
	Analysis  string   `json:"analysis"`
}

// CheckText fact-checks arbitrary text. It never fails: an unavailable or
// unparseable producer degrades to the not_verifiable default.
func (c *FactChecker) CheckText(ctx context.Context, text string) (domain.FactStatus, []string, string) {
	req := ports.ChatRequest{
		Model: c.model,
		Messages: []ports.ChatMessage{
			{Role: "system", Content: "You are a fact-checking engine."},
			{Role: "user", Content: fmt.Sprintf(
				"Check the following text against reputable sources such as Wikipedia. "+
					"Respond with a JSON object containing:\n"+
					`{"status": "verified" | "disputed" | "not_verifiable", "citations": [...], "analysis": <short reason>}`+
					"\nText: %s", text)},
		},
		MaxTokens: factCheckTokenBudget,
	}

	payload, ok := c.llm.Complete(ctx, req)
	if !ok {
		c.logger.Error("fact check unavailable, marking not_verifiable")
		return domain.StatusNotVerifiable, nil, ""
	}

	var v verdict
	if err := json.Unmarshal([]byte(stripFences(payload)), &v); err != nil {
		c.logger.Error("unparseable fact-check payload", "error", err)
		return domain.StatusNotVerifiable, nil, ""
	}

	status, err := domain.ParseFactStatus(v.Status)
	if err != nil {
		status = domain.StatusNotVerifiable
	}
	return status, v.Citations, v.Analysis
}

// stripFences removes a Markdown code fence the model may wrap JSON in.
func stripFences(payload string) string {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, "```") {
		return payload
	}
	payload = strings.TrimPrefix(payload, "```json")
	payload = strings.TrimPrefix(payload, "```")
	payload = strings.TrimSuffix(strings.TrimSpace(payload), "```")
	return strings.TrimSpace(payload)
}
