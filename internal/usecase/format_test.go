package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"newsdesk/internal/domain"
)

func formatterFixture(t *testing.T, now time.Time) (*memStore, *Formatter) {
	t.Helper()
	store := newMemStore()
	formatter := NewFormatter(FormatterDeps{
		Store:     store,
		OutputDir: t.TempDir(),
		PublicDir: t.TempDir(),
		Now:       func() time.Time { return now },
	})
	return store, formatter
}

func seedIssueEntry(t *testing.T, store *memStore, text string, createdAt time.Time) {
	t.Helper()
	ctx := context.Background()

	seedSummaries(t, store, text)
	summary := &store.summaries[len(store.summaries)-1]
	summary.CreatedAt = createdAt

	if err := store.InsertFactCheck(ctx, domain.FactCheck{
		SummaryID: summary.ID,
		Status:    domain.StatusVerified,
	}); err != nil {
		t.Fatalf("seed factcheck: %v", err)
	}
	if err := store.InsertCommentary(ctx, domain.Commentary{
		SummaryID: summary.ID,
		Text:      "expert take on " + text,
	}); err != nil {
		t.Fatalf("seed commentary: %v", err)
	}
}

func TestFormatterWritesIssueFiles(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 2, 15, 30, 0, 0, time.UTC)
	store, formatter := formatterFixture(t, now)
	seedIssueEntry(t, store, "quantum chips ship", now.Add(-time.Hour))

	if err := formatter.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(store.issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(store.issues))
	}
	issue := store.issues[0]
	if !strings.HasSuffix(issue.TextPath, "newsletter_2026-03-02.txt") {
		t.Fatalf("unexpected text path %q", issue.TextPath)
	}

	raw, err := os.ReadFile(issue.TextPath)
	if err != nil {
		t.Fatalf("read text: %v", err)
	}
	if !strings.Contains(string(raw), "quantum chips ship") {
		t.Fatalf("newsletter text missing entry: %q", raw)
	}

	html, err := os.ReadFile(issue.HTMLPath)
	if err != nil {
		t.Fatalf("read html: %v", err)
	}
	if !strings.Contains(string(html), "<") {
		t.Fatalf("html output has no markup: %q", html)
	}

	rss := filepath.Join(formatter.publicDir, "rss", "2026-03-02.html")
	if _, err := os.Stat(rss); err != nil {
		t.Fatalf("public copy missing: %v", err)
	}
}

func TestFormatterIdempotentPerDay(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 2, 15, 30, 0, 0, time.UTC)
	store, formatter := formatterFixture(t, now)
	seedIssueEntry(t, store, "fusion milestone", now.Add(-time.Hour))

	for i := 0; i < 2; i++ {
		if err := formatter.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if len(store.issues) != 1 {
		t.Fatalf("same-day rerun must not add an issue, got %d", len(store.issues))
	}

	// The next day gets its own issue.
	formatter.now = func() time.Time { return now.Add(24 * time.Hour) }
	seedIssueEntry(t, store, "next day news", now.Add(23*time.Hour))
	if err := formatter.Run(context.Background()); err != nil {
		t.Fatalf("next-day run: %v", err)
	}
	if len(store.issues) != 2 {
		t.Fatalf("expected 2 issues across two days, got %d", len(store.issues))
	}
}

func TestFormatterEmptyDayStillRecordsIssue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	store, formatter := formatterFixture(t, now)

	if err := formatter.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(store.issues) != 1 {
		t.Fatalf("expected issue row even without entries, got %d", len(store.issues))
	}
	raw, err := os.ReadFile(store.issues[0].TextPath)
	if err != nil {
		t.Fatalf("read text: %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("empty-day newsletter should still have a header")
	}
}
