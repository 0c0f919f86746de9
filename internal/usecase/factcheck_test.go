package usecase

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"newsdesk/internal/domain"
)

func seedSummaries(t *testing.T, store *memStore, texts ...string) {
	t.Helper()
	ctx := context.Background()
	for _, text := range texts {
		ok, err := store.InsertContentItem(ctx, domain.ContentItem{URL: "https://x/" + text})
		if err != nil || !ok {
			t.Fatalf("seed item %q", text)
		}
		item := store.items[len(store.items)-1]
		if err := store.InsertSummary(ctx, domain.Summary{ContentID: item.ID, Text: text}); err != nil {
			t.Fatalf("seed summary %q: %v", text, err)
		}
	}
}

func TestFactCheckParsesVerdict(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	seedSummaries(t, store, "the sky is blue")

	llm := &stubLLM{reply: `{"status": "verified", "citations": ["https://en.wikipedia.org/wiki/Sky"], "analysis": "well documented"}`}
	checker := NewFactChecker(store, llm, "gpt-4o", nil)

	if err := checker.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(store.factchecks) != 1 {
		t.Fatalf("expected 1 factcheck, got %d", len(store.factchecks))
	}
	got := store.factchecks[0]
	if got.Status != domain.StatusVerified {
		t.Fatalf("expected verified, got %s", got.Status)
	}
	if diff := cmp.Diff([]string{"https://en.wikipedia.org/wiki/Sky"}, got.Citations); diff != "" {
		t.Fatalf("citations mismatch (-want +got):\n%s", diff)
	}
}

func TestFactCheckSafeDefaultOnGarbage(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	seedSummaries(t, store, "something")

	llm := &stubLLM{reply: "sorry, I cannot answer that"}
	checker := NewFactChecker(store, llm, "gpt-4o", nil)

	if err := checker.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(store.factchecks) != 1 {
		t.Fatalf("expected a factcheck row despite garbage output, got %d", len(store.factchecks))
	}
	got := store.factchecks[0]
	if got.Status != domain.StatusNotVerifiable {
		t.Fatalf("expected not_verifiable default, got %s", got.Status)
	}
	if len(got.Citations) != 0 {
		t.Fatalf("expected no citations, got %v", got.Citations)
	}
}

func TestFactCheckSafeDefaultOnGatewayFailure(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	seedSummaries(t, store, "something")

	llm := &stubLLM{fail: true}
	checker := NewFactChecker(store, llm, "gpt-4o", nil)

	if err := checker.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// Unlike the other derivation stages, a failed call still writes a
	// row so the summary is never re-checked endlessly.
	if len(store.factchecks) != 1 {
		t.Fatalf("expected a factcheck row, got %d", len(store.factchecks))
	}
	if store.factchecks[0].Status != domain.StatusNotVerifiable {
		t.Fatalf("expected not_verifiable, got %s", store.factchecks[0].Status)
	}
}

func TestFactCheckFencedJSON(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	llm := &stubLLM{reply: "```json\n{\"status\": \"disputed\", \"citations\": [], \"analysis\": \"contested\"}\n```"}
	checker := NewFactChecker(store, llm, "gpt-4o", nil)

	status, _, analysis := checker.CheckText(context.Background(), "claim")
	if status != domain.StatusDisputed {
		t.Fatalf("expected disputed, got %s", status)
	}
	if analysis != "contested" {
		t.Fatalf("unexpected analysis %q", analysis)
	}
}
