package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"newsdesk/internal/config"
	"newsdesk/internal/domain"
)

func entry(link string) domain.FeedEntry {
	raw, _ := json.Marshal(map[string]string{"link": link})
	return domain.FeedEntry{Link: link, Raw: raw}
}

func TestIngestIdempotent(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	fetcher := &fakeFetcher{feeds: map[string][]domain.FeedEntry{
		"https://news.example/rss": {entry("https://news.example/a"), entry("https://news.example/b")},
	}}

	ingestor := NewIngestor(IngestorDeps{
		Store:   store,
		Fetcher: fetcher,
		Sources: []config.SourceConfig{{Name: "Example", URL: "https://news.example/rss"}},
	})

	ctx := context.Background()
	count, err := ingestor.Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 new items, got %d", count)
	}

	count, err = ingestor.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 new items on rerun, got %d", count)
	}
	if len(store.items) != 2 {
		t.Fatalf("expected 2 stored items, got %d", len(store.items))
	}
}

func TestIngestMergesPremiumSourcesFirstURLWins(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	ctx := context.Background()

	sub, _ := store.UpsertSubscriber(ctx, "42")
	_ = store.SetPlan(ctx, sub.ID, domain.PlanPremium)
	src, _ := store.InsertSource(ctx, domain.FeedSource{Name: "Custom", URL: "https://custom.example/rss"})
	_ = store.LinkSource(ctx, sub.ID, src.ID)
	// Same URL as a configured default: the configured entry wins.
	dup, _ := store.InsertSource(ctx, domain.FeedSource{Name: "Shadow", URL: "https://news.example/rss"})
	_ = store.LinkSource(ctx, sub.ID, dup.ID)

	fetcher := &fakeFetcher{feeds: map[string][]domain.FeedEntry{
		"https://news.example/rss":   {entry("https://news.example/a")},
		"https://custom.example/rss": {entry("https://custom.example/x")},
	}}

	ingestor := NewIngestor(IngestorDeps{
		Store:   store,
		Fetcher: fetcher,
		Sources: []config.SourceConfig{{Name: "Example", URL: "https://news.example/rss"}},
	})

	count, err := ingestor.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 new items, got %d", count)
	}

	for _, item := range store.items {
		if item.URL == "https://news.example/a" && item.Origin != "Example" {
			t.Fatalf("expected configured source to win, got origin %s", item.Origin)
		}
	}
}

func TestIngestSkipsFailingFeed(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	fetcher := &fakeFetcher{
		feeds: map[string][]domain.FeedEntry{
			"https://ok.example/rss": {entry("https://ok.example/a")},
		},
		errs: map[string]error{
			"https://down.example/rss": errors.New("connection refused"),
		},
	}

	ingestor := NewIngestor(IngestorDeps{
		Store:   store,
		Fetcher: fetcher,
		Sources: []config.SourceConfig{
			{Name: "Down", URL: "https://down.example/rss"},
			{Name: "OK", URL: "https://ok.example/rss"},
		},
	})

	count, err := ingestor.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected the healthy feed to be ingested, got %d items", count)
	}
}
