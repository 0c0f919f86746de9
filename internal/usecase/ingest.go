package usecase

import (
	"context"
	"log/slog"
	"time"

	"newsdesk/internal/config"
	"newsdesk/internal/domain"
	"newsdesk/internal/ports"
)

// IngestorDeps wires the crawl stage's collaborators.
type IngestorDeps struct {
	Store   ports.Store
	Fetcher ports.FeedFetcher
	Sources []config.SourceConfig
	Logger  *slog.Logger
	Now     func() time.Time
}

// Ingestor pulls every configured feed and records unseen entries. The URL
// uniqueness constraint makes repeated runs idempotent.
type Ingestor struct {
	store   ports.Store
	fetcher ports.FeedFetcher
	sources []config.SourceConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewIngestor constructs the crawl stage.
func NewIngestor(deps IngestorDeps) *Ingestor {
	i := &Ingestor{
		store:   deps.Store,
		fetcher: deps.Fetcher,
		sources: deps.Sources,
		logger:  deps.Logger,
		now:     deps.Now,
	}
	if i.logger == nil {
		i.logger = slog.Default()
	}
	if i.now == nil {
		i.now = time.Now
	}
	return i
}

// Run fetches all effective sources and returns the number of newly
// ingested items. A failing feed is logged and skipped; duplicates are
// silently ignored.
func (i *Ingestor) Run(ctx context.Context) (int, error) {
	sources, err := i.effectiveSources(ctx)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, src := range sources {
		i.logger.Info("fetching feed", "source", src.Name, "url", src.URL)

		entries, err := i.fetcher.Fetch(ctx, src.URL)
		if err != nil {
			i.logger.Warn("feed fetch failed", "source", src.Name, "error", err)
			continue
		}

		for _, entry := range entries {
			ok, err := i.store.InsertContentItem(ctx, domain.ContentItem{
				URL:       entry.Link,
				Origin:    src.Name,
				Raw:       entry.Raw,
				FetchedAt: i.now().UTC(),
			})
			if err != nil {
				return inserted, err
			}
			if ok {
				inserted++
			} else {
				i.logger.Debug("duplicate skipped", "url", entry.Link)
			}
		}
	}

	i.logger.Info("ingestion done", "new_items", inserted, "sources", len(sources))
	return inserted, nil
}

// effectiveSources merges configured sources with custom feeds linked to
// premium subscribers, de-duplicated by URL with first occurrence winning.
func (i *Ingestor) effectiveSources(ctx context.Context) ([]config.SourceConfig, error) {
	custom, err := i.store.PremiumCustomSources(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var merged []config.SourceConfig
	for _, src := range i.sources {
		if src.URL == "" || seen[src.URL] {
			continue
		}
		seen[src.URL] = true
		merged = append(merged, src)
	}
	for _, src := range custom {
		if src.URL == "" || seen[src.URL] {
			continue
		}
		seen[src.URL] = true
		merged = append(merged, config.SourceConfig{Name: src.Name, URL: src.URL, Social: src.Social})
	}

	return merged, nil
}
