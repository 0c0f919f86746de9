package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"newsdesk/internal/domain"
	"newsdesk/internal/ports"
)

// SourceManager maintains subscriber-linked custom feeds. Adding an
// already-linked source is a benign no-op; removing a source only severs
// the link, never the FeedSource row itself.
type SourceManager struct {
	store  ports.Store
	logger *slog.Logger
}

// NewSourceManager constructs the source management use case.
func NewSourceManager(store ports.Store, logger *slog.Logger) *SourceManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceManager{store: store, logger: logger}
}

// Add links a feed to a subscriber, creating the FeedSource on first use.
func (m *SourceManager) Add(ctx context.Context, subscriberID int64, name, url string) error {
	src, found, err := m.store.SourceByURL(ctx, url)
	if err != nil {
		return fmt.Errorf("add source: %w", err)
	}
	if !found {
		src, err = m.store.InsertSource(ctx, domain.FeedSource{
			Name:   name,
			URL:    url,
			Social: strings.HasSuffix(url, ".rss"),
		})
		if err != nil {
			return fmt.Errorf("add source: %w", err)
		}
	}

	if err := m.store.LinkSource(ctx, subscriberID, src.ID); err != nil {
		return fmt.Errorf("add source: %w", err)
	}

	m.logger.Info("source linked", "subscriber", subscriberID, "url", url)
	return nil
}

// Remove severs the subscriber's link to the feed with the given URL.
// Unknown URLs are ignored.
func (m *SourceManager) Remove(ctx context.Context, subscriberID int64, url string) error {
	src, found, err := m.store.SourceByURL(ctx, url)
	if err != nil {
		return fmt.Errorf("remove source: %w", err)
	}
	if !found {
		return nil
	}

	if err := m.store.UnlinkSource(ctx, subscriberID, src.ID); err != nil {
		return fmt.Errorf("remove source: %w", err)
	}

	m.logger.Info("source unlinked", "subscriber", subscriberID, "url", url)
	return nil
}

// List returns the feeds linked to a subscriber.
func (m *SourceManager) List(ctx context.Context, subscriberID int64) ([]domain.FeedSource, error) {
	sources, err := m.store.SourcesForSubscriber(ctx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}
