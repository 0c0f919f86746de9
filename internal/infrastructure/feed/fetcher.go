package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"newsdesk/internal/domain"
	"newsdesk/internal/ports"
)

// Fetcher retrieves RSS/Atom feeds and flattens them into entries carrying
// the raw item metadata.
type Fetcher struct {
	parser *gofeed.Parser
}

var _ ports.FeedFetcher = (*Fetcher)(nil)

// NewFetcher wires an optional HTTP client (nil uses a 30s-timeout default).
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	parser := gofeed.NewParser()
	parser.Client = client
	return &Fetcher{parser: parser}
}

// Fetch downloads and parses one feed. Entries without a link are dropped
// since the link is the content identity downstream.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]domain.FeedEntry, error) {
	parsed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}

	entries := make([]domain.FeedEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("marshal entry %s: %w", item.Link, err)
		}
		entries = append(entries, domain.FeedEntry{Link: item.Link, Raw: raw})
	}

	return entries, nil
}
