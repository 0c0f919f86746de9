package domain

import (
	"encoding/json"
	"time"
)

// Subscriber is an addressable recipient identified by a Telegram chat id.
type Subscriber struct {
	ID         int64
	TelegramID string
	Plan       Plan
	CreatedAt  time.Time
}

// Preference is a subscriber's topic subscription with a delivery cadence.
// LastDelivered is nil until the first delivery.
type Preference struct {
	ID            int64
	SubscriberID  int64
	Topic         string
	Cadence       Cadence
	LastDelivered *time.Time
}

// FeedSource is a configured or user-added feed endpoint.
type FeedSource struct {
	ID        int64
	Name      string
	URL       string
	Social    bool
	CreatedAt time.Time
}

// FeedEntry is one parsed entry from an upstream feed, with the raw
// structured metadata preserved verbatim.
type FeedEntry struct {
	Link string
	Raw  json.RawMessage
}

// ContentItem is one ingested article, keyed by URL.
type ContentItem struct {
	ID        int64
	URL       string
	Origin    string
	Raw       json.RawMessage
	FetchedAt time.Time
}

// Summary is the condensed text derived from a ContentItem.
type Summary struct {
	ID          int64
	ContentID   int64
	Text        string
	Author      string
	PublishedAt *time.Time
	Topic       string
	CreatedAt   time.Time
}

// FactCheck records the verification outcome for a Summary.
type FactCheck struct {
	ID        int64
	SummaryID int64
	Status    FactStatus
	Citations []string
	CheckedAt time.Time
}

// Commentary is the contextual analysis derived from a Summary.
type Commentary struct {
	ID        int64
	SummaryID int64
	Text      string
	CreatedAt time.Time
}

// Issue is one day's aggregated newsletter.
type Issue struct {
	ID        int64
	Date      time.Time
	TextPath  string
	HTMLPath  string
	CreatedAt time.Time
}

// StreamDelivery records that a Summary was pushed to the live channel.
type StreamDelivery struct {
	ID        int64
	SummaryID int64
	SentAt    time.Time
}

// CheckedSummary pairs a Summary with its fact-check verdict.
type CheckedSummary struct {
	Summary   Summary
	Status    FactStatus
	Citations []string
}

// StreamEntry carries everything the live stream needs for one item.
type StreamEntry struct {
	Summary Summary
	Item    ContentItem
	Status  FactStatus
}

// IssueEntry is one fully-derived triple rendered into a newsletter.
type IssueEntry struct {
	Summary    Summary
	FactCheck  FactCheck
	Commentary Commentary
}
