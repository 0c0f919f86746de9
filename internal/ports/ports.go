package ports

import (
	"context"
	"errors"
	"time"

	"newsdesk/internal/domain"
)

// ErrTransient marks external-call failures worth retrying: connection
// resets, rate limits, timeouts. Adapters wrap such errors so the gateway
// can classify them without knowing transport details.
var ErrTransient = errors.New("transient external failure")

// ChatMessage is one role-tagged message of an LLM request.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatRequest describes a single completion call.
type ChatRequest struct {
	Model     string
	Messages  []ChatMessage
	MaxTokens int
}

// ChatCompleter performs one raw LLM completion call.
type ChatCompleter interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// FeedFetcher retrieves and parses one feed URL into entries.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]domain.FeedEntry, error)
}

// Messenger delivers outbound chat messages and media.
type Messenger interface {
	SendMessage(ctx context.Context, chatID, text string) error
	SendPhoto(ctx context.Context, chatID, photoURL, caption string) error
}

// Queries is the read/write surface of the persistent store. The same set
// of operations is available on the root store (autocommit) and inside a
// transaction.
type Queries interface {
	// Subscribers and preferences.
	Subscribers(ctx context.Context) ([]domain.Subscriber, error)
	UpsertSubscriber(ctx context.Context, telegramID string) (domain.Subscriber, error)
	SetPlan(ctx context.Context, subscriberID int64, plan domain.Plan) error
	Preferences(ctx context.Context, subscriberID int64) ([]domain.Preference, error)
	AddPreference(ctx context.Context, pref domain.Preference) error
	SetLastDelivered(ctx context.Context, preferenceID int64, at time.Time) error

	// Feed sources and subscriber links.
	SourceByURL(ctx context.Context, url string) (domain.FeedSource, bool, error)
	InsertSource(ctx context.Context, src domain.FeedSource) (domain.FeedSource, error)
	LinkSource(ctx context.Context, subscriberID, sourceID int64) error
	UnlinkSource(ctx context.Context, subscriberID, sourceID int64) error
	SourcesForSubscriber(ctx context.Context, subscriberID int64) ([]domain.FeedSource, error)
	PremiumCustomSources(ctx context.Context) ([]domain.FeedSource, error)

	// Content and the derivation chain.
	InsertContentItem(ctx context.Context, item domain.ContentItem) (bool, error)
	ItemsWithoutSummary(ctx context.Context) ([]domain.ContentItem, error)
	InsertSummary(ctx context.Context, summary domain.Summary) error
	SummariesWithoutFactCheck(ctx context.Context) ([]domain.Summary, error)
	InsertFactCheck(ctx context.Context, check domain.FactCheck) error
	SummariesWithoutCommentary(ctx context.Context) ([]domain.CheckedSummary, error)
	InsertCommentary(ctx context.Context, commentary domain.Commentary) error

	// Aggregation and delivery bookkeeping.
	IssueExists(ctx context.Context, date time.Time) (bool, error)
	EntriesForDate(ctx context.Context, date time.Time) ([]domain.IssueEntry, error)
	InsertIssue(ctx context.Context, issue domain.Issue) error
	VerifiedSummariesByTopic(ctx context.Context, topic string, limit int) ([]domain.CheckedSummary, error)
	UnstreamedSummaries(ctx context.Context) ([]domain.StreamEntry, error)
	MarkStreamed(ctx context.Context, summaryID int64, at time.Time) error
}

// StoreTx is a transaction-scoped view of the store.
type StoreTx interface {
	Queries
	Commit() error
	Rollback() error
}

// Store is the durable relational store.
type Store interface {
	Queries
	Begin(ctx context.Context) (StoreTx, error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
