package usecase

import (
	"context"
	"sort"
	"strings"
	"time"

	"newsdesk/internal/domain"
	"newsdesk/internal/ports"
)

// memStore is an in-memory ports.Store used to exercise stage logic. Its
// Begin returns a view over the same data; batch atomicity is not part of
// what these tests assert.
type memStore struct {
	subscribers  []domain.Subscriber
	prefs        []domain.Preference
	sources      []domain.FeedSource
	links        map[[2]int64]bool
	items        []domain.ContentItem
	summaries    []domain.Summary
	factchecks   []domain.FactCheck
	commentaries []domain.Commentary
	issues       []domain.Issue
	streamed     []domain.StreamDelivery
	nextID       int64
}

var _ ports.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{links: map[[2]int64]bool{}}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

type memTx struct{ *memStore }

func (memTx) Commit() error   { return nil }
func (memTx) Rollback() error { return nil }

func (m *memStore) Begin(ctx context.Context) (ports.StoreTx, error) {
	return memTx{m}, nil
}

func (m *memStore) Subscribers(ctx context.Context) ([]domain.Subscriber, error) {
	return append([]domain.Subscriber(nil), m.subscribers...), nil
}

func (m *memStore) UpsertSubscriber(ctx context.Context, telegramID string) (domain.Subscriber, error) {
	for _, s := range m.subscribers {
		if s.TelegramID == telegramID {
			return s, nil
		}
	}
	s := domain.Subscriber{ID: m.id(), TelegramID: telegramID, Plan: domain.PlanBasic}
	m.subscribers = append(m.subscribers, s)
	return s, nil
}

func (m *memStore) SetPlan(ctx context.Context, subscriberID int64, plan domain.Plan) error {
	for i := range m.subscribers {
		if m.subscribers[i].ID == subscriberID {
			m.subscribers[i].Plan = plan
		}
	}
	return nil
}

func (m *memStore) Preferences(ctx context.Context, subscriberID int64) ([]domain.Preference, error) {
	var prefs []domain.Preference
	for _, p := range m.prefs {
		if p.SubscriberID == subscriberID {
			prefs = append(prefs, p)
		}
	}
	return prefs, nil
}

func (m *memStore) AddPreference(ctx context.Context, pref domain.Preference) error {
	pref.ID = m.id()
	m.prefs = append(m.prefs, pref)
	return nil
}

func (m *memStore) SetLastDelivered(ctx context.Context, preferenceID int64, at time.Time) error {
	for i := range m.prefs {
		if m.prefs[i].ID == preferenceID {
			t := at
			m.prefs[i].LastDelivered = &t
		}
	}
	return nil
}

func (m *memStore) SourceByURL(ctx context.Context, url string) (domain.FeedSource, bool, error) {
	for _, s := range m.sources {
		if s.URL == url {
			return s, true, nil
		}
	}
	return domain.FeedSource{}, false, nil
}

func (m *memStore) InsertSource(ctx context.Context, src domain.FeedSource) (domain.FeedSource, error) {
	src.ID = m.id()
	m.sources = append(m.sources, src)
	return src, nil
}

func (m *memStore) LinkSource(ctx context.Context, subscriberID, sourceID int64) error {
	m.links[[2]int64{subscriberID, sourceID}] = true
	return nil
}

func (m *memStore) UnlinkSource(ctx context.Context, subscriberID, sourceID int64) error {
	delete(m.links, [2]int64{subscriberID, sourceID})
	return nil
}

func (m *memStore) SourcesForSubscriber(ctx context.Context, subscriberID int64) ([]domain.FeedSource, error) {
	var sources []domain.FeedSource
	for _, src := range m.sources {
		if m.links[[2]int64{subscriberID, src.ID}] {
			sources = append(sources, src)
		}
	}
	return sources, nil
}

func (m *memStore) PremiumCustomSources(ctx context.Context) ([]domain.FeedSource, error) {
	var sources []domain.FeedSource
	for _, sub := range m.subscribers {
		if sub.Plan != domain.PlanPremium {
			continue
		}
		linked, _ := m.SourcesForSubscriber(ctx, sub.ID)
		sources = append(sources, linked...)
	}
	return sources, nil
}

func (m *memStore) InsertContentItem(ctx context.Context, item domain.ContentItem) (bool, error) {
	for _, existing := range m.items {
		if existing.URL == item.URL {
			return false, nil
		}
	}
	item.ID = m.id()
	m.items = append(m.items, item)
	return true, nil
}

func (m *memStore) ItemsWithoutSummary(ctx context.Context) ([]domain.ContentItem, error) {
	var items []domain.ContentItem
	for _, item := range m.items {
		if m.summaryForContent(item.ID) == nil {
			items = append(items, item)
		}
	}
	return items, nil
}

func (m *memStore) summaryForContent(contentID int64) *domain.Summary {
	for i := range m.summaries {
		if m.summaries[i].ContentID == contentID {
			return &m.summaries[i]
		}
	}
	return nil
}

func (m *memStore) factcheckFor(summaryID int64) *domain.FactCheck {
	for i := range m.factchecks {
		if m.factchecks[i].SummaryID == summaryID {
			return &m.factchecks[i]
		}
	}
	return nil
}

func (m *memStore) commentaryFor(summaryID int64) *domain.Commentary {
	for i := range m.commentaries {
		if m.commentaries[i].SummaryID == summaryID {
			return &m.commentaries[i]
		}
	}
	return nil
}

func (m *memStore) InsertSummary(ctx context.Context, summary domain.Summary) error {
	summary.ID = m.id()
	m.summaries = append(m.summaries, summary)
	return nil
}

func (m *memStore) SummariesWithoutFactCheck(ctx context.Context) ([]domain.Summary, error) {
	var summaries []domain.Summary
	for _, s := range m.summaries {
		if m.factcheckFor(s.ID) == nil {
			summaries = append(summaries, s)
		}
	}
	return summaries, nil
}

func (m *memStore) InsertFactCheck(ctx context.Context, check domain.FactCheck) error {
	check.ID = m.id()
	m.factchecks = append(m.factchecks, check)
	return nil
}

func (m *memStore) SummariesWithoutCommentary(ctx context.Context) ([]domain.CheckedSummary, error) {
	var rows []domain.CheckedSummary
	for _, s := range m.summaries {
		check := m.factcheckFor(s.ID)
		if check == nil || m.commentaryFor(s.ID) != nil {
			continue
		}
		rows = append(rows, domain.CheckedSummary{Summary: s, Status: check.Status, Citations: check.Citations})
	}
	return rows, nil
}

func (m *memStore) InsertCommentary(ctx context.Context, commentary domain.Commentary) error {
	commentary.ID = m.id()
	m.commentaries = append(m.commentaries, commentary)
	return nil
}

func (m *memStore) IssueExists(ctx context.Context, date time.Time) (bool, error) {
	for _, issue := range m.issues {
		if sameDay(issue.Date, date) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) EntriesForDate(ctx context.Context, date time.Time) ([]domain.IssueEntry, error) {
	var entries []domain.IssueEntry
	for _, s := range m.summaries {
		if !sameDay(s.CreatedAt, date) {
			continue
		}
		check := m.factcheckFor(s.ID)
		commentary := m.commentaryFor(s.ID)
		if check == nil || commentary == nil {
			continue
		}
		entries = append(entries, domain.IssueEntry{Summary: s, FactCheck: *check, Commentary: *commentary})
	}
	return entries, nil
}

func (m *memStore) InsertIssue(ctx context.Context, issue domain.Issue) error {
	issue.ID = m.id()
	m.issues = append(m.issues, issue)
	return nil
}

func (m *memStore) VerifiedSummariesByTopic(ctx context.Context, topic string, limit int) ([]domain.CheckedSummary, error) {
	var rows []domain.CheckedSummary
	for _, s := range m.summaries {
		check := m.factcheckFor(s.ID)
		if check == nil || check.Status != domain.StatusVerified {
			continue
		}
		if !strings.EqualFold(s.Topic, topic) {
			continue
		}
		rows = append(rows, domain.CheckedSummary{Summary: s, Status: check.Status, Citations: check.Citations})
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Summary.CreatedAt.Equal(rows[j].Summary.CreatedAt) {
			return rows[i].Summary.CreatedAt.After(rows[j].Summary.CreatedAt)
		}
		return rows[i].Summary.ID > rows[j].Summary.ID
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *memStore) UnstreamedSummaries(ctx context.Context) ([]domain.StreamEntry, error) {
	var entries []domain.StreamEntry
	for _, s := range m.summaries {
		check := m.factcheckFor(s.ID)
		if check == nil || m.isStreamed(s.ID) {
			continue
		}
		var item domain.ContentItem
		for _, it := range m.items {
			if it.ID == s.ContentID {
				item = it
			}
		}
		entries = append(entries, domain.StreamEntry{Summary: s, Item: item, Status: check.Status})
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Summary.CreatedAt.Equal(entries[j].Summary.CreatedAt) {
			return entries[i].Summary.CreatedAt.Before(entries[j].Summary.CreatedAt)
		}
		return entries[i].Summary.ID < entries[j].Summary.ID
	})
	return entries, nil
}

func (m *memStore) isStreamed(summaryID int64) bool {
	for _, sd := range m.streamed {
		if sd.SummaryID == summaryID {
			return true
		}
	}
	return false
}

func (m *memStore) MarkStreamed(ctx context.Context, summaryID int64, at time.Time) error {
	m.streamed = append(m.streamed, domain.StreamDelivery{ID: m.id(), SummaryID: summaryID, SentAt: at})
	return nil
}

func sameDay(a, b time.Time) bool {
	return a.UTC().Format("2006-01-02") == b.UTC().Format("2006-01-02")
}
