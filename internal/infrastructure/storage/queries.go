package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"newsdesk/internal/domain"
)

// queries implements ports.Queries over either a pool or a transaction.
type queries struct {
	db runner
}

func (q queries) Subscribers(ctx context.Context) ([]domain.Subscriber, error) {
	rows, err := psql.Select("id", "telegram_id", "plan", "created_at").
		From("subscribers").
		OrderBy("id").
		RunWith(q.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var subscribers []domain.Subscriber
	for rows.Next() {
		var s domain.Subscriber
		var plan string
		if err := rows.Scan(&s.ID, &s.TelegramID, &plan, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		s.Plan, err = domain.ParsePlan(plan)
		if err != nil {
			return nil, fmt.Errorf("subscriber %d: %w", s.ID, err)
		}
		subscribers = append(subscribers, s)
	}
	return subscribers, rows.Err()
}

func (q queries) UpsertSubscriber(ctx context.Context, telegramID string) (domain.Subscriber, error) {
	var s domain.Subscriber
	var plan string
	err := psql.Insert("subscribers").
		Columns("telegram_id", "plan").
		Values(telegramID, string(domain.PlanBasic)).
		Suffix("ON CONFLICT (telegram_id) DO UPDATE SET telegram_id = EXCLUDED.telegram_id").
		Suffix("RETURNING id, telegram_id, plan, created_at").
		RunWith(q.db).QueryRowContext(ctx).
		Scan(&s.ID, &s.TelegramID, &plan, &s.CreatedAt)
	if err != nil {
		return domain.Subscriber{}, fmt.Errorf("upsert subscriber: %w", err)
	}
	s.Plan, err = domain.ParsePlan(plan)
	if err != nil {
		return domain.Subscriber{}, err
	}
	return s, nil
}

func (q queries) SetPlan(ctx context.Context, subscriberID int64, plan domain.Plan) error {
	_, err := psql.Update("subscribers").
		Set("plan", string(plan)).
		Where(sq.Eq{"id": subscriberID}).
		RunWith(q.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("set plan: %w", err)
	}
	return nil
}

func (q queries) Preferences(ctx context.Context, subscriberID int64) ([]domain.Preference, error) {
	rows, err := psql.Select("id", "subscriber_id", "topic", "cadence", "last_delivered").
		From("preferences").
		Where(sq.Eq{"subscriber_id": subscriberID}).
		OrderBy("id").
		RunWith(q.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	var prefs []domain.Preference
	for rows.Next() {
		var p domain.Preference
		var cadence string
		var last sql.NullTime
		if err := rows.Scan(&p.ID, &p.SubscriberID, &p.Topic, &cadence, &last); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		p.Cadence, err = domain.ParseCadence(cadence)
		if err != nil {
			return nil, fmt.Errorf("preference %d: %w", p.ID, err)
		}
		if last.Valid {
			t := last.Time
			p.LastDelivered = &t
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

func (q queries) AddPreference(ctx context.Context, pref domain.Preference) error {
	_, err := psql.Insert("preferences").
		Columns("subscriber_id", "topic", "cadence").
		Values(pref.SubscriberID, pref.Topic, string(pref.Cadence)).
		RunWith(q.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert preference: %w", err)
	}
	return nil
}

func (q queries) SetLastDelivered(ctx context.Context, preferenceID int64, at time.Time) error {
	_, err := psql.Update("preferences").
		Set("last_delivered", at).
		Where(sq.Eq{"id": preferenceID}).
		RunWith(q.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("set last_delivered: %w", err)
	}
	return nil
}

func (q queries) SourceByURL(ctx context.Context, url string) (domain.FeedSource, bool, error) {
	var src domain.FeedSource
	err := psql.Select("id", "name", "url", "is_social", "created_at").
		From("sources").
		Where(sq.Eq{"url": url}).
		RunWith(q.db).QueryRowContext(ctx).
		Scan(&src.ID, &src.Name, &src.URL, &src.Social, &src.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.FeedSource{}, false, nil
	}
	if err != nil {
		return domain.FeedSource{}, false, fmt.Errorf("query source: %w", err)
	}
	return src, true, nil
}

func (q queries) InsertSource(ctx context.Context, src domain.FeedSource) (domain.FeedSource, error) {
	err := psql.Insert("sources").
		Columns("name", "url", "is_social").
		Values(src.Name, src.URL, src.Social).
		Suffix("RETURNING id, created_at").
		RunWith(q.db).QueryRowContext(ctx).
		Scan(&src.ID, &src.CreatedAt)
	if err != nil {
		return domain.FeedSource{}, fmt.Errorf("insert source: %w", err)
	}
	return src, nil
}

func (q queries) LinkSource(ctx context.Context, subscriberID, sourceID int64) error {
	_, err := psql.Insert("subscriber_sources").
		Columns("subscriber_id", "source_id").
		Values(subscriberID, sourceID).
		RunWith(q.db).ExecContext(ctx)
	if isUniqueViolation(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("link source: %w", err)
	}
	return nil
}

func (q queries) UnlinkSource(ctx context.Context, subscriberID, sourceID int64) error {
	_, err := psql.Delete("subscriber_sources").
		Where(sq.Eq{"subscriber_id": subscriberID, "source_id": sourceID}).
		RunWith(q.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("unlink source: %w", err)
	}
	return nil
}

func (q queries) SourcesForSubscriber(ctx context.Context, subscriberID int64) ([]domain.FeedSource, error) {
	rows, err := psql.Select("s.id", "s.name", "s.url", "s.is_social", "s.created_at").
		From("sources s").
		Join("subscriber_sources us ON us.source_id = s.id").
		Where(sq.Eq{"us.subscriber_id": subscriberID}).
		OrderBy("s.id").
		RunWith(q.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query subscriber sources: %w", err)
	}
	defer rows.Close()
	return scanSources(rows)
}

func (q queries) PremiumCustomSources(ctx context.Context) ([]domain.FeedSource, error) {
	rows, err := psql.Select("DISTINCT s.id", "s.name", "s.url", "s.is_social", "s.created_at").
		From("sources s").
		Join("subscriber_sources us ON us.source_id = s.id").
		Join("subscribers u ON u.id = us.subscriber_id").
		Where(sq.Eq{"u.plan": string(domain.PlanPremium)}).
		OrderBy("s.id").
		RunWith(q.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query premium sources: %w", err)
	}
	defer rows.Close()
	return scanSources(rows)
}

func scanSources(rows *sql.Rows) ([]domain.FeedSource, error) {
	var sources []domain.FeedSource
	for rows.Next() {
		var src domain.FeedSource
		if err := rows.Scan(&src.ID, &src.Name, &src.URL, &src.Social, &src.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// InsertContentItem inserts one fetched article. The bool reports whether a
// new row was created; a duplicate URL is not an error.
func (q queries) InsertContentItem(ctx context.Context, item domain.ContentItem) (bool, error) {
	_, err := psql.Insert("content_items").
		Columns("url", "origin", "raw", "fetched_at").
		Values(item.URL, item.Origin, []byte(item.Raw), item.FetchedAt).
		RunWith(q.db).ExecContext(ctx)
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert content item: %w", err)
	}
	return true, nil
}

func (q queries) ItemsWithoutSummary(ctx context.Context) ([]domain.ContentItem, error) {
	rows, err := psql.Select("a.id", "a.url", "a.origin", "a.raw", "a.fetched_at").
		From("content_items a").
		LeftJoin("summaries s ON s.content_id = a.id").
		Where("s.id IS NULL").
		OrderBy("a.id").
		RunWith(q.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query unsummarized items: %w", err)
	}
	defer rows.Close()

	var items []domain.ContentItem
	for rows.Next() {
		var item domain.ContentItem
		var raw []byte
		if err := rows.Scan(&item.ID, &item.URL, &item.Origin, &raw, &item.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan content item: %w", err)
		}
		item.Raw = raw
		items = append(items, item)
	}
	return items, rows.Err()
}

func (q queries) InsertSummary(ctx context.Context, summary domain.Summary) error {
	author := sql.NullString{String: summary.Author, Valid: summary.Author != ""}
	var published sql.NullTime
	if summary.PublishedAt != nil {
		published = sql.NullTime{Time: *summary.PublishedAt, Valid: true}
	}
	topic := sql.NullString{String: summary.Topic, Valid: summary.Topic != ""}

	_, err := psql.Insert("summaries").
		Columns("content_id", "summary_text", "author", "publish_date", "topic").
		Values(summary.ContentID, summary.Text, author, published, topic).
		RunWith(q.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

func (q queries) SummariesWithoutFactCheck(ctx context.Context) ([]domain.Summary, error) {
	rows, err := summaryColumns().
		From("summaries s").
		LeftJoin("factchecks f ON f.summary_id = s.id").
		Where("f.id IS NULL").
		OrderBy("s.id").
		RunWith(q.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query unchecked summaries: %w", err)
	}
	defer rows.Close()

	var summaries []domain.Summary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (q queries) InsertFactCheck(ctx context.Context, check domain.FactCheck) error {
	citations, err := json.Marshal(check.Citations)
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}

	_, err = psql.Insert("factchecks").
		Columns("summary_id", "status", "citations", "checked_at").
		Values(check.SummaryID, string(check.Status), citations, check.CheckedAt).
		RunWith(q.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert factcheck: %w", err)
	}
	return nil
}

func (q queries) SummariesWithoutCommentary(ctx context.Context) ([]domain.CheckedSummary, error) {
	rows, err := summaryColumns().
		Columns("f.status", "f.citations").
		From("summaries s").
		Join("factchecks f ON f.summary_id = s.id").
		LeftJoin("commentaries c ON c.summary_id = s.id").
		Where("c.id IS NULL").
		OrderBy("s.id").
		RunWith(q.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query uncommented summaries: %w", err)
	}
	defer rows.Close()

	return scanCheckedSummaries(rows)
}

func (q queries) InsertCommentary(ctx context.Context, commentary domain.Commentary) error {
	_, err := psql.Insert("commentaries").
		Columns("summary_id", "commentary_text").
		Values(commentary.SummaryID, commentary.Text).
		RunWith(q.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert commentary: %w", err)
	}
	return nil
}

func (q queries) IssueExists(ctx context.Context, date time.Time) (bool, error) {
	var id int64
	err := psql.Select("id").
		From("issues").
		Where("DATE(date) = ?", date.Format("2006-01-02")).
		RunWith(q.db).QueryRowContext(ctx).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query issue: %w", err)
	}
	return true, nil
}

func (q queries) EntriesForDate(ctx context.Context, date time.Time) ([]domain.IssueEntry, error) {
	rows, err := summaryColumns().
		Columns("f.id", "f.status", "f.citations", "f.checked_at", "c.id", "c.commentary_text", "c.created_at").
		From("summaries s").
		Join("factchecks f ON f.summary_id = s.id").
		Join("commentaries c ON c.summary_id = s.id").
		Where("DATE(s.created_at) = ?", date.Format("2006-01-02")).
		OrderBy("s.id").
		RunWith(q.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query issue entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.IssueEntry
	for rows.Next() {
		var entry domain.IssueEntry
		var author, topic sql.NullString
		var published sql.NullTime
		var status string
		var citations []byte
		s := &entry.Summary
		f := &entry.FactCheck
		c := &entry.Commentary
		err := rows.Scan(
			&s.ID, &s.ContentID, &s.Text, &author, &published, &topic, &s.CreatedAt,
			&f.ID, &status, &citations, &f.CheckedAt,
			&c.ID, &c.Text, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan issue entry: %w", err)
		}
		fillSummary(s, author, published, topic)
		f.SummaryID = s.ID
		c.SummaryID = s.ID
		f.Status, err = domain.ParseFactStatus(status)
		if err != nil {
			return nil, fmt.Errorf("factcheck %d: %w", f.ID, err)
		}
		if len(citations) > 0 {
			if err := json.Unmarshal(citations, &f.Citations); err != nil {
				return nil, fmt.Errorf("unmarshal citations: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (q queries) InsertIssue(ctx context.Context, issue domain.Issue) error {
	_, err := psql.Insert("issues").
		Columns("date", "filename_txt", "filename_html").
		Values(issue.Date, issue.TextPath, issue.HTMLPath).
		RunWith(q.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (q queries) VerifiedSummariesByTopic(ctx context.Context, topic string, limit int) ([]domain.CheckedSummary, error) {
	rows, err := summaryColumns().
		Columns("f.status", "f.citations").
		From("summaries s").
		Join("factchecks f ON f.summary_id = s.id").
		Where("s.topic ILIKE ?", topic).
		Where(sq.Eq{"f.status": string(domain.StatusVerified)}).
		OrderBy("s.created_at DESC").
		Limit(uint64(limit)).
		RunWith(q.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query verified summaries: %w", err)
	}
	defer rows.Close()

	return scanCheckedSummaries(rows)
}

func (q queries) UnstreamedSummaries(ctx context.Context) ([]domain.StreamEntry, error) {
	rows, err := summaryColumns().
		Columns("a.id", "a.url", "a.origin", "a.raw", "a.fetched_at", "f.status").
		From("summaries s").
		Join("content_items a ON a.id = s.content_id").
		Join("factchecks f ON f.summary_id = s.id").
		LeftJoin("stream_items si ON si.summary_id = s.id").
		Where("si.id IS NULL").
		OrderBy("s.created_at", "s.id").
		RunWith(q.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query unstreamed summaries: %w", err)
	}
	defer rows.Close()

	var entries []domain.StreamEntry
	for rows.Next() {
		var entry domain.StreamEntry
		var author, topic sql.NullString
		var published sql.NullTime
		var status string
		var raw []byte
		s := &entry.Summary
		item := &entry.Item
		err := rows.Scan(
			&s.ID, &s.ContentID, &s.Text, &author, &published, &topic, &s.CreatedAt,
			&item.ID, &item.URL, &item.Origin, &raw, &item.FetchedAt,
			&status,
		)
		if err != nil {
			return nil, fmt.Errorf("scan stream entry: %w", err)
		}
		fillSummary(s, author, published, topic)
		item.Raw = raw
		entry.Status, err = domain.ParseFactStatus(status)
		if err != nil {
			return nil, fmt.Errorf("summary %d: %w", s.ID, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (q queries) MarkStreamed(ctx context.Context, summaryID int64, at time.Time) error {
	_, err := psql.Insert("stream_items").
		Columns("summary_id", "sent_at").
		Values(summaryID, at).
		RunWith(q.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert stream item: %w", err)
	}
	return nil
}

func summaryColumns() sq.SelectBuilder {
	return psql.Select("s.id", "s.content_id", "s.summary_text", "s.author", "s.publish_date", "s.topic", "s.created_at")
}

func scanSummary(rows *sql.Rows) (domain.Summary, error) {
	var s domain.Summary
	var author, topic sql.NullString
	var published sql.NullTime
	if err := rows.Scan(&s.ID, &s.ContentID, &s.Text, &author, &published, &topic, &s.CreatedAt); err != nil {
		return domain.Summary{}, fmt.Errorf("scan summary: %w", err)
	}
	fillSummary(&s, author, published, topic)
	return s, nil
}

func scanCheckedSummaries(rows *sql.Rows) ([]domain.CheckedSummary, error) {
	var checked []domain.CheckedSummary
	for rows.Next() {
		var cs domain.CheckedSummary
		var author, topic sql.NullString
		var published sql.NullTime
		var status string
		var citations []byte
		s := &cs.Summary
		err := rows.Scan(
			&s.ID, &s.ContentID, &s.Text, &author, &published, &topic, &s.CreatedAt,
			&status, &citations,
		)
		if err != nil {
			return nil, fmt.Errorf("scan checked summary: %w", err)
		}
		fillSummary(s, author, published, topic)
		cs.Status, err = domain.ParseFactStatus(status)
		if err != nil {
			return nil, fmt.Errorf("summary %d: %w", s.ID, err)
		}
		if len(citations) > 0 {
			if err := json.Unmarshal(citations, &cs.Citations); err != nil {
				return nil, fmt.Errorf("unmarshal citations: %w", err)
			}
		}
		checked = append(checked, cs)
	}
	return checked, rows.Err()
}

func fillSummary(s *domain.Summary, author sql.NullString, published sql.NullTime, topic sql.NullString) {
	if author.Valid {
		s.Author = author.String
	}
	if published.Valid {
		t := published.Time
		s.PublishedAt = &t
	}
	if topic.Valid {
		s.Topic = topic.String
	}
}
