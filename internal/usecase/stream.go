package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newsdesk/internal/ports"
)

// StreamerDeps wires the live-stream stage.
type StreamerDeps struct {
	Store     ports.Store
	Messenger ports.Messenger
	ChannelID string
	Logger    *slog.Logger
	Now       func() time.Time
}

// Streamer pushes not-yet-streamed summaries to the live channel in FIFO
// order, recording each delivery immediately so a crash mid-run re-sends
// at most the one in-flight item.
type Streamer struct {
	store     ports.Store
	messenger ports.Messenger
	channelID string
	logger    *slog.Logger
	now       func() time.Time
}

// NewStreamer constructs the stream stage.
func NewStreamer(deps StreamerDeps) *Streamer {
	s := &Streamer{
		store:     deps.Store,
		messenger: deps.Messenger,
		channelID: deps.ChannelID,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Run delivers every unstreamed summary, oldest first. A send failure
// aborts the run; already-recorded deliveries are never repeated.
func (s *Streamer) Run(ctx context.Context) error {
	if s.channelID == "" {
		return fmt.Errorf("stream: channel id not configured")
	}

	entries, err := s.store.UnstreamedSummaries(ctx)
	if err != nil {
		return fmt.Errorf("stream: %w", err)
	}

	for _, entry := range entries {
		text := fmt.Sprintf("%s\n\nSource: %s\nFact check: %s",
			entry.Summary.Text, entry.Item.Origin, entry.Status)

		if image := extractImage(entry.Item.Raw); image != "" {
			err = s.messenger.SendPhoto(ctx, s.channelID, image, text)
		} else {
			err = s.messenger.SendMessage(ctx, s.channelID, text)
		}
		if err != nil {
			return fmt.Errorf("stream summary %d: %w", entry.Summary.ID, err)
		}

		if err := s.store.MarkStreamed(ctx, entry.Summary.ID, s.now().UTC()); err != nil {
			return fmt.Errorf("stream summary %d: %w", entry.Summary.ID, err)
		}
	}

	if len(entries) > 0 {
		s.logger.Info("stream done", "sent", len(entries))
	}
	return nil
}

// rawEntry holds the feed metadata fields an image URL may hide in.
type rawEntry struct {
	Image *struct {
		URL string `json:"url"`
	} `json:"image"`
	Enclosures []struct {
		URL  string `json:"url"`
		Type string `json:"type"`
	} `json:"enclosures"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// extractImage digs an image URL out of the raw feed entry: the feed-level
// image, an image enclosure, or the first <img> in the HTML description.
func extractImage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var entry rawEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return ""
	}

	if entry.Image != nil && entry.Image.URL != "" {
		return entry.Image.URL
	}
	for _, enc := range entry.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}

	for _, html := range []string{entry.Description, entry.Content} {
		if !strings.Contains(html, "<img") {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			continue
		}
		if src, ok := doc.Find("img").First().Attr("src"); ok && src != "" {
			return src
		}
	}

	return ""
}
