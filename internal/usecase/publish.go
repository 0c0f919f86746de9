package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"newsdesk/internal/domain"
	"newsdesk/internal/ports"
)

// deliveryLimit caps how many summaries one digest message carries.
const deliveryLimit = 5

// PublisherDeps wires the per-subscriber delivery stage.
type PublisherDeps struct {
	Store     ports.Store
	Messenger ports.Messenger
	Logger    *slog.Logger
	Now       func() time.Time
}

// Publisher sends topic digests to subscribers, throttled by each
// preference's cadence window. Only verified content is ever delivered.
type Publisher struct {
	store     ports.Store
	messenger ports.Messenger
	logger    *slog.Logger
	now       func() time.Time
}

// NewPublisher constructs the delivery stage.
func NewPublisher(deps PublisherDeps) *Publisher {
	p := &Publisher{
		store:     deps.Store,
		messenger: deps.Messenger,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Run evaluates every (subscriber, preference) pair. A preference whose
// cadence window has not elapsed, or whose topic has no verified matches,
// is skipped without touching its last-delivered timestamp.
func (p *Publisher) Run(ctx context.Context) error {
	subscribers, err := p.store.Subscribers(ctx)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	for _, sub := range subscribers {
		prefs, err := p.store.Preferences(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}

		for _, pref := range prefs {
			if err := p.deliver(ctx, sub, pref); err != nil {
				p.logger.Warn("delivery failed",
					"subscriber", sub.TelegramID, "topic", pref.Topic, "error", err)
			}
		}
	}

	return nil
}

func (p *Publisher) deliver(ctx context.Context, sub domain.Subscriber, pref domain.Preference) error {
	now := p.now().UTC()
	if pref.LastDelivered != nil && now.Sub(*pref.LastDelivered) < pref.Cadence.Window() {
		return nil
	}

	rows, err := p.store.VerifiedSummariesByTopic(ctx, pref.Topic, deliveryLimit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	text := digestText(pref, rows)
	if err := p.messenger.SendMessage(ctx, sub.TelegramID, text); err != nil {
		// Leave last_delivered untouched so the failed window is retried.
		return err
	}

	if err := p.store.SetLastDelivered(ctx, pref.ID, now); err != nil {
		return err
	}

	p.logger.Info("digest delivered",
		"subscriber", sub.TelegramID, "topic", pref.Topic, "items", len(rows))
	return nil
}

func digestText(pref domain.Preference, rows []domain.CheckedSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your %s News on '%s':\n\n", titleCadence(pref.Cadence), pref.Topic)
	for _, row := range rows {
		fmt.Fprintf(&b, "• %s\n_Fact:_ %s\n\n", row.Summary.Text, row.Status)
	}
	return b.String()
}

func titleCadence(c domain.Cadence) string {
	switch c {
	case domain.CadenceHourly:
		return "Hourly"
	case domain.CadenceDaily:
		return "Daily"
	case domain.CadenceWeekly:
		return "Weekly"
	}
	return string(c)
}
