package usecase

import (
	"context"
	"errors"

	"newsdesk/internal/domain"
	"newsdesk/internal/ports"
)

// stubLLM satisfies Completer with canned (or scripted) replies.
type stubLLM struct {
	reply   string
	replies []string // consumed in order when non-nil
	fail    bool
	calls   int
}

func (s *stubLLM) Complete(ctx context.Context, req ports.ChatRequest) (string, bool) {
	s.calls++
	if s.fail {
		return "", false
	}
	if s.replies != nil {
		if len(s.replies) == 0 {
			return "", false
		}
		reply := s.replies[0]
		s.replies = s.replies[1:]
		return reply, true
	}
	return s.reply, true
}

// fakeFetcher maps feed URLs to canned entries.
type fakeFetcher struct {
	feeds map[string][]domain.FeedEntry
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]domain.FeedEntry, error) {
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	entries, ok := f.feeds[url]
	if !ok {
		return nil, errors.New("unknown feed")
	}
	return entries, nil
}

type sentMessage struct {
	ChatID string
	Text   string
	Photo  string
}

// fakeMessenger records sends and can fail from a given call onward.
type fakeMessenger struct {
	sent      []sentMessage
	failAfter int // fail calls numbered > failAfter (0 means never fail)
	calls     int
}

func (f *fakeMessenger) SendMessage(ctx context.Context, chatID, text string) error {
	return f.record(sentMessage{ChatID: chatID, Text: text})
}

func (f *fakeMessenger) SendPhoto(ctx context.Context, chatID, photoURL, caption string) error {
	return f.record(sentMessage{ChatID: chatID, Text: caption, Photo: photoURL})
}

func (f *fakeMessenger) record(msg sentMessage) error {
	f.calls++
	if f.failAfter > 0 && f.calls > f.failAfter {
		return errors.New("send failed")
	}
	f.sent = append(f.sent, msg)
	return nil
}
