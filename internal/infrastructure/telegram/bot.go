package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"newsdesk/internal/domain"
	"newsdesk/internal/ports"
	"newsdesk/internal/usecase"
)

// Conversation states. Every chat is in exactly one state; stateIdle means
// no conversation is in progress and only commands are understood.
type botState int

const (
	stateIdle botState = iota
	stateMainMenu
	statePlanMenu
	statePrefTopic
	statePrefCadence
	stateManageMenu
	stateAddSourceName
	stateAddSourceURL
	stateRemoveSource
)

// Verifier fact-checks arbitrary user-provided text.
type Verifier interface {
	CheckText(ctx context.Context, text string) (domain.FactStatus, []string, string)
}

// BotDeps wires the bot's collaborators.
type BotDeps struct {
	Token    string
	APIBase  string
	Store    ports.Store
	Sources  *usecase.SourceManager
	Verifier Verifier
	Logger   *slog.Logger
}

// Bot runs the subscriber-facing conversation loop over long polling.
// State transitions are explicit: each update is routed by the chat's
// current state, never by guessing at message shape.
type Bot struct {
	apiBase  string
	token    string
	client   *http.Client
	store    ports.Store
	sources  *usecase.SourceManager
	verifier Verifier
	logger   *slog.Logger

	offset   int64
	sessions map[int64]*session
}

type session struct {
	state      botState
	topic      string
	sourceName string
}

// NewBot constructs the bot. An empty APIBase uses the public Bot API.
func NewBot(deps BotDeps) *Bot {
	apiBase := deps.APIBase
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		apiBase:  apiBase,
		token:    deps.Token,
		client:   &http.Client{Timeout: 40 * time.Second},
		store:    deps.Store,
		sources:  deps.Sources,
		verifier: deps.Verifier,
		logger:   logger,
		sessions: make(map[int64]*session),
	}
}

// Run polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if b.token == "" {
		return fmt.Errorf("bot token not configured")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := b.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("getUpdates failed", "error", err)
			time.Sleep(3 * time.Second)
			continue
		}

		for _, upd := range updates {
			b.offset = upd.UpdateID + 1
			b.handleUpdate(ctx, upd)
		}
	}
}

func (b *Bot) session(chatID int64) *session {
	s, ok := b.sessions[chatID]
	if !ok {
		s = &session{state: stateIdle}
		b.sessions[chatID] = s
	}
	return s
}

func (b *Bot) handleUpdate(ctx context.Context, upd update) {
	switch {
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil:
		chatID := upd.CallbackQuery.Message.Chat.ID
		b.handleCallback(ctx, chatID, upd.CallbackQuery.Data)
	case upd.Message != nil:
		b.handleMessage(ctx, upd.Message.Chat.ID, strings.TrimSpace(upd.Message.Text))
	}
}

func (b *Bot) handleMessage(ctx context.Context, chatID int64, text string) {
	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, chatID, text)
		return
	}

	s := b.session(chatID)
	switch s.state {
	case statePrefTopic:
		s.topic = text
		s.state = statePrefCadence
		b.send(ctx, chatID, fmt.Sprintf("Topic '%s'. How often?", text), cadenceKeyboard())
	case stateAddSourceName:
		s.sourceName = text
		s.state = stateAddSourceURL
		b.send(ctx, chatID, "Now send the feed URL.", nil)
	case stateAddSourceURL:
		b.addSource(ctx, chatID, s.sourceName, text)
		s.state = stateIdle
	default:
		b.send(ctx, chatID, "Use /start for the menu or /help for commands.", nil)
	}
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, text string) {
	cmd, args, _ := strings.Cut(text, " ")
	args = strings.TrimSpace(args)

	switch cmd {
	case "/start":
		if _, err := b.store.UpsertSubscriber(ctx, strconv.FormatInt(chatID, 10)); err != nil {
			b.logger.Error("upsert subscriber failed", "error", err)
			return
		}
		b.session(chatID).state = stateMainMenu
		b.send(ctx, chatID, "Welcome to Newsdesk!", mainMenuKeyboard())

	case "/plan":
		plan, err := domain.ParsePlan(args)
		if err != nil {
			b.send(ctx, chatID, "Usage: /plan basic|premium", nil)
			return
		}
		b.setPlan(ctx, chatID, plan)

	case "/set":
		topic, cadenceRaw, _ := strings.Cut(args, " ")
		cadence, err := domain.ParseCadence(strings.TrimSpace(cadenceRaw))
		if topic == "" || err != nil {
			b.send(ctx, chatID, "Usage: /set <topic> hourly|daily|weekly", nil)
			return
		}
		b.addPreference(ctx, chatID, topic, cadence)

	case "/addsource":
		name, url, _ := strings.Cut(args, " ")
		url = strings.TrimSpace(url)
		if name == "" || url == "" {
			b.send(ctx, chatID, "Usage: /addsource <name> <url>", nil)
			return
		}
		b.addSource(ctx, chatID, name, url)

	case "/removesource":
		if args == "" {
			b.send(ctx, chatID, "Usage: /removesource <url>", nil)
			return
		}
		b.removeSource(ctx, chatID, args)

	case "/listsources":
		b.listSources(ctx, chatID)

	case "/verify":
		if args == "" {
			b.send(ctx, chatID, "Usage: /verify <text>", nil)
			return
		}
		status, citations, analysis := b.verifier.CheckText(ctx, args)
		reply := fmt.Sprintf("Verdict: %s", status)
		if analysis != "" {
			reply += "\n" + analysis
		}
		if len(citations) > 0 {
			reply += "\nCitations: " + strings.Join(citations, ", ")
		}
		b.send(ctx, chatID, reply, nil)

	case "/help":
		b.send(ctx, chatID, "Commands:\n/start — menu\n/plan basic|premium\n"+
			"/set <topic> hourly|daily|weekly\n/addsource <name> <url>\n"+
			"/removesource <url>\n/listsources\n/verify <text>", nil)

	default:
		b.send(ctx, chatID, "Unknown command, try /help.", nil)
	}
}

func (b *Bot) handleCallback(ctx context.Context, chatID int64, data string) {
	s := b.session(chatID)

	switch s.state {
	case stateMainMenu:
		switch data {
		case "menu:plan":
			s.state = statePlanMenu
			b.send(ctx, chatID, "Choose a plan:", planKeyboard())
		case "menu:pref":
			s.state = statePrefTopic
			b.send(ctx, chatID, "Which topic interests you?", nil)
		case "menu:sources":
			s.state = stateManageMenu
			b.send(ctx, chatID, "Manage your feeds:", manageKeyboard())
		}

	case statePlanMenu:
		plan, err := domain.ParsePlan(strings.TrimPrefix(data, "plan:"))
		if err != nil {
			return
		}
		b.setPlan(ctx, chatID, plan)
		s.state = stateIdle

	case statePrefCadence:
		cadence, err := domain.ParseCadence(strings.TrimPrefix(data, "cadence:"))
		if err != nil {
			return
		}
		b.addPreference(ctx, chatID, s.topic, cadence)
		s.state = stateIdle

	case stateManageMenu:
		switch data {
		case "src:add":
			s.state = stateAddSourceName
			b.send(ctx, chatID, "Name for the new feed?", nil)
		case "src:remove":
			s.state = stateRemoveSource
			b.promptSourceRemoval(ctx, chatID)
		case "src:list":
			b.listSources(ctx, chatID)
			s.state = stateIdle
		}

	case stateRemoveSource:
		b.removeSource(ctx, chatID, strings.TrimPrefix(data, "rm:"))
		s.state = stateIdle
	}
}

func (b *Bot) subscriber(ctx context.Context, chatID int64) (domain.Subscriber, bool) {
	sub, err := b.store.UpsertSubscriber(ctx, strconv.FormatInt(chatID, 10))
	if err != nil {
		b.logger.Error("subscriber lookup failed", "error", err)
		return domain.Subscriber{}, false
	}
	return sub, true
}

func (b *Bot) setPlan(ctx context.Context, chatID int64, plan domain.Plan) {
	sub, ok := b.subscriber(ctx, chatID)
	if !ok {
		return
	}
	if err := b.store.SetPlan(ctx, sub.ID, plan); err != nil {
		b.logger.Error("set plan failed", "error", err)
		return
	}
	b.send(ctx, chatID, fmt.Sprintf("Plan set to %s.", plan), nil)
}

func (b *Bot) addPreference(ctx context.Context, chatID int64, topic string, cadence domain.Cadence) {
	sub, ok := b.subscriber(ctx, chatID)
	if !ok {
		return
	}
	pref := domain.Preference{SubscriberID: sub.ID, Topic: topic, Cadence: cadence}
	if err := b.store.AddPreference(ctx, pref); err != nil {
		b.logger.Error("add preference failed", "error", err)
		return
	}
	b.send(ctx, chatID, fmt.Sprintf("Subscribed to '%s' (%s).", topic, cadence), nil)
}

func (b *Bot) addSource(ctx context.Context, chatID int64, name, url string) {
	sub, ok := b.subscriber(ctx, chatID)
	if !ok {
		return
	}
	if err := b.sources.Add(ctx, sub.ID, name, url); err != nil {
		b.logger.Error("add source failed", "error", err)
		b.send(ctx, chatID, "Could not add that feed.", nil)
		return
	}
	b.send(ctx, chatID, fmt.Sprintf("Feed '%s' added.", name), nil)
}

func (b *Bot) removeSource(ctx context.Context, chatID int64, url string) {
	sub, ok := b.subscriber(ctx, chatID)
	if !ok {
		return
	}
	if err := b.sources.Remove(ctx, sub.ID, url); err != nil {
		b.logger.Error("remove source failed", "error", err)
		return
	}
	b.send(ctx, chatID, "Feed removed.", nil)
}

func (b *Bot) listSources(ctx context.Context, chatID int64) {
	sub, ok := b.subscriber(ctx, chatID)
	if !ok {
		return
	}
	sources, err := b.sources.List(ctx, sub.ID)
	if err != nil {
		b.logger.Error("list sources failed", "error", err)
		return
	}
	if len(sources) == 0 {
		b.send(ctx, chatID, "You have no custom feeds.", nil)
		return
	}
	var lines []string
	for _, src := range sources {
		lines = append(lines, fmt.Sprintf("%s — %s", src.Name, src.URL))
	}
	b.send(ctx, chatID, strings.Join(lines, "\n"), nil)
}

func (b *Bot) promptSourceRemoval(ctx context.Context, chatID int64) {
	sub, ok := b.subscriber(ctx, chatID)
	if !ok {
		return
	}
	sources, err := b.sources.List(ctx, sub.ID)
	if err != nil || len(sources) == 0 {
		b.send(ctx, chatID, "You have no custom feeds.", nil)
		b.session(chatID).state = stateIdle
		return
	}
	var rows [][]inlineButton
	for _, src := range sources {
		rows = append(rows, []inlineButton{{Text: src.Name, CallbackData: "rm:" + src.URL}})
	}
	b.send(ctx, chatID, "Pick a feed to remove:", &inlineKeyboard{InlineKeyboard: rows})
}

// Wire types for the Bot API.

type update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *incoming      `json:"message"`
	CallbackQuery *callbackQuery `json:"callback_query"`
}

type incoming struct {
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Text string `json:"text"`
}

type callbackQuery struct {
	ID      string    `json:"id"`
	Data    string    `json:"data"`
	Message *incoming `json:"message"`
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

func mainMenuKeyboard() *inlineKeyboard {
	return &inlineKeyboard{InlineKeyboard: [][]inlineButton{
		{{Text: "Plan", CallbackData: "menu:plan"}},
		{{Text: "Subscriptions", CallbackData: "menu:pref"}},
		{{Text: "My feeds", CallbackData: "menu:sources"}},
	}}
}

func planKeyboard() *inlineKeyboard {
	return &inlineKeyboard{InlineKeyboard: [][]inlineButton{
		{
			{Text: "Basic", CallbackData: "plan:basic"},
			{Text: "Premium", CallbackData: "plan:premium"},
		},
	}}
}

func cadenceKeyboard() *inlineKeyboard {
	return &inlineKeyboard{InlineKeyboard: [][]inlineButton{
		{
			{Text: "Hourly", CallbackData: "cadence:hourly"},
			{Text: "Daily", CallbackData: "cadence:daily"},
			{Text: "Weekly", CallbackData: "cadence:weekly"},
		},
	}}
}

func manageKeyboard() *inlineKeyboard {
	return &inlineKeyboard{InlineKeyboard: [][]inlineButton{
		{{Text: "Add feed", CallbackData: "src:add"}},
		{{Text: "Remove feed", CallbackData: "src:remove"}},
		{{Text: "List feeds", CallbackData: "src:list"}},
	}}
}

func (b *Bot) getUpdates(ctx context.Context) ([]update, error) {
	payload, err := json.Marshal(map[string]any{
		"offset":  b.offset,
		"timeout": 30,
	})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/bot%s/getUpdates", b.apiBase, b.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("getUpdates: %s", resp.Status)
	}

	var decoded struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	if !decoded.OK {
		return nil, fmt.Errorf("getUpdates: not ok")
	}
	return decoded.Result, nil
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, keyboard *inlineKeyboard) {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if keyboard != nil {
		payload["reply_markup"] = keyboard
	}

	body, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("marshal send payload", "error", err)
		return
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", b.apiBase, b.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		b.logger.Error("new send request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Warn("send failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b.logger.Warn("send rejected", "status", resp.Status)
	}
}
