// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

// Package botservice implements the bot's update handlers and admin
// operations.
package botservice

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/primo-rp/communitybot/internal/botdb"
	"github.com/primo-rp/communitybot/internal/dispatch"
	"github.com/primo-rp/communitybot/internal/middleware"
	"github.com/primo-rp/communitybot/internal/ratex"
	"github.com/primo-rp/communitybot/internal/taskqueue"
	"github.com/primo-rp/communitybot/pkg/roster"
	"github.com/primo-rp/communitybot/pkg/telegram"
)

// Config carries the community-specific settings.
type Config struct {
	// BotUsername strips "@botname" command suffixes in groups.
	BotUsername string
	// SupportChat is the forum supergroup questionnaires are filed in.
	SupportChat telegram.ChatRef
	// Channels the subscription gate requires membership in.
	Channels []telegram.ChatRef
	// Admins receive error notifications.
	Admins []int64

	ProjectName  string
	InfoURL      string
	FloodURL     string
	RoleplayURL  string
	AdminContact string
	// StartPhoto is a file_id or URL attached to the welcome message.
	StartPhoto string
	Facts      []string

	RateLimit       int
	RatePeriod      time.Duration
	SubscriptionTTL time.Duration
}

// Service holds the handler dependencies. It is shared by the webhook
// dispatcher and the admin operations.
type Service struct {
	Store   botdb.Store
	Bot     telegram.API
	Queue   taskqueue.Queue
	TaskURL string
	Config  Config
	// Limiter paces broadcast deliveries.
	Limiter *ratex.BackoffLimiter

	router *dispatch.Router
	gate   *middleware.SubscriptionGate
	now    func() time.Time
	fact   func() string
}

// NewService wires the dispatch router and middleware chain.
func NewService(store botdb.Store, bot telegram.API, cfg Config) *Service {
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.RatePeriod == 0 {
		cfg.RatePeriod = 2 * time.Second
	}
	if cfg.SubscriptionTTL == 0 {
		cfg.SubscriptionTTL = 5 * time.Minute
	}
	s := &Service{
		Store:   store,
		Bot:     bot,
		Config:  cfg,
		Limiter: ratex.NewBackoffLimiter(50 * time.Millisecond),
		now:     time.Now,
	}
	s.fact = func() string {
		if len(cfg.Facts) == 0 {
			return ""
		}
		return cfg.Facts[rand.Intn(len(cfg.Facts))]
	}
	s.gate = middleware.NewSubscriptionGate(bot, cfg.Channels, cfg.SubscriptionTTL)

	r := dispatch.NewRouter()
	r.BotUsername = cfg.BotUsername
	r.Use(
		middleware.Timing(),
		middleware.Logging(),
		middleware.ErrorNotify(bot, cfg.Admins),
		middleware.RateLimit(bot, cfg.RateLimit, cfg.RatePeriod),
		s.gate.Middleware(),
		middleware.CountMessages(store),
	)
	r.Command(s.handleStart, "start", "settings", "help")
	r.Command(s.handleActive, "active")
	r.Command(s.handleNew, "new")
	r.Callback("start", s.handleStart)
	r.Callback("active", s.handleActive)
	r.Callback("new", s.handleNew)
	r.Callback("anketa", s.handleQuestionnaireStatus)
	r.Callback("admin", s.handleAdminContact)
	r.Callback("submit_new", s.handleSubmit)
	r.Callback(s.gate.RecheckData, s.handleCheckSubscription)
	r.CallbackPrefix(topicType+":", s.handleDecision)
	r.Message(s.handleTopicReply)
	r.Message(s.handleDraftMessage)
	s.router = r
	return s
}

// Router returns the update router.
func (s *Service) Router() *dispatch.Router {
	return s.router
}

// replyChat picks the chat to respond in: the originating chat when known,
// the user's private chat otherwise.
func replyChat(ev dispatch.Event) telegram.ChatRef {
	switch {
	case ev.Message != nil:
		return telegram.ChatID(ev.Message.Chat.ID)
	case ev.Callback != nil && ev.Callback.Message != nil:
		return telegram.ChatID(ev.Callback.Message.Chat.ID)
	}
	if u := ev.User(); u != nil {
		return telegram.ChatID(u.ID)
	}
	return telegram.ChatRef{}
}

// answer acknowledges a callback event, if the event is one.
func (s *Service) answer(ctx context.Context, ev dispatch.Event, text string, alert bool) error {
	if ev.Callback == nil {
		return nil
	}
	return s.Bot.AnswerCallbackQuery(ctx, telegram.AnswerCallbackQueryParams{
		CallbackQueryID: ev.Callback.ID,
		Text:            text,
		ShowAlert:       alert,
	})
}

// refreshRoster re-renders one game's pinned roster against current role
// occupancy. Communities without a saved roster message are skipped.
func (s *Service) refreshRoster(ctx context.Context, game roster.Game) (bool, error) {
	rm, err := s.Store.Roster(ctx, game)
	if errors.Is(err, botdb.ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, errors.Wrap(err, "fetching roster")
	}
	occupancy, err := s.Store.RoleOccupancy(ctx, game)
	if err != nil {
		return false, errors.Wrap(err, "fetching occupancy")
	}
	rendered := roster.Render(rm.Text, occupancy)
	if rendered == rm.Text {
		return false, nil
	}
	if _, err := s.Bot.EditMessageText(ctx, telegram.EditMessageTextParams{
		Chat:      telegram.ChatID(rm.Chat),
		MessageID: rm.MessageID,
		Text:      rendered,
	}); err != nil {
		return false, errors.Wrap(err, "editing roster message")
	}
	rm.Text = rendered
	if err := s.Store.SaveRoster(ctx, rm); err != nil {
		return false, errors.Wrap(err, "saving roster")
	}
	return true, nil
}

// refreshAllRosters refreshes every game's pinned roster.
func (s *Service) refreshAllRosters(ctx context.Context) error {
	for _, game := range roster.Games {
		if _, err := s.refreshRoster(ctx, game); err != nil {
			return errors.Wrapf(err, "refreshing %s roster", game)
		}
	}
	return nil
}
