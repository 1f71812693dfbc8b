// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

// Package middleware provides the dispatch middleware chain: timing,
// update logging, error notification, rate limiting, the channel
// subscription gate, and group message counting.
package middleware

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/primo-rp/communitybot/internal/botdb"
	"github.com/primo-rp/communitybot/internal/cache"
	"github.com/primo-rp/communitybot/internal/dispatch"
	"github.com/primo-rp/communitybot/internal/syncx"
	"github.com/primo-rp/communitybot/pkg/schema"
	"github.com/primo-rp/communitybot/pkg/telegram"
)

func userTag(ev dispatch.Event) string {
	if u := ev.User(); u != nil {
		return u.Tag()
	}
	return "@System"
}

// Timing logs handlers that took over a second.
func Timing() dispatch.Middleware {
	return func(next dispatch.Handler) dispatch.Handler {
		return func(ctx context.Context, ev dispatch.Event) error {
			start := time.Now()
			defer func() {
				if elapsed := time.Since(start); elapsed > time.Second {
					log.Printf("[%s] slow handler: %.2fs user=%s", ev.Kind, elapsed.Seconds(), userTag(ev))
				}
			}()
			return next(ctx, ev)
		}
	}
}

// Logging logs every dispatched event with its kind and originating user.
func Logging() dispatch.Middleware {
	return func(next dispatch.Handler) dispatch.Handler {
		return func(ctx context.Context, ev dispatch.Event) error {
			log.Printf("[%s] user=%s text=%q", ev.Kind, userTag(ev), ev.Text())
			return next(ctx, ev)
		}
	}
}

// ErrorNotify turns handler errors into admin notifications and a generic
// apology to the user. Errors are consumed so the webhook still returns OK
// and Telegram does not redeliver the update.
func ErrorNotify(bot telegram.API, admins []int64) dispatch.Middleware {
	return func(next dispatch.Handler) dispatch.Handler {
		return func(ctx context.Context, ev dispatch.Event) error {
			err := next(ctx, ev)
			if err == nil {
				return nil
			}
			log.Printf("[%s] handler error: user=%s err=%v", ev.Kind, userTag(ev), err)
			text := fmt.Sprintf("🚨 Ошибка в боте:\n\nПользователь: %s\nСобытие: %s\nОшибка: %v", userTag(ev), ev.Text(), err)
			for _, admin := range admins {
				if _, err := bot.SendMessage(ctx, telegram.SendMessageParams{Chat: telegram.ChatID(admin), Text: text}); err != nil {
					log.Printf("notifying admin %d: %v", admin, err)
				}
			}
			if ev.Kind != dispatch.KindCallback && ev.Message != nil && ev.Message.Chat.Type == telegram.ChatPrivate {
				apology := "⚠️ Произошла непредвиденная ошибка. Пожалуйста, попробуйте позже."
				if _, err := bot.SendMessage(ctx, telegram.SendMessageParams{Chat: telegram.ChatID(ev.Message.Chat.ID), Text: apology}); err != nil {
					log.Printf("sending error notice: %v", err)
				}
			}
			return nil
		}
	}
}

// RateLimit drops events from users that exceed limit events per period,
// telling them to slow down.
func RateLimit(bot telegram.API, limit int, period time.Duration) dispatch.Middleware {
	var calls syncx.Map[int64, []time.Time]
	return func(next dispatch.Handler) dispatch.Handler {
		return func(ctx context.Context, ev dispatch.Event) error {
			user := ev.User()
			if user == nil {
				return next(ctx, ev)
			}
			now := time.Now()
			recent, _ := calls.Load(user.ID)
			recent = append(recent[:0:0], recent...)
			var kept []time.Time
			for _, t := range recent {
				if now.Sub(t) < period {
					kept = append(kept, t)
				}
			}
			if len(kept) >= limit {
				calls.Store(user.ID, kept)
				log.Printf("[%s] rate limit exceeded: user=%s", ev.Kind, user.Tag())
				switch ev.Kind {
				case dispatch.KindCallback:
					return bot.AnswerCallbackQuery(ctx, telegram.AnswerCallbackQueryParams{
						CallbackQueryID: ev.Callback.ID,
						Text:            "⏳ Подождите немного перед следующим действием.",
						ShowAlert:       true,
					})
				default:
					if ev.Message != nil && ev.Message.Chat.Type == telegram.ChatPrivate {
						_, err := bot.SendMessage(ctx, telegram.SendMessageParams{
							Chat: telegram.ChatID(ev.Message.Chat.ID),
							Text: "⏳ Слишком много запросов! Пожалуйста, подождите немного.",
						})
						return err
					}
					return nil
				}
			}
			calls.Store(user.ID, append(kept, now))
			return next(ctx, ev)
		}
	}
}

// SubscriptionGate blocks private interactions from users that are not
// subscribed to the required channels, prompting them with a recheck
// button. Group traffic and the recheck callback itself pass through.
// Membership lookups are cached.
type SubscriptionGate struct {
	Bot      telegram.API
	Channels []telegram.ChatRef
	// RecheckData is the callback payload that bypasses the gate so the
	// user can trigger a fresh check. The cache is dropped for them first.
	RecheckData string

	cache *cache.ExpiringCache
}

// NewSubscriptionGate builds a gate with membership results cached for ttl.
func NewSubscriptionGate(bot telegram.API, channels []telegram.ChatRef, ttl time.Duration) *SubscriptionGate {
	return &SubscriptionGate{
		Bot:         bot,
		Channels:    channels,
		RecheckData: "check_subscription",
		cache:       cache.NewExpiringCache(&cache.CoalescingMemoryCache{}, ttl),
	}
}

// Subscribed reports whether the user is a member of every required channel.
func (g *SubscriptionGate) Subscribed(ctx context.Context, userID int64) (bool, error) {
	v, err := g.cache.GetOrSet(userID, func() (any, error) {
		for _, channel := range g.Channels {
			member, err := g.Bot.GetChatMember(ctx, channel, userID)
			if err != nil {
				return nil, err
			}
			if !member.IsIn() {
				return false, nil
			}
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Forget drops the cached membership result for the user.
func (g *SubscriptionGate) Forget(userID int64) {
	g.cache.Del(userID)
}

// Middleware returns the gate as dispatch middleware.
func (g *SubscriptionGate) Middleware() dispatch.Middleware {
	return func(next dispatch.Handler) dispatch.Handler {
		return func(ctx context.Context, ev dispatch.Event) error {
			if len(g.Channels) == 0 {
				return next(ctx, ev)
			}
			// Only private interactions are gated; counting group
			// traffic must not depend on channel membership.
			if ev.Message != nil && ev.Message.Chat.Type != telegram.ChatPrivate {
				return next(ctx, ev)
			}
			user := ev.User()
			if user == nil || user.IsBot {
				return next(ctx, ev)
			}
			if ev.Kind == dispatch.KindCallback && ev.Data == g.RecheckData {
				g.Forget(user.ID)
				return next(ctx, ev)
			}
			ok, err := g.Subscribed(ctx, user.ID)
			if err != nil {
				return err
			}
			if ok {
				return next(ctx, ev)
			}
			log.Printf("[%s] subscription check failed: user=%s", ev.Kind, user.Tag())
			prompt := telegram.SendMessageParams{
				Chat: telegram.ChatID(user.ID),
				Text: "📢 Для использования бота необходимо подписаться на наши каналы!\n\nПосле подписки нажмите кнопку ниже.",
				ReplyMarkup: telegram.Keyboard(
					telegram.Row(telegram.CallbackButton("✅ Я подписался", g.RecheckData)),
				),
			}
			if _, err := g.Bot.SendMessage(ctx, prompt); err != nil {
				return err
			}
			if ev.Kind == dispatch.KindCallback {
				return g.Bot.AnswerCallbackQuery(ctx, telegram.AnswerCallbackQueryParams{CallbackQueryID: ev.Callback.ID})
			}
			return nil
		}
	}
}

// CountMessages records group and supergroup messages from humans. Failures
// are logged rather than surfaced so counting never blocks handling.
func CountMessages(store botdb.Store) dispatch.Middleware {
	return func(next dispatch.Handler) dispatch.Handler {
		return func(ctx context.Context, ev dispatch.Event) error {
			m := ev.Message
			if m != nil && m.Chat.IsGroup() && m.From != nil && !m.From.IsBot {
				var created time.Time
				if m.Date != 0 {
					created = time.Unix(m.Date, 0).UTC()
				}
				if _, err := store.EnsureMember(ctx, schema.Member{
					ID:       m.From.ID,
					Username: m.From.Username,
					FullName: m.From.FullName(),
				}); err != nil {
					log.Printf("registering member %d: %v", m.From.ID, err)
				} else if err := store.AddMessage(ctx, schema.MemberMessage{
					Member:  m.From.ID,
					Text:    m.Text,
					Created: created,
				}); err != nil {
					log.Printf("recording message from %d: %v", m.From.ID, err)
				}
			}
			return next(ctx, ev)
		}
	}
}
