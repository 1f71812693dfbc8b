// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

package botservice

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/primo-rp/communitybot/internal/dispatch"
	"github.com/primo-rp/communitybot/pkg/schema"
	"github.com/primo-rp/communitybot/pkg/telegram"
)

func (s *Service) startKeyboard() *telegram.InlineKeyboardMarkup {
	return telegram.Keyboard(
		telegram.Row(telegram.URLButton("Инфо-канал🗂", s.Config.InfoURL)),
		telegram.Row(
			telegram.CallbackButton("Вступление🚀", "new"),
			telegram.CallbackButton("Анкета📖", "anketa"),
		),
		telegram.Row(telegram.CallbackButton("Связь с администрацией🌐", "admin")),
	)
}

// handleStart greets the user with the main menu. It also serves as the
// cancel target for the questionnaire flow, abandoning any draft.
func (s *Service) handleStart(ctx context.Context, ev dispatch.Event) error {
	user := ev.User()
	if user == nil {
		return nil
	}
	if err := s.cancelDraft(ctx, user.ID); err != nil {
		return err
	}
	if _, err := s.Store.EnsureMember(ctx, schema.Member{
		ID:       user.ID,
		Username: user.Username,
		FullName: user.FullName(),
	}); err != nil {
		return errors.Wrap(err, "registering member")
	}
	text := fmt.Sprintf(
		"Добро пожаловать, <a href=%q>%s</a>!\n\n"+
			"Я ваш искусственный помощник по ролевой - <b>%s</b>!\n"+
			"Моя цель — помочь вам сориентироваться и сделать ваше вступление куда проще!\n"+
			"Надеюсь, я смогу вам помочь! Пожалуйста, выберите нужную функцию на клавиатуре!",
		user.URL(), user.FirstName, s.Config.ProjectName)
	if fact := s.fact(); fact != "" {
		text += fmt.Sprintf("\n\nИнтересный факт:\n<blockquote>%s</blockquote>", fact)
	}
	chat := replyChat(ev)
	if s.Config.StartPhoto != "" {
		if _, err := s.Bot.SendPhoto(ctx, telegram.SendPhotoParams{
			Chat:        chat,
			Photo:       s.Config.StartPhoto,
			Caption:     text,
			ParseMode:   "HTML",
			ReplyMarkup: s.startKeyboard(),
		}); err != nil {
			return errors.Wrap(err, "sending welcome photo")
		}
	} else if _, err := s.Bot.SendMessage(ctx, telegram.SendMessageParams{
		Chat:        chat,
		Text:        text,
		ParseMode:   "HTML",
		ReplyMarkup: s.startKeyboard(),
	}); err != nil {
		return errors.Wrap(err, "sending welcome")
	}
	return s.answer(ctx, ev, "", false)
}

// handleActive reports the user's message counts over the standard windows.
func (s *Service) handleActive(ctx context.Context, ev dispatch.Event) error {
	user := ev.User()
	if user == nil {
		return nil
	}
	stats, err := s.Store.MessageStats(ctx, user.ID, s.now())
	if err != nil {
		return errors.Wrap(err, "fetching stats")
	}
	text := fmt.Sprintf(
		"За день: %d сообщений\nЗа неделю: %d сообщений\nЗа месяц: %d сообщений\nВсего: %d сообщений",
		stats.Day, stats.Week, stats.Month, stats.Total)
	if _, err := s.Bot.SendMessage(ctx, telegram.SendMessageParams{Chat: replyChat(ev), Text: text}); err != nil {
		return errors.Wrap(err, "sending stats")
	}
	return s.answer(ctx, ev, "", false)
}

func (s *Service) handleAdminContact(ctx context.Context, ev dispatch.Event) error {
	text := "🌐 Связь с администрацией:\n" + s.Config.AdminContact
	if _, err := s.Bot.SendMessage(ctx, telegram.SendMessageParams{Chat: replyChat(ev), Text: text}); err != nil {
		return errors.Wrap(err, "sending admin contact")
	}
	return s.answer(ctx, ev, "", false)
}

// handleCheckSubscription re-checks channel membership after the user
// pressed the recheck button; the gate middleware has already dropped the
// cached result.
func (s *Service) handleCheckSubscription(ctx context.Context, ev dispatch.Event) error {
	user := ev.User()
	if user == nil {
		return nil
	}
	ok, err := s.gate.Subscribed(ctx, user.ID)
	if err != nil {
		return errors.Wrap(err, "checking subscription")
	}
	if !ok {
		return s.answer(ctx, ev, "Вы ещё не подписаны на все каналы.", true)
	}
	if err := s.answer(ctx, ev, "✅ Подписка подтверждена!", false); err != nil {
		return err
	}
	return s.handleStart(ctx, dispatch.Event{Kind: ev.Kind, Update: ev.Update, Message: ev.Message})
}
