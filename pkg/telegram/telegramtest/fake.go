// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

// Package telegramtest provides a recording fake for the telegram.API interface.
package telegramtest

import (
	"context"
	"fmt"

	"github.com/primo-rp/communitybot/pkg/telegram"
)

// FakeAPI records outbound Bot API calls and replays canned results.
// The zero value is usable; sends succeed and chat members resolve to "member".
type FakeAPI struct {
	Me       telegram.User
	Sent     []telegram.SendMessageParams
	Photos   []telegram.SendPhotoParams
	Edits    []telegram.EditMessageTextParams
	Markups  []telegram.EditMessageReplyMarkupParams
	Answers  []telegram.AnswerCallbackQueryParams
	Topics   []string
	Webhooks []telegram.SetWebhookParams

	// Members maps "<chat>/<user>" to a canned membership; unset keys
	// resolve to MemberFallback (or "member" if that is empty).
	Members        map[string]telegram.ChatMember
	MemberFallback string

	// SendErr, when set, fails SendMessage calls.
	SendErr error

	nextMessageID int64
	nextThreadID  int64
}

var _ telegram.API = (*FakeAPI)(nil)

func (f *FakeAPI) GetMe(ctx context.Context) (*telegram.User, error) {
	me := f.Me
	return &me, nil
}

func (f *FakeAPI) GetUpdates(ctx context.Context, params telegram.GetUpdatesParams) ([]telegram.Update, error) {
	return nil, nil
}

func (f *FakeAPI) SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error) {
	if f.SendErr != nil {
		return nil, f.SendErr
	}
	f.Sent = append(f.Sent, params)
	f.nextMessageID++
	return &telegram.Message{MessageID: f.nextMessageID, Chat: telegram.Chat{ID: params.Chat.ID}, Text: params.Text}, nil
}

func (f *FakeAPI) SendPhoto(ctx context.Context, params telegram.SendPhotoParams) (*telegram.Message, error) {
	f.Photos = append(f.Photos, params)
	f.nextMessageID++
	return &telegram.Message{MessageID: f.nextMessageID, Chat: telegram.Chat{ID: params.Chat.ID}}, nil
}

func (f *FakeAPI) EditMessageText(ctx context.Context, params telegram.EditMessageTextParams) (*telegram.Message, error) {
	f.Edits = append(f.Edits, params)
	return &telegram.Message{MessageID: params.MessageID, Chat: telegram.Chat{ID: params.Chat.ID}, Text: params.Text}, nil
}

func (f *FakeAPI) EditMessageReplyMarkup(ctx context.Context, params telegram.EditMessageReplyMarkupParams) error {
	f.Markups = append(f.Markups, params)
	return nil
}

func (f *FakeAPI) AnswerCallbackQuery(ctx context.Context, params telegram.AnswerCallbackQueryParams) error {
	f.Answers = append(f.Answers, params)
	return nil
}

func (f *FakeAPI) GetChatMember(ctx context.Context, chat telegram.ChatRef, userID int64) (*telegram.ChatMember, error) {
	key := fmt.Sprintf("%s/%d", chat, userID)
	if m, ok := f.Members[key]; ok {
		return &m, nil
	}
	status := f.MemberFallback
	if status == "" {
		status = telegram.MemberStatusMember
	}
	return &telegram.ChatMember{Status: status, User: telegram.User{ID: userID}}, nil
}

func (f *FakeAPI) CreateForumTopic(ctx context.Context, chat telegram.ChatRef, name string) (*telegram.ForumTopic, error) {
	f.Topics = append(f.Topics, name)
	f.nextThreadID++
	return &telegram.ForumTopic{MessageThreadID: f.nextThreadID, Name: name}, nil
}

func (f *FakeAPI) SetWebhook(ctx context.Context, params telegram.SetWebhookParams) error {
	f.Webhooks = append(f.Webhooks, params)
	return nil
}

func (f *FakeAPI) DeleteWebhook(ctx context.Context, dropPendingUpdates bool) error {
	return nil
}

func (f *FakeAPI) SetMyName(ctx context.Context, name string) error { return nil }

func (f *FakeAPI) GetMyDescription(ctx context.Context) (*telegram.BotDescription, error) {
	return &telegram.BotDescription{}, nil
}

func (f *FakeAPI) SetMyDescription(ctx context.Context, description string) error { return nil }

func (f *FakeAPI) GetMyShortDescription(ctx context.Context) (*telegram.BotShortDescription, error) {
	return &telegram.BotShortDescription{}, nil
}

func (f *FakeAPI) SetMyShortDescription(ctx context.Context, shortDescription string) error {
	return nil
}

func (f *FakeAPI) GetMyDefaultAdministratorRights(ctx context.Context) (*telegram.ChatAdministratorRights, error) {
	return &telegram.ChatAdministratorRights{}, nil
}

func (f *FakeAPI) SetMyDefaultAdministratorRights(ctx context.Context, rights telegram.ChatAdministratorRights) error {
	return nil
}
