// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/primo-rp/communitybot/internal/httpx"
	"github.com/primo-rp/communitybot/internal/urlx"
)

var apiURL = urlx.MustParse("https://api.telegram.org")

// Error is a non-OK Bot API response.
type Error struct {
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("telegram: %d %s", e.Code, e.Description)
}

// IsTooManyRequests reports whether err is a Bot API flood-control rejection.
func IsTooManyRequests(err error) (time.Duration, bool) {
	var terr *Error
	if errors.As(err, &terr) && terr.Code == http.StatusTooManyRequests {
		return terr.RetryAfter, true
	}
	return 0, false
}

// SendMessageParams are the arguments to sendMessage.
type SendMessageParams struct {
	Chat                ChatRef               `json:"chat_id"`
	Text                string                `json:"text"`
	ParseMode           string                `json:"parse_mode,omitempty"`
	MessageThreadID     int64                 `json:"message_thread_id,omitempty"`
	ReplyToMessageID    int64                 `json:"reply_to_message_id,omitempty"`
	DisableNotification bool                  `json:"disable_notification,omitempty"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// SendPhotoParams are the arguments to sendPhoto. Photo is a file_id or URL.
type SendPhotoParams struct {
	Chat        ChatRef               `json:"chat_id"`
	Photo       string                `json:"photo"`
	Caption     string                `json:"caption,omitempty"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// EditMessageTextParams are the arguments to editMessageText.
type EditMessageTextParams struct {
	Chat        ChatRef               `json:"chat_id"`
	MessageID   int64                 `json:"message_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// EditMessageReplyMarkupParams are the arguments to editMessageReplyMarkup.
// A nil ReplyMarkup clears the keyboard.
type EditMessageReplyMarkupParams struct {
	Chat        ChatRef               `json:"chat_id"`
	MessageID   int64                 `json:"message_id"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// AnswerCallbackQueryParams are the arguments to answerCallbackQuery.
type AnswerCallbackQueryParams struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
	ShowAlert       bool   `json:"show_alert,omitempty"`
}

// GetUpdatesParams are the arguments to getUpdates (polling mode).
type GetUpdatesParams struct {
	Offset  int64 `json:"offset,omitempty"`
	Limit   int   `json:"limit,omitempty"`
	Timeout int   `json:"timeout,omitempty"`
}

// SetWebhookParams are the arguments to setWebhook.
type SetWebhookParams struct {
	URL         string `json:"url"`
	SecretToken string `json:"secret_token,omitempty"`
}

// API is the subset of the Bot API the service uses.
type API interface {
	GetMe(ctx context.Context) (*User, error)
	GetUpdates(ctx context.Context, params GetUpdatesParams) ([]Update, error)
	SendMessage(ctx context.Context, params SendMessageParams) (*Message, error)
	SendPhoto(ctx context.Context, params SendPhotoParams) (*Message, error)
	EditMessageText(ctx context.Context, params EditMessageTextParams) (*Message, error)
	EditMessageReplyMarkup(ctx context.Context, params EditMessageReplyMarkupParams) error
	AnswerCallbackQuery(ctx context.Context, params AnswerCallbackQueryParams) error
	GetChatMember(ctx context.Context, chat ChatRef, userID int64) (*ChatMember, error)
	CreateForumTopic(ctx context.Context, chat ChatRef, name string) (*ForumTopic, error)
	SetWebhook(ctx context.Context, params SetWebhookParams) error
	DeleteWebhook(ctx context.Context, dropPendingUpdates bool) error
	SetMyName(ctx context.Context, name string) error
	GetMyDescription(ctx context.Context) (*BotDescription, error)
	SetMyDescription(ctx context.Context, description string) error
	GetMyShortDescription(ctx context.Context) (*BotShortDescription, error)
	SetMyShortDescription(ctx context.Context, shortDescription string) error
	GetMyDefaultAdministratorRights(ctx context.Context) (*ChatAdministratorRights, error)
	SetMyDefaultAdministratorRights(ctx context.Context, rights ChatAdministratorRights) error
}

// HTTPClient is an API implementation that uses the api.telegram.org HTTP API.
type HTTPClient struct {
	Client httpx.BasicClient
	Token  string
}

var _ API = HTTPClient{}

// call invokes a Bot API method, decoding its result envelope into result.
func (c HTTPClient) call(ctx context.Context, method string, params, result any) error {
	var body bytes.Buffer
	if params != nil {
		if err := json.NewEncoder(&body).Encode(params); err != nil {
			return errors.Wrap(err, "encoding params")
		}
	}
	u := apiURL.JoinPath("bot"+c.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), &body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "calling %s", method)
	}
	defer resp.Body.Close()
	var envelope struct {
		OK          bool            `json:"ok"`
		Result      json.RawMessage `json:"result"`
		ErrorCode   int             `json:"error_code"`
		Description string          `json:"description"`
		Parameters  *struct {
			RetryAfter int `json:"retry_after"`
		} `json:"parameters"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return errors.Wrapf(err, "decoding %s response", method)
	}
	if !envelope.OK {
		apiErr := &Error{Code: envelope.ErrorCode, Description: envelope.Description}
		if envelope.Parameters != nil {
			apiErr.RetryAfter = time.Duration(envelope.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return errors.Wrapf(err, "decoding %s result", method)
		}
	}
	return nil
}

func (c HTTPClient) GetMe(ctx context.Context) (*User, error) {
	var u User
	if err := c.call(ctx, "getMe", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c HTTPClient) GetUpdates(ctx context.Context, params GetUpdatesParams) ([]Update, error) {
	var updates []Update
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c HTTPClient) SendMessage(ctx context.Context, params SendMessageParams) (*Message, error) {
	var m Message
	if err := c.call(ctx, "sendMessage", params, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c HTTPClient) SendPhoto(ctx context.Context, params SendPhotoParams) (*Message, error) {
	var m Message
	if err := c.call(ctx, "sendPhoto", params, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c HTTPClient) EditMessageText(ctx context.Context, params EditMessageTextParams) (*Message, error) {
	var m Message
	if err := c.call(ctx, "editMessageText", params, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c HTTPClient) EditMessageReplyMarkup(ctx context.Context, params EditMessageReplyMarkupParams) error {
	return c.call(ctx, "editMessageReplyMarkup", params, nil)
}

func (c HTTPClient) AnswerCallbackQuery(ctx context.Context, params AnswerCallbackQueryParams) error {
	return c.call(ctx, "answerCallbackQuery", params, nil)
}

func (c HTTPClient) GetChatMember(ctx context.Context, chat ChatRef, userID int64) (*ChatMember, error) {
	params := struct {
		Chat   ChatRef `json:"chat_id"`
		UserID int64   `json:"user_id"`
	}{chat, userID}
	var m ChatMember
	if err := c.call(ctx, "getChatMember", params, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c HTTPClient) CreateForumTopic(ctx context.Context, chat ChatRef, name string) (*ForumTopic, error) {
	params := struct {
		Chat ChatRef `json:"chat_id"`
		Name string  `json:"name"`
	}{chat, name}
	var topic ForumTopic
	if err := c.call(ctx, "createForumTopic", params, &topic); err != nil {
		return nil, err
	}
	return &topic, nil
}

func (c HTTPClient) SetWebhook(ctx context.Context, params SetWebhookParams) error {
	return c.call(ctx, "setWebhook", params, nil)
}

func (c HTTPClient) DeleteWebhook(ctx context.Context, dropPendingUpdates bool) error {
	params := struct {
		DropPendingUpdates bool `json:"drop_pending_updates"`
	}{dropPendingUpdates}
	return c.call(ctx, "deleteWebhook", params, nil)
}

func (c HTTPClient) SetMyName(ctx context.Context, name string) error {
	params := struct {
		Name string `json:"name"`
	}{name}
	return c.call(ctx, "setMyName", params, nil)
}

func (c HTTPClient) GetMyDescription(ctx context.Context) (*BotDescription, error) {
	var d BotDescription
	if err := c.call(ctx, "getMyDescription", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c HTTPClient) SetMyDescription(ctx context.Context, description string) error {
	params := struct {
		Description string `json:"description"`
	}{description}
	return c.call(ctx, "setMyDescription", params, nil)
}

func (c HTTPClient) GetMyShortDescription(ctx context.Context) (*BotShortDescription, error) {
	var d BotShortDescription
	if err := c.call(ctx, "getMyShortDescription", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c HTTPClient) SetMyShortDescription(ctx context.Context, shortDescription string) error {
	params := struct {
		ShortDescription string `json:"short_description"`
	}{shortDescription}
	return c.call(ctx, "setMyShortDescription", params, nil)
}

func (c HTTPClient) GetMyDefaultAdministratorRights(ctx context.Context) (*ChatAdministratorRights, error) {
	var r ChatAdministratorRights
	if err := c.call(ctx, "getMyDefaultAdministratorRights", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c HTTPClient) SetMyDefaultAdministratorRights(ctx context.Context, rights ChatAdministratorRights) error {
	params := struct {
		Rights ChatAdministratorRights `json:"rights"`
	}{rights}
	return c.call(ctx, "setMyDefaultAdministratorRights", params, nil)
}
