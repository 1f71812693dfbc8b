// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

// Package telegram describes the Telegram Bot API interface.
package telegram

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Update is a single incoming event delivered by webhook or polling.
type Update struct {
	UpdateID          int64          `json:"update_id"`
	Message           *Message       `json:"message,omitempty"`
	EditedMessage     *Message       `json:"edited_message,omitempty"`
	ChannelPost       *Message       `json:"channel_post,omitempty"`
	EditedChannelPost *Message       `json:"edited_channel_post,omitempty"`
	CallbackQuery     *CallbackQuery `json:"callback_query,omitempty"`
}

// From returns the user that originated the update, if any.
func (u *Update) From() *User {
	switch {
	case u.Message != nil:
		return u.Message.From
	case u.EditedMessage != nil:
		return u.EditedMessage.From
	case u.CallbackQuery != nil:
		return &u.CallbackQuery.From
	case u.ChannelPost != nil:
		return u.ChannelPost.From
	case u.EditedChannelPost != nil:
		return u.EditedChannelPost.From
	}
	return nil
}

// User is a Telegram account.
type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot,omitempty"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Tag renders the user for logs: "@username" when set, "id12345" otherwise.
func (u User) Tag() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return fmt.Sprintf("id%d", u.ID)
}

// FullName joins first and last name.
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// URL returns the tg:// deep link for the user.
func (u User) URL() string {
	return fmt.Sprintf("tg://user?id=%d", u.ID)
}

// Chat types.
const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
	ChatChannel    = "channel"
)

// Chat is a conversation the bot participates in.
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

// IsGroup reports whether the chat is a group or supergroup.
func (c Chat) IsGroup() bool {
	return c.Type == ChatGroup || c.Type == ChatSupergroup
}

// Message is a message in a chat.
type Message struct {
	MessageID       int64    `json:"message_id"`
	From            *User    `json:"from,omitempty"`
	Chat            Chat     `json:"chat"`
	Date            int64    `json:"date,omitempty"`
	Text            string   `json:"text,omitempty"`
	MessageThreadID int64    `json:"message_thread_id,omitempty"`
	IsTopicMessage  bool     `json:"is_topic_message,omitempty"`
	ReplyToMessage  *Message `json:"reply_to_message,omitempty"`
	ForwardFrom     *User    `json:"forward_from,omitempty"`
	ForwardFromChat *Chat    `json:"forward_from_chat,omitempty"`
	Photo           []File   `json:"photo,omitempty"`
	Document        *File    `json:"document,omitempty"`
	Video           *File    `json:"video,omitempty"`
	Audio           *File    `json:"audio,omitempty"`
	Voice           *File    `json:"voice,omitempty"`
	Sticker         *File    `json:"sticker,omitempty"`
}

// HasMedia reports whether the message carries any media attachment.
func (m *Message) HasMedia() bool {
	return len(m.Photo) > 0 || m.Document != nil || m.Video != nil ||
		m.Audio != nil || m.Voice != nil || m.Sticker != nil
}

// File is a minimal file attachment reference.
type File struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// CallbackQuery is a press of an inline keyboard button.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// Chat member statuses.
const (
	MemberStatusCreator       = "creator"
	MemberStatusAdministrator = "administrator"
	MemberStatusMember        = "member"
	MemberStatusRestricted    = "restricted"
	MemberStatusLeft          = "left"
	MemberStatusKicked        = "kicked"
)

// ChatMember is a user's membership record in a chat.
type ChatMember struct {
	Status             string `json:"status"`
	User               User   `json:"user"`
	CanDeleteMessages  bool   `json:"can_delete_messages,omitempty"`
	CanRestrictMembers bool   `json:"can_restrict_members,omitempty"`
	CanPinMessages     bool   `json:"can_pin_messages,omitempty"`
}

// IsIn reports whether the membership grants access to the chat.
func (m ChatMember) IsIn() bool {
	switch m.Status {
	case MemberStatusCreator, MemberStatusAdministrator, MemberStatusMember, MemberStatusRestricted:
		return true
	}
	return false
}

// ForumTopic is a topic created in a forum supergroup.
type ForumTopic struct {
	MessageThreadID int64  `json:"message_thread_id"`
	Name            string `json:"name"`
}

// InlineKeyboardMarkup is a grid of inline buttons attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton is one button; exactly one of URL and CallbackData is set.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// ChatAdministratorRights are the default rights requested by the bot.
type ChatAdministratorRights struct {
	CanManageChat      bool `json:"can_manage_chat"`
	CanDeleteMessages  bool `json:"can_delete_messages"`
	CanRestrictMembers bool `json:"can_restrict_members"`
	CanPromoteMembers  bool `json:"can_promote_members"`
	CanChangeInfo      bool `json:"can_change_info"`
	CanInviteUsers     bool `json:"can_invite_users"`
	CanPinMessages     bool `json:"can_pin_messages"`
	CanManageTopics    bool `json:"can_manage_topics"`
}

// BotDescription is the bot profile description.
type BotDescription struct {
	Description string `json:"description"`
}

// BotShortDescription is the bot profile short description.
type BotShortDescription struct {
	ShortDescription string `json:"short_description"`
}

// ChatRef identifies a chat either by numeric ID or @username.
//
// Channel requirements are commonly configured by username while groups are
// configured by ID; the Bot API accepts both in chat_id fields.
type ChatRef struct {
	ID       int64
	Username string
}

// ParseChatRef interprets s as "@username" or a numeric chat ID.
func ParseChatRef(s string) (ChatRef, error) {
	if strings.HasPrefix(s, "@") {
		return ChatRef{Username: s}, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return ChatRef{}, fmt.Errorf("invalid chat reference %q", s)
	}
	return ChatRef{ID: id}, nil
}

// ChatID returns a ChatRef for a numeric chat ID.
func ChatID(id int64) ChatRef {
	return ChatRef{ID: id}
}

func (r ChatRef) String() string {
	if r.Username != "" {
		return r.Username
	}
	return strconv.FormatInt(r.ID, 10)
}

// MarshalJSON encodes the reference the way chat_id fields expect.
func (r ChatRef) MarshalJSON() ([]byte, error) {
	if r.Username != "" {
		return json.Marshal(r.Username)
	}
	return json.Marshal(r.ID)
}

// UnmarshalJSON accepts either encoding.
func (r *ChatRef) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &r.Username)
	}
	return json.Unmarshal(b, &r.ID)
}

// IsZero reports whether the reference is unset.
func (r ChatRef) IsZero() bool {
	return r.ID == 0 && r.Username == ""
}
