// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/primo-rp/communitybot/internal/botdb"
	"github.com/primo-rp/communitybot/internal/dispatch"
	"github.com/primo-rp/communitybot/pkg/telegram"
	"github.com/primo-rp/communitybot/pkg/telegram/telegramtest"
)

func privateEvent(userID int64, text string) dispatch.Event {
	m := &telegram.Message{
		From: &telegram.User{ID: userID, Username: "venti"},
		Chat: telegram.Chat{ID: userID, Type: telegram.ChatPrivate},
		Text: text,
	}
	return dispatch.Event{Kind: dispatch.KindMessage, Update: &telegram.Update{Message: m}, Message: m}
}

func groupEvent(userID int64, text string, date time.Time) dispatch.Event {
	m := &telegram.Message{
		From: &telegram.User{ID: userID, Username: "venti", FirstName: "Венти"},
		Chat: telegram.Chat{ID: -100, Type: telegram.ChatSupergroup},
		Text: text,
		Date: date.Unix(),
	}
	return dispatch.Event{Kind: dispatch.KindMessage, Update: &telegram.Update{Message: m}, Message: m}
}

func TestErrorNotify(t *testing.T) {
	ctx := context.Background()
	bot := &telegramtest.FakeAPI{}
	failing := func(ctx context.Context, ev dispatch.Event) error {
		return errors.New("boom")
	}
	h := ErrorNotify(bot, []int64{111, 222})(failing)
	if err := h(ctx, privateEvent(5, "hi")); err != nil {
		t.Fatalf("handler error should be consumed, got %v", err)
	}
	// Two admin notifications plus one apology to the user.
	if len(bot.Sent) != 3 {
		t.Fatalf("sent messages: got %d, want 3", len(bot.Sent))
	}
	if !strings.HasPrefix(bot.Sent[0].Text, "🚨 Ошибка в боте:") {
		t.Errorf("admin notice: got %q", bot.Sent[0].Text)
	}
	if bot.Sent[0].Chat.ID != 111 || bot.Sent[1].Chat.ID != 222 {
		t.Errorf("admin chats: got %d, %d", bot.Sent[0].Chat.ID, bot.Sent[1].Chat.ID)
	}
	if bot.Sent[2].Chat.ID != 5 {
		t.Errorf("apology chat: got %d, want 5", bot.Sent[2].Chat.ID)
	}
}

func TestRateLimit(t *testing.T) {
	ctx := context.Background()
	bot := &telegramtest.FakeAPI{}
	var handled int
	count := func(ctx context.Context, ev dispatch.Event) error {
		handled++
		return nil
	}
	h := RateLimit(bot, 2, time.Minute)(count)
	for i := 0; i < 4; i++ {
		if err := h(ctx, privateEvent(5, "hi")); err != nil {
			t.Fatalf("handler: %v", err)
		}
	}
	if handled != 2 {
		t.Errorf("handled: got %d, want 2", handled)
	}
	// Another user is unaffected.
	if err := h(ctx, privateEvent(6, "hi")); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if handled != 3 {
		t.Errorf("handled after second user: got %d, want 3", handled)
	}
}

func TestSubscriptionGate(t *testing.T) {
	ctx := context.Background()
	channel := telegram.ChatRef{Username: "@primo_info"}
	bot := &telegramtest.FakeAPI{
		Members: map[string]telegram.ChatMember{
			"@primo_info/5": {Status: telegram.MemberStatusLeft},
		},
	}
	gate := NewSubscriptionGate(bot, []telegram.ChatRef{channel}, time.Minute)
	var handled int
	count := func(ctx context.Context, ev dispatch.Event) error {
		handled++
		return nil
	}
	h := gate.Middleware()(count)
	// Unsubscribed user is prompted, not handled.
	if err := h(ctx, privateEvent(5, "/start")); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if handled != 0 {
		t.Fatalf("handled: got %d, want 0", handled)
	}
	if len(bot.Sent) != 1 || !strings.Contains(bot.Sent[0].Text, "подписаться") {
		t.Fatalf("prompt not sent: %v", bot.Sent)
	}
	kb := bot.Sent[0].ReplyMarkup
	if kb == nil || kb.InlineKeyboard[0][0].CallbackData != gate.RecheckData {
		t.Errorf("prompt keyboard missing recheck button: %+v", kb)
	}
	// Subscribed user passes. Group traffic is never gated.
	if err := h(ctx, privateEvent(6, "/start")); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if err := h(ctx, groupEvent(5, "hi", time.Now())); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if handled != 2 {
		t.Errorf("handled: got %d, want 2", handled)
	}
	// The recheck callback bypasses the gate and drops the cached result.
	bot.Members["@primo_info/5"] = telegram.ChatMember{Status: telegram.MemberStatusMember}
	cb := &telegram.CallbackQuery{ID: "1", From: telegram.User{ID: 5}, Data: gate.RecheckData}
	ev := dispatch.Event{Kind: dispatch.KindCallback, Update: &telegram.Update{CallbackQuery: cb}, Callback: cb, Data: cb.Data}
	if err := h(ctx, ev); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if handled != 3 {
		t.Errorf("handled after recheck: got %d, want 3", handled)
	}
	if ok, err := gate.Subscribed(ctx, 5); err != nil || !ok {
		t.Errorf("Subscribed after recheck: got (%v, %v), want (true, nil)", ok, err)
	}
}

func TestCountMessages(t *testing.T) {
	ctx := context.Background()
	store := botdb.NewMemoryStore()
	next := func(ctx context.Context, ev dispatch.Event) error { return nil }
	h := CountMessages(store)(next)
	sent := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	if err := h(ctx, groupEvent(5, "привет", sent)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	// Private messages are not counted.
	if err := h(ctx, privateEvent(5, "привет")); err != nil {
		t.Fatalf("handler: %v", err)
	}
	stats, err := store.MessageStats(ctx, 5, sent)
	if err != nil {
		t.Fatalf("MessageStats: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("total: got %d, want 1", stats.Total)
	}
	m, err := store.Member(ctx, 5)
	if err != nil {
		t.Fatalf("Member: %v", err)
	}
	if m.Username != "venti" || m.FullName != "Венти" {
		t.Errorf("member names: got %q/%q", m.Username, m.FullName)
	}
}
