// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

package botinfo

import (
	"context"
	"strings"
	"testing"

	"github.com/primo-rp/communitybot/pkg/telegram"
	"github.com/primo-rp/communitybot/pkg/telegram/telegramtest"
)

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	bot := &telegramtest.FakeAPI{Me: telegram.User{ID: 42, FirstName: "PRIMO", Username: "primo_bot"}}
	me, err := Reconcile(ctx, bot, Setup{
		WebhookURL:  "https://bot.example.com/webhook",
		SecretToken: "shh",
		Profile:     Profile{Name: "PRIMO"},
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if me.Username != "primo_bot" {
		t.Errorf("identity: %+v", me)
	}
	if len(bot.Webhooks) != 1 || bot.Webhooks[0].URL != "https://bot.example.com/webhook" || bot.Webhooks[0].SecretToken != "shh" {
		t.Errorf("webhooks: %+v", bot.Webhooks)
	}
}

func TestReconcilePollingMode(t *testing.T) {
	ctx := context.Background()
	bot := &telegramtest.FakeAPI{}
	if _, err := Reconcile(ctx, bot, Setup{}); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(bot.Webhooks) != 0 {
		t.Errorf("no webhook should be set in polling mode: %+v", bot.Webhooks)
	}
}

func TestReconcileRejectsLongName(t *testing.T) {
	ctx := context.Background()
	bot := &telegramtest.FakeAPI{}
	_, err := Reconcile(ctx, bot, Setup{Profile: Profile{Name: strings.Repeat("х", 33)}})
	if err == nil {
		t.Fatal("Reconcile should reject a 33-character name")
	}
}
