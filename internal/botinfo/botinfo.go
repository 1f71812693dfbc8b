// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

// Package botinfo reconciles the bot's Telegram-side configuration at
// startup: webhook registration and the bot profile.
package botinfo

import (
	"context"
	"log"

	"github.com/pkg/errors"
	"github.com/primo-rp/communitybot/pkg/telegram"
)

// Profile describes the desired bot profile. Empty fields are left alone.
type Profile struct {
	// Name is the bot's display name, 1 to 32 characters.
	Name string
	// Description shows on the empty chat screen, at most 255 characters.
	Description string
	// ShortDescription shows on the profile page, at most 512 characters.
	ShortDescription string
	// Rights are the default administrator rights requested when the bot
	// is promoted.
	Rights *telegram.ChatAdministratorRights
}

// Setup is the desired Telegram-side state.
type Setup struct {
	// WebhookURL registers update delivery when set; when empty the
	// webhook is removed and the bot is left in polling mode.
	WebhookURL  string
	SecretToken string
	Profile     Profile
}

// Reconcile brings the bot's Telegram-side configuration to the desired
// state and returns the bot's identity. Pending updates accumulated while
// the bot was down are dropped.
func Reconcile(ctx context.Context, bot telegram.API, s Setup) (*telegram.User, error) {
	if err := bot.DeleteWebhook(ctx, true); err != nil {
		return nil, errors.Wrap(err, "deleting webhook")
	}
	if s.WebhookURL != "" {
		if err := bot.SetWebhook(ctx, telegram.SetWebhookParams{URL: s.WebhookURL, SecretToken: s.SecretToken}); err != nil {
			return nil, errors.Wrap(err, "setting webhook")
		}
	}
	me, err := bot.GetMe(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetching bot identity")
	}
	if err := reconcileProfile(ctx, bot, me, s.Profile); err != nil {
		return nil, err
	}
	return me, nil
}

func reconcileProfile(ctx context.Context, bot telegram.API, me *telegram.User, p Profile) error {
	if p.Name != "" {
		if len([]rune(p.Name)) > 32 {
			return errors.Errorf("bot name exceeds 32 characters: %q", p.Name)
		}
		if me.FirstName != p.Name {
			log.Printf("updating bot name: %q", p.Name)
			if err := bot.SetMyName(ctx, p.Name); err != nil {
				return errors.Wrap(err, "setting bot name")
			}
		}
	}
	if p.Description != "" {
		if len([]rune(p.Description)) > 255 {
			return errors.New("bot description exceeds 255 characters")
		}
		cur, err := bot.GetMyDescription(ctx)
		if err != nil {
			return errors.Wrap(err, "fetching bot description")
		}
		if cur.Description != p.Description {
			log.Print("updating bot description")
			if err := bot.SetMyDescription(ctx, p.Description); err != nil {
				return errors.Wrap(err, "setting bot description")
			}
		}
	}
	if p.ShortDescription != "" {
		if len([]rune(p.ShortDescription)) > 512 {
			return errors.New("bot short description exceeds 512 characters")
		}
		cur, err := bot.GetMyShortDescription(ctx)
		if err != nil {
			return errors.Wrap(err, "fetching bot short description")
		}
		if cur.ShortDescription != p.ShortDescription {
			log.Print("updating bot short description")
			if err := bot.SetMyShortDescription(ctx, p.ShortDescription); err != nil {
				return errors.Wrap(err, "setting bot short description")
			}
		}
	}
	if p.Rights != nil {
		cur, err := bot.GetMyDefaultAdministratorRights(ctx)
		if err != nil {
			return errors.Wrap(err, "fetching administrator rights")
		}
		if *cur != *p.Rights {
			log.Print("updating default administrator rights")
			if err := bot.SetMyDefaultAdministratorRights(ctx, *p.Rights); err != nil {
				return errors.Wrap(err, "setting administrator rights")
			}
		}
	}
	return nil
}
