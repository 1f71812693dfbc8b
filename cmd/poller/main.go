// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

// Binary poller runs the bot in long-polling mode against an in-memory
// store, for local development without a public webhook endpoint or a
// Firestore project.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/primo-rp/communitybot/internal/api/botservice"
	"github.com/primo-rp/communitybot/internal/botdb"
	"github.com/primo-rp/communitybot/internal/botinfo"
	"github.com/primo-rp/communitybot/internal/httpx"
	"github.com/primo-rp/communitybot/pkg/roster"
	"github.com/primo-rp/communitybot/pkg/telegram"
)

var (
	project     = flag.String("project", "", "GCP project ID for Firestore; empty uses an in-memory store")
	supportChat = flag.String("support-chat", "", "forum supergroup questionnaires are filed in")
	channels    = flag.String("required-channels", "", "comma-separated channels the subscription gate requires")
	projectName = flag.String("project-name", "PRIMO", "community name shown in the welcome message")
	rolesFile   = flag.String("roles-file", "", "YAML role definitions to seed the store with")
	pollTimeout = flag.Int("poll-timeout", 30, "getUpdates long-poll timeout in seconds")
)

func main() {
	flag.Parse()
	ctx := context.Background()
	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		log.Fatalln("BOT_TOKEN must be set")
	}
	bot := telegram.HTTPClient{
		Client: &httpx.RateLimitedClient{
			BasicClient: http.DefaultClient,
			Ticker:      time.NewTicker(35 * time.Millisecond),
		},
		Token: token,
	}
	var store botdb.Store
	if *project != "" {
		var err error
		if store, err = botdb.NewFirestore(ctx, *project); err != nil {
			log.Fatalln(errors.Wrap(err, "creating store"))
		}
	} else {
		store = botdb.NewMemoryStore()
	}
	if *rolesFile != "" {
		b, err := os.ReadFile(*rolesFile)
		if err != nil {
			log.Fatalln(errors.Wrap(err, "reading roles file"))
		}
		defs, err := roster.ParseDefs(b)
		if err != nil {
			log.Fatalln(errors.Wrap(err, "parsing roles file"))
		}
		created, err := store.InitRoles(ctx, defs)
		if err != nil {
			log.Fatalln(errors.Wrap(err, "seeding roles"))
		}
		log.Printf("seeded %d roles", created)
	}
	cfg := botservice.Config{ProjectName: *projectName}
	if *supportChat != "" {
		ref, err := telegram.ParseChatRef(*supportChat)
		if err != nil {
			log.Fatalln(err)
		}
		cfg.SupportChat = ref
	}
	if *channels != "" {
		for _, part := range strings.Split(*channels, ",") {
			ref, err := telegram.ParseChatRef(strings.TrimSpace(part))
			if err != nil {
				log.Fatalln(err)
			}
			cfg.Channels = append(cfg.Channels, ref)
		}
	}
	// Polling conflicts with an installed webhook, so clear it first.
	me, err := botinfo.Reconcile(ctx, bot, botinfo.Setup{})
	if err != nil {
		log.Fatalln(errors.Wrap(err, "reconciling bot"))
	}
	log.Printf("polling as @%s (id %d)", me.Username, me.ID)
	cfg.BotUsername = me.Username
	svc := botservice.NewService(store, bot, cfg)
	router := svc.Router()
	var offset int64
	for {
		updates, err := bot.GetUpdates(ctx, telegram.GetUpdatesParams{
			Offset:  offset,
			Timeout: *pollTimeout,
		})
		if err != nil {
			log.Println(errors.Wrap(err, "polling updates"))
			time.Sleep(time.Second)
			continue
		}
		for i := range updates {
			u := &updates[i]
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if err := router.Dispatch(ctx, u); err != nil {
				log.Println(errors.Wrap(err, "dispatching update"))
			}
		}
	}
}
