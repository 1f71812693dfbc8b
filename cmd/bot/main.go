// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

// Binary bot serves the community bot: the Telegram webhook, the admin
// operations, and the broadcast delivery task endpoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/pkg/errors"
	"github.com/primo-rp/communitybot/internal/api"
	"github.com/primo-rp/communitybot/internal/api/botservice"
	"github.com/primo-rp/communitybot/internal/botdb"
	"github.com/primo-rp/communitybot/internal/botinfo"
	"github.com/primo-rp/communitybot/internal/httpx"
	"github.com/primo-rp/communitybot/internal/taskqueue"
	"github.com/primo-rp/communitybot/pkg/schema"
	"github.com/primo-rp/communitybot/pkg/telegram"
)

var (
	port           = flag.Int("port", 8080, "port to serve on")
	project        = flag.String("project", "", "GCP project ID for Firestore")
	webhookURL     = flag.String("webhook-url", "", "public URL Telegram delivers updates to; empty leaves the bot in polling mode")
	webhookSecret  = flag.String("webhook-secret", "", "secret token Telegram echoes on webhook deliveries")
	supportChat    = flag.String("support-chat", "", "forum supergroup questionnaires are filed in")
	channels       = flag.String("required-channels", "", "comma-separated channels the subscription gate requires")
	admins         = flag.String("admins", "", "comma-separated admin user IDs for error notifications")
	projectName    = flag.String("project-name", "PRIMO", "community name shown in the welcome message")
	infoURL        = flag.String("info-url", "", "info channel URL for the welcome keyboard")
	floodURL       = flag.String("flood-url", "", "flood chat URL included in acceptance messages")
	roleplayURL    = flag.String("roleplay-url", "", "role-play chat URL included in acceptance messages")
	adminContact   = flag.String("admin-contact", "", "admin contact details for the welcome keyboard")
	startPhoto     = flag.String("start-photo", "", "file_id or URL of the welcome photo")
	factsFile      = flag.String("facts-file", "", "file with one interesting fact per line")
	botName        = flag.String("bot-name", "", "bot display name to reconcile at startup")
	taskQueuePath  = flag.String("task-queue", "", "Cloud Tasks queue for broadcast fan-out")
	taskQueueEmail = flag.String("task-queue-email", "", "service account email used to authorize task deliveries")
	broadcastURL   = flag.String("broadcast-task-url", "", "URL Cloud Tasks delivers broadcast sends to")
	assetsDir      = flag.String("assets-dir", "", "directory of static assets to serve under /assets/")
)

// version is stamped at build time.
var version = "dev"

func parseAdmins(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	var out []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid admin ID %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}

func parseChannels(s string) ([]telegram.ChatRef, error) {
	if s == "" {
		return nil, nil
	}
	var out []telegram.ChatRef
	for _, part := range strings.Split(s, ",") {
		ref, err := telegram.ParseChatRef(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

func readFacts(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading facts file")
	}
	var facts []string
	for _, line := range strings.Split(string(b), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			facts = append(facts, line)
		}
	}
	return facts, nil
}

// translateUpdate adapts Telegram's JSON update payload to the handler
// framework's form encoding.
func translateUpdate(body io.ReadCloser) (schema.WebhookRequest, error) {
	defer body.Close()
	var u telegram.Update
	if err := json.NewDecoder(body).Decode(&u); err != nil {
		return schema.WebhookRequest{}, errors.Wrap(err, "decoding update")
	}
	return schema.WebhookRequest{Update: &u}, nil
}

// requireSecret rejects webhook deliveries without the configured secret.
func requireSecret(secret string, h http.HandlerFunc) http.HandlerFunc {
	if secret == "" {
		return h
	}
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Telegram-Bot-Api-Secret-Token") != secret {
			http.Error(rw, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

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
	store, err := botdb.NewFirestore(ctx, *project)
	if err != nil {
		log.Fatalln(errors.Wrap(err, "creating store"))
	}
	adminIDs, err := parseAdmins(*admins)
	if err != nil {
		log.Fatalln(err)
	}
	channelRefs, err := parseChannels(*channels)
	if err != nil {
		log.Fatalln(err)
	}
	facts, err := readFacts(*factsFile)
	if err != nil {
		log.Fatalln(err)
	}
	cfg := botservice.Config{
		Channels:     channelRefs,
		Admins:       adminIDs,
		ProjectName:  *projectName,
		InfoURL:      *infoURL,
		FloodURL:     *floodURL,
		RoleplayURL:  *roleplayURL,
		AdminContact: *adminContact,
		StartPhoto:   *startPhoto,
		Facts:        facts,
	}
	if *supportChat != "" {
		ref, err := telegram.ParseChatRef(*supportChat)
		if err != nil {
			log.Fatalln(err)
		}
		cfg.SupportChat = ref
	}
	me, err := botinfo.Reconcile(ctx, bot, botinfo.Setup{
		WebhookURL:  *webhookURL,
		SecretToken: *webhookSecret,
		Profile:     botinfo.Profile{Name: *botName},
	})
	if err != nil {
		log.Fatalln(errors.Wrap(err, "reconciling bot"))
	}
	log.Printf("serving as @%s (id %d)", me.Username, me.ID)
	cfg.BotUsername = me.Username
	svc := botservice.NewService(store, bot, cfg)
	if *taskQueuePath != "" {
		queue, err := taskqueue.NewQueue(ctx, *taskQueuePath, *taskQueueEmail)
		if err != nil {
			log.Fatalln(errors.Wrap(err, "creating task queue"))
		}
		svc.Queue = queue
		svc.TaskURL = *broadcastURL
	}
	serviceInit := func(context.Context) (*botservice.Service, error) { return svc, nil }
	http.HandleFunc("/webhook", requireSecret(*webhookSecret, api.Translate(translateUpdate, api.Handler(serviceInit, botservice.Webhook))))
	http.HandleFunc("/admin/broadcast", api.Handler(serviceInit, botservice.Broadcast))
	http.HandleFunc("/admin/member", api.Handler(serviceInit, botservice.MemberStatus))
	http.HandleFunc("/admin/role", api.Handler(serviceInit, botservice.Role))
	http.HandleFunc("/admin/roster", api.Handler(serviceInit, botservice.RosterUpdate))
	http.HandleFunc("/tasks/broadcast/send", api.Handler(serviceInit, botservice.BroadcastSend))
	http.HandleFunc("/version", func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(rw, version)
	})
	if *assetsDir != "" {
		http.Handle("/assets/", http.StripPrefix("/assets", httpx.FSHandler(osfs.New(*assetsDir))))
	}
	log.Printf("listening on :%d", *port)
	log.Fatalln(http.ListenAndServe(fmt.Sprintf(":%d", *port), nil))
}
