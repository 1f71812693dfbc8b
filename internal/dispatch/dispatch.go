// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch routes incoming Telegram updates to handlers.
package dispatch

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/primo-rp/communitybot/pkg/telegram"
)

// Kind classifies an update for routing and logging.
type Kind string

const (
	KindMessage  Kind = "MSG"
	KindCommand  Kind = "CMD"
	KindCallback Kind = "CBD"
)

// Event is one routable update.
type Event struct {
	Kind   Kind
	Update *telegram.Update
	// Message is set for KindMessage and KindCommand.
	Message *telegram.Message
	// Callback is set for KindCallback.
	Callback *telegram.CallbackQuery
	// Command is the bare lowercased command name, Args the remainder.
	Command string
	Args    string
	// Data is the callback payload.
	Data string
}

// User returns the user that originated the event, if any.
func (e Event) User() *telegram.User {
	return e.Update.From()
}

// Text returns the event payload for logs.
func (e Event) Text() string {
	switch {
	case e.Callback != nil:
		return "callback: " + e.Data
	case e.Message != nil:
		return e.Message.Text
	}
	return ""
}

// Handler processes one event. Message handlers may return ErrSkip to pass
// the event to the next registered handler.
type Handler func(ctx context.Context, ev Event) error

// Middleware wraps a Handler.
type Middleware func(next Handler) Handler

// ErrSkip indicates a message handler declined the event.
var ErrSkip = errors.New("event not handled")

type prefixRoute struct {
	prefix  string
	handler Handler
}

// Router dispatches updates to registered handlers. Commands are recognized
// with "/" and "!" prefixes; a "@botname" suffix addressed to BotUsername is
// stripped. Unroutable updates are dropped.
type Router struct {
	BotUsername string

	commands         map[string]Handler
	callbacks        map[string]Handler
	callbackPrefixes []prefixRoute
	messages         []Handler
	chain            []Middleware
}

const commandPrefixes = "/!"

func NewRouter() *Router {
	return &Router{
		commands:  make(map[string]Handler),
		callbacks: make(map[string]Handler),
	}
}

// Use appends middleware applied, in order, around every dispatched event.
func (r *Router) Use(mw ...Middleware) {
	r.chain = append(r.chain, mw...)
}

// Command registers a handler under one or more command names.
func (r *Router) Command(h Handler, names ...string) {
	for _, name := range names {
		r.commands[strings.ToLower(name)] = h
	}
}

// Callback registers a handler for an exact callback payload.
func (r *Router) Callback(data string, h Handler) {
	r.callbacks[data] = h
}

// CallbackPrefix registers a handler for callback payloads with a prefix.
// Exact matches take precedence.
func (r *Router) CallbackPrefix(prefix string, h Handler) {
	r.callbackPrefixes = append(r.callbackPrefixes, prefixRoute{prefix: prefix, handler: h})
}

// Message appends a non-command message handler. Handlers run in
// registration order until one returns something other than ErrSkip.
func (r *Router) Message(h Handler) {
	r.messages = append(r.messages, h)
}

// Dispatch routes one update through the middleware chain to its handler.
func (r *Router) Dispatch(ctx context.Context, u *telegram.Update) error {
	ev, ok := r.classify(u)
	if !ok {
		return nil
	}
	h := r.route
	for i := len(r.chain) - 1; i >= 0; i-- {
		h = r.chain[i](h)
	}
	return h(ctx, ev)
}

func (r *Router) classify(u *telegram.Update) (Event, bool) {
	switch {
	case u.CallbackQuery != nil:
		return Event{Kind: KindCallback, Update: u, Callback: u.CallbackQuery, Data: u.CallbackQuery.Data}, true
	case u.Message != nil:
		ev := Event{Kind: KindMessage, Update: u, Message: u.Message}
		if name, args, ok := r.parseCommand(u.Message.Text); ok {
			ev.Kind = KindCommand
			ev.Command = name
			ev.Args = args
		}
		return ev, true
	}
	return Event{}, false
}

func (r *Router) parseCommand(text string) (name, args string, ok bool) {
	if text == "" || !strings.ContainsRune(commandPrefixes, rune(text[0])) {
		return "", "", false
	}
	name, args, _ = strings.Cut(text[1:], " ")
	if name == "" {
		return "", "", false
	}
	if base, mention, ok := strings.Cut(name, "@"); ok {
		if r.BotUsername == "" || !strings.EqualFold(mention, r.BotUsername) {
			return "", "", false
		}
		name = base
	}
	return strings.ToLower(name), strings.TrimSpace(args), true
}

func (r *Router) route(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case KindCommand:
		if h, ok := r.commands[ev.Command]; ok {
			return h(ctx, ev)
		}
		return nil // unknown commands are dropped
	case KindCallback:
		if h, ok := r.callbacks[ev.Data]; ok {
			return h(ctx, ev)
		}
		for _, pr := range r.callbackPrefixes {
			if strings.HasPrefix(ev.Data, pr.prefix) {
				return pr.handler(ctx, ev)
			}
		}
		return nil
	default:
		for _, h := range r.messages {
			if err := h(ctx, ev); !errors.Is(err, ErrSkip) {
				return err
			}
		}
		return nil
	}
}
