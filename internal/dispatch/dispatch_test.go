// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"testing"

	"github.com/primo-rp/communitybot/pkg/telegram"
)

func msgUpdate(text string) *telegram.Update {
	return &telegram.Update{Message: &telegram.Message{Text: text, Chat: telegram.Chat{ID: 1, Type: telegram.ChatPrivate}}}
}

func TestCommandRouting(t *testing.T) {
	for _, tc := range []struct {
		name   string
		text   string
		want   string
		args   string
		routed bool
	}{
		{name: "slash", text: "/start", want: "start", routed: true},
		{name: "bang", text: "!start", want: "start", routed: true},
		{name: "case", text: "/Start", want: "start", routed: true},
		{name: "args", text: "/ban 123 spam", want: "ban", args: "123 spam", routed: true},
		{name: "own mention", text: "/start@primo_bot", want: "start", routed: true},
		{name: "other mention", text: "/start@other_bot"},
		{name: "plain text", text: "hello"},
		{name: "bare prefix", text: "/"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRouter()
			r.BotUsername = "primo_bot"
			var got Event
			var routed bool
			handler := func(ctx context.Context, ev Event) error {
				got = ev
				routed = true
				return nil
			}
			r.Command(handler, "start", "ban")
			if err := r.Dispatch(context.Background(), msgUpdate(tc.text)); err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			if routed != tc.routed {
				t.Fatalf("routed: got %v, want %v", routed, tc.routed)
			}
			if !routed {
				return
			}
			if got.Command != tc.want || got.Args != tc.args {
				t.Errorf("command: got (%q, %q), want (%q, %q)", got.Command, got.Args, tc.want, tc.args)
			}
		})
	}
}

func TestCallbackRouting(t *testing.T) {
	r := NewRouter()
	var hits []string
	r.Callback("new", func(ctx context.Context, ev Event) error {
		hits = append(hits, "exact:"+ev.Data)
		return nil
	})
	r.CallbackPrefix("anketa:", func(ctx context.Context, ev Event) error {
		hits = append(hits, "prefix:"+ev.Data)
		return nil
	})
	for _, data := range []string{"new", "anketa:accept:55", "unknown"} {
		u := &telegram.Update{CallbackQuery: &telegram.CallbackQuery{ID: "1", Data: data}}
		if err := r.Dispatch(context.Background(), u); err != nil {
			t.Fatalf("Dispatch(%q): %v", data, err)
		}
	}
	want := []string{"exact:new", "prefix:anketa:accept:55"}
	if len(hits) != len(want) {
		t.Fatalf("hits: got %v, want %v", hits, want)
	}
	for i := range want {
		if hits[i] != want[i] {
			t.Errorf("hit %d: got %q, want %q", i, hits[i], want[i])
		}
	}
}

func TestMessageChain(t *testing.T) {
	r := NewRouter()
	var order []string
	r.Message(func(ctx context.Context, ev Event) error {
		order = append(order, "first")
		return ErrSkip
	})
	r.Message(func(ctx context.Context, ev Event) error {
		order = append(order, "second")
		return nil
	})
	r.Message(func(ctx context.Context, ev Event) error {
		order = append(order, "unreached")
		return nil
	})
	if err := r.Dispatch(context.Background(), msgUpdate("hello")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("handler order: got %v, want [first second]", order)
	}
}

func TestMiddlewareOrder(t *testing.T) {
	r := NewRouter()
	var order []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, ev Event) error {
				order = append(order, name)
				return next(ctx, ev)
			}
		}
	}
	r.Use(mw("outer"), mw("inner"))
	r.Command(func(ctx context.Context, ev Event) error {
		order = append(order, "handler")
		return nil
	}, "start")
	if err := r.Dispatch(context.Background(), msgUpdate("/start")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(order) != 3 || order[0] != "outer" || order[1] != "inner" || order[2] != "handler" {
		t.Errorf("order: got %v, want [outer inner handler]", order)
	}
}
