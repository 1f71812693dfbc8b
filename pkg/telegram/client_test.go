// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/primo-rp/communitybot/internal/httpx/httpxtest"
)

func TestGetMe(t *testing.T) {
	client := HTTPClient{
		Token: "testtoken",
		Client: &httpxtest.MockClient{
			URLValidator: httpxtest.NewURLValidator(t),
			Calls: []httpxtest.Call{
				{
					Method: "POST",
					URL:    "https://api.telegram.org/bottesttoken/getMe",
					Response: &http.Response{
						StatusCode: 200,
						Body:       httpxtest.Body(`{"ok":true,"result":{"id":7,"is_bot":true,"first_name":"Примо","username":"primo_rp_bot"}}`),
					},
				},
			},
		},
	}
	me, err := client.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	want := &User{ID: 7, IsBot: true, FirstName: "Примо", Username: "primo_rp_bot"}
	if diff := cmp.Diff(want, me); diff != "" {
		t.Fatalf("GetMe mismatch (-want +got):\n%s", diff)
	}
}

func TestSendMessageError(t *testing.T) {
	client := HTTPClient{
		Token: "testtoken",
		Client: &httpxtest.MockClient{
			SkipURLValidation: true,
			Calls: []httpxtest.Call{
				{
					Response: &http.Response{
						StatusCode: 429,
						Body:       httpxtest.Body(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 14","parameters":{"retry_after":14}}`),
					},
				},
			},
		},
	}
	_, err := client.SendMessage(context.Background(), SendMessageParams{Chat: ChatID(42), Text: "привет"})
	if err == nil {
		t.Fatal("SendMessage: expected error")
	}
	after, ok := IsTooManyRequests(err)
	if !ok {
		t.Fatalf("IsTooManyRequests: want true for %v", err)
	}
	if after != 14*time.Second {
		t.Fatalf("retry after: want 14s, got %v", after)
	}
}

func TestGetChatMember(t *testing.T) {
	client := HTTPClient{
		Token: "testtoken",
		Client: &httpxtest.MockClient{
			URLValidator: httpxtest.NewURLValidator(t),
			Calls: []httpxtest.Call{
				{
					Method: "POST",
					URL:    "https://api.telegram.org/bottesttoken/getChatMember",
					Response: &http.Response{
						StatusCode: 200,
						Body:       httpxtest.Body(`{"ok":true,"result":{"status":"administrator","user":{"id":99,"first_name":"Ли"},"can_pin_messages":true}}`),
					},
				},
			},
		},
	}
	m, err := client.GetChatMember(context.Background(), ChatRef{Username: "@primo_flood"}, 99)
	if err != nil {
		t.Fatalf("GetChatMember: %v", err)
	}
	if !m.IsIn() {
		t.Fatal("IsIn: want true for administrator")
	}
	if !m.CanPinMessages {
		t.Fatal("CanPinMessages: want true")
	}
}

func TestParseChatRef(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    ChatRef
		wantErr bool
	}{
		{in: "@primo_info", want: ChatRef{Username: "@primo_info"}},
		{in: "-1001234567890", want: ChatRef{ID: -1001234567890}},
		{in: "garbage", wantErr: true},
	} {
		got, err := ParseChatRef(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseChatRef(%q): err=%v, wantErr=%v", tc.in, err, tc.wantErr)
		}
		if err == nil && got != tc.want {
			t.Fatalf("ParseChatRef(%q): got %+v, want %+v", tc.in, got, tc.want)
		}
	}
}
