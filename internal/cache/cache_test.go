// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestCoalescingMemoryCache(t *testing.T) {
	c := &CoalescingMemoryCache{}
	if _, err := c.Get("missing"); err != ErrNotExist {
		t.Fatalf("Get on empty cache: want ErrNotExist, got %v", err)
	}
	var calls int
	fetch := func() (any, error) {
		calls++
		return "member", nil
	}
	if val, err := c.GetOrSet("user:42", fetch); err != nil || val != "member" {
		t.Fatalf("GetOrSet: got (%v, %v)", val, err)
	}
	if val, err := c.GetOrSet("user:42", fetch); err != nil || val != "member" {
		t.Fatalf("GetOrSet (cached): got (%v, %v)", val, err)
	}
	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1", calls)
	}
	c.Del("user:42")
	if _, err := c.Get("user:42"); err != ErrNotExist {
		t.Fatalf("Get after Del: want ErrNotExist, got %v", err)
	}
}

func TestCoalescingMemoryCacheError(t *testing.T) {
	c := &CoalescingMemoryCache{}
	boom := errors.New("telegram unavailable")
	if _, err := c.GetOrSet("user:42", func() (any, error) { return nil, boom }); err != boom {
		t.Fatalf("GetOrSet: want %v, got %v", boom, err)
	}
	// Errors are not cached; the next fetch should run.
	if val, err := c.GetOrSet("user:42", func() (any, error) { return "member", nil }); err != nil || val != "member" {
		t.Fatalf("GetOrSet after error: got (%v, %v)", val, err)
	}
}

func TestExpiringCache(t *testing.T) {
	now := time.Unix(1700000000, 0)
	e := NewExpiringCache(&CoalescingMemoryCache{}, time.Minute)
	e.now = func() time.Time { return now }

	if _, err := e.Get("missing"); err != ErrNotExist {
		t.Fatalf("Get on empty cache: want ErrNotExist, got %v", err)
	}
	var calls int
	fetch := func() (any, error) {
		calls++
		return "subscribed", nil
	}
	if val, err := e.GetOrSet("user:42", fetch); err != nil || val != "subscribed" {
		t.Fatalf("GetOrSet: got (%v, %v)", val, err)
	}
	now = now.Add(30 * time.Second)
	if _, err := e.Get("user:42"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}
	now = now.Add(31 * time.Second)
	if _, err := e.Get("user:42"); err != ErrNotExist {
		t.Fatalf("Get after expiry: want ErrNotExist, got %v", err)
	}
	if val, err := e.GetOrSet("user:42", fetch); err != nil || val != "subscribed" {
		t.Fatalf("GetOrSet after expiry: got (%v, %v)", val, err)
	}
	if calls != 2 {
		t.Fatalf("fetch called %d times, want 2", calls)
	}
}
