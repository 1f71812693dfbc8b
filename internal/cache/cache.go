// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache provides an interface and implementations for caching.
package cache

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Cache is a simple interface defining a cache.
type Cache interface {
	Get(any) (any, error)
	Set(any, func() (any, error)) error
	GetOrSet(any, func() (any, error)) (any, error)
	Del(any)
	Clear()
}

// ErrNotExist is returned when a key does not exist in the cache.
var ErrNotExist = errors.New("does not exist")

// CoalescingMemoryCache is a simple cache that coalesces concurrent requests for the same key.
type CoalescingMemoryCache struct {
	data sync.Map // key -> sync.OnceValues
}

// fn is a wrapper that allows making func() comparable.
type fn struct {
	Func func() (any, error)
}

func (c *CoalescingMemoryCache) valueOrClear(key, once any) (any, error) {
	val, err := once.(*fn).Func()
	if err != nil {
		c.data.CompareAndDelete(key, once)
	}
	return val, err
}

// Get returns the value for the given key.
func (c *CoalescingMemoryCache) Get(key any) (any, error) {
	once, ok := c.data.Load(key)
	if !ok {
		return nil, ErrNotExist
	}
	return c.valueOrClear(key, once)
}

// Set sets the value for the given key with the returned value from fetch.
func (c *CoalescingMemoryCache) Set(key any, fetch func() (any, error)) error {
	once := &fn{sync.OnceValues(fetch)}
	c.data.Store(key, once)
	_, err := c.valueOrClear(key, once)
	return err
}

// GetOrSet returns the value for the given key, or sets it if it does not exist.
// Notably, this will coalesce simultaneous accesses to the same key.
func (c *CoalescingMemoryCache) GetOrSet(key any, fetch func() (any, error)) (any, error) {
	once, _ := c.data.LoadOrStore(key, &fn{sync.OnceValues(fetch)})
	return c.valueOrClear(key, once)
}

// Del deletes the value for the given key.
func (c *CoalescingMemoryCache) Del(key any) {
	c.data.Delete(key)
}

// Clear clears the cache.
func (c *CoalescingMemoryCache) Clear() {
	c.data = sync.Map{}
}

var _ Cache = &CoalescingMemoryCache{}

// ExpiringCache wraps another Cache and expires entries after a fixed TTL.
//
// Expiry is enforced on read: an expired entry is dropped and treated as
// ErrNotExist. Used for channel-membership checks where staleness must be
// bounded but rechecking on every update would be wasteful.
type ExpiringCache struct {
	Cache
	TTL time.Duration
	now func() time.Time
}

type expiringEntry struct {
	value    any
	deadline time.Time
}

// NewExpiringCache returns an ExpiringCache over base with the given TTL.
func NewExpiringCache(base Cache, ttl time.Duration) *ExpiringCache {
	return &ExpiringCache{Cache: base, TTL: ttl, now: time.Now}
}

func (e *ExpiringCache) wrap(fetch func() (any, error)) func() (any, error) {
	return func() (any, error) {
		val, err := fetch()
		if err != nil {
			return nil, err
		}
		return expiringEntry{value: val, deadline: e.now().Add(e.TTL)}, nil
	}
}

func (e *ExpiringCache) unwrap(key, val any, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	entry := val.(expiringEntry)
	if e.now().After(entry.deadline) {
		e.Cache.Del(key)
		return nil, ErrNotExist
	}
	return entry.value, nil
}

// Get returns the value for the given key unless it has expired.
func (e *ExpiringCache) Get(key any) (any, error) {
	val, err := e.Cache.Get(key)
	return e.unwrap(key, val, err)
}

// Set sets the value for the given key, expiring TTL from now.
func (e *ExpiringCache) Set(key any, fetch func() (any, error)) error {
	return e.Cache.Set(key, e.wrap(fetch))
}

// GetOrSet returns the unexpired value for the given key, or sets it.
func (e *ExpiringCache) GetOrSet(key any, fetch func() (any, error)) (any, error) {
	val, err := e.Cache.Get(key)
	if unwrapped, uerr := e.unwrap(key, val, err); uerr != ErrNotExist {
		return unwrapped, uerr
	}
	val, err = e.Cache.GetOrSet(key, e.wrap(fetch))
	return e.unwrap(key, val, err)
}

var _ Cache = &ExpiringCache{}
