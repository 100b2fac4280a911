// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mincache remembers minification results by content.
package mincache

import (
	"crypto/md5"
	"encoding/binary"
	"sync/atomic"

	"github.com/tidwall/tinylru"
)

// DefaultSize is the number of entries kept when New is called with size 0.
const DefaultSize = 1024

// Key identifies a minification input.
type Key [md5.Size]byte

// NewKey returns the key of the given parts. Parts are length-prefixed
// before hashing, so ("ab", "c") and ("a", "bc") differ.
func NewKey(parts ...string) (k Key) {
	h := md5.New()
	var n [binary.MaxVarintLen64]byte
	for _, p := range parts {
		h.Write(n[:binary.PutUvarint(n[:], uint64(len(p)))])
		h.Write([]byte(p))
	}
	h.Sum(k[:0])
	return
}

// Cache is a fixed-size LRU of minified strings. It is safe for concurrent use.
type Cache struct {
	lru    tinylru.LRU
	hits   atomic.Int64
	misses atomic.Int64
}

func New(size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	c := new(Cache)
	c.lru.Resize(size)
	return c
}

// Get returns the cached value for k.
func (c *Cache) Get(k Key) (string, bool) {
	v, ok := c.lru.Get(k)
	if !ok {
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return v.(string), true
}

// Put stores v for k, evicting the least recently used entry if needed.
func (c *Cache) Put(k Key, v string) {
	c.lru.Set(k, v)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return c.lru.Len() }

// Stats returns the number of hits and misses since the cache was created.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
