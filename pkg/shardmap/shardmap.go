// Copyright 2022 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package shardmap implements a fixed-shard-count concurrent map. Every page
// directory, page table and hot-stats map in this tree is one of these: a
// key space large enough that per-key locking would thrash the allocator,
// but contended enough that a single mutex would serialize everything.
package shardmap

import (
	"math/rand"
	"sync"

	"github.com/rackmem/rackmem/pkg/rackerr"
)

// DefaultShardCount is the shard count used unless a Map is built with New.
const DefaultShardCount = 32

// Uint64Hash is a Hasher for any key whose underlying type is uint64, such
// as gaddr.PageID or gaddr.MacID. It distributes consecutively allocated
// ids across shards via a cheap multiplicative mix rather than modulo alone,
// so runs of nearby ids (e.g. a freshly allocated page range) don't all land
// on the same shard.
func Uint64Hash[K ~uint64](k K) uint64 {
	x := uint64(k)
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	return x
}

// Hasher maps a key to a shard index space; callers narrow it mod shard count.
type Hasher[K comparable] func(K) uint64

// Map is a concurrent map of K to V backed by a fixed number of shards, each
// independently reader/writer-locked.
type Map[K comparable, V any] struct {
	shards []shard[K, V]
	hash   Hasher[K]
}

type shard[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// NewDefault creates a Map with DefaultShardCount shards and the given hasher.
func NewDefault[K comparable, V any](hash Hasher[K]) *Map[K, V] {
	return New[K, V](DefaultShardCount, hash)
}

// New creates a Map with the given shard count.
func New[K comparable, V any](shardCount int, hash Hasher[K]) *Map[K, V] {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}
	m := &Map[K, V]{
		shards: make([]shard[K, V], shardCount),
		hash:   hash,
	}
	for i := range m.shards {
		m.shards[i].m = make(map[K]V)
	}
	return m
}

func (m *Map[K, V]) shardFor(key K) *shard[K, V] {
	return &m.shards[m.hash(key)%uint64(len(m.shards))]
}

// Insert adds k=v if k is not already present. ok is false if k was already there.
func (m *Map[K, V]) Insert(key K, value V) (ok bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.m[key]; exists {
		return false
	}
	s.m[key] = value
	return true
}

// Find returns the value stored for key, if any.
func (m *Map[K, V]) Find(key K) (value V, ok bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok = s.m[key]
	return value, ok
}

// At returns the value for key or a NotFound error.
func (m *Map[K, V]) At(key K) (V, error) {
	value, ok := m.Find(key)
	if !ok {
		var zero V
		return zero, rackerr.NotFound("shardmap: no entry for key %v", key)
	}
	return value, nil
}

// FindOrEmplace returns the existing value for key, or else calls ctor
// exactly once while holding the shard exclusively and stores its result.
// created is true iff ctor was invoked.
func (m *Map[K, V]) FindOrEmplace(key K, ctor func() (V, error)) (value V, created bool, err error) {
	if v, ok := m.Find(key); ok {
		return v, false, nil
	}

	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.m[key]; ok {
		return v, false, nil
	}

	v, err := ctor()
	if err != nil {
		var zero V
		return zero, false, err
	}
	s.m[key] = v
	return v, true, nil
}

// Erase removes key, if present.
func (m *Map[K, V]) Erase(key K) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// CompareAndErase removes key only if its current value still equals want,
// using eq for comparison. Used to retire a cache entry without racing a
// concurrent FindOrEmplace that already replaced it.
func (m *Map[K, V]) CompareAndErase(key K, want V, eq func(V, V) bool) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.m[key]
	if !ok || !eq(cur, want) {
		return false
	}
	delete(s.m, key)
	return true
}

// ForeachAll visits every entry, shard by shard, under that shard's read
// lock. fn returning false stops the walk early.
func (m *Map[K, V]) ForeachAll(fn func(K, V) bool) {
	for i := range m.shards {
		if !m.foreachShard(i, fn) {
			return
		}
	}
}

// RandomForeachAll is ForeachAll starting from a uniformly random shard and
// wrapping cyclically, so repeated scans (e.g. victim selection) don't
// always favor the low-index shards.
func (m *Map[K, V]) RandomForeachAll(rng *rand.Rand, fn func(K, V) bool) {
	n := len(m.shards)
	start := rng.Intn(n)
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if !m.foreachShard(idx, fn) {
			return
		}
	}
}

func (m *Map[K, V]) foreachShard(i int, fn func(K, V) bool) bool {
	s := &m.shards[i]
	s.mu.RLock()
	defer s.mu.RUnlock()

	for k, v := range s.m {
		if !fn(k, v) {
			return false
		}
	}
	return true
}

// Len returns the total number of entries across all shards. It takes each
// shard's read lock in turn and is only a point-in-time estimate under concurrency.
func (m *Map[K, V]) Len() int {
	total := 0
	for i := range m.shards {
		m.shards[i].mu.RLock()
		total += len(m.shards[i].m)
		m.shards[i].mu.RUnlock()
	}
	return total
}

// ShardCount returns the number of shards backing the map.
func (m *Map[K, V]) ShardCount() int {
	return len(m.shards)
}
