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

package shardmap_test

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rackmem/rackmem/pkg/rackerr"
	"github.com/rackmem/rackmem/pkg/shardmap"
)

func newIntMap() *shardmap.Map[uint64, string] {
	return shardmap.New[uint64, string](4, shardmap.Uint64Hash[uint64])
}

func TestInsertAndFind(t *testing.T) {
	m := newIntMap()

	ok := m.Insert(1, "one")
	require.True(t, ok)

	ok = m.Insert(1, "uno")
	require.False(t, ok, "second insert of same key must report false")

	v, found := m.Find(1)
	require.True(t, found)
	require.Equal(t, "one", v)
}

func TestAtNotFound(t *testing.T) {
	m := newIntMap()
	_, err := m.At(42)
	require.Error(t, err)
	require.True(t, rackerr.IsKind(err, rackerr.KindNotFound))
}

func TestFindOrEmplaceConstructsOnce(t *testing.T) {
	m := newIntMap()
	calls := 0
	ctor := func() (string, error) {
		calls++
		return "built", nil
	}

	v1, created1, err := m.FindOrEmplace(5, ctor)
	require.NoError(t, err)
	require.True(t, created1)
	require.Equal(t, "built", v1)

	v2, created2, err := m.FindOrEmplace(5, ctor)
	require.NoError(t, err)
	require.False(t, created2)
	require.Equal(t, "built", v2)
	require.Equal(t, 1, calls)
}

func TestFindOrEmplaceConcurrentCallsOnce(t *testing.T) {
	m := newIntMap()
	var calls int32 // accessed only inside ctor, serialized by the shard lock
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = m.FindOrEmplace(9, func() (string, error) {
				calls++
				return "x", nil
			})
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, calls)
}

func TestEraseRemovesEntry(t *testing.T) {
	m := newIntMap()
	m.Insert(3, "three")
	m.Erase(3)
	_, found := m.Find(3)
	require.False(t, found)
}

func TestCompareAndEraseOnlyMatchingValue(t *testing.T) {
	m := newIntMap()
	m.Insert(2, "a")

	require.False(t, m.CompareAndErase(2, "b", func(a, b string) bool { return a == b }))
	_, found := m.Find(2)
	require.True(t, found)

	require.True(t, m.CompareAndErase(2, "a", func(a, b string) bool { return a == b }))
	_, found = m.Find(2)
	require.False(t, found)
}

func TestForeachAllVisitsEveryEntry(t *testing.T) {
	m := newIntMap()
	for i := uint64(0); i < 20; i++ {
		m.Insert(i, "v")
	}

	seen := map[uint64]bool{}
	m.ForeachAll(func(k uint64, _ string) bool {
		seen[k] = true
		return true
	})

	require.Len(t, seen, 20)
}

func TestForeachAllStopsEarly(t *testing.T) {
	m := newIntMap()
	for i := uint64(0); i < 20; i++ {
		m.Insert(i, "v")
	}

	count := 0
	m.ForeachAll(func(k uint64, _ string) bool {
		count++
		return count < 3
	})

	require.Equal(t, 3, count)
}

func TestRandomForeachAllVisitsEveryShardOnce(t *testing.T) {
	m := newIntMap()
	for i := uint64(0); i < 100; i++ {
		m.Insert(i, "v")
	}

	seen := map[uint64]bool{}
	m.RandomForeachAll(rand.New(rand.NewSource(1)), func(k uint64, _ string) bool {
		seen[k] = true
		return true
	})

	require.Len(t, seen, 100)
}

func TestLen(t *testing.T) {
	m := newIntMap()
	require.Equal(t, 0, m.Len())
	m.Insert(1, "a")
	m.Insert(2, "b")
	require.Equal(t, 2, m.Len())
}
