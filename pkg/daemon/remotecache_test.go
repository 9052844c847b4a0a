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

package daemon

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rackmem/rackmem/pkg/gaddr"
	"github.com/rackmem/rackmem/pkg/rdma"
)

func TestRemoteCacheFindOrEmplaceConstructsOnce(t *testing.T) {
	c := NewRemoteCache(0.01, time.Millisecond)
	calls := 0
	ctor := func() (rdma.Handle, gaddr.MacID, error) {
		calls++
		return rdma.Handle{Addr: 7, RKey: 7}, gaddr.MacID(3), nil
	}

	ref1, created1, err := c.FindOrEmplace(gaddr.PageID(1), ctor)
	require.NoError(t, err)
	require.True(t, created1)
	require.Equal(t, gaddr.MacID(3), ref1.OwnerMacID)

	ref2, created2, err := c.FindOrEmplace(gaddr.PageID(1), ctor)
	require.NoError(t, err)
	require.False(t, created2)
	require.Same(t, ref1, ref2)
	require.Equal(t, 1, calls)
}

func TestRemoteCacheFindOrEmplacePropagatesCtorError(t *testing.T) {
	c := NewRemoteCache(0.01, time.Millisecond)
	wantErr := errors.New("latch failed")
	_, _, err := c.FindOrEmplace(gaddr.PageID(1), func() (rdma.Handle, gaddr.MacID, error) {
		return rdma.Handle{}, 0, wantErr
	})
	require.ErrorIs(t, err, wantErr)

	_, ok := c.Find(gaddr.PageID(1))
	require.False(t, ok)
}

func TestRemoteCacheRemove(t *testing.T) {
	c := NewRemoteCache(0.01, time.Millisecond)
	_, _, err := c.FindOrEmplace(gaddr.PageID(2), func() (rdma.Handle, gaddr.MacID, error) {
		return rdma.Handle{Addr: 1, RKey: 1}, gaddr.MacID(1), nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	c.Remove(gaddr.PageID(2))
	require.Equal(t, 0, c.Len())
	_, ok := c.Find(gaddr.PageID(2))
	require.False(t, ok)
}

func TestRemoteCacheIdentityChangesAfterRemoveAndReemplace(t *testing.T) {
	c := NewRemoteCache(0.01, time.Millisecond)
	ctor := func() (rdma.Handle, gaddr.MacID, error) {
		return rdma.Handle{Addr: 9, RKey: 9}, gaddr.MacID(5), nil
	}

	first, _, err := c.FindOrEmplace(gaddr.PageID(4), ctor)
	require.NoError(t, err)

	c.Remove(gaddr.PageID(4))

	second, created, err := c.FindOrEmplace(gaddr.PageID(4), ctor)
	require.NoError(t, err)
	require.True(t, created)
	require.NotSame(t, first, second)
}
