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

package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rackmem/rackmem/pkg/gaddr"
	"github.com/rackmem/rackmem/pkg/rpcapi"
	"github.com/rackmem/rackmem/pkg/transport"
)

// newTestClient builds a Client with no live master/daemon connection; the
// tests below only exercise the local cache and the ClientService handlers,
// none of which dial out.
func newTestClient() *Client {
	return New(transport.MasterClient{}, transport.DaemonFacingClient{})
}

func TestTouchTracksLastAccessAndDirty(t *testing.T) {
	c := newTestClient()
	addr := gaddr.Make(gaddr.PageID(7), 64)

	c.touch(addr, nil)
	st, ok := c.pages.Find(addr.PageID())
	require.True(t, ok)
	require.Zero(t, len(st.dirty))
	firstTouch := st.lastAccess

	c.touch(addr, []byte("payload"))
	st, ok = c.pages.Find(addr.PageID())
	require.True(t, ok)
	require.Equal(t, []byte("payload"), st.dirty)
	require.False(t, st.lastAccess.Before(firstTouch))
}

func TestRemovePageCacheDropsEntry(t *testing.T) {
	c := newTestClient()
	addr := gaddr.Make(gaddr.PageID(3), 0)
	c.touch(addr, []byte("dirty"))

	_, err := c.RemovePageCache(context.Background(), &rpcapi.RemovePageCacheRequest{PageID: addr.PageID()})
	require.NoError(t, err)

	_, ok := c.pages.Find(addr.PageID())
	require.False(t, ok)
}

func TestGetCurrentWriteDataReturnsDirtyBytes(t *testing.T) {
	c := newTestClient()
	addr := gaddr.Make(gaddr.PageID(9), 0)
	c.touch(addr, []byte("combined"))

	reply, err := c.GetCurrentWriteData(context.Background(), &rpcapi.GetCurrentWriteDataRequest{MacID: c.MacID})
	require.NoError(t, err)
	require.Equal(t, []byte("combined"), reply.Data)
}

func TestGetPagePastAccessFreqReportsOldest(t *testing.T) {
	c := newTestClient()
	old := gaddr.Make(gaddr.PageID(1), 0)
	newer := gaddr.Make(gaddr.PageID(2), 0)

	c.touch(old, nil)
	c.touch(newer, nil)
	// Force old to look strictly older than newer without sleeping.
	st, ok := c.pages.Find(old.PageID())
	require.True(t, ok)
	st.lastAccess = st.lastAccess.Add(-time.Hour)

	reply, err := c.GetPagePastAccessFreq(context.Background(), &rpcapi.GetPagePastAccessFreqRequest{MacID: c.MacID})
	require.NoError(t, err)
	require.Equal(t, old.PageID(), reply.OldestPageID)
}

func TestGetPagePastAccessFreqEmptyCache(t *testing.T) {
	c := newTestClient()
	reply, err := c.GetPagePastAccessFreq(context.Background(), &rpcapi.GetPagePastAccessFreqRequest{MacID: c.MacID})
	require.NoError(t, err)
	require.False(t, reply.OldestPageID.IsValid())
}
