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
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rackmem/rackmem/pkg/conn"
	"github.com/rackmem/rackmem/pkg/future"
	"github.com/rackmem/rackmem/pkg/gaddr"
	"github.com/rackmem/rackmem/pkg/rdma"
	"github.com/rackmem/rackmem/pkg/rpcapi"
)

func TestTryMigratePageCopiesSlabToRequester(t *testing.T) {
	d := newTestDaemon(t, 2)
	d.MacID = gaddr.MacID(1)

	meta, err := d.Table.AllocPageMemory()
	require.NoError(t, err)
	d.Table.ApplyPageMemory(gaddr.PageID(1), meta)
	want := bytes.Repeat([]byte{0xAB}, gaddr.PageSize)
	copy(d.Table.Slab(meta), want)

	requesterRegistry := rdma.NewRegistry()
	dest := make([]byte, gaddr.PageSize)
	destHandle := requesterRegistry.Register(dest)

	requesterMac := gaddr.MacID(2)
	d.Peers.Put(requesterMac, &conn.Entry{RDMAConn: rdma.NewLoopbackConn(requesterRegistry)})

	reply, err := d.TryMigratePage(context.Background(), &rpcapi.TryMigratePageRequest{
		MacID: requesterMac, PageID: gaddr.PageID(1),
		SwapPageID: gaddr.InvalidPageID, SwapInPageAddr: destHandle,
	})
	require.NoError(t, err)
	require.False(t, reply.Swapped)

	require.Equal(t, want, dest)
	_, ok := d.Table.Find(gaddr.PageID(1))
	require.False(t, ok, "the migrated-away page should no longer be resident")
}

func TestTryMigratePageSwapsBothDirections(t *testing.T) {
	d := newTestDaemon(t, 2)
	d.MacID = gaddr.MacID(1)

	meta, err := d.Table.AllocPageMemory()
	require.NoError(t, err)
	d.Table.ApplyPageMemory(gaddr.PageID(1), meta)
	wantSwapIn := bytes.Repeat([]byte{0xCD}, gaddr.PageSize)
	copy(d.Table.Slab(meta), wantSwapIn)

	requesterRegistry := rdma.NewRegistry()
	swapInDest := make([]byte, gaddr.PageSize)
	swapInHandle := requesterRegistry.Register(swapInDest)
	swapOutSrc := bytes.Repeat([]byte{0xEF}, gaddr.PageSize)
	swapOutHandle := requesterRegistry.Register(swapOutSrc)

	requesterMac := gaddr.MacID(2)
	d.Peers.Put(requesterMac, &conn.Entry{RDMAConn: rdma.NewLoopbackConn(requesterRegistry)})

	reply, err := d.TryMigratePage(context.Background(), &rpcapi.TryMigratePageRequest{
		MacID: requesterMac, PageID: gaddr.PageID(1), SwapPageID: gaddr.PageID(2),
		SwapInPageAddr: swapInHandle, SwapOutPageAddr: swapOutHandle,
	})
	require.NoError(t, err)
	require.True(t, reply.Swapped)

	require.Equal(t, wantSwapIn, swapInDest)

	swapMeta, ok := d.Table.Find(gaddr.PageID(2))
	require.True(t, ok, "the swapped-in page should now be resident")
	require.Equal(t, swapOutSrc, d.Table.Slab(swapMeta))
}

func TestTryMigratePageNoLocalPage(t *testing.T) {
	d := newTestDaemon(t, 1)
	_, err := d.TryMigratePage(context.Background(), &rpcapi.TryMigratePageRequest{
		MacID: gaddr.MacID(2), PageID: gaddr.PageID(99),
	})
	require.Error(t, err)
}

func TestPollFutureReturnsImmediateResult(t *testing.T) {
	f := future.Done[int](7, nil)
	v, err := pollFuture(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestPollFutureRespectsContextCancellation(t *testing.T) {
	f := future.New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pollFuture(ctx, f)
	require.Error(t, err)
}
