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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rackmem/rackmem/pkg/conn"
	"github.com/rackmem/rackmem/pkg/gaddr"
	"github.com/rackmem/rackmem/pkg/rdma"
	"github.com/rackmem/rackmem/pkg/rpcapi"
	"github.com/rackmem/rackmem/pkg/transport"
)

// fakeMaster is a hand-written rpcapi.MasterService that lets the tests in
// this file exercise Daemon.Master without dialing an actual master
// process: resolveRemote and migrate() only ever need LatchRemotePage,
// UnLatchRemotePage and UnLatchPageAndSwap, so that's all this implements
// beyond satisfying the interface.
type fakeMaster struct {
	destRackID   int32
	destDaemonID gaddr.MacID

	unlatchCalls         []gaddr.PageID
	unlatchPageAndSwapOK bool
}

func (f *fakeMaster) JoinDaemon(ctx context.Context, req *rpcapi.JoinDaemonRequest) (*rpcapi.JoinDaemonReply, error) {
	return &rpcapi.JoinDaemonReply{}, nil
}

func (f *fakeMaster) AllocPage(ctx context.Context, req *rpcapi.AllocPageRequest) (*rpcapi.AllocPageReply, error) {
	return &rpcapi.AllocPageReply{}, nil
}

func (f *fakeMaster) FreePage(ctx context.Context, req *rpcapi.FreePageRequest) (*rpcapi.FreePageReply, error) {
	return &rpcapi.FreePageReply{OK: true}, nil
}

func (f *fakeMaster) LatchRemotePage(ctx context.Context, req *rpcapi.LatchRemotePageRequest) (*rpcapi.LatchRemotePageReply, error) {
	return &rpcapi.LatchRemotePageReply{DestRackID: f.destRackID, DestDaemonID: f.destDaemonID}, nil
}

func (f *fakeMaster) UnLatchRemotePage(ctx context.Context, req *rpcapi.UnLatchRemotePageRequest) (*rpcapi.UnLatchRemotePageReply, error) {
	f.unlatchCalls = append(f.unlatchCalls, req.PageID)
	return &rpcapi.UnLatchRemotePageReply{OK: true}, nil
}

func (f *fakeMaster) UnLatchPageAndSwap(ctx context.Context, req *rpcapi.UnLatchPageAndSwapRequest) (*rpcapi.UnLatchPageAndSwapReply, error) {
	f.unlatchPageAndSwapOK = true
	return &rpcapi.UnLatchPageAndSwapReply{OK: true}, nil
}

func (f *fakeMaster) JoinClient(ctx context.Context, req *rpcapi.JoinClientRequest) (*rpcapi.JoinClientReply, error) {
	return &rpcapi.JoinClientReply{}, nil
}

var _ rpcapi.MasterService = (*fakeMaster)(nil)

// startPeerDaemon brings up a real gRPC server over peer so tests can reach
// its GetPageRDMARef/TryMigratePage handlers the way a production daemon
// would call a rack-mate, rather than calling peer's methods directly.
func startPeerDaemon(t *testing.T, peer *Daemon) (client *transport.Client) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := NewServer(peer)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := transport.Dial(ctx, lis.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// TestAccessProxiesRemoteColdPage exercises resolveRemote and proxyIO end to
// end: the local daemon has no copy of the page, a fake master points it at
// a real peer daemon process, and the read comes back over a loopback RDMA
// connection rather than the local CXL region.
func TestAccessProxiesRemoteColdPage(t *testing.T) {
	local := newTestDaemon(t, 2)
	local.MacID = gaddr.MacID(1)
	local.Config.HotWatermark = 10 // never reaches the watermark in this test

	owner := newTestDaemon(t, 2)
	owner.MacID = gaddr.MacID(2)
	ownerMeta, err := owner.Table.AllocPageMemory()
	require.NoError(t, err)
	owner.Table.ApplyPageMemory(gaddr.PageID(5), ownerMeta)
	want := bytes.Repeat([]byte{0x42}, gaddr.PageSize)
	copy(owner.Table.Slab(ownerMeta), want)

	local.Master = &fakeMaster{destRackID: 9, destDaemonID: owner.MacID}
	local.Peers.Put(owner.MacID, &conn.Entry{
		MacID:    owner.MacID,
		RackID:   9,
		Client:   startPeerDaemon(t, owner),
		RDMAConn: rdma.NewLoopbackConn(owner.RDMARegistry),
	})

	reply, err := local.GetPageRefOrProxy(context.Background(), &rpcapi.GetPageRefOrProxyRequest{
		MacID:      gaddr.MacID(3),
		Addr:       gaddr.Make(gaddr.PageID(5), 0),
		Op:         rpcapi.OpRead,
		CNReadSize: uint64(gaddr.PageSize),
	})
	require.NoError(t, err)
	require.Empty(t, reply.Refs, "a proxied read must not hand out a direct RDMA ref")
	require.Equal(t, want, reply.ReadData)

	ref, ok := local.Remote.Find(gaddr.PageID(5))
	require.True(t, ok)
	require.Equal(t, owner.MacID, ref.OwnerMacID)
}

// TestAccessMigratesAtWatermark exercises the full watermark-triggered
// migration path: migrate(), the peer's TryMigratePage, and the latch
// handshake with the master, none of which any other test in this package
// reaches.
func TestAccessMigratesAtWatermark(t *testing.T) {
	local := newTestDaemon(t, 2)
	local.MacID = gaddr.MacID(1)
	local.Config.HotWatermark = 1 // migrate on the very first proxied access

	owner := newTestDaemon(t, 2)
	owner.MacID = gaddr.MacID(2)
	ownerMeta, err := owner.Table.AllocPageMemory()
	require.NoError(t, err)
	owner.Table.ApplyPageMemory(gaddr.PageID(5), ownerMeta)
	want := bytes.Repeat([]byte{0x7A}, gaddr.PageSize)
	copy(owner.Table.Slab(ownerMeta), want)

	master := &fakeMaster{destRackID: 9, destDaemonID: owner.MacID}
	local.Master = master
	local.Peers.Put(owner.MacID, &conn.Entry{
		MacID:    owner.MacID,
		RackID:   9,
		Client:   startPeerDaemon(t, owner),
		RDMAConn: rdma.NewLoopbackConn(owner.RDMARegistry),
	})
	// owner's TryMigratePage writes the slab directly into local's new page
	// over RDMA, so owner needs a reverse peer entry reaching local's registry.
	owner.Peers.Put(local.MacID, &conn.Entry{
		MacID:    local.MacID,
		RDMAConn: rdma.NewLoopbackConn(local.RDMARegistry),
	})

	_, err = local.GetPageRefOrProxy(context.Background(), &rpcapi.GetPageRefOrProxyRequest{
		MacID:      gaddr.MacID(3),
		Addr:       gaddr.Make(gaddr.PageID(5), 0),
		Op:         rpcapi.OpRead,
		CNReadSize: uint64(gaddr.PageSize),
	})
	require.NoError(t, err)

	meta, ok := local.Table.Find(gaddr.PageID(5))
	require.True(t, ok, "the migrated page should now be resident locally")
	require.Equal(t, want, local.Table.Slab(meta))
	require.True(t, master.unlatchPageAndSwapOK, "a successful migration must report the new owner to the master")

	_, stillOwned := owner.Table.Find(gaddr.PageID(5))
	require.False(t, stillOwned, "the source daemon should no longer hold the migrated page")
}
