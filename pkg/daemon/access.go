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
	"context"
	"sort"
	"time"

	"github.com/rackmem/rackmem/pkg/conn"
	"github.com/rackmem/rackmem/pkg/future"
	"github.com/rackmem/rackmem/pkg/gaddr"
	"github.com/rackmem/rackmem/pkg/hotstat"
	"github.com/rackmem/rackmem/pkg/rackerr"
	"github.com/rackmem/rackmem/pkg/rdma"
	"github.com/rackmem/rackmem/pkg/rpcapi"
	"github.com/rackmem/rackmem/pkg/stats"
	"github.com/rackmem/rackmem/pkg/transport"
)

// GetPageRefOrProxy implements rpcapi.ClientFacingService: the access path.
// It decides, for every byte access a client makes, whether the page is
// local (hand back a direct RDMA reference), remote-but-cold (proxy the I/O
// over RDMA itself) or remote-and-hot (migrate the physical slab here).
func (d *Daemon) GetPageRefOrProxy(ctx context.Context, req *rpcapi.GetPageRefOrProxyRequest) (*rpcapi.GetPageRefOrProxyReply, error) {
	if req.Op == rpcapi.OpWrite {
		return nil, rackerr.Unsupported("daemon: non-raw write is not supported, use write_raw")
	}

	pid := req.Addr.PageID()
	offset := req.Addr.Offset()

	for {
		reply, restart, err := d.accessOnce(ctx, req, pid, offset)
		if err != nil {
			return nil, err
		}
		if restart {
			continue
		}
		return reply, nil
	}
}

func (d *Daemon) accessOnce(ctx context.Context, req *rpcapi.GetPageRefOrProxyRequest, pid gaddr.PageID, offset uint64) (*rpcapi.GetPageRefOrProxyReply, bool, error) {
	// Step 1: shared page-ref latch.
	g := d.RefLocks.SharedLock(pid)

	// Step 2: local hit.
	if meta, ok := d.Table.Find(pid); ok {
		stats.PageHit(ctx, d.RackID)
		meta.AddRefClient(req.MacID)
		g.Unlock()
		return &rpcapi.GetPageRefOrProxyReply{Refs: []rdma.Handle{meta.Handle}, Offset: offset}, false, nil
	}
	stats.PageMiss(ctx, d.RackID)

	// Step 3: find-or-construct the remote cache entry.
	ref, _, err := d.Remote.FindOrEmplace(pid, func() (rdma.Handle, gaddr.MacID, error) {
		return d.resolveRemote(ctx, pid)
	})
	if err != nil {
		g.Unlock()
		return nil, false, err
	}

	// Step 4.
	hot := ref.Stats.Add(time.Now())

	// Step 5: not at the watermark, proxy the I/O directly.
	if hotstat.Watermark(hot) != d.Config.HotWatermark {
		stats.PageDIO(ctx, d.RackID)
		reply, err := d.proxyIO(ctx, req, ref, offset)
		g.Unlock()
		return reply, false, err
	}

	// Step 6: at the watermark, migrate. Upgrade the latch: release the
	// reader hold, re-acquire exclusively, then re-check the cache entry's
	// identity — if it changed underneath us (another goroutine already
	// migrated or re-resolved it), the gap witnessed something we haven't
	// accounted for and step 1 must run again from scratch.
	g.Unlock()
	g = d.RefLocks.UniqueLock(pid)
	defer g.Unlock()

	if cur, ok := d.Remote.Find(pid); !ok || cur != ref {
		return nil, true, nil
	}
	if _, ok := d.Table.Find(pid); ok {
		return nil, true, nil
	}

	stats.PageSwap(ctx, d.RackID)
	if err := d.migrate(ctx, pid, ref); err != nil {
		return nil, false, err
	}
	// Step 6.10: restart from step 1. The page is now resident locally, so
	// the retry takes the local-hit fast path in step 2.
	return nil, true, nil
}

// resolveRemote builds a RemoteCache entry for pid, run at most once per
// page: latch at the master to learn the current owner, ask the owner for
// an RDMA reference, unlatch.
func (d *Daemon) resolveRemote(ctx context.Context, pid gaddr.PageID) (rdma.Handle, gaddr.MacID, error) {
	waitStart := time.Now()
	latch, err := d.Master.LatchRemotePage(ctx, &rpcapi.LatchRemotePageRequest{
		MacID: d.MacID, IsWriteLock: false, PageID: pid, PageIDSwap: gaddr.InvalidPageID,
	})
	stats.LatchWait(ctx, time.Since(waitStart))
	if err != nil {
		return rdma.Handle{}, 0, err
	}

	owner, err := d.Peers.Get(latch.DestDaemonID)
	if err != nil {
		return rdma.Handle{}, 0, err
	}
	refReply, err := transport.DaemonClient{C: owner.Client}.GetPageRDMARef(ctx, &rpcapi.GetPageRDMARefRequest{
		MacID: d.MacID, PageID: pid,
	})
	if err != nil {
		return rdma.Handle{}, 0, err
	}

	if _, err := d.Master.UnLatchRemotePage(ctx, &rpcapi.UnLatchRemotePageRequest{MacID: d.MacID, PageID: pid}); err != nil {
		return rdma.Handle{}, 0, err
	}

	return refReply.Handle, latch.DestDaemonID, nil
}

// proxyIO performs the RDMA operation itself on the caller's behalf: read
// allocates a response buffer, write_raw overwrites the page with the
// caller's buffer.
func (d *Daemon) proxyIO(ctx context.Context, req *rpcapi.GetPageRefOrProxyRequest, ref *RemoteRef, offset uint64) (*rpcapi.GetPageRefOrProxyReply, error) {
	owner, err := d.Peers.Get(ref.OwnerMacID)
	if err != nil {
		return nil, err
	}

	if req.Op == rpcapi.OpWriteRaw {
		if _, err := owner.RDMAConn.Write(ctx, ref.Addr, 0, req.CNWriteBuf).Get(ctx); err != nil {
			return nil, rackerr.TransportError(err, "daemon: rdma write_raw proxy")
		}
		return &rpcapi.GetPageRefOrProxyReply{}, nil
	}

	buf := make([]byte, req.CNReadSize)
	if _, err := owner.RDMAConn.Read(ctx, ref.Addr, offset, buf).Get(ctx); err != nil {
		return nil, rackerr.TransportError(err, "daemon: rdma read proxy")
	}
	return &rpcapi.GetPageRefOrProxyReply{ReadData: buf}, nil
}

// GetPageRDMARef implements rpcapi.DaemonService on the owning side: hand
// out this page's RDMA handle and remember the caller as a referrer.
func (d *Daemon) GetPageRDMARef(ctx context.Context, req *rpcapi.GetPageRDMARefRequest) (*rpcapi.GetPageRDMARefReply, error) {
	g := d.RefLocks.SharedLock(req.PageID)
	defer g.Unlock()

	meta, ok := d.Table.Find(req.PageID)
	if !ok {
		return nil, rackerr.NotFound("daemon: no local page %s", req.PageID)
	}
	meta.AddRefDaemon(req.MacID)
	return &rpcapi.GetPageRDMARefReply{Handle: meta.Handle}, nil
}

// AllocPageMemory implements rpcapi.DaemonService: the master asking this
// daemon to reserve and register Count consecutive pages starting at
// StartPageID, placed here as part of a cluster-wide allocPage spanning
// more than this daemon's own rack quota.
func (d *Daemon) AllocPageMemory(ctx context.Context, req *rpcapi.AllocPageMemoryRequest) (*rpcapi.AllocPageMemoryReply, error) {
	for i := uint64(0); i < req.Count; i++ {
		meta, err := d.Table.AllocPageMemory()
		if err != nil {
			return nil, err
		}
		d.Table.ApplyPageMemory(req.StartPageID+gaddr.PageID(i), meta)
	}
	return &rpcapi.AllocPageMemoryReply{OK: true}, nil
}

// JoinRack implements rpcapi.ClientFacingService: admit a client into this
// rack's connection table.
func (d *Daemon) JoinRack(ctx context.Context, req *rpcapi.JoinRackRequest) (*rpcapi.JoinRackReply, error) {
	mac := d.Clients.Allocate(&conn.Entry{RackID: req.RackID})
	return &rpcapi.JoinRackReply{ClientMacID: mac, DaemonMacID: d.MacID}, nil
}

// ClientAllocPage implements rpcapi.ClientFacingService by forwarding to
// the master, which owns the global page id space.
func (d *Daemon) ClientAllocPage(ctx context.Context, req *rpcapi.ClientAllocPageRequest) (*rpcapi.ClientAllocPageReply, error) {
	reply, err := d.Master.AllocPage(ctx, &rpcapi.AllocPageRequest{MacID: d.MacID, Count: req.Count})
	if err != nil {
		return nil, err
	}
	return &rpcapi.ClientAllocPageReply{StartPageID: reply.StartPageID}, nil
}

// victimCandidate is one scored option for eviction during victim selection.
type victimCandidate struct {
	pid gaddr.PageID
	ts  int64
}

// chooseVictim implements the swap-id selection priority order: an
// unreferenced local page first, then the local client's own oldest-access
// page, then any pinnable page at all. It returns InvalidPageID if nothing
// could be pinned.
func (d *Daemon) chooseVictim(ctx context.Context) gaddr.PageID {
	if pid, ok := d.pinFirstMatching(func(meta *PageMetadata) bool { return meta.Unreferenced() }); ok {
		return pid
	}

	var candidates []victimCandidate
	d.Clients.ForEach(func(mac gaddr.MacID, e *conn.Entry) bool {
		reply, err := transport.ClientFacingClient{C: e.Client}.GetPagePastAccessFreq(ctx, &rpcapi.GetPagePastAccessFreqRequest{MacID: d.MacID})
		if err == nil && reply.OldestPageID.IsValid() {
			candidates = append(candidates, victimCandidate{pid: reply.OldestPageID, ts: reply.LastAccessTS})
		}
		return true
	})
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ts < candidates[j].ts })
	for _, c := range candidates {
		if meta, ok := d.Table.Find(c.pid); ok {
			g := d.RefLocks.UniqueLock(c.pid)
			pinned := meta.TryPin()
			g.Unlock()
			if pinned {
				return c.pid
			}
		}
	}

	if pid, ok := d.pinFirstMatching(func(*PageMetadata) bool { return true }); ok {
		return pid
	}
	return gaddr.InvalidPageID
}

func (d *Daemon) pinFirstMatching(match func(*PageMetadata) bool) (gaddr.PageID, bool) {
	var found gaddr.PageID
	var ok bool
	d.Table.RandomForEach(d.rng, func(pid gaddr.PageID, meta *PageMetadata) bool {
		if !match(meta) {
			return true
		}
		g := d.RefLocks.UniqueLock(pid)
		pinned := meta.TryPin()
		g.Unlock()
		if pinned {
			found, ok = pid, true
			return false
		}
		return true
	})
	return found, ok
}

// migrate is called with pid's local ref-latch already held exclusively.
// It pulls pid's physical slab onto this daemon, optionally trading away a
// local victim page in the same round trip so a nearly-full local pool
// doesn't have to fail the access outright.
func (d *Daemon) migrate(ctx context.Context, pid gaddr.PageID, ref *RemoteRef) error {
	// 6.1
	newMeta, err := d.Table.AllocPageMemory()
	if err != nil {
		return err
	}

	// 6.2
	swapID := gaddr.InvalidPageID
	var swapMeta *PageMetadata
	if d.Table.NearlyFull() {
		swapID = d.chooseVictim(ctx)
		if swapID.IsValid() {
			swapMeta, _ = d.Table.Find(swapID)
		}
	}

	// abortUnpin releases a victim pinned by chooseVictim when migrate fails
	// before the slab trade it was pinned for ever happens.
	abortUnpin := func() {
		if swapMeta == nil {
			return
		}
		gv := d.RefLocks.UniqueLock(swapID)
		swapMeta.Unpin()
		gv.Unlock()
	}

	// 6.4 and 6.5 run concurrently rather than back to back: invalidate's
	// only dependency on the latch result is the exceptDaemon skip-the-
	// destination optimization, and DelPageRDMARef is idempotent (see its
	// doc comment), so the broadcast can start immediately with no
	// exception and risk one harmless redundant RPC to whichever daemon
	// the latch eventually names as the destination.
	var invalidateFuture *future.Future[struct{}]
	if swapMeta != nil {
		invalidateFuture = future.New[struct{}]()
		go func() {
			invalidateFuture.Resolve(struct{}{}, d.invalidate(ctx, swapID, swapMeta, gaddr.InvalidMacID))
		}()
	}

	waitStart := time.Now()
	latch, err := d.Master.LatchRemotePage(ctx, &rpcapi.LatchRemotePageRequest{
		MacID: d.MacID, IsWriteLock: true, PageID: pid, PageIDSwap: swapID,
	})
	stats.LatchWait(ctx, time.Since(waitStart))
	if err != nil {
		if invalidateFuture != nil {
			invalidateFuture.Get(ctx)
		}
		d.Table.CancelPageMemory(gaddr.InvalidPageID, newMeta)
		abortUnpin()
		return err
	}

	// releaseLatch gives back whatever the 6.4 LatchRemotePage call took on
	// this daemon's behalf — pid alone, or pid and swapID when swapping — so
	// a migration that fails partway through never leaves the master's
	// latch directory holding a page no one will ever unlatch.
	releaseLatch := func() {
		if _, uerr := d.Master.UnLatchRemotePage(ctx, &rpcapi.UnLatchRemotePageRequest{MacID: d.MacID, PageID: pid}); uerr != nil {
			d.MigrateErrLog.Error("migrate: releasing latch on %s after aborted migration: %v", pid, uerr)
		}
		if swapID.IsValid() {
			if _, uerr := d.Master.UnLatchRemotePage(ctx, &rpcapi.UnLatchRemotePageRequest{MacID: d.MacID, PageID: swapID}); uerr != nil {
				d.MigrateErrLog.Error("migrate: releasing swap latch on %s after aborted migration: %v", swapID, uerr)
			}
		}
	}

	// 6.5
	if invalidateFuture != nil {
		if _, err := invalidateFuture.Get(ctx); err != nil {
			releaseLatch()
			abortUnpin()
			d.Table.CancelPageMemory(gaddr.InvalidPageID, newMeta)
			return err
		}
	}

	// 6.6
	d.Remote.Remove(pid)

	// 6.7
	peer, err := d.Peers.Get(latch.DestDaemonID)
	if err != nil {
		releaseLatch()
		abortUnpin()
		d.Table.CancelPageMemory(gaddr.InvalidPageID, newMeta)
		return err
	}
	swapOutHandle := rdma.Handle{}
	if swapMeta != nil {
		swapOutHandle = swapMeta.Handle
	}
	migStart := time.Now()
	migReply, err := transport.DaemonClient{C: peer.Client}.TryMigratePage(ctx, &rpcapi.TryMigratePageRequest{
		MacID: d.MacID, PageID: pid, SwapPageID: swapID,
		HotScore: ref.Stats.Value(), SwapOutPageAddr: swapOutHandle, SwapInPageAddr: newMeta.Handle,
	})
	stats.MigrateDuration(ctx, time.Since(migStart))
	if err != nil {
		releaseLatch()
		abortUnpin()
		d.Table.CancelPageMemory(gaddr.InvalidPageID, newMeta)
		return err
	}

	// 6.8
	d.Table.ApplyPageMemory(pid, newMeta)
	newRackIDSwap, newDaemonIDSwap := int32(0), gaddr.InvalidMacID
	if swapMeta != nil {
		if migReply.Swapped {
			d.Table.CancelPageMemory(swapID, swapMeta)
			newRackIDSwap, newDaemonIDSwap = latch.DestRackID, latch.DestDaemonID
		} else {
			abortUnpin()
			newRackIDSwap, newDaemonIDSwap = d.RackID, d.MacID
		}
	}

	// 6.9
	_, err = d.Master.UnLatchPageAndSwap(ctx, &rpcapi.UnLatchPageAndSwapRequest{
		MacID: d.MacID, PageID: pid, NewDaemonID: d.MacID, NewRackID: d.RackID,
		PageIDSwap: swapID, NewDaemonIDSwap: newDaemonIDSwap, NewRackIDSwap: newRackIDSwap,
	})
	return err
}
