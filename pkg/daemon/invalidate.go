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

	"github.com/rackmem/rackmem/pkg/future"
	"github.com/rackmem/rackmem/pkg/gaddr"
	logger "github.com/rackmem/rackmem/pkg/log"
	"github.com/rackmem/rackmem/pkg/rpcapi"
	"github.com/rackmem/rackmem/pkg/transport"
)

// invalidate broadcasts pid's invalidation to every daemon and client meta
// currently references, except exceptDaemon (the requester of a migration
// already has pid's fresh location and doesn't need telling to drop it).
// Pass gaddr.InvalidMacID when no exception is known yet (e.g. the
// broadcast was started before a concurrent latch round trip named the
// destination) — DelPageRDMARef is idempotent, so excluding nobody just
// costs one redundant RPC to the eventual destination. It does not return
// until every recipient has acknowledged, so the caller is free to submit
// the RDMA copy immediately afterward knowing no stale reference can race it.
func (d *Daemon) invalidate(ctx context.Context, pid gaddr.PageID, meta *PageMetadata, exceptDaemon gaddr.MacID) error {
	var futures []*future.Future[struct{}]

	d.Log.Debug("invalidate %s: daemons=%s clients=%s", pid,
		logger.Delay(func() interface{} { return meta.RefDaemonKeys() }),
		logger.Delay(func() interface{} { return meta.RefClientKeys() }))

	for _, mac := range meta.RefDaemonKeys() {
		if mac == exceptDaemon {
			continue
		}
		futures = append(futures, d.delPageRDMARefAsync(ctx, mac, pid))
	}
	for _, mac := range meta.RefClientKeys() {
		futures = append(futures, d.removePageCacheAsync(ctx, mac, pid))
	}

	_, err := future.WaitAll(ctx, futures)
	return err
}

func (d *Daemon) delPageRDMARefAsync(ctx context.Context, mac gaddr.MacID, pid gaddr.PageID) *future.Future[struct{}] {
	f := future.New[struct{}]()
	go func() {
		f.Resolve(struct{}{}, d.delPageRDMARef(ctx, mac, pid))
	}()
	return f
}

func (d *Daemon) delPageRDMARef(ctx context.Context, mac gaddr.MacID, pid gaddr.PageID) error {
	e, err := d.Peers.Get(mac)
	if err != nil {
		// A peer we no longer have a connection to holds nothing to
		// invalidate; treat it as already acknowledged.
		return nil
	}
	_, err = transport.DaemonClient{C: e.Client}.DelPageRDMARef(ctx, &rpcapi.DelPageRDMARefRequest{
		MacID: d.MacID, PageID: pid,
	})
	return err
}

func (d *Daemon) removePageCacheAsync(ctx context.Context, mac gaddr.MacID, pid gaddr.PageID) *future.Future[struct{}] {
	f := future.New[struct{}]()
	go func() {
		f.Resolve(struct{}{}, d.removePageCache(ctx, mac, pid))
	}()
	return f
}

func (d *Daemon) removePageCache(ctx context.Context, mac gaddr.MacID, pid gaddr.PageID) error {
	e, err := d.Clients.Get(mac)
	if err != nil {
		return nil
	}
	_, err = transport.ClientFacingClient{C: e.Client}.RemovePageCache(ctx, &rpcapi.RemovePageCacheRequest{
		MacID: d.MacID, PageID: pid,
	})
	return err
}

// DelPageRDMARef implements rpcapi.DaemonService: drop any RDMA reference
// this daemon holds for pid (as the owner forgetting a referrer) and purge
// any stale RemotePageMetaCache entry this daemon itself holds for pid (as
// a proxying daemon being told the page moved). Idempotent either way.
func (d *Daemon) DelPageRDMARef(ctx context.Context, req *rpcapi.DelPageRDMARefRequest) (*rpcapi.DelPageRDMARefReply, error) {
	if meta, ok := d.Table.Find(req.PageID); ok {
		meta.RemoveRefDaemon(req.MacID)
	}
	d.Remote.Remove(req.PageID)
	return &rpcapi.DelPageRDMARefReply{OK: true}, nil
}
