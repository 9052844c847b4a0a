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
	"github.com/rackmem/rackmem/pkg/rackerr"
	"github.com/rackmem/rackmem/pkg/rpcapi"
)

// TryMigratePage implements rpcapi.DaemonService on the peer currently
// hosting req.PageID: hand the physical slab to the requester, optionally
// taking req.SwapPageID's slab back in the same round trip. HotScore is not
// compared against anything here — every request is accepted, matching the
// unimplemented acceptance policy the field is reserved for.
func (d *Daemon) TryMigratePage(ctx context.Context, req *rpcapi.TryMigratePageRequest) (*rpcapi.TryMigratePageReply, error) {
	g := d.RefLocks.UniqueLock(req.PageID)
	defer g.Unlock()

	meta, ok := d.Table.Find(req.PageID)
	if !ok {
		return nil, rackerr.NotFound("daemon: no local page %s to migrate", req.PageID)
	}

	if err := d.invalidate(ctx, req.PageID, meta, req.MacID); err != nil {
		return nil, err
	}

	requester, err := d.Peers.Get(req.MacID)
	if err != nil {
		return nil, err
	}

	batch := requester.RDMAConn.NewBatch()
	localSlab := d.Table.Slab(meta)
	batch.QueueWrite(req.SwapInPageAddr, 0, localSlab)

	var swapSlab *PageMetadata
	swapping := req.SwapPageID.IsValid()
	if swapping {
		swapSlab, err = d.Table.AllocPageMemory()
		if err != nil {
			return nil, err
		}
		batch.QueueRead(req.SwapOutPageAddr, 0, d.Table.Slab(swapSlab))
	}

	if _, err := pollFuture(ctx, batch.Submit(ctx)); err != nil {
		return nil, err
	}

	d.Table.CancelPageMemory(req.PageID, meta)
	if swapping {
		d.Table.ApplyPageMemory(req.SwapPageID, swapSlab)
	}

	return &rpcapi.TryMigratePageReply{Swapped: swapping}, nil
}

// pollFuture realizes the cooperative-yield discipline for an RDMA
// submission: spin on TryGet, handing control back to the scheduler between
// polls, rather than blocking the goroutine on a channel receive.
func pollFuture[T any](ctx context.Context, f *future.Future[T]) (T, error) {
	for {
		if v, err, ok := f.TryGet(); ok {
			return v, err
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		default:
			future.Yield()
		}
	}
}
