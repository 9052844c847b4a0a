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
	"time"

	"github.com/rackmem/rackmem/pkg/gaddr"
	"github.com/rackmem/rackmem/pkg/hotstat"
	"github.com/rackmem/rackmem/pkg/rdma"
	"github.com/rackmem/rackmem/pkg/shardmap"
)

// RemoteRef is what this daemon remembers about a page it proxies for.
// OwnerMacID is a weak back-reference: a connection-table key, resolved
// through conn.Table at use time rather than a held connection pointer, so
// a peer disconnecting doesn't leave this cache holding a dangling handle.
type RemoteRef struct {
	Addr       rdma.Handle
	OwnerMacID gaddr.MacID
	Stats      *hotstat.Stat
}

// RemoteCache is the daemon's RemotePageMetaCache: one entry per page this
// daemon proxies for rather than hosts, created on first miss and torn down
// either by a completed migration (this daemon becomes the owner) or by the
// owner's delPageRDMARef invalidation.
type RemoteCache struct {
	entries  *shardmap.Map[gaddr.PageID, *RemoteRef]
	lambda   float64
	coalesce time.Duration
}

// NewRemoteCache creates an empty cache. lambda and coalesce parameterize
// every RemoteRef's hot-access statistic the same way.
func NewRemoteCache(lambda float64, coalesce time.Duration) *RemoteCache {
	return &RemoteCache{
		entries:  shardmap.NewDefault[gaddr.PageID, *RemoteRef](shardmap.Uint64Hash[gaddr.PageID]),
		lambda:   lambda,
		coalesce: coalesce,
	}
}

// Find returns the cached ref for pid, if any.
func (c *RemoteCache) Find(pid gaddr.PageID) (*RemoteRef, bool) {
	return c.entries.Find(pid)
}

// FindOrEmplace returns pid's cached ref, constructing it via ctor at most
// once if absent. ctor is the usual latch/getPageRDMARef/unlatch sequence
// that resolves a page's current owner and RDMA handle.
func (c *RemoteCache) FindOrEmplace(pid gaddr.PageID, ctor func() (rdma.Handle, gaddr.MacID, error)) (*RemoteRef, bool, error) {
	return c.entries.FindOrEmplace(pid, func() (*RemoteRef, error) {
		addr, owner, err := ctor()
		if err != nil {
			return nil, err
		}
		return &RemoteRef{Addr: addr, OwnerMacID: owner, Stats: hotstat.New(c.lambda, c.coalesce)}, nil
	})
}

// Remove drops pid's cached ref, e.g. once this daemon becomes the owner or
// once the owner invalidates it.
func (c *RemoteCache) Remove(pid gaddr.PageID) {
	c.entries.Erase(pid)
}

// Len returns the number of cached refs.
func (c *RemoteCache) Len() int {
	return c.entries.Len()
}
