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
	"math/rand"
	"sync"

	"github.com/rackmem/rackmem/pkg/gaddr"
	"github.com/rackmem/rackmem/pkg/rackerr"
	"github.com/rackmem/rackmem/pkg/rdma"
	"github.com/rackmem/rackmem/pkg/shardmap"
)

// PageMetadata is the daemon's record of one locally resident page.
// PinCount is mutated only by a caller holding the page's ref-latch (the
// per-page reslock.Registry entry the access path and migration handlers
// acquire before touching it); the RefDaemon/RefClient sets have their own
// refMu, since the access path's common case — a reader recording itself as
// a referrer — only ever holds the coarser latch shared, and concurrent
// readers doing that at once still need a data-race-free map.
type PageMetadata struct {
	CXLOffset uint64
	Handle    rdma.Handle // this slab's RDMA registration, handed out to referencing peers
	PinCount  int

	refMu     sync.Mutex
	RefDaemon map[gaddr.MacID]struct{}
	RefClient map[gaddr.MacID]struct{}
}

// NewPageMetadata creates metadata for a freshly reserved slab around an
// already-registered handle, so its Handle can be handed out immediately.
func NewPageMetadata(offset uint64, handle rdma.Handle) *PageMetadata {
	return &PageMetadata{
		CXLOffset: offset,
		Handle:    handle,
		RefDaemon: make(map[gaddr.MacID]struct{}),
		RefClient: make(map[gaddr.MacID]struct{}),
	}
}

// Unreferenced reports whether no peer daemon or local client currently
// holds a ref or cache entry for this page.
func (m *PageMetadata) Unreferenced() bool {
	m.refMu.Lock()
	defer m.refMu.Unlock()
	return len(m.RefDaemon) == 0 && len(m.RefClient) == 0
}

// AddRefDaemon records mac as a peer daemon proxying this page.
func (m *PageMetadata) AddRefDaemon(mac gaddr.MacID) {
	m.refMu.Lock()
	defer m.refMu.Unlock()
	m.RefDaemon[mac] = struct{}{}
}

// RemoveRefDaemon forgets mac as a referrer.
func (m *PageMetadata) RemoveRefDaemon(mac gaddr.MacID) {
	m.refMu.Lock()
	defer m.refMu.Unlock()
	delete(m.RefDaemon, mac)
}

// AddRefClient records mac as a local client referencing this page.
func (m *PageMetadata) AddRefClient(mac gaddr.MacID) {
	m.refMu.Lock()
	defer m.refMu.Unlock()
	m.RefClient[mac] = struct{}{}
}

// RemoveRefClient forgets mac as a referrer.
func (m *PageMetadata) RemoveRefClient(mac gaddr.MacID) {
	m.refMu.Lock()
	defer m.refMu.Unlock()
	delete(m.RefClient, mac)
}

// RefDaemonKeys snapshots the current set of referring daemons.
func (m *PageMetadata) RefDaemonKeys() []gaddr.MacID {
	m.refMu.Lock()
	defer m.refMu.Unlock()
	keys := make([]gaddr.MacID, 0, len(m.RefDaemon))
	for mac := range m.RefDaemon {
		keys = append(keys, mac)
	}
	return keys
}

// RefClientKeys snapshots the current set of referring clients.
func (m *PageMetadata) RefClientKeys() []gaddr.MacID {
	m.refMu.Lock()
	defer m.refMu.Unlock()
	keys := make([]gaddr.MacID, 0, len(m.RefClient))
	for mac := range m.RefClient {
		keys = append(keys, mac)
	}
	return keys
}

// TryPin attempts to mark the page immovable, succeeding only if it is not
// already pinned (by a concurrent victim search or an in-flight migration).
func (m *PageMetadata) TryPin() bool {
	if m.PinCount != 0 {
		return false
	}
	m.PinCount++
	return true
}

// Unpin releases a pin taken by TryPin.
func (m *PageMetadata) Unpin() {
	if m.PinCount > 0 {
		m.PinCount--
	}
}

// PageTable maps page id to PageMetadata for pages resident on this daemon,
// backed by the CXL region's slab free list.
type PageTable struct {
	pages    *shardmap.Map[gaddr.PageID, *PageMetadata]
	region   *CXLRegion
	registry *rdma.MemRegistry
}

// NewPageTable creates an empty table over region, registering every slab
// it hands out with reg so its Handle can be referenced directly over RDMA.
func NewPageTable(region *CXLRegion, reg *rdma.MemRegistry) *PageTable {
	return &PageTable{
		pages:    shardmap.NewDefault[gaddr.PageID, *PageMetadata](shardmap.Uint64Hash[gaddr.PageID]),
		region:   region,
		registry: reg,
	}
}

// Find returns the metadata for id, if resident.
func (t *PageTable) Find(id gaddr.PageID) (*PageMetadata, bool) {
	return t.pages.Find(id)
}

// Slab returns the byte slice backing meta's reserved slab.
func (t *PageTable) Slab(meta *PageMetadata) []byte {
	return t.region.Slab(meta.CXLOffset)
}

// AllocPageMemory reserves a slab and returns fresh, not-yet-inserted
// metadata for it, its Handle already registered for RDMA access.
func (t *PageTable) AllocPageMemory() (*PageMetadata, error) {
	off, ok := t.region.Reserve()
	if !ok {
		return nil, rackerr.CapacityExceeded("daemon: CXL region exhausted")
	}
	handle := t.registry.Register(t.region.Slab(off))
	return NewPageMetadata(off, handle), nil
}

// ApplyPageMemory inserts meta under id, making the page resident.
func (t *PageTable) ApplyPageMemory(id gaddr.PageID, meta *PageMetadata) {
	t.pages.Insert(id, meta)
}

// CancelPageMemory removes id (if present) and returns meta's slab to the
// free list.
func (t *PageTable) CancelPageMemory(id gaddr.PageID, meta *PageMetadata) {
	t.pages.Erase(id)
	t.registry.Deregister(meta.Handle)
	t.region.Release(meta.CXLOffset)
}

// NearlyFull reports whether at most one slab remains free.
func (t *PageTable) NearlyFull() bool {
	return t.region.FreeCount() <= 1
}

// TestAllocPageMemory reports whether n further allocations would succeed.
func (t *PageTable) TestAllocPageMemory(n int) bool {
	return t.region.FreeCount() >= n
}

// RandomForEach visits every resident page starting from a random shard;
// fn returning false stops the walk. Used by victim selection so repeated
// scans don't always favor the same pages.
func (t *PageTable) RandomForEach(rng *rand.Rand, fn func(gaddr.PageID, *PageMetadata) bool) {
	t.pages.RandomForeachAll(rng, fn)
}

// Len returns the number of resident pages.
func (t *PageTable) Len() int {
	return t.pages.Len()
}
