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

// Package master implements the cluster coordinator: the page directory and
// id allocator, the per-page latch protocol, and the rack/connection
// bookkeeping every daemon and client joins into.
package master

import (
	"sync"

	"github.com/rackmem/rackmem/pkg/gaddr"
	"github.com/rackmem/rackmem/pkg/shardmap"
)

// PageRackMetadata is the master's one record per live page: who currently
// owns it. The pair is only ever mutated while the page's latch is held
// exclusively (see latch.go); the mutex here exists purely so an unlatched
// reader sees a consistent pair rather than torn fields.
type PageRackMetadata struct {
	mu       sync.RWMutex
	rackID   int32
	daemonID gaddr.MacID
}

// Owner returns the current (rack, daemon) pair.
func (m *PageRackMetadata) Owner() (rackID int32, daemonID gaddr.MacID) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rackID, m.daemonID
}

func (m *PageRackMetadata) setOwner(rackID int32, daemonID gaddr.MacID) {
	m.mu.Lock()
	m.rackID, m.daemonID = rackID, daemonID
	m.mu.Unlock()
}

// Directory maps page id to PageRackMetadata and hands out fresh page ids.
type Directory struct {
	pages  *shardmap.Map[gaddr.PageID, *PageRackMetadata]
	mu     sync.Mutex
	nextID gaddr.PageID
}

// NewDirectory creates an empty directory. Page id 0 (gaddr.InvalidPageID)
// is never allocated.
func NewDirectory() *Directory {
	return &Directory{
		pages:  shardmap.NewDefault[gaddr.PageID, *PageRackMetadata](shardmap.Uint64Hash[gaddr.PageID]),
		nextID: gaddr.InvalidPageID,
	}
}

// AllocateIDs reserves count consecutive page ids and returns the first one.
func (d *Directory) AllocateIDs(count uint64) gaddr.PageID {
	d.mu.Lock()
	defer d.mu.Unlock()
	start := d.nextID + 1
	d.nextID += gaddr.PageID(count)
	return start
}

// FindPage returns the metadata for id, or rackerr.NotFound.
func (d *Directory) FindPage(id gaddr.PageID) (*PageRackMetadata, error) {
	return d.pages.At(id)
}

// AddPage records a freshly allocated page as resident on (rackID, daemonID).
func (d *Directory) AddPage(id gaddr.PageID, rackID int32, daemonID gaddr.MacID) *PageRackMetadata {
	meta, _, _ := d.pages.FindOrEmplace(id, func() (*PageRackMetadata, error) {
		return &PageRackMetadata{rackID: rackID, daemonID: daemonID}, nil
	})
	meta.setOwner(rackID, daemonID)
	return meta
}

// RemovePage drops id from the directory entirely. Not exercised by the
// current operation set (freePage is unsupported) but kept for completeness
// of the C4 contract and for tests.
func (d *Directory) RemovePage(id gaddr.PageID) {
	d.pages.Erase(id)
}

// Len returns the number of live pages.
func (d *Directory) Len() int {
	return d.pages.Len()
}
