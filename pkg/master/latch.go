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

package master

import (
	"sync"

	"github.com/rackmem/rackmem/pkg/gaddr"
	"github.com/rackmem/rackmem/pkg/rackerr"
	"github.com/rackmem/rackmem/pkg/reslock"
)

// LatchManager is the master's per-page reader/writer lock: the single
// serialization point every migration passes through. Its state machine is
// Idle -> Shared(n) -> Idle or Idle -> Exclusive -> Idle; there is no
// Shared -> Exclusive transition, a writer always waits for readers to
// drain. A latch held by latchRemotePage is released by a later,
// independent unLatch* RPC, possibly handled on a different goroutine, so
// the underlying reslock.Guard is kept around keyed by (page, holder)
// rather than released by the acquiring call itself.
type LatchManager struct {
	registry *reslock.Registry[gaddr.PageID]
	dir      *Directory

	mu   sync.Mutex
	held map[gaddr.PageID]map[gaddr.MacID]*reslock.Guard
}

// NewLatchManager creates a latch manager over dir.
func NewLatchManager(dir *Directory) *LatchManager {
	return &LatchManager{
		registry: reslock.New[gaddr.PageID](),
		dir:      dir,
		held:     make(map[gaddr.PageID]map[gaddr.MacID]*reslock.Guard),
	}
}

func pageIDLess(a, b gaddr.PageID) bool { return a < b }

func (m *LatchManager) remember(pid gaddr.PageID, holder gaddr.MacID, g *reslock.Guard) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[pid] == nil {
		m.held[pid] = make(map[gaddr.MacID]*reslock.Guard)
	}
	m.held[pid][holder] = g
}

func (m *LatchManager) take(pid gaddr.PageID, holder gaddr.MacID) (*reslock.Guard, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byHolder := m.held[pid]
	if byHolder == nil {
		return nil, false
	}
	g, ok := byHolder[holder]
	if ok {
		delete(byHolder, holder)
		if len(byHolder) == 0 {
			delete(m.held, pid)
		}
	}
	return g, ok
}

// LatchRemotePage implements latchRemotePage. If pidSwap is InvalidPageID a
// single lock is acquired (shared unless write); otherwise both pid and
// pidSwap are always locked exclusively, in ascending page id order.
// Returns pid's current owner.
func (m *LatchManager) LatchRemotePage(holder gaddr.MacID, write bool, pid, pidSwap gaddr.PageID) (rackID int32, daemonID gaddr.MacID, err error) {
	meta, err := m.dir.FindPage(pid)
	if err != nil {
		return 0, 0, err
	}

	if pidSwap == gaddr.InvalidPageID {
		var g *reslock.Guard
		if write {
			g = m.registry.UniqueLock(pid)
		} else {
			g = m.registry.SharedLock(pid)
		}
		m.remember(pid, holder, g)
	} else {
		g1, g2 := m.registry.UniquePair(pid, pidSwap, pageIDLess)
		if pageIDLess(pid, pidSwap) || pid == pidSwap {
			m.remember(pid, holder, g1)
			m.remember(pidSwap, holder, g2)
		} else {
			m.remember(pid, holder, g2)
			m.remember(pidSwap, holder, g1)
		}
	}

	rackID, daemonID = meta.Owner()
	return rackID, daemonID, nil
}

// UnLatchRemotePage releases the latch, shared or exclusive, that holder
// previously acquired on pid via LatchRemotePage.
func (m *LatchManager) UnLatchRemotePage(holder gaddr.MacID, pid gaddr.PageID) error {
	g, ok := m.take(pid, holder)
	if !ok {
		return rackerr.NotFound("latch: %v holds no latch on %v", holder, pid)
	}
	g.Unlock()
	return nil
}

// UnLatchPageAndSwap atomically updates ownership for pid (and, if set,
// pidSwap) and releases both exclusive latches. Both directory entries are
// updated before either latch is released, so no observer ever sees a
// half-applied swap.
func (m *LatchManager) UnLatchPageAndSwap(holder gaddr.MacID, pid gaddr.PageID, newRackID int32, newDaemonID gaddr.MacID, pidSwap gaddr.PageID, newRackIDSwap int32, newDaemonIDSwap gaddr.MacID) error {
	meta, err := m.dir.FindPage(pid)
	if err != nil {
		return err
	}
	var metaSwap *PageRackMetadata
	if pidSwap != gaddr.InvalidPageID {
		metaSwap, err = m.dir.FindPage(pidSwap)
		if err != nil {
			return err
		}
	}

	meta.setOwner(newRackID, newDaemonID)
	if metaSwap != nil {
		metaSwap.setOwner(newRackIDSwap, newDaemonIDSwap)
	}

	g, ok := m.take(pid, holder)
	if !ok {
		return rackerr.NotFound("latch: %v holds no latch on %v", holder, pid)
	}
	g.Unlock()

	if pidSwap != gaddr.InvalidPageID {
		gSwap, ok := m.take(pidSwap, holder)
		if !ok {
			return rackerr.NotFound("latch: %v holds no latch on %v", holder, pidSwap)
		}
		gSwap.Unlock()
	}
	return nil
}
