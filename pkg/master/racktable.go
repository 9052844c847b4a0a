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
)

// RackMacTable is the master's bookkeeping for one rack: its capacity and
// the connection ids of the daemon and clients that joined from it.
type RackMacTable struct {
	RackID         int32
	WithCXL        bool
	MaxFreePageNum uint64
	DaemonMacID    gaddr.MacID

	mu               sync.Mutex
	currentAllocated uint64
	clients          map[gaddr.MacID]struct{}
}

// NewRackMacTable creates the table for a rack as it joins via JoinDaemon.
func NewRackMacTable(rackID int32, withCXL bool, maxFreePageNum uint64, daemonMacID gaddr.MacID) *RackMacTable {
	return &RackMacTable{
		RackID:         rackID,
		WithCXL:        withCXL,
		MaxFreePageNum: maxFreePageNum,
		DaemonMacID:    daemonMacID,
		clients:        make(map[gaddr.MacID]struct{}),
	}
}

// Quota returns how many more pages this rack's daemon can currently host.
func (r *RackMacTable) Quota() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.currentAllocated >= r.MaxFreePageNum {
		return 0
	}
	return r.MaxFreePageNum - r.currentAllocated
}

// Reserve accounts for n more pages allocated to this rack, failing with
// CapacityExceeded if that would exceed MaxFreePageNum.
func (r *RackMacTable) Reserve(n uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.currentAllocated+n > r.MaxFreePageNum {
		return rackerr.CapacityExceeded("rack %d: %d+%d exceeds capacity %d", r.RackID, r.currentAllocated, n, r.MaxFreePageNum)
	}
	r.currentAllocated += n
	return nil
}

// Release gives back n pages worth of capacity. freePage is unsupported,
// so nothing in the master calls it.
func (r *RackMacTable) Release(n uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > r.currentAllocated {
		n = r.currentAllocated
	}
	r.currentAllocated -= n
}

// AddClient records a client connection id as belonging to this rack.
func (r *RackMacTable) AddClient(id gaddr.MacID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[id] = struct{}{}
}

// RemoveClient drops a client connection id.
func (r *RackMacTable) RemoveClient(id gaddr.MacID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, id)
}
