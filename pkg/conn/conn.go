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

// Package conn is the one place a MacID resolves to an actual connection.
// Page metadata and the page directory refer to peers by MacID alone —
// weak back-references, not pointers — precisely so that this table is the
// only thing that needs updating when a peer disconnects; nothing else
// holds a reference that would need fixing up or would dangle.
package conn

import (
	"context"
	"sync"

	"github.com/rackmem/rackmem/pkg/gaddr"
	"github.com/rackmem/rackmem/pkg/rackerr"
	"github.com/rackmem/rackmem/pkg/rdma"
	"github.com/rackmem/rackmem/pkg/shardmap"
	"github.com/rackmem/rackmem/pkg/transport"
)

// Entry is what the table knows about one peer: enough to reach it over
// RPC and, for daemons, to reach it over RDMA.
type Entry struct {
	MacID       gaddr.MacID
	RackID      int32
	RPCAddress  string
	RDMAAddress string
	Client      *transport.Client
	RDMAConn    rdma.Conn
}

// Table maps MacID to Entry. Callers look a peer up by id every time they
// need it rather than caching the *Entry itself across a yield point, so a
// disconnect invalidates exactly one place.
type Table struct {
	entries *shardmap.Map[gaddr.MacID, *Entry]
	mu      sync.Mutex
	nextID  gaddr.MacID
}

// New creates an empty connection table. Allocated MacIDs start at 1;
// InvalidMacID (0) is never handed out.
func New() *Table {
	return &Table{
		entries: shardmap.NewDefault[gaddr.MacID, *Entry](shardmap.Uint64Hash[gaddr.MacID]),
	}
}

// Allocate reserves the next MacID and inserts e under it.
func (t *Table) Allocate(e *Entry) gaddr.MacID {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.mu.Unlock()

	e.MacID = id
	t.entries.Insert(id, e)
	return id
}

// Put inserts or replaces the entry for a MacID already allocated elsewhere
// (e.g. the master assigning a daemon's id inside a JoinDaemon response the
// daemon itself never sees as an "Allocate" call locally).
func (t *Table) Put(id gaddr.MacID, e *Entry) {
	e.MacID = id
	t.entries.Insert(id, e)
}

// Find returns the entry for id, if any peer is currently known by it.
func (t *Table) Find(id gaddr.MacID) (*Entry, bool) {
	return t.entries.Find(id)
}

// Get is Find but returns rackerr.NotFound instead of a bool, for call
// sites that want to propagate the error directly.
func (t *Table) Get(id gaddr.MacID) (*Entry, error) {
	return t.entries.At(id)
}

// Remove drops id from the table and closes its connections. Anything that
// only held id (not the *Entry) naturally stops being able to reach the
// peer on its next lookup instead of operating on a stale pointer.
func (t *Table) Remove(id gaddr.MacID) {
	e, ok := t.entries.Find(id)
	if !ok {
		return
	}
	t.entries.Erase(id)
	if e.Client != nil {
		e.Client.Close()
	}
}

// Dial connects to address and registers the resulting client under id.
func (t *Table) Dial(ctx context.Context, id gaddr.MacID, rackID int32, rpcAddress, rdmaAddress string) (*Entry, error) {
	c, err := transport.Dial(ctx, rpcAddress)
	if err != nil {
		return nil, err
	}
	e := &Entry{
		MacID:       id,
		RackID:      rackID,
		RPCAddress:  rpcAddress,
		RDMAAddress: rdmaAddress,
		Client:      c,
	}
	t.Put(id, e)
	return e, nil
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	return t.entries.Len()
}

// ForEach visits every entry; fn returning false stops iteration early.
func (t *Table) ForEach(fn func(gaddr.MacID, *Entry) bool) {
	t.entries.ForeachAll(fn)
}

var errNoSuchPeer = rackerr.NotFound("conn: no such peer")

// ErrNoSuchPeer is returned in places that need a sentinel rather than a
// formatted error (comparison in tests, mainly).
func ErrNoSuchPeer() error { return errNoSuchPeer }
