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
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rackmem/rackmem/pkg/conn"
	"github.com/rackmem/rackmem/pkg/gaddr"
	logger "github.com/rackmem/rackmem/pkg/log"
	"github.com/rackmem/rackmem/pkg/rackerr"
	"github.com/rackmem/rackmem/pkg/rpcapi"
	"github.com/rackmem/rackmem/pkg/transport"
)

// ClusterManager is the master's view of the whole cluster: every rack's
// capacity, every connection, the page directory and the latch protocol
// over it. It implements rpcapi.MasterService (wired up in server.go).
type ClusterManager struct {
	Directory *Directory
	Latches   *LatchManager
	Conns     *conn.Table

	// Log is named after the configured listen address by NewService, so a
	// host running more than one master
	// (tests, multi-listener setups) can tell their log lines apart.
	Log logger.Logger

	mu    sync.RWMutex
	racks map[int32]*RackMacTable
}

// NewClusterManager creates an empty cluster; no racks have joined yet.
func NewClusterManager() *ClusterManager {
	dir := NewDirectory()
	return &ClusterManager{
		Directory: dir,
		Latches:   NewLatchManager(dir),
		Conns:     conn.New(),
		Log:       logger.NewLogger("master"),
		racks:     make(map[int32]*RackMacTable),
	}
}

func (c *ClusterManager) rack(id int32) (*RackMacTable, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.racks[id]
	return r, ok
}

// otherRacksSorted returns every rack but except, in ascending rack id
// order — a stable iteration order AllocPage's cross-rack placement and
// JoinDaemon's bootstrap list both rely on.
func (c *ClusterManager) otherRacksSorted(except int32) []*RackMacTable {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*RackMacTable, 0, len(c.racks))
	for id, r := range c.racks {
		if id != except {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RackID < out[j].RackID })
	return out
}

// JoinDaemon registers a daemon's rack (creating its RackMacTable on first
// join) and returns the ids and the roster of other racks already in the
// cluster, so the daemon can bootstrap cross-rack RDMA connections itself
// instead of relaying every cross-rack byte through the master.
func (c *ClusterManager) JoinDaemon(ctx context.Context, req *rpcapi.JoinDaemonRequest) (*rpcapi.JoinDaemonReply, error) {
	addr := fmt.Sprintf("%s:%d", req.IPAddress, req.Port)
	daemonID := c.Conns.Allocate(&conn.Entry{RackID: req.RackID, RPCAddress: addr})

	c.mu.Lock()
	rack, ok := c.racks[req.RackID]
	if !ok {
		rack = NewRackMacTable(req.RackID, req.WithCXL, req.FreePageNum, daemonID)
		c.racks[req.RackID] = rack
	} else {
		rack.DaemonMacID = daemonID
	}
	c.mu.Unlock()

	others := c.otherRacksSorted(req.RackID)
	otherRacks := make([]rpcapi.RackInfo, 0, len(others))
	for _, r := range others {
		entry, ok := c.Conns.Find(r.DaemonMacID)
		rpcAddr := ""
		if ok {
			rpcAddr = entry.RPCAddress
		}
		otherRacks = append(otherRacks, rpcapi.RackInfo{
			RackID:      r.RackID,
			DaemonMacID: r.DaemonMacID,
			RPCAddress:  rpcAddr,
		})
	}

	return &rpcapi.JoinDaemonReply{
		DaemonMacID: daemonID,
		MasterMacID: gaddr.InvalidMacID,
		OtherRacks:  otherRacks,
	}, nil
}

// JoinClient registers a client under an already-joined rack.
func (c *ClusterManager) JoinClient(ctx context.Context, req *rpcapi.JoinClientRequest) (*rpcapi.JoinClientReply, error) {
	rack, ok := c.rack(req.RackID)
	if !ok {
		return nil, rackerr.NotFound("master: rack %d has no daemon", req.RackID)
	}
	id := c.Conns.Allocate(&conn.Entry{RackID: req.RackID})
	rack.AddClient(id)
	return &rpcapi.JoinClientReply{MacID: id}, nil
}

// AllocPage places as many of the count pages on the requester's own rack
// as its quota allows, then places the remainder on other racks in
// ascending rack-id order by calling their daemon's AllocPageMemory,
// failing with CapacityExceeded if total free capacity across the cluster
// falls short.
func (c *ClusterManager) AllocPage(ctx context.Context, req *rpcapi.AllocPageRequest) (*rpcapi.AllocPageReply, error) {
	entry, err := c.Conns.Get(req.MacID)
	if err != nil {
		return nil, err
	}
	homeRack, ok := c.rack(entry.RackID)
	if !ok {
		return nil, rackerr.NotFound("master: no rack for mac %v", req.MacID)
	}

	startID := c.Directory.AllocateIDs(req.Count)

	near := req.Count
	if q := homeRack.Quota(); q < near {
		near = q
	}
	if near > 0 {
		if err := homeRack.Reserve(near); err != nil {
			return nil, err
		}
	}
	for i := uint64(0); i < near; i++ {
		c.Directory.AddPage(startID+gaddr.PageID(i), homeRack.RackID, homeRack.DaemonMacID)
	}

	remaining := req.Count - near
	offset := near
	for _, rack := range c.otherRacksSorted(homeRack.RackID) {
		if remaining == 0 {
			break
		}
		take := rack.Quota()
		if take > remaining {
			take = remaining
		}
		if take == 0 {
			continue
		}
		if err := rack.Reserve(take); err != nil {
			return nil, err
		}
		peer, err := c.Conns.Get(rack.DaemonMacID)
		if err != nil {
			return nil, err
		}
		_, err = transport.DaemonClient{C: peer.Client}.AllocPageMemory(ctx, &rpcapi.AllocPageMemoryRequest{
			MacID:       rack.DaemonMacID,
			StartPageID: startID + gaddr.PageID(offset),
			Count:       take,
		})
		if err != nil {
			return nil, err
		}
		for i := uint64(0); i < take; i++ {
			c.Directory.AddPage(startID+gaddr.PageID(offset+i), rack.RackID, rack.DaemonMacID)
		}
		offset += take
		remaining -= take
	}

	if remaining > 0 {
		return nil, rackerr.CapacityExceeded("master: cluster-wide free capacity exhausted, %d pages unplaced", remaining)
	}

	return &rpcapi.AllocPageReply{StartPageID: startID, StartCount: near}, nil
}

// FreePage is unsupported: the reference implementation marks byte-granular
// free as fatal, and this tree preserves that rather than guessing at
// reclaim semantics it never specified.
func (c *ClusterManager) FreePage(ctx context.Context, req *rpcapi.FreePageRequest) (*rpcapi.FreePageReply, error) {
	return nil, rackerr.Unsupported("master: freePage is not supported")
}

// LatchRemotePage, UnLatchRemotePage and UnLatchPageAndSwap delegate to the
// LatchManager; they're defined here (rather than as LatchManager methods
// matching the RPC signature exactly) so server.go can register all of
// rpcapi.MasterService against one *ClusterManager.

func (c *ClusterManager) LatchRemotePage(ctx context.Context, req *rpcapi.LatchRemotePageRequest) (*rpcapi.LatchRemotePageReply, error) {
	rackID, daemonID, err := c.Latches.LatchRemotePage(req.MacID, req.IsWriteLock, req.PageID, req.PageIDSwap)
	if err != nil {
		return nil, err
	}
	return &rpcapi.LatchRemotePageReply{DestRackID: rackID, DestDaemonID: daemonID}, nil
}

func (c *ClusterManager) UnLatchRemotePage(ctx context.Context, req *rpcapi.UnLatchRemotePageRequest) (*rpcapi.UnLatchRemotePageReply, error) {
	if err := c.Latches.UnLatchRemotePage(req.MacID, req.PageID); err != nil {
		return nil, err
	}
	return &rpcapi.UnLatchRemotePageReply{OK: true}, nil
}

func (c *ClusterManager) UnLatchPageAndSwap(ctx context.Context, req *rpcapi.UnLatchPageAndSwapRequest) (*rpcapi.UnLatchPageAndSwapReply, error) {
	err := c.Latches.UnLatchPageAndSwap(req.MacID, req.PageID, req.NewRackID, req.NewDaemonID, req.PageIDSwap, req.NewRackIDSwap, req.NewDaemonIDSwap)
	if err != nil {
		return nil, err
	}
	return &rpcapi.UnLatchPageAndSwapReply{OK: true}, nil
}
