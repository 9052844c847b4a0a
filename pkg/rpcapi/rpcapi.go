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

// Package rpcapi defines the wire structs and service contracts that flow
// between master, daemon and client roles. Every field here crosses a
// process boundary through pkg/transport's gob codec, so types are kept
// exported, concrete and gob-friendly (no interfaces, no unexported fields).
package rpcapi

import (
	"context"

	"github.com/rackmem/rackmem/pkg/gaddr"
	"github.com/rackmem/rackmem/pkg/rdma"
)

// Op selects the access-path operation getPageRefOrProxy performs.
type Op int

const (
	// OpRead proxies or references a page for a read.
	OpRead Op = iota
	// OpWrite is a non-raw write; unsupported, every daemon rejects it.
	OpWrite
	// OpWriteRaw overwrites the full page with cn_write_buf, the only write
	// path implemented.
	OpWriteRaw
)

func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpWriteRaw:
		return "write_raw"
	default:
		return "op?"
	}
}

// RackInfo describes a rack's daemon listen endpoints, handed out by
// JoinDaemon so a newly joined daemon can bootstrap connections to every
// rack already in the cluster without the master relaying traffic.
type RackInfo struct {
	RackID      int32
	DaemonMacID gaddr.MacID
	RPCAddress  string
	RDMAAddress string
}

// ---- Master service: daemon-facing ----

type JoinDaemonRequest struct {
	RackID      int32
	IPAddress   string
	Port        int32
	WithCXL     bool
	FreePageNum uint64
}

type JoinDaemonReply struct {
	DaemonMacID gaddr.MacID
	MasterMacID gaddr.MacID
	RDMAPort    int32
	OtherRacks  []RackInfo
}

type AllocPageRequest struct {
	MacID gaddr.MacID
	Count uint64
}

type AllocPageReply struct {
	StartPageID gaddr.PageID
	StartCount  uint64
}

type FreePageRequest struct {
	MacID       gaddr.MacID
	StartPageID gaddr.PageID
}

type FreePageReply struct {
	OK bool
}

type LatchRemotePageRequest struct {
	MacID        gaddr.MacID
	IsWriteLock  bool
	PageID       gaddr.PageID
	PageIDSwap   gaddr.PageID // InvalidPageID when no swap is requested
}

type LatchRemotePageReply struct {
	DestRackID   int32
	DestDaemonID gaddr.MacID
}

type UnLatchRemotePageRequest struct {
	MacID  gaddr.MacID
	PageID gaddr.PageID
}

type UnLatchRemotePageReply struct {
	OK bool
}

type UnLatchPageAndSwapRequest struct {
	MacID            gaddr.MacID
	PageID           gaddr.PageID
	NewDaemonID      gaddr.MacID
	NewRackID        int32
	PageIDSwap       gaddr.PageID
	NewDaemonIDSwap  gaddr.MacID
	NewRackIDSwap    int32
}

type UnLatchPageAndSwapReply struct {
	OK bool
}

// ---- Master service: client-facing ----

type JoinClientRequest struct {
	RackID int32
}

type JoinClientReply struct {
	MacID gaddr.MacID
}

// MasterService is the RPC surface the master exposes to daemons and clients.
type MasterService interface {
	JoinDaemon(ctx context.Context, req *JoinDaemonRequest) (*JoinDaemonReply, error)
	AllocPage(ctx context.Context, req *AllocPageRequest) (*AllocPageReply, error)
	FreePage(ctx context.Context, req *FreePageRequest) (*FreePageReply, error)
	LatchRemotePage(ctx context.Context, req *LatchRemotePageRequest) (*LatchRemotePageReply, error)
	UnLatchRemotePage(ctx context.Context, req *UnLatchRemotePageRequest) (*UnLatchRemotePageReply, error)
	UnLatchPageAndSwap(ctx context.Context, req *UnLatchPageAndSwapRequest) (*UnLatchPageAndSwapReply, error)
	JoinClient(ctx context.Context, req *JoinClientRequest) (*JoinClientReply, error)
}

// ---- Daemon service: daemon-to-daemon ----

type GetPageRDMARefRequest struct {
	MacID  gaddr.MacID
	PageID gaddr.PageID
}

type GetPageRDMARefReply struct {
	Handle rdma.Handle
}

// DelPageRDMARefRequest asks the peer to drop any RDMA reference and cached
// metadata it holds for PageID: the invalidation broadcast's per-daemon leg.
// Idempotent — a daemon that holds nothing for PageID just replies OK.
type DelPageRDMARefRequest struct {
	MacID  gaddr.MacID
	PageID gaddr.PageID
}

type DelPageRDMARefReply struct {
	OK bool
}

// TryMigratePageRequest asks the peer currently hosting PageID to hand its
// physical slab to the caller, optionally exchanging it for SwapPageID's
// slab in the same round trip. HotScore carries the requester's current
// hot-access count for the page; it is not compared against anything on the
// peer side today (every peer accepts), but is kept on the wire so a future
// acceptance policy doesn't need a new RPC.
type TryMigratePageRequest struct {
	MacID            gaddr.MacID
	PageID           gaddr.PageID
	SwapPageID       gaddr.PageID // InvalidPageID when this isn't a swap
	HotScore         float64
	SwapOutPageAddr  rdma.Handle
	SwapInPageAddr   rdma.Handle
}

type TryMigratePageReply struct {
	Swapped bool
}

type AllocPageMemoryRequest struct {
	MacID       gaddr.MacID
	StartPageID gaddr.PageID
	Count       uint64
}

type AllocPageMemoryReply struct {
	OK bool
}

// DaemonService is the RPC surface one daemon exposes to its peers.
type DaemonService interface {
	GetPageRDMARef(ctx context.Context, req *GetPageRDMARefRequest) (*GetPageRDMARefReply, error)
	DelPageRDMARef(ctx context.Context, req *DelPageRDMARefRequest) (*DelPageRDMARefReply, error)
	TryMigratePage(ctx context.Context, req *TryMigratePageRequest) (*TryMigratePageReply, error)
	AllocPageMemory(ctx context.Context, req *AllocPageMemoryRequest) (*AllocPageMemoryReply, error)
}

// ---- Daemon service: client-facing ----

type JoinRackRequest struct {
	RackID      int32
	ClientIPv4  string
	ClientPort  int32
}

type JoinRackReply struct {
	ClientMacID gaddr.MacID
	DaemonMacID gaddr.MacID
}

// GetPageRefOrProxyRequest carries exactly the fields its Op needs: a write
// or write_raw sends CNWriteBuf, a read sends CNReadSize.
type GetPageRefOrProxyRequest struct {
	MacID      gaddr.MacID
	Addr       gaddr.GAddr
	Op         Op
	CNWriteBuf []byte
	CNReadSize uint64
}

type GetPageRefOrProxyReply struct {
	// Refs is populated when the page could be referenced directly via
	// RDMA rather than proxied; empty means the daemon proxied the I/O
	// itself and ReadData/Offset carry the result.
	Refs     []rdma.Handle
	Offset   uint64
	ReadData []byte
}

type ClientAllocPageRequest struct {
	Count uint64
}

type ClientAllocPageReply struct {
	StartPageID gaddr.PageID
}

// ClientFacingService is the RPC surface a daemon exposes to the clients in
// its own rack.
type ClientFacingService interface {
	JoinRack(ctx context.Context, req *JoinRackRequest) (*JoinRackReply, error)
	GetPageRefOrProxy(ctx context.Context, req *GetPageRefOrProxyRequest) (*GetPageRefOrProxyReply, error)
	ClientAllocPage(ctx context.Context, req *ClientAllocPageRequest) (*ClientAllocPageReply, error)
}

// ---- Client service: daemon-to-client ----

type RemovePageCacheRequest struct {
	MacID  gaddr.MacID
	PageID gaddr.PageID
}

type RemovePageCacheReply struct{}

type GetCurrentWriteDataRequest struct {
	MacID        gaddr.MacID
	DioWriteSize uint64
}

type GetCurrentWriteDataReply struct {
	Data []byte
}

type GetPagePastAccessFreqRequest struct {
	MacID gaddr.MacID
}

type GetPagePastAccessFreqReply struct {
	OldestPageID   gaddr.PageID
	LastAccessTS   int64
}

// ClientService is the RPC surface a client exposes to its rack's daemon,
// used for invalidation and for the daemon to pull dirty write-combine data
// back out of the client during a migration.
type ClientService interface {
	RemovePageCache(ctx context.Context, req *RemovePageCacheRequest) (*RemovePageCacheReply, error)
	GetCurrentWriteData(ctx context.Context, req *GetCurrentWriteDataRequest) (*GetCurrentWriteDataReply, error)
	GetPagePastAccessFreq(ctx context.Context, req *GetPagePastAccessFreqRequest) (*GetPagePastAccessFreqReply, error)
}
