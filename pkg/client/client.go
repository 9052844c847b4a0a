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

// Package client is the compute-side participant: it holds caches and
// answers its rack daemon's invalidation and write-pull-back calls. The
// allocator a real application would layer on top of gaddr.GAddr space,
// and the shared-memory message queue it would talk to its daemon through,
// are external collaborators this package does not implement; it speaks to
// the daemon over the same pkg/transport stub everything else in this tree
// uses.
package client

import (
	"context"
	"time"

	"github.com/rackmem/rackmem/pkg/gaddr"
	"github.com/rackmem/rackmem/pkg/rpcapi"
	"github.com/rackmem/rackmem/pkg/shardmap"
	"github.com/rackmem/rackmem/pkg/transport"
)

// pageState is what a client remembers locally about one page it has
// touched: when it last accessed it (for the daemon's victim-selection
// query) and any write-combined bytes not yet pushed through, pulled back
// by the daemon during a migration.
type pageState struct {
	lastAccess time.Time
	dirty      []byte
}

// Client is one compute-side process's view of the pool: its connections to
// the master and its rack's daemon, and the access-time/dirty-buffer cache
// the daemon's invalidation and pull-back calls consult.
type Client struct {
	MacID  gaddr.MacID
	RackID int32

	Master transport.MasterClient
	Daemon transport.DaemonFacingClient

	pages *shardmap.Map[gaddr.PageID, *pageState]
}

// New creates a Client over already-dialed master and daemon connections.
func New(master transport.MasterClient, daemon transport.DaemonFacingClient) *Client {
	return &Client{
		Master: master,
		Daemon: daemon,
		pages:  shardmap.NewDefault[gaddr.PageID, *pageState](shardmap.Uint64Hash[gaddr.PageID]),
	}
}

// Join admits this client into rackID's daemon.
func (c *Client) Join(ctx context.Context, rackID int32) error {
	reply, err := c.Daemon.JoinRack(ctx, &rpcapi.JoinRackRequest{RackID: rackID})
	if err != nil {
		return err
	}
	c.MacID = reply.ClientMacID
	c.RackID = rackID
	return nil
}

// AllocPage requests count consecutive page ids from the master by way of
// this client's daemon.
func (c *Client) AllocPage(ctx context.Context, count uint64) (gaddr.PageID, error) {
	reply, err := c.Daemon.ClientAllocPage(ctx, &rpcapi.ClientAllocPageRequest{Count: count})
	if err != nil {
		return gaddr.InvalidPageID, err
	}
	return reply.StartPageID, nil
}

// touch records addr's page as freshly accessed, tracking the data a future
// write_raw left dirty so GetCurrentWriteData can hand it back on request.
func (c *Client) touch(addr gaddr.GAddr, dirty []byte) {
	pid := addr.PageID()
	st, _, _ := c.pages.FindOrEmplace(pid, func() (*pageState, error) {
		return &pageState{}, nil
	})
	st.lastAccess = time.Now()
	if dirty != nil {
		st.dirty = dirty
	}
}

// Read performs a read through the daemon's access path: a local hit
// returns the CXL offset for the caller to load from directly; a proxied
// read returns the bytes the daemon fetched on the client's behalf.
func (c *Client) Read(ctx context.Context, addr gaddr.GAddr, size uint64) (*rpcapi.GetPageRefOrProxyReply, error) {
	reply, err := c.Daemon.GetPageRefOrProxy(ctx, &rpcapi.GetPageRefOrProxyRequest{
		MacID: c.MacID, Addr: addr, Op: rpcapi.OpRead, CNReadSize: size,
	})
	if err != nil {
		return nil, err
	}
	c.touch(addr, nil)
	return reply, nil
}

// WriteRaw overwrites addr's page with buf through the daemon's access path.
func (c *Client) WriteRaw(ctx context.Context, addr gaddr.GAddr, buf []byte) error {
	_, err := c.Daemon.GetPageRefOrProxy(ctx, &rpcapi.GetPageRefOrProxyRequest{
		MacID: c.MacID, Addr: addr, Op: rpcapi.OpWriteRaw, CNWriteBuf: buf,
	})
	if err != nil {
		return err
	}
	c.touch(addr, buf)
	return nil
}
