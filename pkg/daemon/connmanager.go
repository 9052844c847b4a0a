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

	"github.com/rackmem/rackmem/pkg/conn"
	"github.com/rackmem/rackmem/pkg/rackerr"
	"github.com/rackmem/rackmem/pkg/rpcapi"
)

// Join registers this daemon with the master and bootstraps a direct RPC
// and RDMA connection to every rack already in the cluster, so daemon-to-
// daemon traffic (getPageRDMARef, tryMigratePage, invalidation) never has
// to relay through the master.
func (d *Daemon) Join(ctx context.Context, ipAddress string, port int32) error {
	reply, err := d.Master.JoinDaemon(ctx, &rpcapi.JoinDaemonRequest{
		RackID:      int32(d.Config.RackID),
		IPAddress:   ipAddress,
		Port:        port,
		WithCXL:     d.Config.WithCXL,
		FreePageNum: uint64(d.Config.FreePageNum),
	})
	if err != nil {
		return err
	}

	d.MacID = reply.DaemonMacID
	if d.RackID == 0 {
		d.RackID = int32(d.Config.RackID)
	}

	for _, rack := range reply.OtherRacks {
		if err := d.connectRack(ctx, rack); err != nil {
			return err
		}
	}
	return nil
}

// connectRack dials a peer daemon's RPC and RDMA endpoints and registers
// the result under its MacID so later calls resolve it through Peers alone.
func (d *Daemon) connectRack(ctx context.Context, rack rpcapi.RackInfo) error {
	e, err := d.Peers.Dial(ctx, rack.DaemonMacID, rack.RackID, rack.RPCAddress, rack.RDMAAddress)
	if err != nil {
		return err
	}

	if d.RDMADial == nil {
		return rackerr.Unsupported("daemon: no RDMA dialer configured, cannot reach rack %d", rack.RackID)
	}
	rdmaConn, err := d.RDMADial(ctx, rack.RDMAAddress)
	if err != nil {
		return err
	}

	e.RDMAConn = rdmaConn
	return nil
}

// RegisterPeer is used by tests and single-process deployments to wire a
// peer's connection directly, bypassing Join's RPC/RDMA dial.
func (d *Daemon) RegisterPeer(e *conn.Entry) {
	d.Peers.Put(e.MacID, e)
}
