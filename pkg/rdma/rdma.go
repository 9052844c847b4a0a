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

// Package rdma defines the boundary the access path and migration protocol
// consume for remote direct memory access: Conn for single reads/writes
// against a remote handle, Batch for the grouped copy a page migration
// submits. Queue-pair setup, completion-queue polling and the wire protocol
// underneath these interfaces are external collaborators outside this
// tree's scope; Loopback is a same-process, byte-copying stand-in used by
// tests and by single-binary deployments that have no real RDMA fabric.
package rdma

import (
	"context"

	"github.com/rackmem/rackmem/pkg/future"
)

// Handle is the RDMA-registered address and protection key of a remote
// daemon's memory slab, the "(addr, rkey)" pair that getPageRDMARef returns.
type Handle struct {
	Addr uint64
	RKey uint32
}

// IsZero reports whether h is the zero Handle (never registered).
func (h Handle) IsZero() bool {
	return h.Addr == 0 && h.RKey == 0
}

// Conn is a connection to a peer daemon's RDMA-registered memory.
type Conn interface {
	// Read copies len(buf) bytes starting at remote+offset into buf.
	Read(ctx context.Context, remote Handle, offset uint64, buf []byte) *future.Future[struct{}]
	// Write copies buf to remote+offset.
	Write(ctx context.Context, remote Handle, offset uint64, buf []byte) *future.Future[struct{}]
	// NewBatch starts a grouped operation for a page migration's copy (and,
	// for a swap, its paired reverse copy) to be submitted together.
	NewBatch() Batch
	// Close releases the connection's queue pair.
	Close() error
}

// Op is one operation queued into a Batch.
type Op struct {
	Remote Handle
	Offset uint64
	Local  []byte
	IsRead bool
}

// Batch groups several RDMA operations submitted and completed together,
// the way the migration protocol's page copy (and optional reverse
// swap-in copy) need to be.
type Batch interface {
	// QueueRead enqueues a copy from remote+offset into local.
	QueueRead(remote Handle, offset uint64, local []byte)
	// QueueWrite enqueues a copy from local to remote+offset.
	QueueWrite(remote Handle, offset uint64, local []byte)
	// Submit dispatches every queued operation and returns a future that
	// resolves once all of them have completed — the "submission future
	// reports 0 [outstanding]" event the migration protocol cooperatively
	// yields while polling for.
	Submit(ctx context.Context) *future.Future[struct{}]
}

// Registry looks up the memory a Handle names. Loopback implements it by
// keeping registered slabs in process memory; a hardware-backed Conn would
// instead resolve addr/rkey through the NIC's memory registration table.
type Registry interface {
	Register(buf []byte) Handle
	Deregister(h Handle)
}
