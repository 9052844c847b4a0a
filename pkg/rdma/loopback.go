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

package rdma

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/rackmem/rackmem/pkg/future"
)

// MemRegistry hands out Handles backed by in-process byte slices. It plays
// the role a NIC's memory registration table would play on real hardware.
type MemRegistry struct {
	mu     sync.RWMutex
	slabs  map[uint64][]byte
	nextID uint64
}

// NewRegistry creates an empty handle registry.
func NewRegistry() *MemRegistry {
	return &MemRegistry{slabs: make(map[uint64][]byte)}
}

func (r *MemRegistry) Register(buf []byte) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.slabs[id] = buf
	return Handle{Addr: id, RKey: uint32(id)}
}

func (r *MemRegistry) Deregister(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slabs, h.Addr)
}

func (r *MemRegistry) slice(h Handle, offset uint64, length int) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	buf, ok := r.slabs[h.Addr]
	if !ok {
		return nil, errors.Errorf("rdma: handle %v not registered", h)
	}
	end := offset + uint64(length)
	if end > uint64(len(buf)) {
		return nil, errors.Errorf("rdma: offset+length %d exceeds slab size %d", end, len(buf))
	}
	return buf[offset:end], nil
}

// LoopbackConn is a same-process Conn: reads and writes copy directly
// to/from the target MemRegistry's registered slabs. It stands in for a
// real RDMA NIC when daemons run in the same process (tests) or when no
// fabric is configured, while satisfying the same Conn contract the access
// path and migration protocol call through.
type LoopbackConn struct {
	peer *MemRegistry
}

// NewLoopbackConn returns a Conn whose Reads/Writes reach directly into
// peer's registered memory.
func NewLoopbackConn(peer *MemRegistry) *LoopbackConn {
	return &LoopbackConn{peer: peer}
}

func (c *LoopbackConn) Read(ctx context.Context, remote Handle, offset uint64, buf []byte) *future.Future[struct{}] {
	src, err := c.peer.slice(remote, offset, len(buf))
	if err != nil {
		return future.Done(struct{}{}, err)
	}
	copy(buf, src)
	return future.Done(struct{}{}, nil)
}

func (c *LoopbackConn) Write(ctx context.Context, remote Handle, offset uint64, buf []byte) *future.Future[struct{}] {
	dst, err := c.peer.slice(remote, offset, len(buf))
	if err != nil {
		return future.Done(struct{}{}, err)
	}
	copy(dst, buf)
	return future.Done(struct{}{}, nil)
}

func (c *LoopbackConn) NewBatch() Batch {
	return &loopbackBatch{conn: c}
}

func (c *LoopbackConn) Close() error { return nil }

type loopbackBatch struct {
	conn *LoopbackConn
	ops  []Op
}

func (b *loopbackBatch) QueueRead(remote Handle, offset uint64, local []byte) {
	b.ops = append(b.ops, Op{Remote: remote, Offset: offset, Local: local, IsRead: true})
}

func (b *loopbackBatch) QueueWrite(remote Handle, offset uint64, local []byte) {
	b.ops = append(b.ops, Op{Remote: remote, Offset: offset, Local: local})
}

// Submit executes every queued operation in order and resolves once all of
// them have completed. A hardware Conn would post these to a queue pair and
// poll its completion queue instead; the cooperative-yield contract the
// caller sees — block on the returned future until it resolves — is
// identical either way.
func (b *loopbackBatch) Submit(ctx context.Context) *future.Future[struct{}] {
	for _, op := range b.ops {
		var f *future.Future[struct{}]
		if op.IsRead {
			f = b.conn.Read(ctx, op.Remote, op.Offset, op.Local)
		} else {
			f = b.conn.Write(ctx, op.Remote, op.Offset, op.Local)
		}
		if _, err := f.Get(ctx); err != nil {
			return future.Done(struct{}{}, err)
		}
	}
	return future.Done(struct{}{}, nil)
}
