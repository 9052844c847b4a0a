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

// Package daemon implements the per-rack node: the local page table and
// CXL-backed slab allocator, the remote-page metadata cache, the access
// path that decides between serving locally, proxying over RDMA or
// triggering a migration, and the peer-side migration and invalidation
// handlers.
package daemon

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/rackmem/rackmem/pkg/gaddr"
	"github.com/rackmem/rackmem/pkg/rackerr"
)

// CXLRegion simulates the daemon's CXL-attached memory as one
// MAP_SHARED|MAP_ANONYMOUS mapping, carved into fixed 2 MiB slabs. A real
// CXL device would back this with a device file opened for mmap instead of
// an anonymous mapping; the slab bookkeeping above it is identical either
// way, which is all the page table and access path actually depend on.
type CXLRegion struct {
	mem  []byte
	mu   sync.Mutex
	free []uint64
}

// NewCXLRegion reserves slabCount slabs worth of address space.
func NewCXLRegion(slabCount int) (*CXLRegion, error) {
	if slabCount <= 0 {
		return nil, rackerr.Unsupported("cxl: slab count must be positive, got %d", slabCount)
	}
	size := slabCount * gaddr.PageSize
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, rackerr.TransportError(err, "cxl: mmap %d bytes", size)
	}
	r := &CXLRegion{mem: mem}
	for i := 0; i < slabCount; i++ {
		r.free = append(r.free, uint64(i)*gaddr.PageSize)
	}
	return r, nil
}

// Slab returns the byte slice backing the slab at offset.
func (r *CXLRegion) Slab(offset uint64) []byte {
	return r.mem[offset : offset+gaddr.PageSize]
}

// Reserve takes one slab off the free list.
func (r *CXLRegion) Reserve() (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.free) == 0 {
		return 0, false
	}
	off := r.free[len(r.free)-1]
	r.free = r.free[:len(r.free)-1]
	return off, true
}

// Release returns a slab to the free list and advises the kernel the
// backing pages can be reclaimed immediately.
func (r *CXLRegion) Release(offset uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = unix.Madvise(r.Slab(offset), unix.MADV_DONTNEED)
	r.free = append(r.free, offset)
}

// FreeCount returns the number of slabs currently on the free list.
func (r *CXLRegion) FreeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.free)
}

// Close unmaps the region.
func (r *CXLRegion) Close() error {
	return unix.Munmap(r.mem)
}
