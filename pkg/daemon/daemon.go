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
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rackmem/rackmem/pkg/conn"
	"github.com/rackmem/rackmem/pkg/config"
	"github.com/rackmem/rackmem/pkg/gaddr"
	logger "github.com/rackmem/rackmem/pkg/log"
	"github.com/rackmem/rackmem/pkg/rdma"
	"github.com/rackmem/rackmem/pkg/reslock"
	"github.com/rackmem/rackmem/pkg/rpcapi"
)

// Daemon is the per-rack node: local page table, remote-page cache, the
// peer and client connection tables it reaches them through, and the
// master stub every latch call goes through.
type Daemon struct {
	Config *config.DaemonConfig

	MacID  gaddr.MacID
	RackID int32

	Region *CXLRegion
	Table  *PageTable
	Remote *RemoteCache

	// RefLocks is the daemon-level per-page latch: a reader/writer lock held
	// across the access path's proxy-or-migrate decision and across the peer
	// side of a migration. It is a distinct registry from the master's
	// cluster-wide LatchManager, which only ever protects a directory entry's
	// ownership fields.
	RefLocks *reslock.Registry[gaddr.PageID]

	// Master is typed as the interface rather than transport.MasterClient
	// itself so tests can substitute an in-process fake and exercise the
	// access path's peer-resolution and migration branches without a
	// dialed gRPC connection.
	Master rpcapi.MasterService
	Peers  *conn.Table // other daemons
	Clients *conn.Table // clients joined to this rack

	RDMARegistry *rdma.MemRegistry

	// Log is this daemon's own logger, named after its rack id so a
	// multi-rack-per-host deployment or test can tell instances apart in
	// the log stream.
	Log logger.Logger

	// MigrateErrLog is Log rate-limited to once every 30s per distinct
	// message: migrate()'s latch/slab release paths can fire on every
	// single access attempt to a page while a peer is unreachable, and
	// without this a stuck peer turns into a log flood rather than a
	// handful of actionable lines.
	MigrateErrLog logger.Logger

	// RDMADial establishes an rdma.Conn to a peer daemon's advertised RDMA
	// address. Queue-pair bootstrap over real hardware is out of scope here;
	// this defaults to nil and must be set by the caller (tests wire
	// rdma.NewLoopbackConn against a peer's registry directly).
	RDMADial func(ctx context.Context, rdmaAddress string) (rdma.Conn, error)

	rng *rand.Rand // built over a mutex-guarded source; safe for concurrent use
}

// New creates a Daemon over an already-sized CXL region. region's slab
// count should match cfg.FreePageNum.
func New(cfg *config.DaemonConfig, region *CXLRegion, master rpcapi.MasterService) *Daemon {
	registry := rdma.NewRegistry()
	rackLog := logger.NewLogger(fmt.Sprintf("daemon.rack%d", cfg.RackID))
	return &Daemon{
		Config:        cfg,
		RackID:        int32(cfg.RackID),
		Region:        region,
		Table:         NewPageTable(region, registry),
		Remote:        NewRemoteCache(cfg.DecayLambda, cfg.DecayCoalesceInterval.AsDuration()),
		RefLocks:      reslock.New[gaddr.PageID](),
		Master:        master,
		Log:           rackLog,
		MigrateErrLog: logger.RateLimit(rackLog, logger.Interval(30*time.Second)),
		Peers:         conn.New(),
		Clients:       conn.New(),
		RDMARegistry:  registry,
		rng:           rand.New(&lockedSource{src: rand.NewSource(time.Now().UnixNano())}),
	}
}

// lockedSource makes a math/rand.Source safe for the concurrent victim-scan
// callers across the access path and migration handler to share.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}
