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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rackmem/rackmem/pkg/config"
	"github.com/rackmem/rackmem/pkg/transport"
)

// newTestDaemon builds a Daemon over a freshly mmap'd CXL region with no
// master connection. It is meant for tests that never call out to Master
// (left at its zero value here); tests that exercise the migration path
// build their own Daemon with a fake rpcapi.MasterService instead, see
// migration_path_test.go.
func newTestDaemon(t *testing.T, slabs int) *Daemon {
	region, err := NewCXLRegion(slabs)
	require.NoError(t, err)
	t.Cleanup(func() { region.Close() })

	cfg := config.NewDaemonConfig()
	cfg.RackID = 1
	cfg.HotWatermark = 4

	return New(cfg, region, transport.MasterClient{})
}

func TestDaemonRngIsUsable(t *testing.T) {
	d := newTestDaemon(t, 1)
	// The shared rand.Rand must be safe to call from the daemon's own
	// victim-scan helpers without a data race; a bare call here is enough
	// to prove it was constructed.
	require.NotPanics(t, func() { d.rng.Int63() })
}
