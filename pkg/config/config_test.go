// Copyright 2019 Intel Corporation. All Rights Reserved.
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

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rackmem/rackmem/pkg/config"
)

func TestMasterConfigDefaults(t *testing.T) {
	c := config.NewMasterConfig()
	require.NoError(t, c.Parse(nil))
	require.Equal(t, ":7001", c.ListenAddress)
	require.Equal(t, 32, c.ShardCount)
	require.Equal(t, 5*time.Second, c.LatchTimeout.AsDuration())
}

func TestMasterConfigFlags(t *testing.T) {
	c := config.NewMasterConfig()
	err := c.Parse([]string{"--listen-address=:9999", "--shard-count=64", "--latch-timeout=2s"})
	require.NoError(t, err)
	require.Equal(t, ":9999", c.ListenAddress)
	require.Equal(t, 64, c.ShardCount)
	require.Equal(t, 2*time.Second, c.LatchTimeout.AsDuration())
}

func TestMasterConfigRejectsUnknownFlag(t *testing.T) {
	c := config.NewMasterConfig()
	err := c.Parse([]string{"--not-a-real-flag=1"})
	require.Error(t, err)
}

func TestMasterConfigRejectsNonPositiveShardCount(t *testing.T) {
	c := config.NewMasterConfig()
	err := c.Parse([]string{"--shard-count=0"})
	require.Error(t, err)
}

func TestDaemonConfigRequiresMasterAddress(t *testing.T) {
	c := config.NewDaemonConfig()
	err := c.Parse(nil)
	require.Error(t, err)
}

func TestDaemonConfigFlags(t *testing.T) {
	c := config.NewDaemonConfig()
	err := c.Parse([]string{
		"--master-address=10.0.0.1:7001",
		"--rack-id=3",
		"--hot-watermark=8",
		"--decay-lambda=0.05",
		"--hot-stat-freq-timeout-interval=100us",
	})
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1:7001", c.MasterAddress)
	require.Equal(t, 3, c.RackID)
	require.Equal(t, 8, c.HotWatermark)
	require.InDelta(t, 0.05, c.DecayLambda, 1e-9)
	require.Equal(t, 100*time.Microsecond, c.DecayCoalesceInterval.AsDuration())
}

func TestDaemonConfigYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.yaml")
	yaml := "masterAddress: 10.0.0.1:7001\nhotWatermark: 6\nrackId: 1\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	c := config.NewDaemonConfig()
	err := c.Parse([]string{"--config-file=" + path})
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1:7001", c.MasterAddress)
	require.Equal(t, 6, c.HotWatermark)
	require.Equal(t, 1, c.RackID)
}

func TestDaemonConfigDescribe(t *testing.T) {
	c := config.NewDaemonConfig()
	require.NoError(t, c.Parse([]string{"--master-address=10.0.0.1:7001"}))
	require.Contains(t, c.Describe(), "masterAddress")
}
