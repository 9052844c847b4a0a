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

package config

import (
	"github.com/rackmem/rackmem/pkg/version"
)

// DaemonConfig holds the command-line/YAML-configurable parameters of the
// rackmem-daemon binary: where to join the master and how to advertise
// itself, plus the hot-access decay statistic's tunables.
type DaemonConfig struct {
	// MasterAddress is the gRPC address of the master to join.
	MasterAddress string `json:"masterAddress"`
	// ListenAddress is the gRPC address this daemon serves clients on.
	ListenAddress string `json:"listenAddress"`
	// RDMAPort is the RDMA queue-pair setup port. It is parsed only; no RPC
	// (joinRack included) carries it to clients or to the master.
	RDMAPort int `json:"rdmaPort"`
	// RackID is this daemon's rack identifier, sent to the master at join
	// time and used as given; the master does not assign one for -1.
	RackID int `json:"rackId"`
	// WithCXL indicates whether this daemon exposes CXL-attached memory.
	WithCXL bool `json:"withCxl"`
	// FreePageNum is the number of local pages advertised to the master at join time.
	FreePageNum int `json:"freePageNum"`
	// HotWatermark is the decay counter value at which a proxied page is migrated.
	HotWatermark int `json:"hotWatermark"`
	// DecayLambda is the exponential decay constant of the hot-access statistic.
	DecayLambda float64 `json:"decayLambda"`
	// DecayCoalesceInterval is the minimum spacing between two add() calls for the
	// same page that are coalesced into one, avoiding stampedes on hot pages.
	DecayCoalesceInterval Duration `json:"decayCoalesceInterval"`
	// ConfigFile, if set, is a YAML overlay applied on top of command line flags.
	ConfigFile string `json:"-"`

	module *Module
}

// NewDaemonConfig creates a DaemonConfig with its flags registered at their defaults.
func NewDaemonConfig() *DaemonConfig {
	c := &DaemonConfig{
		ListenAddress:         ":7101",
		RDMAPort:              18515,
		RackID:                -1,
		WithCXL:               true,
		HotWatermark:          4,
		DecayLambda:           0.01,
		DecayCoalesceInterval: Duration(50_000), // 50us
		module:                newModule("rackmem-daemon"),
	}

	fs := c.module.FlagSet()
	fs.StringVar(&c.MasterAddress, "master-address", c.MasterAddress,
		"gRPC address of the master to join")
	fs.StringVar(&c.ListenAddress, "listen-address", c.ListenAddress,
		"gRPC listen address for client connections")
	fs.IntVar(&c.RDMAPort, "rdma-port", c.RDMAPort,
		"RDMA queue-pair setup port")
	fs.IntVar(&c.RackID, "rack-id", c.RackID,
		"rack identifier of this daemon, sent to the master as given")
	fs.BoolVar(&c.WithCXL, "with-cxl", c.WithCXL,
		"whether this daemon exposes CXL-attached memory")
	fs.IntVar(&c.FreePageNum, "free-page-num", c.FreePageNum,
		"number of local pages to advertise to the master at join time")
	fs.IntVar(&c.HotWatermark, "hot-watermark", c.HotWatermark,
		"decay counter value at which a proxied page is migrated")
	fs.Float64Var(&c.DecayLambda, "decay-lambda", c.DecayLambda,
		"exponential decay constant for the hot-access statistic")
	fs.Var(&c.DecayCoalesceInterval, "hot-stat-freq-timeout-interval",
		"minimum interval between coalesced hot-access decay updates for the same page")
	fs.StringVar(&c.ConfigFile, "config-file", c.ConfigFile,
		"optional YAML configuration file overlaid on top of the command line")
	version.RegisterFlag(fs)

	return c
}

// Parse parses the command line and, if requested, a YAML overlay file.
func (c *DaemonConfig) Parse(args []string) error {
	if err := c.module.ParseArgList(args); err != nil {
		return err
	}
	if c.ConfigFile != "" {
		if err := c.module.ParseYAMLFile(c.ConfigFile, c); err != nil {
			return err
		}
	}
	if c.MasterAddress == "" {
		return configError("rackmem-daemon: master-address is required")
	}
	if c.HotWatermark <= 0 {
		return configError("rackmem-daemon: hot-watermark must be positive, got %d", c.HotWatermark)
	}
	return nil
}

// Args returns the non-flag command line arguments.
func (c *DaemonConfig) Args() []string {
	return c.module.Args()
}

// Usage prints command line usage for rackmem-daemon.
func (c *DaemonConfig) Usage() {
	c.module.Usage()
}

// Describe renders the effective configuration as YAML, for diagnostics.
func (c *DaemonConfig) Describe() string {
	data, err := DataFromObject(c)
	if err != nil {
		return configError("rackmem-daemon: %v", err).Error()
	}
	return data.String()
}
