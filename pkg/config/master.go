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

// MasterConfig holds the command-line/YAML-configurable parameters of the
// rackmem-master binary: its listen address and the directory sharding and
// latch timing knobs of the page directory it serves.
type MasterConfig struct {
	// ListenAddress is the gRPC address daemons and clients join on.
	ListenAddress string `json:"listenAddress"`
	// ShardCount is the number of shards the page directory is split across.
	ShardCount int `json:"shardCount"`
	// LatchTimeout is parsed and validated here only; the master's
	// LatchManager does not read it, and a latch acquisition blocks until
	// it is granted.
	LatchTimeout Duration `json:"latchTimeout"`
	// ConfigFile, if set, is a YAML overlay applied on top of command line flags.
	ConfigFile string `json:"-"`

	module *Module
}

// NewMasterConfig creates a MasterConfig with its flags registered at their defaults.
func NewMasterConfig() *MasterConfig {
	c := &MasterConfig{
		ListenAddress: ":7001",
		ShardCount:    32,
		LatchTimeout:  Duration(5_000_000_000), // 5s, expressed in ns to avoid importing time here
		module:        newModule("rackmem-master"),
	}

	fs := c.module.FlagSet()
	fs.StringVar(&c.ListenAddress, "listen-address", c.ListenAddress,
		"gRPC listen address for daemon and client joins")
	fs.IntVar(&c.ShardCount, "shard-count", c.ShardCount,
		"number of shards the page directory is split across")
	fs.Var(&c.LatchTimeout, "latch-timeout", "two-sided latch acquisition timeout")
	fs.StringVar(&c.ConfigFile, "config-file", c.ConfigFile,
		"optional YAML configuration file overlaid on top of the command line")
	version.RegisterFlag(fs)

	return c
}

// Parse parses the command line and, if requested, a YAML overlay file.
func (c *MasterConfig) Parse(args []string) error {
	if err := c.module.ParseArgList(args); err != nil {
		return err
	}
	if c.ConfigFile != "" {
		if err := c.module.ParseYAMLFile(c.ConfigFile, c); err != nil {
			return err
		}
	}
	if c.ShardCount <= 0 {
		return configError("rackmem-master: shard-count must be positive, got %d", c.ShardCount)
	}
	return nil
}

// Args returns the non-flag command line arguments.
func (c *MasterConfig) Args() []string {
	return c.module.Args()
}

// Usage prints command line usage for rackmem-master.
func (c *MasterConfig) Usage() {
	c.module.Usage()
}

// Describe renders the effective configuration as YAML, for diagnostics.
func (c *MasterConfig) Describe() string {
	data, err := DataFromObject(c)
	if err != nil {
		return configError("rackmem-master: %v", err).Error()
	}
	return data.String()
}
