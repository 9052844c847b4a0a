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

// Package config provides command-line and YAML-file configuration for
// rackmem's binaries. Unlike the dynamic, pluggable multi-module registry
// this package descends from, there is one Module per binary: the registry
// collapsed into two concrete types, MasterConfig and DaemonConfig.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"

	logger "github.com/rackmem/rackmem/pkg/log"
)

// Source describes where configuration data has been acquired from.
type Source string

const (
	// CommandLine is the command line configuration source.
	CommandLine Source = "command line configuration"
	// ConfigFile is a YAML file configuration source.
	ConfigFile Source = "configuration file"
)

// Our logger instance.
var log = logger.NewLogger("config")

// configError produces a formatted config-specific error.
func configError(format string, args ...interface{}) error {
	return fmt.Errorf("config: "+format, args...)
}

// Module is a named set of configuration flags for a single binary: one
// Module is created per binary (see MasterConfig, DaemonConfig) and parses
// both the command line and an optional YAML overlay into the same struct.
type Module struct {
	name    string
	flagset *flag.FlagSet
}

// newModule creates a Module with a fail-fast (ContinueOnError) flag.FlagSet:
// an unrecognized flag is reported back to the caller rather than causing
// flag.Parse to os.Exit or panic out from under us.
func newModule(name string) *Module {
	return &Module{
		name:    name,
		flagset: flag.NewFlagSet(name, flag.ContinueOnError),
	}
}

// FlagSet returns the flag.FlagSet backing this module, for registering flags.
func (m *Module) FlagSet() *flag.FlagSet {
	return m.flagset
}

// ParseArgList parses the given command line arguments into this module's flags.
func (m *Module) ParseArgList(args []string) error {
	if err := m.flagset.Parse(args); err != nil {
		return configError("%s: failed to parse command line: %v", m.name, err)
	}
	return nil
}

// ParseYAMLFile overlays the given YAML file onto obj (strictly: unknown keys fail).
func (m *Module) ParseYAMLFile(path string, obj interface{}) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	raw, err := os.ReadFile(abs)
	if err != nil {
		return configError("%s: failed to read configuration file %s: %v", m.name, abs, err)
	}

	if err := yaml.UnmarshalStrict(raw, obj); err != nil {
		return configError("%s: failed to parse configuration file %s: %v", m.name, abs, err)
	}

	log.Info("%s: loaded configuration overlay from %s", m.name, abs)
	return nil
}

// Usage prints help on usage of this module's flags.
func (m *Module) Usage() {
	m.flagset.Usage()
}

// Args returns the non-flag arguments left over after parsing the command line.
func (m *Module) Args() []string {
	return m.flagset.Args()
}
