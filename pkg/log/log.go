// Copyright 2019-2020 Intel Corporation. All Rights Reserved.
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

package log

import (
	"sync"

	"github.com/pkg/errors"
)

// state is the runtime state shared by all loggers.
type state struct {
	sync.RWMutex
	configs map[logger]config     // per-logger source/debug configuration
	sources map[logger]string     // logger id to source name
	byName  map[string]logger     // source name to logger id
	backend map[string]BackendFn  // registered backend constructors
	active  Backend               // currently active backend
	level   Level                 // lowest severity not suppressed
	forced  bool                  // force debug logging for every source
	next    logger                // next logger id to hand out
}

// log is the package singleton tracking all loggers and the active backend.
var log = &state{
	configs: make(map[logger]config),
	sources: make(map[logger]string),
	byName:  make(map[string]logger),
	backend: make(map[string]BackendFn),
	active:  createFmtBackend(),
	level:   DefaultLevel,
}

// get returns the logger for source, creating one if necessary.
func (s *state) get(source string) logger {
	s.Lock()
	defer s.Unlock()

	if l, ok := s.byName[source]; ok {
		return l
	}

	l := s.next
	s.next++
	if uint64(l) >= maxLoggers {
		panic("log: too many logger sources registered")
	}

	s.byName[source] = l
	s.sources[l] = source
	s.configs[l] = mkConfig(l, true, false)

	return l
}

// setLevel updates the lowest severity level passed through to the backend.
func (s *state) setLevel(level Level) {
	s.level = level
}

// setBackend activates the named backend, creating it on first use.
func (s *state) setBackend(name string) error {
	fn, ok := s.backend[name]
	if !ok {
		return errors.Errorf("log: unknown backend %q", name)
	}

	if s.active != nil {
		s.active.Stop()
	}

	b := fn()
	b.SetSourceAlignment(s.alignment())
	s.active = b

	return nil
}

// update reconfigures logging/debugging state for the sources named in en/dbg.
// A nil map leaves that axis untouched; "*" matches every known source.
func (s *state) update(en, dbg map[string]bool) {
	s.Lock()
	defer s.Unlock()

	for l, name := range s.sources {
		cfg := s.configs[l]
		if en != nil {
			if state, ok := en[name]; ok {
				cfg.setLogging(state)
			} else if state, ok := en["*"]; ok {
				cfg.setLogging(state)
			}
		}
		if dbg != nil {
			if state, ok := dbg[name]; ok {
				cfg.setDebugging(state)
			} else if state, ok := dbg["*"]; ok {
				cfg.setDebugging(state)
			}
		}
		s.configs[l] = cfg
	}

	if s.active != nil {
		s.active.SetSourceAlignment(s.alignment())
	}
}

// alignment returns the length of the longest active source name.
func (s *state) alignment() int {
	align := 0
	for _, name := range s.sources {
		if len(name) > align {
			align = len(name)
		}
	}
	return align
}

// Get returns the Logger for the given source, creating it if necessary.
func Get(source string) Logger {
	return log.get(source)
}

// NewLogger is an alias for Get, kept for readability at call sites.
func NewLogger(source string) Logger {
	return log.get(source)
}

// SetLevel sets the lowest severity level that is passed through to the backend.
func SetLevel(level Level) {
	log.Lock()
	defer log.Unlock()
	log.setLevel(level)
}

// SetBackend activates the named, previously registered logging backend.
func SetBackend(name string) error {
	log.Lock()
	defer log.Unlock()
	return log.setBackend(name)
}

func loggerError(format string, args ...interface{}) error {
	return errors.Errorf("log: "+format, args...)
}
