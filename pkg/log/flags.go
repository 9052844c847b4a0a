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
	"flag"
	"strings"
)

const (
	// DefaultLevel is the default logging severity level.
	DefaultLevel = LevelInfo
	// command-line flag prefix.
	optPrefix = "logger"
	// Flag for enabling/disabling normal non-debug logging for sources.
	optEnable = optPrefix + "-sources"
	// Flag for enabling/disabling debug logging for sources.
	optDebug = optPrefix + "-debug"
	// Flag for selecting logging level.
	optLevel = optPrefix + "-level"
	// Flag for selecting logging backend.
	optLogger = optPrefix
)

// srcmap tracks logging or debugging settings for sources, and doubles
// as a flag.Value for comma-separated "[state:]source,..." specs.
type srcmap map[string]bool

// backendName is a flag.Value selecting the active Backend by name.
type backendName string

var defaultEnable = srcmap{"*": true}
var defaultDebug = srcmap{"*": false}

// Set parses a Level name.
func (l *Level) Set(value string) error {
	levels := map[string]Level{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warning": LevelWarn,
		"warn":    LevelWarn,
		"error":   LevelError,
		"fatal":   LevelFatal,
		"panic":   LevelPanic,
	}
	level, ok := levels[strings.ToLower(value)]
	if !ok {
		return loggerError("invalid logging level %q", value)
	}

	*l = level
	SetLevel(level)

	return nil
}

// String returns the name of the level.
func (l Level) String() string {
	names := map[Level]string{
		LevelDebug: "debug",
		LevelInfo:  "info",
		LevelWarn:  "warning",
		LevelError: "error",
		LevelFatal: "fatal",
		LevelPanic: "panic",
	}
	if name, ok := names[l]; ok {
		return name
	}
	return names[LevelInfo]
}

// Set activates the named backend.
func (n *backendName) Set(value string) error {
	if err := SetBackend(value); err != nil {
		return err
	}
	*n = backendName(value)
	return nil
}

// String returns the name of the active backend.
func (n backendName) String() string {
	return string(n)
}

// Set parses entries of a "[state:]source[,[state:]source...]" spec into m.
func (m *srcmap) Set(value string) error {
	sm := *m
	prev, state, src := "on", "", ""

	for _, entry := range strings.Split(value, ",") {
		statesrc := strings.SplitN(entry, ":", 2)
		switch len(statesrc) {
		case 2:
			state, src = statesrc[0], statesrc[1]
		case 1:
			state, src = "", statesrc[0]
		}

		if state != "" {
			prev = state
		} else {
			state = prev
		}
		if src == "all" {
			src = "*"
		}

		enabled, err := parseEnabled(state)
		if err != nil {
			return loggerError("invalid state %q in source map", state)
		}
		sm[src] = enabled
	}

	if m == &defaultEnable {
		log.update(sm, nil)
	}
	if m == &defaultDebug {
		log.update(nil, sm)
	}

	return nil
}

// String returns a string representation of the srcmap.
func (m *srcmap) String() string {
	off, on := "", ""
	for src, state := range *m {
		if state {
			on = appendCSV(on, src)
		} else {
			off = appendCSV(off, src)
		}
	}

	switch {
	case off == "":
		return "on:" + on
	case on == "":
		return "off:" + off
	default:
		return "on:" + on + ",off:" + off
	}
}

func appendCSV(list, item string) string {
	if list == "" {
		return item
	}
	return list + "," + item
}

// parseEnabled parses a handful of common truthy/falsy spellings.
func parseEnabled(state string) (bool, error) {
	switch strings.ToLower(state) {
	case "on", "true", "yes", "enable", "enabled", "1":
		return true, nil
	case "off", "false", "no", "disable", "disabled", "0":
		return false, nil
	default:
		return false, loggerError("unrecognized enable/disable state %q", state)
	}
}

// Register our command-line flags. Binaries that want YAML-file overrides
// layer them on top of these defaults via pkg/config before flag.Parse.
func init() {
	var logger backendName = FmtBackendName
	var level Level = DefaultLevel

	flag.Var(&logger, optLogger,
		"logging backend to use (fmt)")
	flag.Var(&level, optLevel,
		"lowest severity level to pass through (debug, info, warning, error)")
	flag.Var(&defaultEnable, optEnable,
		"comma-separated list of source names to enable/disable logging for.\n"+
			"Specify '*' or 'all' to enable all sources, which is also the default.\n"+
			"Prefix a source or list with 'off:' to disable.")
	flag.Var(&defaultDebug, optDebug,
		"comma-separated list of source names to enable debug messages for.\n"+
			"Specify '*' or 'all' to enable debug for all sources.\n"+
			"Prefix a source or list with 'off:' to disable, which is also the default.")
}
