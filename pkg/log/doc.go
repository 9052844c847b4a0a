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

// Package log implements the logging used by the master, daemon, and
// client binaries.
//
// Logging and debugging messages are controlled with --logger-sources and
// --logger-debug, which both take a comma-separated list of source names,
// optionally prefixed with "on:" or "off:". "*" or "all" matches every
// source. For instance, to turn on debugging for every source except
// "directory" and "latch":
//
//	--logger-debug on:*,off:directory,latch
//
// --logger-level sets the lowest severity passed through to the active
// backend (debug, info, warning, error, fatal, panic). --logger selects
// the backend by name; "fmt" is the only backend registered by default.
package log
