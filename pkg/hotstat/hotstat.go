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

// Package hotstat implements the per-page hot-access decay statistic: a
// counter of recent access intensity that decays exponentially between
// accesses, used by the daemon's access path to decide when a proxied page
// should migrate instead.
package hotstat

import (
	"math"
	"sync"
	"time"
)

// Stat is one page's exponentially decaying access counter.
//
//	value = old*exp(-lambda*dt) + 1
//
// Two Add calls closer together than the coalesce interval are collapsed
// into one: the second returns the first's value unmodified, so a burst of
// near-simultaneous accesses to the same page (from multiple goroutines
// serving the same client, say) doesn't inflate the counter once per access.
type Stat struct {
	mu       sync.Mutex
	value    float64
	lastAdd  time.Time
	lambda   float64
	coalesce time.Duration
}

// New creates a Stat with the given decay constant and coalescing window.
func New(lambda float64, coalesce time.Duration) *Stat {
	return &Stat{lambda: lambda, coalesce: coalesce}
}

// Add records one access at time now and returns the updated value.
func (s *Stat) Add(now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lastAdd.IsZero() {
		if dt := now.Sub(s.lastAdd); dt < s.coalesce {
			return s.value
		}
	}

	dt := 0.0
	if !s.lastAdd.IsZero() {
		dt = now.Sub(s.lastAdd).Seconds()
	}

	s.value = s.value*math.Exp(-s.lambda*dt) + 1
	s.lastAdd = now
	return s.value
}

// Value returns the statistic's current value without recording an access.
func (s *Stat) Value() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Watermark rounds a decay value to the nearest integer hot-access count.
// The access path compares this against the configured hot watermark using
// equality rather than >=, so migration triggers exactly once during the
// transition through the threshold rather than on every subsequent access.
func Watermark(value float64) int {
	return int(math.Round(value))
}
