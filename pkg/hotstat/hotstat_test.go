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

package hotstat_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rackmem/rackmem/pkg/hotstat"
)

func TestFirstAddIsOne(t *testing.T) {
	s := hotstat.New(0.01, 50*time.Microsecond)
	now := time.Now()
	require.Equal(t, 1.0, s.Add(now))
}

func TestFourFastAddsReachWatermark(t *testing.T) {
	s := hotstat.New(0.01, 50*time.Microsecond)
	now := time.Now()

	var v float64
	for i := 0; i < 4; i++ {
		now = now.Add(100 * time.Microsecond)
		v = s.Add(now)
	}

	require.Equal(t, 4, hotstat.Watermark(v))
}

func TestCoalescesWithinWindow(t *testing.T) {
	s := hotstat.New(0.01, 50*time.Microsecond)
	now := time.Now()

	v1 := s.Add(now)
	v2 := s.Add(now.Add(10 * time.Microsecond))
	require.Equal(t, v1, v2, "second add within the coalesce window must not change the value")
}

func TestDecayReducesValueOverLongGap(t *testing.T) {
	s := hotstat.New(1.0, time.Microsecond)
	now := time.Now()

	for i := 0; i < 3; i++ {
		now = now.Add(time.Millisecond)
		s.Add(now)
	}
	hot := s.Value()

	// A long idle gap should decay the counter close to its floor contribution.
	v := s.Add(now.Add(10 * time.Second))
	require.Less(t, v, hot)
	require.GreaterOrEqual(t, v, 1.0)
}

func TestAddNeverReturnsLessThanOne(t *testing.T) {
	s := hotstat.New(5.0, time.Nanosecond)
	now := time.Now()
	for i := 0; i < 10; i++ {
		now = now.Add(time.Second)
		require.GreaterOrEqual(t, s.Add(now), 1.0)
	}
}
