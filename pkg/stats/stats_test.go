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

package stats_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats/view"

	"github.com/rackmem/rackmem/pkg/stats"
)

func TestRegisterAndUnregisterIsIdempotentAcrossTests(t *testing.T) {
	require.NoError(t, stats.Register())
	defer stats.Unregister()

	require.NotNil(t, view.Find("rackmem/page_hit_count"))
}

func TestRecordingCountersDoesNotPanic(t *testing.T) {
	require.NoError(t, stats.Register())
	defer stats.Unregister()

	ctx := context.Background()
	require.NotPanics(t, func() {
		stats.PageHit(ctx, 1)
		stats.PageMiss(ctx, 1)
		stats.PageDIO(ctx, 1)
		stats.PageSwap(ctx, 1)
		stats.LatchWait(ctx, 5*time.Millisecond)
		stats.MigrateDuration(ctx, 20*time.Millisecond)
	})
}
