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

// Package stats counts what the access path and master latch do, as
// opencensus measures. pkg/instrumentation already wires an exporter and a
// Prometheus /metrics handler; registering views here is enough to have
// every counter in this package show up there without this package knowing
// anything about HTTP or Prometheus itself.
package stats

import (
	"context"
	"strconv"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	pageHit  = stats.Int64("rackmem/page_hit", "page access served from local residence", stats.UnitDimensionless)
	pageMiss = stats.Int64("rackmem/page_miss", "page access that found the page absent locally", stats.UnitDimensionless)
	pageDIO  = stats.Int64("rackmem/page_dio", "page access served by proxying RDMA I/O to the owner", stats.UnitDimensionless)
	pageSwap = stats.Int64("rackmem/page_swap", "page access that triggered a migration or swap", stats.UnitDimensionless)

	latchWait = stats.Float64("rackmem/latch_wait_seconds", "time a latchRemotePage caller spent waiting to acquire", stats.UnitSeconds)
	migrateDur = stats.Float64("rackmem/migrate_duration_seconds", "wall time of one tryMigratePage round trip", stats.UnitSeconds)
)

// RackIDKey tags every measurement with the rack the daemon recording it
// belongs to, so a cluster-wide dashboard can break counters down per rack.
var RackIDKey, _ = tag.NewKey("rack_id")

// Views are every view this package defines; Register installs them all.
var Views = []*view.View{
	{Name: "rackmem/page_hit_count", Measure: pageHit, Aggregation: view.Count(), TagKeys: []tag.Key{RackIDKey}},
	{Name: "rackmem/page_miss_count", Measure: pageMiss, Aggregation: view.Count(), TagKeys: []tag.Key{RackIDKey}},
	{Name: "rackmem/page_dio_count", Measure: pageDIO, Aggregation: view.Count(), TagKeys: []tag.Key{RackIDKey}},
	{Name: "rackmem/page_swap_count", Measure: pageSwap, Aggregation: view.Count(), TagKeys: []tag.Key{RackIDKey}},
	{
		Name: "rackmem/latch_wait_seconds", Measure: latchWait,
		Aggregation: view.Distribution(0, .0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5),
	},
	{
		Name: "rackmem/migrate_duration_seconds", Measure: migrateDur,
		Aggregation: view.Distribution(0, .0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5),
	},
}

// Register installs every view in Views. Call once per process at startup.
func Register() error {
	return view.Register(Views...)
}

// Unregister removes every view in Views; used by tests that register,
// exercise and tear down repeatedly within one process.
func Unregister() {
	view.Unregister(Views...)
}

func withRack(ctx context.Context, rackID int32) context.Context {
	ctx, _ = tag.New(ctx, tag.Upsert(RackIDKey, strconv.Itoa(int(rackID))))
	return ctx
}

// PageHit records a page access served from local residence.
func PageHit(ctx context.Context, rackID int32) {
	stats.Record(withRack(ctx, rackID), pageHit.M(1))
}

// PageMiss records a page access that found nothing cached locally.
func PageMiss(ctx context.Context, rackID int32) {
	stats.Record(withRack(ctx, rackID), pageMiss.M(1))
}

// PageDIO records a page access proxied to the owning daemon over RDMA.
func PageDIO(ctx context.Context, rackID int32) {
	stats.Record(withRack(ctx, rackID), pageDIO.M(1))
}

// PageSwap records a page access that triggered a migration.
func PageSwap(ctx context.Context, rackID int32) {
	stats.Record(withRack(ctx, rackID), pageSwap.M(1))
}

// LatchWait records how long a latchRemotePage caller waited to acquire.
func LatchWait(ctx context.Context, d time.Duration) {
	stats.Record(ctx, latchWait.M(d.Seconds()))
}

// MigrateDuration records the wall time of one tryMigratePage round trip.
func MigrateDuration(ctx context.Context, d time.Duration) {
	stats.Record(ctx, migrateDur.M(d.Seconds()))
}
