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

package instrumentation

import (
	"flag"
	"time"
)

// options encapsulates our configurable instrumentation parameters.
type options struct {
	// HTTPEndpoint is our HTTP endpoint, used to export Prometheus /metrics.
	HTTPEndpoint string
	// PrometheusExport defines whether we export /metrics for Prometheus.
	PrometheusExport bool
	// ReportPeriod is the opencensus view reporting period.
	ReportPeriod time.Duration
}

// Our instrumentation options.
var opt = &options{
	HTTPEndpoint:     "",
	PrometheusExport: false,
	ReportPeriod:     15 * time.Second,
}

func init() {
	flag.StringVar(&opt.HTTPEndpoint, "instrumentation-http-endpoint", opt.HTTPEndpoint,
		"address to serve instrumentation HTTP endpoints (metrics) on, empty disables it")
	flag.BoolVar(&opt.PrometheusExport, "instrumentation-prometheus-export", opt.PrometheusExport,
		"export opencensus views for Prometheus scraping at /metrics")
	flag.DurationVar(&opt.ReportPeriod, "instrumentation-report-period", opt.ReportPeriod,
		"opencensus view reporting period")
}
