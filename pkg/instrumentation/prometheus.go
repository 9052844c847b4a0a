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
	"strings"
	"sync"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	pclient "github.com/prometheus/client_golang/prometheus"
	model "github.com/prometheus/client_model/go"
	"go.opencensus.io/stats/view"

	ihttp "github.com/rackmem/rackmem/pkg/instrumentation/http"
)

const (
	// PrometheusMetricsPath is the URL path for exposing metrics to Prometheus.
	PrometheusMetricsPath = "/metrics"
)

// dynamically registered prometheus gatherers
var dynamicGatherers = &gatherers{gatherers: pclient.Gatherers{}}

// metrics encapsulates the state of our opencensus view / Prometheus export.
type metrics struct {
	export *prometheus.Exporter
}

// start creates, registers, and starts exporting opencensus views to Prometheus.
func (m *metrics) start(mux *ihttp.ServeMux, period time.Duration, enabled bool) error {
	if !enabled {
		log.Info("Prometheus export is disabled")
		return nil
	}

	log.Debug("creating Prometheus exporter...")

	cfg := prometheus.Options{
		Namespace: prometheusNamespace(ServiceName),
		Gatherer:  pclient.Gatherers{dynamicGatherers},
		OnError:   func(err error) { log.Error("%v", err) },
	}

	exp, err := prometheus.NewExporter(cfg)
	if err != nil {
		return instrumentationError("failed to create Prometheus exporter: %v", err)
	}

	m.export = exp
	mux.Handle(PrometheusMetricsPath, m.export)
	view.RegisterExporter(m.export)
	if period > 0 {
		view.SetReportingPeriod(period)
	}

	return nil
}

// stop unregisters our opencensus view exporter.
func (m *metrics) stop() {
	if m.export == nil {
		return
	}
	view.UnregisterExporter(m.export)
	m.export = nil
}

// reconfigure restarts metrics export if its configuration has changed.
func (m *metrics) reconfigure(mux *ihttp.ServeMux, period time.Duration, enabled bool) error {
	m.stop()
	mux.Unregister(PrometheusMetricsPath)
	return m.start(mux, period, enabled)
}

// mutate service name into a valid Prometheus namespace name.
func prometheusNamespace(service string) string {
	return strings.ReplaceAll(strings.ToLower(service), "-", "_")
}

// gatherers is a trivial wrapper around prometheus Gatherers.
type gatherers struct {
	sync.RWMutex
	gatherers pclient.Gatherers
}

// Register registers a new gatherer.
func (g *gatherers) Register(gatherer pclient.Gatherer) {
	g.Lock()
	defer g.Unlock()
	g.gatherers = append(g.gatherers, gatherer)
}

// Gather implements the pclient.Gatherer interface.
func (g *gatherers) Gather() ([]*model.MetricFamily, error) {
	g.RLock()
	defer g.RUnlock()
	return g.gatherers.Gather()
}

// RegisterGatherer registers a new prometheus Gatherer, exported alongside our own views.
func RegisterGatherer(g pclient.Gatherer) {
	dynamicGatherers.Register(g)
}
