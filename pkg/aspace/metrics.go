// Copyright 2020 Intel Corporation. All Rights Reserved.
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

package aspace

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/npufabric/npu-atsd-manager/pkg/metrics"
)

var activeContextsDesc = prometheus.NewDesc(
	"aspace_active_contexts",
	"Number of live address-space contexts.",
	nil, nil,
)

// collector exports context table statistics.
type collector struct {
	mgr *Manager
}

// RegisterMetrics registers the metrics collector for the manager.
func (m *Manager) RegisterMetrics() error {
	return metrics.RegisterCollector("aspace", func() (prometheus.Collector, error) {
		return &collector{mgr: m}, nil
	})
}

// Describe implements prometheus.Collector.
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- activeContextsDesc
}

// Collect implements prometheus.Collector.
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(activeContextsDesc,
		prometheus.GaugeValue, float64(c.mgr.ContextCount()))
}
