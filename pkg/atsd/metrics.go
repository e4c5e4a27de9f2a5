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

package atsd

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/npufabric/npu-atsd-manager/pkg/metrics"
)

var (
	invalidationsDesc = prometheus.NewDesc(
		"atsd_invalidations_total",
		"Number of completed ATSD invalidations, per granule.",
		[]string{"granule"}, nil,
	)
	drainLaunchesDesc = prometheus.NewDesc(
		"atsd_drain_launches_total",
		"Number of PID-0 drain launches issued.",
		nil, nil,
	)
	localFlushesDesc = prometheus.NewDesc(
		"atsd_local_flushes_total",
		"Number of full local MMU pre-flushes.",
		nil, nil,
	)
	channelRetriesDesc = prometheus.NewDesc(
		"atsd_channel_acquire_retries_total",
		"Number of failed ATSD channel claim scans, per NPU.",
		[]string{"npu"}, nil,
	)
	channelsBusyDesc = prometheus.NewDesc(
		"atsd_channels_busy",
		"Number of currently claimed ATSD channels, per NPU.",
		[]string{"npu"}, nil,
	)
)

// collector exports engine and channel pool statistics.
type collector struct {
	engine *Engine
}

// RegisterMetrics registers the metrics collector for the engine.
func (e *Engine) RegisterMetrics() error {
	return metrics.RegisterCollector("atsd", func() (prometheus.Collector, error) {
		return &collector{engine: e}, nil
	})
}

// Describe implements prometheus.Collector.
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- invalidationsDesc
	ch <- drainLaunchesDesc
	ch <- localFlushesDesc
	ch <- channelRetriesDesc
	ch <- channelsBusyDesc
}

// Collect implements prometheus.Collector.
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	s := c.engine.Snapshot()
	for g, count := range s.Invalidations {
		ch <- prometheus.MustNewConstMetric(invalidationsDesc,
			prometheus.CounterValue, float64(count), Granule(g).String())
	}
	ch <- prometheus.MustNewConstMetric(drainLaunchesDesc,
		prometheus.CounterValue, float64(s.DrainLaunches))
	ch <- prometheus.MustNewConstMetric(localFlushesDesc,
		prometheus.CounterValue, float64(s.LocalFlushes))
	for _, dev := range c.engine.registry.Devices() {
		npuIndex := strconv.Itoa(dev.Index())
		ch <- prometheus.MustNewConstMetric(channelRetriesDesc,
			prometheus.CounterValue, float64(dev.Pool().Retries()), npuIndex)
		ch <- prometheus.MustNewConstMetric(channelsBusyDesc,
			prometheus.GaugeValue, float64(dev.Pool().BusyCount()), npuIndex)
	}
}
