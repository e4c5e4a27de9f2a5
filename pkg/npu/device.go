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

// Package npu models NPU bridge devices and their ATSD shootdown channels.
package npu

import (
	"fmt"
)

const (
	// MaxNPUs is the maximum number of NPU devices in one system.
	MaxNPUs = 8
	// MaxLinks is the maximum number of accelerator links per NPU.
	MaxLinks = 6
	// MaxChannels is the maximum number of ATSD channels per NPU.
	MaxChannels = 8
)

// HW gives access to the MMIO surface of one NPU bridge. Real hardware maps
// this onto the per-channel ATSD launch/status register windows; tests and the
// soak tool plug in a simulated implementation.
type HW interface {
	// ChannelCount returns the number of ATSD channels the device exposes.
	ChannelCount() int
	// WriteAddress writes the target address register of a channel.
	WriteAddress(ch int, addr uint64)
	// WriteLaunch writes the launch register of a channel, starting a shootdown.
	WriteLaunch(ch int, val uint64)
	// ChannelStatus reads the status register of a channel; zero means idle.
	ChannelStatus(ch int) uint64
	// Fence orders all preceding register writes before any subsequent ones.
	Fence()
}

// ReleaseObserver can be implemented by an HW backend to observe channel
// releases. A release is pool bookkeeping, not register traffic, so the hook
// is optional; the simulated backend records it to expose release ordering.
type ReleaseObserver interface {
	// ChannelReleased reports a claimed channel returning to the pool.
	ChannelReleased(ch int)
}

// Device is one NPU bridge with its ATSD channel pool.
type Device struct {
	index          int
	hw             HW
	pool           *ChannelPool
	needsFullFlush bool
}

// NewDevice creates a device for the given hardware. needsFullFlush marks
// hardware that cannot invalidate at sub-address-space granularity; contexts
// routed through such a device get pinned to full-address-space flushing.
func NewDevice(hw HW, needsFullFlush bool) (*Device, error) {
	count := hw.ChannelCount()
	if count < 0 || count > MaxChannels {
		return nil, npuError("invalid ATSD channel count %d (maximum %d)", count, MaxChannels)
	}
	pool := newChannelPool(count)
	if obs, ok := hw.(ReleaseObserver); ok {
		pool.onRelease = obs.ChannelReleased
	}
	return &Device{
		index:          -1,
		hw:             hw,
		pool:           pool,
		needsFullFlush: needsFullFlush,
	}, nil
}

// Index returns the registry index of the device, or -1 if unregistered.
func (d *Device) Index() int {
	return d.index
}

// HW returns the MMIO surface of the device.
func (d *Device) HW() HW {
	return d.hw
}

// Pool returns the ATSD channel pool of the device.
func (d *Device) Pool() *ChannelPool {
	return d.pool
}

// ChannelCount returns the number of ATSD channels present on the device.
func (d *Device) ChannelCount() int {
	return d.pool.Count()
}

// NeedsFullFlush returns true if the device cannot flush fine-grained.
func (d *Device) NeedsFullFlush() bool {
	return d.needsFullFlush
}

func (d *Device) String() string {
	return fmt.Sprintf("NPU#%d (%d channels)", d.index, d.pool.Count())
}

// npuError returns a formatted package-specific error.
func npuError(format string, args ...interface{}) error {
	return fmt.Errorf("npu: "+format, args...)
}
