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

package npu

import (
	"sync"

	logger "github.com/npufabric/npu-atsd-manager/pkg/log"
)

// ErrConfigExhausted is returned when registering more than MaxNPUs devices.
var ErrConfigExhausted = npuError("device table exhausted (maximum %d NPUs)", MaxNPUs)

// LinkRoute identifies one (NPU, link) pair an address-space context routes
// shootdowns through. The zero value routes nowhere.
type LinkRoute uint64

// MakeRoute returns the route through the given link of the given NPU.
func MakeRoute(npuIndex, link int) LinkRoute {
	return LinkRoute(uint64(npuIndex+1)<<8 | uint64(link))
}

// NPU returns the NPU index of the route.
func (r LinkRoute) NPU() int {
	return int(r>>8) - 1
}

// Link returns the link index of the route.
func (r LinkRoute) Link() int {
	return int(r & 0xff)
}

// Registry is the static table of NPU devices in the system.
type Registry struct {
	logger.Logger
	sync.Mutex
	devices [MaxNPUs]*Device
	count   int
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{
		Logger: logger.NewLogger("npu"),
	}
}

// Register adds a device to the registry, assigning it the next free index.
// Exceeding MaxNPUs is a fatal configuration error reported to the caller.
func (r *Registry) Register(d *Device) (int, error) {
	r.Lock()
	defer r.Unlock()

	if r.count >= MaxNPUs {
		r.Error("cannot register %s: %v", d, ErrConfigExhausted)
		return -1, ErrConfigExhausted
	}

	d.index = r.count
	r.devices[d.index] = d
	r.count++

	r.Info("registered %s", d)
	return d.index, nil
}

// Resolve maps a route back to its owning device. A nil result means the
// device is gone or was never registered; callers must treat the route as
// contributing nothing, not as an error.
func (r *Registry) Resolve(route LinkRoute) *Device {
	if route == 0 {
		return nil
	}
	index := route.NPU()
	if index < 0 || index >= MaxNPUs || route.Link() >= MaxLinks {
		return nil
	}
	r.Lock()
	defer r.Unlock()
	return r.devices[index]
}

// DeviceCount returns the number of registered devices.
func (r *Registry) DeviceCount() int {
	r.Lock()
	defer r.Unlock()
	return r.count
}

// Devices returns the registered devices in index order.
func (r *Registry) Devices() []*Device {
	r.Lock()
	defer r.Unlock()
	devices := make([]*Device, r.count)
	copy(devices, r.devices[:r.count])
	return devices
}
