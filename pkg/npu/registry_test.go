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
	"testing"
)

// nilHW is a do-nothing MMIO surface.
type nilHW struct {
	channels int
}

func (h *nilHW) ChannelCount() int        { return h.channels }
func (h *nilHW) WriteAddress(int, uint64) {}
func (h *nilHW) WriteLaunch(int, uint64)  {}
func (h *nilHW) ChannelStatus(int) uint64 { return 0 }
func (h *nilHW) Fence()                   {}

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	dev, err := NewDevice(&nilHW{channels: 2}, false)
	if err != nil {
		t.Fatalf("failed to create device: %v", err)
	}
	return dev
}

func TestRegistryExhaustion(t *testing.T) {
	registry := NewRegistry()

	for i := 0; i < MaxNPUs; i++ {
		index, err := registry.Register(newTestDevice(t))
		if err != nil {
			t.Fatalf("failed to register device %d: %v", i, err)
		}
		if index != i {
			t.Errorf("expected index %d, got %d", i, index)
		}
	}

	if _, err := registry.Register(newTestDevice(t)); err != ErrConfigExhausted {
		t.Errorf("expected ErrConfigExhausted, got %v", err)
	}
	if n := registry.DeviceCount(); n != MaxNPUs {
		t.Errorf("expected %d devices, got %d", MaxNPUs, n)
	}
}

func TestRegistryResolve(t *testing.T) {
	registry := NewRegistry()
	dev := newTestDevice(t)
	if _, err := registry.Register(dev); err != nil {
		t.Fatalf("failed to register device: %v", err)
	}

	if got := registry.Resolve(MakeRoute(0, 3)); got != dev {
		t.Errorf("expected %s, got %v", dev, got)
	}
	if got := registry.Resolve(0); got != nil {
		t.Errorf("zero route resolved to %v", got)
	}
	if got := registry.Resolve(MakeRoute(1, 0)); got != nil {
		t.Errorf("unplugged device resolved to %v", got)
	}
	if got := registry.Resolve(MakeRoute(0, MaxLinks)); got != nil {
		t.Errorf("out-of-range link resolved to %v", got)
	}
	if got := registry.Resolve(MakeRoute(MaxNPUs, 0)); got != nil {
		t.Errorf("out-of-range NPU resolved to %v", got)
	}
}

func TestInvalidChannelCount(t *testing.T) {
	if _, err := NewDevice(&nilHW{channels: MaxChannels + 1}, false); err == nil {
		t.Errorf("expected an error for %d channels", MaxChannels+1)
	}
}

func TestRouteEncoding(t *testing.T) {
	for npuIndex := 0; npuIndex < MaxNPUs; npuIndex++ {
		for link := 0; link < MaxLinks; link++ {
			route := MakeRoute(npuIndex, link)
			if route == 0 {
				t.Fatalf("route (%d, %d) encodes to the nil route", npuIndex, link)
			}
			if route.NPU() != npuIndex || route.Link() != link {
				t.Errorf("route (%d, %d) decodes to (%d, %d)",
					npuIndex, link, route.NPU(), route.Link())
			}
		}
	}
}
