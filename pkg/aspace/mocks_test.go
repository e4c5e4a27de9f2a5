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
	"fmt"
	"sync"
	"testing"

	"github.com/npufabric/npu-atsd-manager/pkg/atsd"
	"github.com/npufabric/npu-atsd-manager/pkg/npu"
)

// events records what happened, in order, across the mocks.
type events struct {
	sync.Mutex
	log []string
}

func (e *events) add(format string, args ...interface{}) {
	e.Lock()
	defer e.Unlock()
	e.log = append(e.log, fmt.Sprintf(format, args...))
}

func (e *events) snapshot() []string {
	e.Lock()
	defer e.Unlock()
	log := make([]string, len(e.log))
	copy(log, e.log)
	return log
}

// mockHW is an always-idle MMIO surface recording launches into events.
type mockHW struct {
	channels int
	ev       *events
}

func (h *mockHW) ChannelCount() int        { return h.channels }
func (h *mockHW) WriteAddress(int, uint64) {}
func (h *mockHW) ChannelStatus(int) uint64 { return 0 }
func (h *mockHW) Fence()                   {}

func (h *mockHW) WriteLaunch(ch int, val uint64) {
	if h.ev != nil {
		h.ev.add("launch")
	}
}

// mockVM hands out address spaces for all nonzero owners.
type mockVM struct {
	sync.Mutex
	ev         *events
	nextPID    uint64
	subErr     error
	subscribes int
	faultErrs  map[uint64]error
	faulted    []uint64
}

type mockSpace struct {
	vm      *mockVM
	pid     uint64
	flushes int
}

type mockSub struct {
	space  *mockSpace
	closed int
}

func newMockVM(ev *events) *mockVM {
	return &mockVM{ev: ev}
}

func (vm *mockVM) AddressSpaceOf(owner OwnerID) AddressSpace {
	if owner == 0 {
		return nil
	}
	vm.Lock()
	defer vm.Unlock()
	vm.nextPID++
	return &mockSpace{vm: vm, pid: vm.nextPID}
}

func (vm *mockVM) Fault(space AddressSpace, addr uint64, write bool) error {
	vm.Lock()
	defer vm.Unlock()
	vm.faulted = append(vm.faulted, addr)
	return vm.faultErrs[addr]
}

func (s *mockSpace) PID() uint64 { return s.pid }

func (s *mockSpace) FlushFull() {
	s.flushes++
	if s.vm.ev != nil {
		s.vm.ev.add("local-flush")
	}
}

func (s *mockSpace) Subscribe(sub Subscriber) (Subscription, error) {
	s.vm.Lock()
	defer s.vm.Unlock()
	s.vm.subscribes++
	if s.vm.subErr != nil {
		return nil, s.vm.subErr
	}
	return &mockSub{space: s}, nil
}

func (sub *mockSub) Close() {
	sub.closed++
	if sub.space.vm.ev != nil {
		sub.space.vm.ev.add("unsubscribe")
	}
}

// testManager builds a manager over mock collaborators with one two-channel
// NPU device per needsFullFlush flag given.
func testManager(t *testing.T, ev *events, needsFullFlush ...bool) (*Manager, *mockVM) {
	t.Helper()
	if len(needsFullFlush) == 0 {
		needsFullFlush = []bool{false}
	}
	registry := npu.NewRegistry()
	for _, coarse := range needsFullFlush {
		dev, err := npu.NewDevice(&mockHW{channels: 2, ev: ev}, coarse)
		if err != nil {
			t.Fatalf("failed to create device: %v", err)
		}
		if _, err := registry.Register(dev); err != nil {
			t.Fatalf("failed to register device: %v", err)
		}
	}
	vm := newMockVM(ev)
	mgr := NewManager(registry, atsd.NewEngine(registry), vm, vm)
	return mgr, vm
}
