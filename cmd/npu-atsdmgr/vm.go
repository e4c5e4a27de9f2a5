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

package main

import (
	"sync"
	"sync/atomic"

	"github.com/npufabric/npu-atsd-manager/pkg/aspace"
)

// simVM is a minimal VM collaborator for soaking: every nonzero owner has
// an address space, PIDs are handed out sequentially starting at 1 (PID 0
// stays reserved for draining).
type simVM struct {
	sync.Mutex
	spaces  map[aspace.OwnerID]*simSpace
	nextPID uint64
	flushes uint64 // accessed atomically
	faults  uint64 // accessed atomically
}

type simSpace struct {
	vm  *simVM
	pid uint64
}

type simSubscription struct{}

func newSimVM() *simVM {
	return &simVM{spaces: make(map[aspace.OwnerID]*simSpace)}
}

// AddressSpaceOf implements aspace.VMProvider.
func (vm *simVM) AddressSpaceOf(owner aspace.OwnerID) aspace.AddressSpace {
	if owner == 0 {
		return nil
	}
	vm.Lock()
	defer vm.Unlock()
	space, ok := vm.spaces[owner]
	if !ok {
		vm.nextPID++
		space = &simSpace{vm: vm, pid: vm.nextPID}
		vm.spaces[owner] = space
	}
	return space
}

// Fault implements aspace.PageFaulter.
func (vm *simVM) Fault(space aspace.AddressSpace, addr uint64, write bool) error {
	atomic.AddUint64(&vm.faults, 1)
	return nil
}

// Flushes returns the number of full local MMU flushes requested.
func (vm *simVM) Flushes() uint64 {
	return atomic.LoadUint64(&vm.flushes)
}

// Faults returns the number of translation faults handled.
func (vm *simVM) Faults() uint64 {
	return atomic.LoadUint64(&vm.faults)
}

func (s *simSpace) PID() uint64 {
	return s.pid
}

func (s *simSpace) FlushFull() {
	atomic.AddUint64(&s.vm.flushes, 1)
}

func (s *simSpace) Subscribe(sub aspace.Subscriber) (aspace.Subscription, error) {
	return &simSubscription{}, nil
}

func (*simSubscription) Close() {}
