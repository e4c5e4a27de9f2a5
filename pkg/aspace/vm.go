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

// OwnerID identifies one address space owner. It is opaque to this package;
// the VM collaborator hands it out and resolves it.
type OwnerID uint64

// VMProvider is the OS virtual-memory collaborator.
type VMProvider interface {
	// AddressSpaceOf returns the address space of the owner, or nil for
	// owners without one (kernel-only actors have no translation PID).
	AddressSpaceOf(owner OwnerID) AddressSpace
}

// AddressSpace is one process address space as seen by the VM collaborator.
type AddressSpace interface {
	// PID returns the hardware context id translations are tagged with.
	// PID 0 is reserved for shootdown draining and never handed out.
	PID() uint64
	// FlushFull flushes the whole address space in the local MMU.
	FlushFull()
	// Subscribe registers for change notifications on the address space.
	Subscribe(s Subscriber) (Subscription, error)
}

// Subscriber receives address-space change notifications. All three
// callbacks forward into the invalidation engine.
type Subscriber interface {
	// OnRelease is called when the address space goes away.
	OnRelease()
	// OnAddressChanged is called when one page translation changed.
	OnAddressChanged(addr uint64)
	// OnRangeInvalidated is called when [start, end) was invalidated.
	OnRangeInvalidated(start, end uint64)
}

// Subscription is an active change-notification registration. Close
// unregisters; it is called exactly once, at context teardown.
type Subscription interface {
	Close()
}

// PageFaulter is the external page-fault-handling collaborator. Fault
// populates the page backing addr and touches it so a second-level
// translation entry exists.
type PageFaulter interface {
	Fault(space AddressSpace, addr uint64, write bool) error
}
