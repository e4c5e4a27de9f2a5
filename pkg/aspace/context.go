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
	"sync/atomic"

	"github.com/npufabric/npu-atsd-manager/pkg/npu"
)

// ContextFlags restrict what translation requests a context may issue.
type ContextFlags uint64

const (
	// FlagRelocation enables address relocation.
	FlagRelocation ContextFlags = 1 << iota
	// FlagProblemState restricts translation to problem (user) state.
	FlagProblemState
	// FlagHypervisor allows hypervisor-state translation.
	FlagHypervisor

	// flagsValid is the known-safe subset accepted at context creation.
	flagsValid = FlagRelocation | FlagProblemState | FlagHypervisor
)

// ReleaseFunc is called at teardown, before the final whole-space
// invalidation, so the owning driver stops issuing translation requests.
// The cookie is the value registered at context creation and must be
// comparable; a pointer to driver state is the expected shape.
type ReleaseFunc func(ctx *Context, cookie interface{})

// context lifecycle states
const (
	stateCreating int32 = iota
	stateActive
	stateDestroying
)

// Context binds one address space to the set of accelerator links currently
// allowed to translate on its behalf. One context is shared by every driver
// attach for the same owner; an atomic reference count frees it on the last
// detach.
type Context struct {
	owner   OwnerID
	flags   ContextFlags
	space   AddressSpace
	sub     Subscription
	release ReleaseFunc
	cookie  interface{}
	mgr     *Manager

	refs          int32  // accessed atomically
	state         int32  // accessed atomically
	fullFlushOnly uint32 // accessed atomically

	// links[npu][link] holds the LinkRoute wired at that slot, 0 when
	// absent. Slots are written under the owner's address-space structural
	// lock; the invalidation path only reads them, one atomic load per
	// slot, and tolerates absence appearing mid-flight.
	links [npu.MaxNPUs][npu.MaxLinks]uint64
}

// Owner returns the owner of the context.
func (c *Context) Owner() OwnerID {
	return c.owner
}

// Flags returns the translation flags of the context.
func (c *Context) Flags() ContextFlags {
	return c.flags
}

// Refs returns the current reference count.
func (c *Context) Refs() int {
	return int(atomic.LoadInt32(&c.refs))
}

// tryRef takes a reference unless the count already dropped to zero, in
// which case teardown is in flight and the caller must wait for the record
// to leave the table.
func (c *Context) tryRef() bool {
	for {
		refs := atomic.LoadInt32(&c.refs)
		if refs == 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(&c.refs, refs, refs+1) {
			return true
		}
	}
}

// unref drops one reference and reports whether it was the last.
func (c *Context) unref() bool {
	refs := atomic.AddInt32(&c.refs, -1)
	if refs < 0 {
		panic("aspace: context reference count underflow")
	}
	return refs == 0
}

// attachLink wires a route into the link table.
func (c *Context) attachLink(route npu.LinkRoute, dev *npu.Device) {
	atomic.StoreUint64(&c.links[route.NPU()][route.Link()], uint64(route))
	if dev.NeedsFullFlush() {
		// One coarse device pins the whole context: fine-grained
		// shootdowns would leave that device's MMU stale.
		atomic.StoreUint32(&c.fullFlushOnly, 1)
	}
}

// detachLink clears a route from the link table. Routes outside the table,
// the zero route included, are ignored.
func (c *Context) detachLink(route npu.LinkRoute) {
	if route == 0 {
		return
	}
	index := route.NPU()
	if index < 0 || index >= npu.MaxNPUs || route.Link() >= npu.MaxLinks {
		return
	}
	atomic.StoreUint64(&c.links[index][route.Link()], 0)
}

// PID implements atsd.Target.
func (c *Context) PID() uint64 {
	return c.space.PID()
}

// FullFlushOnly implements atsd.Target.
func (c *Context) FullFlushOnly() bool {
	return atomic.LoadUint32(&c.fullFlushOnly) != 0
}

// FlushFull implements atsd.Target.
func (c *Context) FlushFull() {
	c.space.FlushFull()
}

// Route implements atsd.Target.
func (c *Context) Route(npuIndex, link int) npu.LinkRoute {
	return npu.LinkRoute(atomic.LoadUint64(&c.links[npuIndex][link]))
}

// OnRelease implements Subscriber.
func (c *Context) OnRelease() {
	c.mgr.engine.InvalidateAll(c)
}

// OnAddressChanged implements Subscriber.
func (c *Context) OnAddressChanged(addr uint64) {
	c.mgr.engine.Invalidate(c, addr, 1)
}

// OnRangeInvalidated implements Subscriber.
func (c *Context) OnRangeInvalidated(start, end uint64) {
	c.mgr.engine.Invalidate(c, start, end-start)
}
