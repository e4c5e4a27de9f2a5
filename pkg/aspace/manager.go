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

// Package aspace manages the address-space contexts accelerator links
// translate through, and their lifetime.
package aspace

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/npufabric/npu-atsd-manager/pkg/atsd"
	logger "github.com/npufabric/npu-atsd-manager/pkg/log"
	"github.com/npufabric/npu-atsd-manager/pkg/npu"
)

// Errors returned by context operations.
var (
	// ErrInvalidArgument indicates bad flags, or a release callback or
	// cookie not matching the one registered for the owner.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNoLinkedDevice indicates a link route that resolves to no device.
	ErrNoLinkedDevice = errors.New("no such linked device")
	// ErrNoAddressSpace indicates an owner without an address space.
	ErrNoAddressSpace = errors.New("owner has no address space")
	// ErrAllocation indicates a failed allocation or registration.
	ErrAllocation = errors.New("allocation failed")
)

// Manager owns the owner-to-context table and drives context lifetime. The
// table lock is held only across lookups, inserts and removals, never
// across callback, flush, or polling paths.
type Manager struct {
	logger.Logger
	lock     sync.Mutex
	contexts map[OwnerID]*Context
	registry *npu.Registry
	engine   *atsd.Engine
	vm       VMProvider
	faulter  PageFaulter
}

// NewManager creates a context manager over the given collaborators.
func NewManager(registry *npu.Registry, engine *atsd.Engine, vm VMProvider, faulter PageFaulter) *Manager {
	return &Manager{
		Logger:   logger.NewLogger("aspace"),
		contexts: make(map[OwnerID]*Context),
		registry: registry,
		engine:   engine,
		vm:       vm,
		faulter:  faulter,
	}
}

// CreateContext returns the context of the owner with the given route wired
// in, creating the context on first call. Subsequent calls for the same
// owner attach another link and take another reference, provided release
// and cookie match exactly what the first call registered; two unrelated
// callers never silently share one context under different callbacks.
func (m *Manager) CreateContext(owner OwnerID, route npu.LinkRoute, flags ContextFlags,
	release ReleaseFunc, cookie interface{}) (*Context, error) {

	if flags&^flagsValid != 0 {
		return nil, aspaceError("%w: unsupported context flags %#x", ErrInvalidArgument, uint64(flags&^flagsValid))
	}
	dev := m.registry.Resolve(route)
	if dev == nil {
		return nil, aspaceError("%w: route %#x", ErrNoLinkedDevice, uint64(route))
	}

	for {
		m.lock.Lock()
		c, ok := m.contexts[owner]
		if ok {
			if !callbacksMatch(c, release, cookie) {
				m.lock.Unlock()
				return nil, aspaceError("%w: release callback/cookie mismatch for owner %d",
					ErrInvalidArgument, owner)
			}
			if c.tryRef() {
				m.lock.Unlock()
				c.attachLink(route, dev)
				m.Debug("owner %d attached %s link %d, refs %d",
					owner, dev, route.Link(), c.Refs())
				return c, nil
			}
			// Concurrent teardown zeroed the count; wait for the
			// record to leave the table, then create afresh.
			m.lock.Unlock()
			runtime.Gosched()
			continue
		}
		m.lock.Unlock()

		c, err := m.newContext(owner, flags, release, cookie)
		if err != nil {
			return nil, err
		}

		m.lock.Lock()
		if _, ok := m.contexts[owner]; ok {
			// Lost the creation race; discard ours and attach to the winner.
			m.lock.Unlock()
			c.sub.Close()
			continue
		}
		atomic.StoreInt32(&c.state, stateActive)
		m.contexts[owner] = c
		m.lock.Unlock()

		c.attachLink(route, dev)
		m.Info("created context for owner %d (PID %d) via %s", owner, c.PID(), dev)
		return c, nil
	}
}

// newContext allocates a context and registers its change subscription. On
// any failure the half-built record is discarded and the error propagated.
func (m *Manager) newContext(owner OwnerID, flags ContextFlags,
	release ReleaseFunc, cookie interface{}) (*Context, error) {

	space := m.vm.AddressSpaceOf(owner)
	if space == nil {
		return nil, aspaceError("%w: owner %d", ErrNoAddressSpace, owner)
	}

	c := &Context{
		owner:   owner,
		flags:   flags,
		space:   space,
		release: release,
		cookie:  cookie,
		mgr:     m,
		refs:    1,
		state:   stateCreating,
	}

	sub, err := space.Subscribe(c)
	if err != nil {
		return nil, aspaceError("%w: subscribing to address-space changes for owner %d: %v",
			ErrAllocation, owner, err)
	}
	c.sub = sub

	return c, nil
}

// DestroyContext detaches the route and drops one reference. The last
// reference tears the context down: the release callback runs first so the
// driver stops issuing translation requests, then a whole-space
// invalidation flushes in-flight TLB state, then the subscription is
// unregistered and the record removed. No partial teardown is observable;
// a racing CreateContext for the same owner waits for the removal.
func (m *Manager) DestroyContext(c *Context, route npu.LinkRoute) {
	c.detachLink(route)
	if !c.unref() {
		m.Debug("owner %d detached route %#x, refs %d", c.owner, uint64(route), c.Refs())
		return
	}

	if !atomic.CompareAndSwapInt32(&c.state, stateActive, stateDestroying) {
		panic("aspace: context torn down twice")
	}

	if c.release != nil {
		c.release(c, c.cookie)
	}
	m.engine.InvalidateAll(c)
	c.sub.Close()

	m.lock.Lock()
	delete(m.contexts, c.owner)
	m.lock.Unlock()

	m.Info("destroyed context of owner %d", c.owner)
}

// Lookup returns the live context of the owner, or nil. No reference is
// taken; the caller only gets to observe existence.
func (m *Manager) Lookup(owner OwnerID) *Context {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.contexts[owner]
}

// ContextCount returns the number of live contexts.
func (m *Manager) ContextCount() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.contexts)
}

// Engine returns the invalidation engine of the manager.
func (m *Manager) Engine() *atsd.Engine {
	return m.engine
}

// callbacksMatch checks a re-attach against the registered callback/cookie
// pair. Function values are compared by code pointer.
func callbacksMatch(c *Context, release ReleaseFunc, cookie interface{}) bool {
	if (c.release == nil) != (release == nil) {
		return false
	}
	if c.release != nil &&
		reflect.ValueOf(c.release).Pointer() != reflect.ValueOf(release).Pointer() {
		return false
	}
	return c.cookie == cookie
}

// aspaceError returns a formatted package-specific error.
func aspaceError(format string, args ...interface{}) error {
	return fmt.Errorf("aspace: "+format, args...)
}
