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

// Package atsd implements the address-translation-shootdown protocol across
// the NPU devices an address-space context routes through.
package atsd

import (
	"runtime"
	"sync/atomic"
	"time"

	logger "github.com/npufabric/npu-atsd-manager/pkg/log"
	"github.com/npufabric/npu-atsd-manager/pkg/npu"
)

// Target is the engine's view of one address-space context. Route must be a
// single atomic read of the slot: a link detached concurrently may or may not
// be included in one shootdown round, which teardown makes safe by always
// issuing its own final whole-space invalidation.
type Target interface {
	// PID returns the hardware context id translations are tagged with.
	PID() uint64
	// FullFlushOnly returns true if the owning MMU cannot flush fine-grained.
	FullFlushOnly() bool
	// FlushFull flushes the owning address space in the local MMU.
	FlushFull()
	// Route reads the link route at (npuIndex, link), 0 when absent.
	Route(npuIndex, link int) npu.LinkRoute
}

// Engine drives ATSD invalidations. All operations are synchronous and
// block until hardware completion; the hardware contract guarantees
// completion, so nothing here returns an error or times out.
type Engine struct {
	log      logger.Logger
	slowLog  logger.Logger
	registry *npu.Registry
	stats    Stats
}

// Stats counts engine activity. All fields are accessed atomically.
type Stats struct {
	// Invalidations counts completed invalidations per granule.
	Invalidations [GranuleWhole + 1]uint64
	// DrainLaunches counts PID-0 drain launches.
	DrainLaunches uint64
	// LocalFlushes counts full local MMU pre-flushes.
	LocalFlushes uint64
}

// claim is one acquired (device, channel) pair.
type claim struct {
	dev *npu.Device
	ch  int
}

// NewEngine creates an invalidation engine over the given device registry.
func NewEngine(registry *npu.Registry) *Engine {
	log := logger.NewLogger("atsd")
	return &Engine{
		log:      log,
		slowLog:  logger.RateLimit(log, logger.Interval(10*time.Second)),
		registry: registry,
	}
}

// Invalidate shoots down the translations covering [start, start+length)
// for the target on every NPU it currently routes through.
func (e *Engine) Invalidate(tgt Target, start, length uint64) {
	g, addr := classify(start, length)
	e.log.Debug("invalidate PID %d [%#x, %#x) as %s@%#x", tgt.PID(), start, start+length, g, addr)
	e.run(tgt, g, addr)
}

// InvalidateAll shoots down every translation tagged with the target's PID.
func (e *Engine) InvalidateAll(tgt Target) {
	e.log.Debug("invalidate PID %d whole address space", tgt.PID())
	e.run(tgt, GranuleWhole, 0)
}

func (e *Engine) run(tgt Target, g Granule, addr uint64) {
	// Hardware without fine-grained flush needs the whole local address
	// space flushed before any device is touched.
	if tgt.FullFlushOnly() {
		tgt.FlushFull()
		atomic.AddUint64(&e.stats.LocalFlushes, 1)
	}

	// Acquire one channel per NPU with an active link, in ascending device
	// order. Devices without channels never get visited.
	var claims []claim
	for i := 0; i < npu.MaxNPUs; i++ {
		dev := e.activeDevice(tgt, i)
		if dev == nil || dev.ChannelCount() == 0 {
			continue
		}
		claims = append(claims, claim{dev: dev, ch: dev.Pool().Acquire()})
	}
	if len(claims) == 0 {
		atomic.AddUint64(&e.stats.Invalidations[g], 1)
		return
	}

	// Program the target address on every channel, then fence so all
	// address stores land before any launch store. A whole-space
	// invalidation writes no address at all.
	if g != GranuleWhole {
		for _, c := range claims {
			c.dev.HW().WriteAddress(c.ch, addr)
		}
		for _, c := range claims {
			c.dev.HW().Fence()
		}
	}

	launch := encodeLaunch(g, tgt.PID())
	for _, c := range claims {
		c.dev.HW().WriteLaunch(c.ch, launch)
	}
	e.wait(claims)

	// Drain rounds: a completed shootdown may not have fully retired, so
	// chase it with DrainRounds whole-PID-0 invalidations, each with its
	// own completion wait.
	drain := encodeLaunch(GranuleWhole, DrainPID)
	for round := 0; round < DrainRounds; round++ {
		for _, c := range claims {
			c.dev.HW().WriteLaunch(c.ch, drain)
		}
		e.wait(claims)
		atomic.AddUint64(&e.stats.DrainLaunches, uint64(len(claims)))
	}

	// Release in acquisition order.
	for _, c := range claims {
		c.dev.Pool().Release(c.ch)
	}

	atomic.AddUint64(&e.stats.Invalidations[g], 1)
}

// activeDevice resolves the device backing the first live link the target
// has on the given NPU index. Each link slot is read exactly once; a second
// read could observe a concurrent detach and see a device vanish between
// the read and the write phase.
func (e *Engine) activeDevice(tgt Target, npuIndex int) *npu.Device {
	for link := 0; link < npu.MaxLinks; link++ {
		route := tgt.Route(npuIndex, link)
		if route == 0 {
			continue
		}
		if dev := e.registry.Resolve(route); dev != nil {
			return dev
		}
	}
	return nil
}

// wait busy-polls every claimed channel until its status register reads
// idle. There is no timeout: non-completion is a hardware fault outside
// software recovery, not an error this path can report.
func (e *Engine) wait(claims []claim) {
	for _, c := range claims {
		spins := 0
		for c.dev.HW().ChannelStatus(c.ch) != 0 {
			spins++
			if spins == opt.SlowPollSpins {
				e.slowLog.Warn("ATSD completion slow on %s channel %d", c.dev, c.ch)
			}
			runtime.Gosched()
		}
	}
}

// Snapshot returns a copy of the engine activity counters.
func (e *Engine) Snapshot() Stats {
	var s Stats
	for g := range e.stats.Invalidations {
		s.Invalidations[g] = atomic.LoadUint64(&e.stats.Invalidations[g])
	}
	s.DrainLaunches = atomic.LoadUint64(&e.stats.DrainLaunches)
	s.LocalFlushes = atomic.LoadUint64(&e.stats.LocalFlushes)
	return s
}

// Registry returns the device registry the engine operates on.
func (e *Engine) Registry() *npu.Registry {
	return e.registry
}
